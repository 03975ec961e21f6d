package repositories

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"factory-ledger/src/models"
)

type BatchRepository struct {
	DB *gorm.DB
}

// lockErr wraps a row-lock failure so callers can tell retryable contention
// apart from real database errors.
func lockErr(resource string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "lock") || strings.Contains(msg, "deadlock") {
		return &models.ConcurrencyConflictError{Resource: resource, Err: err}
	}
	return err
}

// GetItemForUpdate - lock the item row for the duration of the transaction.
// Lock order is always item first, then batches ascending by ID.
func (r *BatchRepository) GetItemForUpdate(tx *gorm.DB, itemID uint) (*models.Item, error) {
	var item models.Item
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"}).
		First(&item, itemID).Error
	if err != nil {
		return nil, lockErr("item", err)
	}
	return &item, nil
}

// GetBatchForUpdate - lock a single batch row.
func (r *BatchRepository) GetBatchForUpdate(tx *gorm.DB, batchID uint) (*models.ItemBatch, error) {
	var batch models.ItemBatch
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"}).
		First(&batch, batchID).Error
	if err != nil {
		return nil, lockErr("item_batch", err)
	}
	return &batch, nil
}

// GetBatchesForUpdate - lock a set of batch rows in ascending ID order.
func (r *BatchRepository) GetBatchesForUpdate(tx *gorm.DB, batchIDs []uint) ([]models.ItemBatch, error) {
	var batches []models.ItemBatch
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"}).
		Where("id IN ?", batchIDs).
		Order("id ASC").
		Find(&batches).Error
	if err != nil {
		return nil, lockErr("item_batch", err)
	}
	return batches, nil
}

// SelectFIFO - lock and return the item's active batches in consumption
// order: oldest manufacture date first, nulls last, then by ID.
func (r *BatchRepository) SelectFIFO(tx *gorm.DB, itemID uint) ([]models.ItemBatch, error) {
	var batches []models.ItemBatch
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"}).
		Where("item_id = ? AND is_active = true", itemID).
		Order("manufacture_date ASC NULLS LAST, id ASC").
		Find(&batches).Error
	if err != nil {
		return nil, lockErr("item_batch", err)
	}
	return batches, nil
}

// GetBatch - one batch with its item loaded.
func (r *BatchRepository) GetBatch(batchID uint) (*models.ItemBatch, error) {
	var batch models.ItemBatch
	err := r.DB.Preload("Item").First(&batch, batchID).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// FindByCode - look up a batch by item and batch code.
func (r *BatchRepository) FindByCode(itemID uint, batchCode string) (*models.ItemBatch, error) {
	var batch models.ItemBatch
	err := r.DB.
		Where("item_id = ? AND batch_code = ?", itemID, batchCode).
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListByItem - active batches for an item, FIFO order, no locks.
func (r *BatchRepository) ListByItem(itemID uint) ([]models.ItemBatch, error) {
	var batches []models.ItemBatch
	err := r.DB.
		Where("item_id = ? AND is_active = true", itemID).
		Order("manufacture_date ASC NULLS LAST, id ASC").
		Find(&batches).Error
	return batches, err
}

// GetMovements - movement ledger for one batch, newest first.
func (r *BatchRepository) GetMovements(batchID uint, limit int) ([]models.BatchMovement, error) {
	var movements []models.BatchMovement
	q := r.DB.
		Where("batch_id = ?", batchID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&movements).Error
	return movements, err
}

// GetMovementsByRef - every movement recorded against one reference document.
func (r *BatchRepository) GetMovementsByRef(refType string, refID uint) ([]models.BatchMovement, error) {
	var movements []models.BatchMovement
	err := r.DB.
		Where("ref_type = ? AND ref_id = ?", refType, refID).
		Order("created_at ASC, id ASC").
		Find(&movements).Error
	return movements, err
}

// GetItemSummary - per-batch state breakdown for one item.
func (r *BatchRepository) GetItemSummary(itemID uint, now time.Time) ([]map[string]interface{}, error) {
	batches, err := r.ListByItem(itemID)
	if err != nil {
		return nil, err
	}

	result := make([]map[string]interface{}, 0)
	for _, b := range batches {
		summary := map[string]interface{}{
			"batch_id":          b.ID,
			"batch_code":        b.BatchCode,
			"qty_inspection":    b.QtyInspection,
			"qty_raw":           b.QtyRaw,
			"qty_wip":           b.QtyWIP,
			"qty_wip_total":     b.TotalWIP(),
			"qty_finished":      b.QtyFinished,
			"qty_scrap":         b.QtyScrap,
			"total_quantity":    b.TotalQuantity(),
			"available":         b.AvailableQuantity(),
			"inspection_status": b.InspectionStatus,
			"storage_location":  b.StorageLocation,
			"age_days":          b.AgeDays(now),
			"expired":           b.IsExpired(now),
		}
		if d := b.DaysToExpiry(now); d != nil {
			summary["days_to_expiry"] = *d
		}
		result = append(result, summary)
	}
	return result, nil
}

// GetProcessOccupancy - factory-wide WIP totals per process, summed across
// every active batch. The jsonb breakdown is aggregated in Go.
func (r *BatchRepository) GetProcessOccupancy() (map[string]decimal.Decimal, error) {
	var batches []models.ItemBatch
	err := r.DB.
		Select("qty_wip").
		Where("is_active = true").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}

	occupancy := make(map[string]decimal.Decimal)
	for i := range batches {
		for process, qty := range batches[i].QtyWIP {
			occupancy[process] = occupancy[process].Add(qty)
		}
	}
	return occupancy, nil
}

// GetLowStockItems - active items whose available stock is below minimum.
func (r *BatchRepository) GetLowStockItems() ([]map[string]interface{}, error) {
	var items []models.Item
	err := r.DB.
		Where("is_active = true AND minimum_stock > 0").
		Order("code").
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	result := make([]map[string]interface{}, 0)
	for _, item := range items {
		if !item.BelowMinimum() {
			continue
		}
		result = append(result, map[string]interface{}{
			"item_id":       item.ID,
			"item_code":     item.Code,
			"item_name":     item.Name,
			"unit":          item.UnitOfMeasure,
			"available":     item.AvailableQuantity(),
			"minimum_stock": item.MinimumStock,
			"shortfall":     item.MinimumStock.Sub(item.AvailableQuantity()),
		})
	}
	return result, nil
}
