package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"factory-ledger/src/metrics"
	"factory-ledger/src/models"
	"factory-ledger/src/repositories"
)

// ============ REQUEST STRUCTS ============

type ReceiveStockRequest struct {
	ItemID             uint
	BatchCode          string
	Quantity           decimal.Decimal
	SupplierBatch      string
	ManufactureDate    *time.Time
	ExpiryDate         *time.Time
	StorageLocation    string
	PurchaseRate       decimal.Decimal
	SourceType         models.SourceType
	SourceRefID        *uint
	RequiresInspection bool
	ChangedBy          string
	Notes              string
}

type MoveToWIPRequest struct {
	ItemID    uint
	BatchID   *uint // nil selects batches FIFO
	Quantity  decimal.Decimal
	Process   string
	RefType   string
	RefID     *uint
	RefNumber string
	ChangedBy string
	Notes     string
}

type ReceiveFromWIPRequest struct {
	ItemID    uint
	BatchID   uint
	Process   string
	Finished  decimal.Decimal
	Scrap     decimal.Decimal
	RefType   string
	RefID     *uint
	RefNumber string
	ChangedBy string
	Notes     string
}

type MoveBetweenProcessesRequest struct {
	ItemID      uint
	BatchID     uint
	Quantity    decimal.Decimal
	FromProcess string
	ToProcess   string
	RefType     string
	RefID       *uint
	RefNumber   string
	ChangedBy   string
	Notes       string
}

type ReturnUnusedRequest struct {
	ItemID    uint
	BatchID   uint
	Quantity  decimal.Decimal
	Process   string
	RefType   string
	RefID     *uint
	RefNumber string
	ChangedBy string
	Notes     string
}

type InspectionRequest struct {
	BatchID   uint
	ChangedBy string
	Notes     string
	// Quarantine marks a failed batch as quarantined instead of rejected.
	Quarantine bool
}

// BatchAllocation reports how much of one batch a FIFO move consumed.
type BatchAllocation struct {
	BatchID   uint            `json:"batch_id"`
	BatchCode string          `json:"batch_code"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// ============ STOCK SERVICE ============

// StockService is the only writer of quantity fields. Every mutation runs in
// one transaction: validate first, then mutate batch, mirror the item
// aggregate, and append movement ledger entries.
type StockService struct {
	DB      *gorm.DB
	Batches *repositories.BatchRepository
	Log     *zap.Logger

	// Now is injectable for tests; zero value falls back to time.Now.
	Now func() time.Time
}

func (s *StockService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *StockService) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

// ============ PUBLIC METHODS ============

// ReceiveStock - create or top up a batch with externally received material.
// Quantity lands in raw, or in inspection when the receipt requires one.
func (s *StockService) ReceiveStock(req ReceiveStockRequest) (*models.ItemBatch, error) {
	if !req.Quantity.IsPositive() {
		return nil, errNonPositiveRequest
	}
	if req.BatchCode == "" {
		return nil, errors.New("batch_code is required")
	}

	var batch *models.ItemBatch
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		item, err := s.Batches.GetItemForUpdate(tx, req.ItemID)
		if err != nil {
			return err
		}

		var existing models.ItemBatch
		err = tx.Where("item_id = ? AND batch_code = ?", req.ItemID, req.BatchCode).
			First(&existing).Error
		switch {
		case err == nil:
			batch = &existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			location := req.StorageLocation
			if location == "" {
				location = "Default"
			}
			sourceType := req.SourceType
			if sourceType == "" {
				sourceType = models.SourcePurchase
			}
			batch = &models.ItemBatch{
				ItemID:           req.ItemID,
				BatchCode:        req.BatchCode,
				SupplierBatch:    req.SupplierBatch,
				ManufactureDate:  req.ManufactureDate,
				ExpiryDate:       req.ExpiryDate,
				StorageLocation:  location,
				PurchaseRate:     req.PurchaseRate,
				SourceType:       sourceType,
				SourceRefID:      req.SourceRefID,
				InspectionStatus: models.InspectionPassed,
				IsActive:         true,
				CreatedBy:        req.ChangedBy,
			}
			if req.RequiresInspection {
				batch.InspectionStatus = models.InspectionPending
			}
			if err := tx.Create(batch).Error; err != nil {
				return err
			}
		default:
			return err
		}

		toState := models.StateRaw
		if req.RequiresInspection {
			toState = models.StateInspection
			batch.QtyInspection = batch.QtyInspection.Add(req.Quantity)
			item.QtyInspection = item.QtyInspection.Add(req.Quantity)
		} else {
			batch.QtyRaw = batch.QtyRaw.Add(req.Quantity)
			item.QtyRaw = item.QtyRaw.Add(req.Quantity)
		}

		if err := tx.Save(batch).Error; err != nil {
			return err
		}
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		return s.recordMovement(tx, batch, "", toState, req.Quantity, "",
			models.RefTypeReceipt, req.SourceRefID, "", req.ChangedBy, req.Notes)
	})
	if err != nil {
		return nil, err
	}

	s.logger().Info("stock received",
		zap.Uint("item_id", req.ItemID),
		zap.String("batch_code", req.BatchCode),
		zap.String("quantity", req.Quantity.String()))
	return batch, nil
}

// MoveToWIP - move raw stock into a process WIP slot. With no batch given the
// quantity is drawn FIFO across the item's batches, all or nothing.
func (s *StockService) MoveToWIP(req MoveToWIPRequest) ([]BatchAllocation, error) {
	if !req.Quantity.IsPositive() {
		return nil, errNonPositiveRequest
	}

	var allocations []BatchAllocation
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		item, err := s.Batches.GetItemForUpdate(tx, req.ItemID)
		if err != nil {
			return err
		}

		var batches []models.ItemBatch
		if req.BatchID != nil {
			batch, err := s.Batches.GetBatchForUpdate(tx, *req.BatchID)
			if err != nil {
				return err
			}
			if err := batchBelongsTo(batch, req.ItemID); err != nil {
				return err
			}
			batches = []models.ItemBatch{*batch}
		} else {
			batches, err = s.Batches.SelectFIFO(tx, req.ItemID)
			if err != nil {
				return err
			}
		}

		plan, err := planFIFODraw(batches, req.Quantity)
		if err != nil {
			metrics.TransitionFailures.WithLabelValues("insufficient_stock").Inc()
			return err
		}

		for i := range plan {
			p := &plan[i]
			if err := p.batch.MoveToWIP(p.quantity, req.Process); err != nil {
				return err
			}
			if err := item.MoveToWIP(p.quantity, req.Process); err != nil {
				return err
			}
			if err := tx.Save(p.batch).Error; err != nil {
				return err
			}
			if err := s.recordMovement(tx, p.batch, models.StateRaw,
				models.WIPState(req.Process), p.quantity, req.Process,
				refTypeOr(req.RefType, models.RefTypeProduction), req.RefID,
				req.RefNumber, req.ChangedBy, req.Notes); err != nil {
				return err
			}
			allocations = append(allocations, BatchAllocation{
				BatchID:   p.batch.ID,
				BatchCode: p.batch.BatchCode,
				Quantity:  p.quantity,
			})
		}
		return tx.Save(item).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger().Info("moved to wip",
		zap.Uint("item_id", req.ItemID),
		zap.String("process", req.Process),
		zap.String("quantity", req.Quantity.String()),
		zap.Int("batches", len(allocations)))
	return allocations, nil
}

// ReceiveFromWIP - settle a process WIP slot into finished and scrap.
func (s *StockService) ReceiveFromWIP(req ReceiveFromWIPRequest) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		item, err := s.Batches.GetItemForUpdate(tx, req.ItemID)
		if err != nil {
			return err
		}
		batch, err := s.Batches.GetBatchForUpdate(tx, req.BatchID)
		if err != nil {
			return err
		}
		if err := batchBelongsTo(batch, req.ItemID); err != nil {
			return err
		}

		if err := batch.ReceiveFromWIP(req.Finished, req.Scrap, req.Process); err != nil {
			metrics.TransitionFailures.WithLabelValues("conservation").Inc()
			return err
		}
		if err := item.ReceiveFromWIP(req.Finished, req.Scrap, req.Process); err != nil {
			return err
		}
		if err := tx.Save(batch).Error; err != nil {
			return err
		}
		if err := tx.Save(item).Error; err != nil {
			return err
		}

		refType := refTypeOr(req.RefType, models.RefTypeProduction)
		if req.Finished.IsPositive() {
			if err := s.recordMovement(tx, batch, models.WIPState(req.Process),
				models.StateFinished, req.Finished, req.Process,
				refType, req.RefID, req.RefNumber, req.ChangedBy, req.Notes); err != nil {
				return err
			}
		}
		if req.Scrap.IsPositive() {
			if err := s.recordMovement(tx, batch, models.WIPState(req.Process),
				models.StateScrap, req.Scrap, req.Process,
				refType, req.RefID, req.RefNumber, req.ChangedBy, req.Notes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger().Info("received from wip",
		zap.Uint("batch_id", req.BatchID),
		zap.String("process", req.Process),
		zap.String("finished", req.Finished.String()),
		zap.String("scrap", req.Scrap.String()))
	return nil
}

// MoveBetweenProcesses - shift WIP from one process slot to the next.
func (s *StockService) MoveBetweenProcesses(req MoveBetweenProcessesRequest) error {
	if !req.Quantity.IsPositive() {
		return errNonPositiveRequest
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		item, err := s.Batches.GetItemForUpdate(tx, req.ItemID)
		if err != nil {
			return err
		}
		batch, err := s.Batches.GetBatchForUpdate(tx, req.BatchID)
		if err != nil {
			return err
		}
		if err := batchBelongsTo(batch, req.ItemID); err != nil {
			return err
		}

		if err := batch.MoveBetweenProcesses(req.Quantity, req.FromProcess, req.ToProcess); err != nil {
			metrics.TransitionFailures.WithLabelValues("insufficient_stock").Inc()
			return err
		}
		if err := item.MoveBetweenProcesses(req.Quantity, req.FromProcess, req.ToProcess); err != nil {
			return err
		}
		if err := tx.Save(batch).Error; err != nil {
			return err
		}
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		return s.recordMovement(tx, batch, models.WIPState(req.FromProcess),
			models.WIPState(req.ToProcess), req.Quantity, req.ToProcess,
			refTypeOr(req.RefType, models.RefTypeProduction), req.RefID,
			req.RefNumber, req.ChangedBy, req.Notes)
	})
}

// ReturnUnused - bring unconsumed WIP back to raw.
func (s *StockService) ReturnUnused(req ReturnUnusedRequest) error {
	if !req.Quantity.IsPositive() {
		return errNonPositiveRequest
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		item, err := s.Batches.GetItemForUpdate(tx, req.ItemID)
		if err != nil {
			return err
		}
		batch, err := s.Batches.GetBatchForUpdate(tx, req.BatchID)
		if err != nil {
			return err
		}
		if err := batchBelongsTo(batch, req.ItemID); err != nil {
			return err
		}

		if err := batch.ReturnUnused(req.Quantity, req.Process); err != nil {
			return err
		}
		if err := item.ReturnUnused(req.Quantity, req.Process); err != nil {
			return err
		}
		if err := tx.Save(batch).Error; err != nil {
			return err
		}
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		return s.recordMovement(tx, batch, models.WIPState(req.Process),
			models.StateRaw, req.Quantity, req.Process,
			refTypeOr(req.RefType, models.RefTypeJobWork), req.RefID,
			req.RefNumber, req.ChangedBy, req.Notes)
	})
}

// PassInspection - release a pending batch's inspection quantity into raw.
func (s *StockService) PassInspection(req InspectionRequest) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		// Resolve the owning item without a lock first so the lock order
		// stays item before batch.
		var owner struct{ ItemID uint }
		if err := tx.Model(&models.ItemBatch{}).
			Select("item_id").
			Where("id = ?", req.BatchID).
			Take(&owner).Error; err != nil {
			return err
		}
		item, err := s.Batches.GetItemForUpdate(tx, owner.ItemID)
		if err != nil {
			return err
		}
		batch, err := s.Batches.GetBatchForUpdate(tx, req.BatchID)
		if err != nil {
			return err
		}

		quantity := batch.QtyInspection
		if !quantity.IsPositive() {
			return &models.InsufficientStockError{
				State: models.StateInspection, Available: quantity, Requested: decimal.Zero,
			}
		}
		if err := batch.ReleaseInspection(quantity); err != nil {
			return err
		}
		if err := item.ReleaseInspection(quantity); err != nil {
			return err
		}
		batch.InspectionStatus = models.InspectionPassed

		if err := tx.Save(batch).Error; err != nil {
			return err
		}
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		return s.recordMovement(tx, batch, models.StateInspection, models.StateRaw,
			quantity, "", models.RefTypeInspection, nil, "", req.ChangedBy, req.Notes)
	})
}

// RejectInspection - mark the batch failed or quarantined. Quantity stays in
// inspection; availability math excludes it from that point on.
func (s *StockService) RejectInspection(req InspectionRequest) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		batch, err := s.Batches.GetBatchForUpdate(tx, req.BatchID)
		if err != nil {
			return err
		}
		batch.InspectionStatus = models.InspectionFailed
		if req.Quarantine {
			batch.InspectionStatus = models.InspectionQuarantine
		}
		if err := tx.Save(batch).Error; err != nil {
			return err
		}
		return s.recordMovement(tx, batch, models.StateInspection,
			models.StateInspection, batch.QtyInspection, "",
			models.RefTypeInspection, nil, string(batch.InspectionStatus),
			req.ChangedBy, req.Notes)
	})
}

// GetBatch - one batch with its item.
func (s *StockService) GetBatch(batchID uint) (*models.ItemBatch, error) {
	return s.Batches.GetBatch(batchID)
}

// GetItemSummary - per-batch state breakdown plus the item aggregate, with a
// consistency check of aggregate against the batch sums.
func (s *StockService) GetItemSummary(itemID uint) (map[string]interface{}, error) {
	var item models.Item
	if err := s.DB.First(&item, itemID).Error; err != nil {
		return nil, err
	}
	batches, err := s.Batches.GetItemSummary(itemID, s.now())
	if err != nil {
		return nil, err
	}

	batchTotal := decimal.Zero
	for _, b := range batches {
		if total, ok := b["total_quantity"].(decimal.Decimal); ok {
			batchTotal = batchTotal.Add(total)
		}
	}

	return map[string]interface{}{
		"item_id":         item.ID,
		"item_code":       item.Code,
		"qty_inspection":  item.QtyInspection,
		"qty_raw":         item.QtyRaw,
		"qty_wip":         item.QtyWIP,
		"qty_finished":    item.QtyFinished,
		"qty_scrap":       item.QtyScrap,
		"total_quantity":  item.TotalQuantity(),
		"available":       item.AvailableQuantity(),
		"batches":         batches,
		"batch_total":     batchTotal,
		"aggregate_match": item.TotalQuantity().Equal(batchTotal),
	}, nil
}

// GetProcessOccupancy - factory-wide WIP per process.
func (s *StockService) GetProcessOccupancy() (map[string]decimal.Decimal, error) {
	return s.Batches.GetProcessOccupancy()
}

// GetLowStockItems - items under their reorder threshold.
func (s *StockService) GetLowStockItems() ([]map[string]interface{}, error) {
	return s.Batches.GetLowStockItems()
}

// GetBatchTrace - full movement history of one batch.
func (s *StockService) GetBatchTrace(batchID uint) ([]models.BatchMovement, error) {
	return s.Batches.GetMovements(batchID, 0)
}

// ============ SHARED HELPERS (tx-scoped) ============

var errNonPositiveRequest = errors.New("quantity must be greater than zero")

// batchBelongsTo rejects item/batch pairs that do not match; mutating a batch
// against the wrong item aggregate would desynchronize both items.
func batchBelongsTo(batch *models.ItemBatch, itemID uint) error {
	if batch.ItemID != itemID {
		return fmt.Errorf("batch %s does not belong to item %d", batch.BatchCode, itemID)
	}
	return nil
}

func refTypeOr(refType, fallback string) string {
	if refType != "" {
		return refType
	}
	return fallback
}

// fifoDraw is one slice of a FIFO allocation plan.
type fifoDraw struct {
	batch    *models.ItemBatch
	quantity decimal.Decimal
}

// planFIFODraw splits a requested quantity across batches in the given order,
// drawing from each batch's raw stock. Fails without partial effect when the
// combined raw stock cannot cover the request.
func planFIFODraw(batches []models.ItemBatch, quantity decimal.Decimal) ([]fifoDraw, error) {
	remaining := quantity
	var plan []fifoDraw
	for i := range batches {
		if !remaining.IsPositive() {
			break
		}
		available := batches[i].QtyRaw
		if !available.IsPositive() {
			continue
		}
		draw := decimal.Min(available, remaining)
		plan = append(plan, fifoDraw{batch: &batches[i], quantity: draw})
		remaining = remaining.Sub(draw)
	}
	if remaining.IsPositive() {
		total := decimal.Zero
		for i := range batches {
			total = total.Add(batches[i].QtyRaw)
		}
		return nil, &models.InsufficientStockError{
			State: models.StateRaw, Available: total, Requested: quantity,
		}
	}
	return plan, nil
}

// recordMovement appends one ledger entry and bumps the movement counter.
func (s *StockService) recordMovement(tx *gorm.DB, batch *models.ItemBatch,
	fromState, toState string, quantity decimal.Decimal, process string,
	refType string, refID *uint, refNumber, actor, notes string) error {

	movement := models.BatchMovement{
		BatchID:     batch.ID,
		ItemID:      batch.ItemID,
		FromState:   fromState,
		ToState:     toState,
		Quantity:    quantity,
		ProcessName: models.NormalizeProcess(process),
		RefType:     refType,
		RefID:       refID,
		RefNumber:   refNumber,
		Actor:       actor,
		Notes:       notes,
		CreatedAt:   s.now(),
	}
	if err := tx.Create(&movement).Error; err != nil {
		return err
	}
	metrics.BatchMovements.WithLabelValues(toState).Inc()
	return nil
}
