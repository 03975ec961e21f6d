package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============ ENUMS & TYPES ============

type ItemType string

const (
	ItemTypeMaterial ItemType = "material"
	ItemTypeProduct  ItemType = "product"
)

type InspectionStatus string

const (
	InspectionPending    InspectionStatus = "pending"
	InspectionPassed     InspectionStatus = "passed"
	InspectionFailed     InspectionStatus = "failed"
	InspectionQuarantine InspectionStatus = "quarantine"
)

type SourceType string

const (
	SourcePurchase   SourceType = "purchase"
	SourceProduction SourceType = "production"
	SourceReturn     SourceType = "return"
)

// ============ ITEM ============

// Item is a stock-keeping unit. Its StateQuantities mirror the sum of the
// same state across all of its batches; only the stock service mutates them.
type Item struct {
	ID            uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	Code          string          `json:"code" gorm:"type:varchar(50);unique;not null"`
	Name          string          `json:"name" gorm:"type:varchar(200);not null"`
	Description   string          `json:"description,omitempty" gorm:"type:text"`
	UnitOfMeasure string          `json:"unit_of_measure" gorm:"type:varchar(20);not null"`
	UnitPrice     decimal.Decimal `json:"unit_price" gorm:"type:numeric(14,4);not null;default:0"`
	MinimumStock  decimal.Decimal `json:"minimum_stock" gorm:"type:numeric(14,4);not null;default:0"`
	ItemType      ItemType        `json:"item_type" gorm:"type:varchar(20);not null;default:material"`

	StateQuantities

	// Soft deactivation: items with batch or movement history are never
	// deleted.
	IsActive bool `json:"is_active" gorm:"not null;default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Batches []ItemBatch `json:"batches,omitempty" gorm:"foreignKey:ItemID"`
}

func (Item) TableName() string {
	return "items"
}

// AvailableQuantity at item level excludes scrap and everything still held in
// inspection, pending included. The item does not know per-batch inspection
// outcomes, so reorder math stays conservative; batch-level availability only
// excludes inspection stock once a batch fails or is quarantined.
func (i *Item) AvailableQuantity() decimal.Decimal {
	return i.TotalQuantity().Sub(i.QtyScrap).Sub(i.QtyInspection)
}

// BelowMinimum reports whether available stock has fallen under the reorder
// threshold.
func (i *Item) BelowMinimum() bool {
	return i.MinimumStock.IsPositive() && i.AvailableQuantity().LessThan(i.MinimumStock)
}

// ============ ITEM BATCH ============

// ItemBatch is an identified lot of one item, the unit of physical inventory
// identity. Batch code is unique per item. A batch with movement history is
// never deleted, only zeroed and deactivated.
type ItemBatch struct {
	ID        uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	ItemID    uint   `json:"item_id" gorm:"not null;index;uniqueIndex:idx_item_batch_code"`
	BatchCode string `json:"batch_code" gorm:"type:varchar(50);not null;uniqueIndex:idx_item_batch_code"`

	// Provenance
	SupplierBatch   string     `json:"supplier_batch,omitempty" gorm:"type:varchar(50)"`
	ManufactureDate *time.Time `json:"manufacture_date,omitempty" gorm:"type:date;index"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty" gorm:"type:date"`
	StorageLocation string     `json:"storage_location" gorm:"type:varchar(100);not null;default:'Default'"`
	PurchaseRate    decimal.Decimal `json:"purchase_rate" gorm:"type:numeric(14,4);not null;default:0"`
	SourceType      SourceType      `json:"source_type" gorm:"type:varchar(20);not null;default:purchase"`
	SourceRefID     *uint           `json:"source_ref_id,omitempty"`

	InspectionStatus InspectionStatus `json:"inspection_status" gorm:"type:varchar(20);not null;default:pending"`

	StateQuantities

	IsActive  bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedBy string    `json:"created_by" gorm:"type:varchar(100);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Item *Item `json:"item,omitempty" gorm:"foreignKey:ItemID"`
}

func (ItemBatch) TableName() string {
	return "item_batches"
}

// AvailableQuantity excludes scrap, and inspection quantity when the batch
// failed inspection or sits in quarantine.
func (b *ItemBatch) AvailableQuantity() decimal.Decimal {
	available := b.TotalQuantity().Sub(b.QtyScrap)
	if b.InspectionStatus == InspectionFailed || b.InspectionStatus == InspectionQuarantine {
		available = available.Sub(b.QtyInspection)
	}
	return available
}

// IsExpired reports whether the batch is past its expiry date.
func (b *ItemBatch) IsExpired(now time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return b.ExpiryDate.Before(now.Truncate(24 * time.Hour))
}

// UsableForIssue gates job-work issuance: expired or inspection-rejected
// batches are blocked.
func (b *ItemBatch) UsableForIssue(now time.Time) error {
	if b.IsExpired(now) {
		return &ExpiredOrRejectedBatchError{BatchID: b.ID, BatchCode: b.BatchCode, Reason: "batch is expired"}
	}
	if b.InspectionStatus == InspectionFailed || b.InspectionStatus == InspectionQuarantine {
		return &ExpiredOrRejectedBatchError{
			BatchID:   b.ID,
			BatchCode: b.BatchCode,
			Reason:    "inspection status is " + string(b.InspectionStatus),
		}
	}
	return nil
}

// AgeDays is the batch age since manufacture.
func (b *ItemBatch) AgeDays(now time.Time) int {
	if b.ManufactureDate == nil {
		return 0
	}
	return int(now.Sub(*b.ManufactureDate).Hours() / 24)
}

// DaysToExpiry is negative once expired; nil when no expiry is set.
func (b *ItemBatch) DaysToExpiry(now time.Time) *int {
	if b.ExpiryDate == nil {
		return nil
	}
	days := int(b.ExpiryDate.Sub(now).Hours() / 24)
	return &days
}
