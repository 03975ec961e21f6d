package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ============ MOVEMENT LEDGER ============

// Reference document types recorded on movements.
const (
	RefTypeReceipt    = "receipt"
	RefTypeJobWork    = "jobwork"
	RefTypeProduction = "production"
	RefTypeInspection = "inspection"
	RefTypeAdjustment = "adjustment"
)

// BatchMovement is one append-only ledger entry. Every state transition on a
// batch writes exactly one entry per batch touched; entries are never updated
// or deleted, they are the basis of traceability.
type BatchMovement struct {
	ID uuid.UUID `json:"id" gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	BatchID uint `json:"batch_id" gorm:"not null;index"`
	ItemID  uint `json:"item_id" gorm:"not null;index"`

	// FromState is empty for receipts entering the system from outside.
	FromState string `json:"from_state,omitempty" gorm:"type:varchar(50)"`
	ToState   string `json:"to_state" gorm:"type:varchar(50);not null"`

	Quantity    decimal.Decimal `json:"quantity" gorm:"type:numeric(14,4);not null"`
	ProcessName string          `json:"process_name,omitempty" gorm:"type:varchar(100)"`

	RefType   string `json:"ref_type" gorm:"type:varchar(20);not null"`
	RefID     *uint  `json:"ref_id,omitempty" gorm:"index"`
	RefNumber string `json:"ref_number,omitempty" gorm:"type:varchar(50)"`

	Actor     string    `json:"actor" gorm:"type:varchar(100);not null"`
	Notes     string    `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (BatchMovement) TableName() string {
	return "batch_movements"
}
