package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ============ ENUMS & TYPES ============

type JobWorkStatus string

const (
	JobStatusPlanned         JobWorkStatus = "planned"
	JobStatusMaterialsSent   JobWorkStatus = "materials_sent"
	JobStatusPartialReceived JobWorkStatus = "partial_received"
	JobStatusInProgress      JobWorkStatus = "in_progress"
	JobStatusCompleted       JobWorkStatus = "completed"
	JobStatusOnHold          JobWorkStatus = "on_hold"
)

type WorkType string

const (
	WorkTypeOutsourced WorkType = "outsourced"
	WorkTypeInHouse    WorkType = "in_house"
)

type JobWorkKind string

const (
	JobWorkSingleProcess JobWorkKind = "single_process"
	JobWorkMultiProcess  JobWorkKind = "multi_process"
)

type ProcessStatus string

const (
	ProcessPending    ProcessStatus = "pending"
	ProcessInProgress ProcessStatus = "in_progress"
	ProcessCompleted  ProcessStatus = "completed"
	ProcessOnHold     ProcessStatus = "on_hold"
)

type JobWorkBatchStatus string

const (
	JobBatchIssued    JobWorkBatchStatus = "issued"
	JobBatchPartial   JobWorkBatchStatus = "partial"
	JobBatchCompleted JobWorkBatchStatus = "completed"
)

// JobNumberPrefix starts every job number: JOB-2025-0001.
const JobNumberPrefix = "JOB"

// FormatJobNumber builds the zero-padded yearly job number.
func FormatJobNumber(year, sequence int) string {
	return fmt.Sprintf("%s-%d-%04d", JobNumberPrefix, year, sequence)
}

// ============ JOB WORK ============

// JobWork is material sent for external or internal processing. Multi-process
// orders own an ordered chain of JobWorkProcess children; the legacy
// single-process form carries its process name directly.
type JobWork struct {
	ID           uint        `json:"id" gorm:"primaryKey;autoIncrement"`
	JobNumber    string      `json:"job_number" gorm:"type:varchar(50);unique;not null"`
	CustomerName string      `json:"customer_name" gorm:"type:varchar(100);not null"`
	ItemID       uint        `json:"item_id" gorm:"not null;index"`
	Kind         JobWorkKind `json:"kind" gorm:"type:varchar(20);not null;default:single_process"`

	// Single-process fields (Kind == single_process)
	ProcessName string   `json:"process_name,omitempty" gorm:"type:varchar(100)"`
	WorkType    WorkType `json:"work_type" gorm:"type:varchar(20);not null;default:outsourced"`
	Department  string   `json:"department,omitempty" gorm:"type:varchar(100)"`
	RatePerUnit decimal.Decimal `json:"rate_per_unit" gorm:"type:numeric(14,4);not null;default:0"`

	QuantitySent     decimal.Decimal `json:"quantity_sent" gorm:"type:numeric(14,4);not null;default:0"`
	QuantityReceived decimal.Decimal `json:"quantity_received" gorm:"type:numeric(14,4);not null;default:0"`

	// Output mapping: when set and different from ItemID, finished returns
	// materialize as a new batch of this item.
	OutputItemID *uint `json:"output_item_id,omitempty"`

	Status         JobWorkStatus `json:"status" gorm:"type:varchar(20);not null;default:planned"`
	SentDate       *time.Time    `json:"sent_date,omitempty" gorm:"type:date"`
	ExpectedReturn *time.Time    `json:"expected_return,omitempty" gorm:"type:date"`
	ReceivedDate   *time.Time    `json:"received_date,omitempty" gorm:"type:date"`

	Notes     string    `json:"notes,omitempty" gorm:"type:text"`
	CreatedBy string    `json:"created_by" gorm:"type:varchar(100);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Item      *Item            `json:"item,omitempty" gorm:"foreignKey:ItemID"`
	Processes []JobWorkProcess `json:"processes,omitempty" gorm:"foreignKey:JobWorkID"`
	Batches   []JobWorkBatch   `json:"batches,omitempty" gorm:"foreignKey:JobWorkID"`
}

func (JobWork) TableName() string {
	return "job_works"
}

// TotalCost is quantity sent times rate. In-house work has no direct cost.
func (j *JobWork) TotalCost() decimal.Decimal {
	if j.WorkType == WorkTypeInHouse {
		return decimal.Zero
	}
	return j.QuantitySent.Mul(j.RatePerUnit)
}

// PendingQuantity is what is still out with the vendor.
func (j *JobWork) PendingQuantity() decimal.Decimal {
	pending := j.QuantitySent.Sub(j.QuantityReceived)
	if pending.IsNegative() {
		return decimal.Zero
	}
	return pending
}

// ============ STATUS HISTORY (jsonb) ============

// StatusChange is one entry in a process's append-only status log.
type StatusChange struct {
	OldStatus ProcessStatus `json:"old_status"`
	NewStatus ProcessStatus `json:"new_status"`
	Actor     string        `json:"actor"`
	Reason    string        `json:"reason,omitempty"`
	At        time.Time     `json:"at"`
}

type StatusHistory []StatusChange

func (h StatusHistory) Value() (driver.Value, error) {
	if len(h) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(h)
}

func (h *StatusHistory) Scan(value interface{}) error {
	if value == nil {
		*h = StatusHistory{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StatusHistory", value)
	}
	if len(data) == 0 {
		*h = StatusHistory{}
		return nil
	}
	return json.Unmarshal(data, h)
}

// ============ JOB WORK PROCESS ============

// JobWorkProcess is one stage within a multi-process job work. Sequence
// numbers are unique per job work and define the processing order.
type JobWorkProcess struct {
	ID             uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	JobWorkID      uint   `json:"job_work_id" gorm:"not null;index;uniqueIndex:idx_jobwork_sequence"`
	ProcessName    string `json:"process_name" gorm:"type:varchar(100);not null"`
	SequenceNumber int    `json:"sequence_number" gorm:"not null;uniqueIndex:idx_jobwork_sequence"`

	Status ProcessStatus `json:"status" gorm:"type:varchar(20);not null;default:pending"`

	QuantityInput  decimal.Decimal `json:"quantity_input" gorm:"type:numeric(14,4);not null;default:0"`
	QuantityOutput decimal.Decimal `json:"quantity_output" gorm:"type:numeric(14,4);not null;default:0"`
	QuantityScrap  decimal.Decimal `json:"quantity_scrap" gorm:"type:numeric(14,4);not null;default:0"`
	ExpectedScrap  decimal.Decimal `json:"expected_scrap" gorm:"type:numeric(14,4);not null;default:0"`

	WorkType    WorkType        `json:"work_type" gorm:"type:varchar(20);not null;default:outsourced"`
	VendorName  string          `json:"vendor_name,omitempty" gorm:"type:varchar(100)"`
	Department  string          `json:"department,omitempty" gorm:"type:varchar(100)"`
	RatePerUnit decimal.Decimal `json:"rate_per_unit" gorm:"type:numeric(14,4);not null;default:0"`

	History      StatusHistory `json:"history" gorm:"type:jsonb;not null;default:'[]'"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	OnHoldSince  *time.Time    `json:"on_hold_since,omitempty"`
	OnHoldReason string        `json:"on_hold_reason,omitempty" gorm:"type:varchar(200)"`

	StartDate          *time.Time `json:"start_date,omitempty" gorm:"type:date"`
	ExpectedCompletion *time.Time `json:"expected_completion,omitempty" gorm:"type:date"`

	Notes     string    `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (JobWorkProcess) TableName() string {
	return "job_work_processes"
}

// validProcessTransitions encodes pending -> in_progress -> completed with a
// resumable on_hold side branch. Nothing leaves completed.
var validProcessTransitions = map[ProcessStatus][]ProcessStatus{
	ProcessPending:    {ProcessInProgress, ProcessOnHold},
	ProcessInProgress: {ProcessCompleted, ProcessOnHold},
	ProcessOnHold:     {ProcessInProgress},
	ProcessCompleted:  {},
}

// UpdateStatus applies a status transition, stamps the relevant timestamps and
// appends to the status history. Invalid transitions leave the process
// untouched.
func (p *JobWorkProcess) UpdateStatus(newStatus ProcessStatus, actor, reason string, now time.Time) error {
	allowed := false
	for _, s := range validProcessTransitions[p.Status] {
		if s == newStatus {
			allowed = true
			break
		}
	}
	if !allowed {
		return &SequenceIntegrityError{
			ProcessID: p.ID,
			Detail:    fmt.Sprintf("cannot transition from %s to %s", p.Status, newStatus),
		}
	}

	old := p.Status
	p.Status = newStatus

	switch newStatus {
	case ProcessInProgress:
		if p.StartedAt == nil {
			p.StartedAt = &now
		}
		if old == ProcessOnHold {
			p.OnHoldSince = nil
			p.OnHoldReason = ""
		}
	case ProcessCompleted:
		p.CompletedAt = &now
	case ProcessOnHold:
		p.OnHoldSince = &now
		p.OnHoldReason = reason
	}

	p.History = append(p.History, StatusChange{
		OldStatus: old,
		NewStatus: newStatus,
		Actor:     actor,
		Reason:    reason,
		At:        now,
	})
	p.UpdatedAt = now
	return nil
}

// CompletionPercentage is (output + scrap) / input, clamped to [0, 100].
func (p *JobWorkProcess) CompletionPercentage() float64 {
	if !p.QuantityInput.IsPositive() {
		return 0
	}
	processed := p.QuantityOutput.Add(p.QuantityScrap)
	pct, _ := processed.Div(p.QuantityInput).Mul(decimal.NewFromInt(100)).Float64()
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// IsDelayed reports whether the process missed its expected completion date.
func (p *JobWorkProcess) IsDelayed(now time.Time) bool {
	if p.ExpectedCompletion == nil || p.Status == ProcessCompleted {
		return false
	}
	return now.After(*p.ExpectedCompletion)
}

// ============ JOB WORK BATCH ============

// JobWorkBatch ties a job work to one input batch it consumed and, once
// output is produced, the output batch. Reconciliation invariant:
// finished + scrap + unused never exceeds issued. Completed records are
// immutable.
type JobWorkBatch struct {
	ID            uint  `json:"id" gorm:"primaryKey;autoIncrement"`
	JobWorkID     uint  `json:"job_work_id" gorm:"not null;index"`
	InputBatchID  uint  `json:"input_batch_id" gorm:"not null;index"`
	OutputBatchID *uint `json:"output_batch_id,omitempty"`

	QuantityIssued   decimal.Decimal `json:"quantity_issued" gorm:"type:numeric(14,4);not null"`
	QuantityFinished decimal.Decimal `json:"quantity_finished" gorm:"type:numeric(14,4);not null;default:0"`
	QuantityScrap    decimal.Decimal `json:"quantity_scrap" gorm:"type:numeric(14,4);not null;default:0"`
	QuantityUnused   decimal.Decimal `json:"quantity_unused" gorm:"type:numeric(14,4);not null;default:0"`

	// ProcessName tracks which WIP slot currently holds this material; the
	// orchestrator advances it as output flows into the next process.
	ProcessName string `json:"process_name" gorm:"type:varchar(100);not null"`

	Status       JobWorkBatchStatus `json:"status" gorm:"type:varchar(20);not null;default:issued"`
	IssuedDate   time.Time          `json:"issued_date" gorm:"type:date;not null"`
	ReceivedDate *time.Time         `json:"received_date,omitempty" gorm:"type:date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	InputBatch *ItemBatch `json:"input_batch,omitempty" gorm:"foreignKey:InputBatchID"`
}

func (JobWorkBatch) TableName() string {
	return "job_work_batches"
}

// RemainingIssued is the quantity still unreconciled.
func (jb *JobWorkBatch) RemainingIssued() decimal.Decimal {
	return jb.QuantityIssued.
		Sub(jb.QuantityFinished).
		Sub(jb.QuantityScrap).
		Sub(jb.QuantityUnused)
}

// ApplyReturn records a (possibly partial) return against this issuance and
// advances the status to partial or completed.
func (jb *JobWorkBatch) ApplyReturn(finished, scrap, unused decimal.Decimal, now time.Time) error {
	if finished.IsNegative() || scrap.IsNegative() || unused.IsNegative() {
		return errNonPositiveQuantity
	}
	if jb.Status == JobBatchCompleted {
		return &OverReturnError{JobWorkBatchID: jb.ID, Remaining: decimal.Zero, Attempted: finished.Add(scrap).Add(unused)}
	}
	total := finished.Add(scrap).Add(unused)
	remaining := jb.RemainingIssued()
	if remaining.LessThan(total) {
		return &OverReturnError{JobWorkBatchID: jb.ID, Remaining: remaining, Attempted: total}
	}

	jb.QuantityFinished = jb.QuantityFinished.Add(finished)
	jb.QuantityScrap = jb.QuantityScrap.Add(scrap)
	jb.QuantityUnused = jb.QuantityUnused.Add(unused)

	if jb.RemainingIssued().IsZero() {
		jb.Status = JobBatchCompleted
		received := now
		jb.ReceivedDate = &received
	} else {
		jb.Status = JobBatchPartial
	}
	jb.UpdatedAt = now
	return nil
}

// YieldPercentage is finished over issued.
func (jb *JobWorkBatch) YieldPercentage() float64 {
	if !jb.QuantityIssued.IsPositive() {
		return 0
	}
	pct, _ := jb.QuantityFinished.Div(jb.QuantityIssued).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}
