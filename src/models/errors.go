package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ============ ERROR TAXONOMY ============
//
// Every mutating operation either commits completely or returns one of these
// without touching any quantity field. Quantities are never clamped.

// InsufficientStockError - requested more than the source state holds.
// Recoverable: retry with a lower quantity or another batch.
type InsufficientStockError struct {
	State     string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock in %s: available %s, requested %s",
		e.State, e.Available.String(), e.Requested.String())
}

// ConservationError - a transition declares more output than its input allows
// (finished + scrap exceeding the WIP slot).
type ConservationError struct {
	Process   string
	Available decimal.Decimal
	Attempted decimal.Decimal
}

func (e *ConservationError) Error() string {
	return fmt.Sprintf("conservation violation in wip_%s: %s available, %s attempted",
		e.Process, e.Available.String(), e.Attempted.String())
}

// OverReturnError - a job-work return exceeds the remaining issued quantity.
type OverReturnError struct {
	JobWorkBatchID uint
	Remaining      decimal.Decimal
	Attempted      decimal.Decimal
}

func (e *OverReturnError) Error() string {
	return fmt.Sprintf("return exceeds issued quantity for job work batch %d: remaining %s, attempted %s",
		e.JobWorkBatchID, e.Remaining.String(), e.Attempted.String())
}

// ExpiredOrRejectedBatchError - the batch is expired or gated by inspection.
type ExpiredOrRejectedBatchError struct {
	BatchID   uint
	BatchCode string
	Reason    string
}

func (e *ExpiredOrRejectedBatchError) Error() string {
	return fmt.Sprintf("batch %s cannot be used: %s", e.BatchCode, e.Reason)
}

// SequenceIntegrityError - process advancement out of order, an invalid status
// transition, or a reference to a process that does not exist.
type SequenceIntegrityError struct {
	ProcessID uint
	Detail    string
}

func (e *SequenceIntegrityError) Error() string {
	if e.ProcessID == 0 {
		return "process sequence violation: " + e.Detail
	}
	return fmt.Sprintf("process sequence violation on process %d: %s", e.ProcessID, e.Detail)
}

// ConcurrencyConflictError - lock or uniqueness conflict on a shared record.
// The caller should retry the whole operation from scratch.
type ConcurrencyConflictError struct {
	Resource string
	Err      error
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrent update conflict on %s: %v", e.Resource, e.Err)
}

func (e *ConcurrencyConflictError) Unwrap() error {
	return e.Err
}
