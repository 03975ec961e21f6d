package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ============ STATES & PROCESS VOCABULARY ============

const (
	StateInspection = "inspection"
	StateRaw        = "raw"
	StateFinished   = "finished"
	StateScrap      = "scrap"
)

// Recognized process names. The vocabulary is open: any other normalized name
// gets its own WIP slot, these are just the ones the factory uses day to day.
const (
	ProcessCutting   = "cutting"
	ProcessBending   = "bending"
	ProcessWelding   = "welding"
	ProcessZinc      = "zinc"
	ProcessPainting  = "painting"
	ProcessAssembly  = "assembly"
	ProcessMachining = "machining"
	ProcessPolishing = "polishing"
)

// NormalizeProcess maps user input to a WIP slot key.
func NormalizeProcess(name string) string {
	p := strings.ToLower(strings.TrimSpace(name))
	p = strings.ReplaceAll(p, " ", "_")
	if p == "zinc_plating" {
		p = ProcessZinc
	}
	return p
}

// WIPState returns the ledger state name for a process WIP slot, e.g. "wip_cutting".
func WIPState(process string) string {
	return "wip_" + NormalizeProcess(process)
}

// ============ WIP BREAKDOWN (jsonb) ============

// WIPBreakdown holds one quantity slot per process name that has ever been
// used. Stored as jsonb so custom process names need no schema change.
type WIPBreakdown map[string]decimal.Decimal

func (w WIPBreakdown) Value() (driver.Value, error) {
	if len(w) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(w)
}

func (w *WIPBreakdown) Scan(value interface{}) error {
	if value == nil {
		*w = WIPBreakdown{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into WIPBreakdown", value)
	}
	if len(data) == 0 {
		*w = WIPBreakdown{}
		return nil
	}
	return json.Unmarshal(data, w)
}

func (w WIPBreakdown) Get(process string) decimal.Decimal {
	return w[NormalizeProcess(process)]
}

// Total sums WIP across every process slot.
func (w WIPBreakdown) Total() decimal.Decimal {
	total := decimal.Zero
	for _, qty := range w {
		total = total.Add(qty)
	}
	return total
}

func (w WIPBreakdown) clone() WIPBreakdown {
	out := make(WIPBreakdown, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// ============ STATE QUANTITIES ============

// StateQuantities is the per-state quantity ledger shared by Item (aggregate
// level) and ItemBatch (lot level). All mutating methods validate every
// precondition before touching a field, so a returned error means the record
// is unchanged.
type StateQuantities struct {
	QtyInspection decimal.Decimal `json:"qty_inspection" gorm:"type:numeric(14,4);not null;default:0"`
	QtyRaw        decimal.Decimal `json:"qty_raw" gorm:"type:numeric(14,4);not null;default:0"`
	QtyFinished   decimal.Decimal `json:"qty_finished" gorm:"type:numeric(14,4);not null;default:0"`
	QtyScrap      decimal.Decimal `json:"qty_scrap" gorm:"type:numeric(14,4);not null;default:0"`
	QtyWIP        WIPBreakdown    `json:"qty_wip" gorm:"type:jsonb;not null;default:'{}'"`
}

// TotalQuantity sums every state field.
func (q *StateQuantities) TotalQuantity() decimal.Decimal {
	return q.QtyInspection.
		Add(q.QtyRaw).
		Add(q.QtyFinished).
		Add(q.QtyScrap).
		Add(q.QtyWIP.Total())
}

// TotalWIP sums WIP across all processes.
func (q *StateQuantities) TotalWIP() decimal.Decimal {
	return q.QtyWIP.Total()
}

// WIPFor returns the WIP quantity held under one process name.
func (q *StateQuantities) WIPFor(process string) decimal.Decimal {
	return q.QtyWIP.Get(process)
}

var errNonPositiveQuantity = errors.New("quantity must be greater than zero")

// MoveToWIP moves quantity from raw into the process WIP slot, creating the
// slot on first use.
func (q *StateQuantities) MoveToWIP(quantity decimal.Decimal, process string) error {
	if !quantity.IsPositive() {
		return errNonPositiveQuantity
	}
	if q.QtyRaw.LessThan(quantity) {
		return &InsufficientStockError{State: StateRaw, Available: q.QtyRaw, Requested: quantity}
	}
	q.QtyRaw = q.QtyRaw.Sub(quantity)
	q.addWIP(process, quantity)
	return nil
}

// MoveBetweenProcesses moves quantity from one WIP slot to another.
func (q *StateQuantities) MoveBetweenProcesses(quantity decimal.Decimal, fromProcess, toProcess string) error {
	if !quantity.IsPositive() {
		return errNonPositiveQuantity
	}
	from := NormalizeProcess(fromProcess)
	if q.QtyWIP.Get(from).LessThan(quantity) {
		return &InsufficientStockError{State: WIPState(from), Available: q.QtyWIP.Get(from), Requested: quantity}
	}
	q.subWIP(from, quantity)
	q.addWIP(toProcess, quantity)
	return nil
}

// ReceiveFromWIP moves finished+scrap out of the process WIP slot into the
// finished and scrap states.
func (q *StateQuantities) ReceiveFromWIP(finished, scrap decimal.Decimal, process string) error {
	if finished.IsNegative() || scrap.IsNegative() {
		return errNonPositiveQuantity
	}
	total := finished.Add(scrap)
	if !total.IsPositive() {
		return errNonPositiveQuantity
	}
	p := NormalizeProcess(process)
	available := q.QtyWIP.Get(p)
	if available.LessThan(total) {
		return &ConservationError{Process: p, Available: available, Attempted: total}
	}
	q.subWIP(p, total)
	q.QtyFinished = q.QtyFinished.Add(finished)
	q.QtyScrap = q.QtyScrap.Add(scrap)
	return nil
}

// ConsumeWIP removes quantity from a process WIP slot without crediting any
// local state. Used when output materializes in a different item's batch.
func (q *StateQuantities) ConsumeWIP(quantity decimal.Decimal, process string) error {
	if !quantity.IsPositive() {
		return errNonPositiveQuantity
	}
	p := NormalizeProcess(process)
	available := q.QtyWIP.Get(p)
	if available.LessThan(quantity) {
		return &ConservationError{Process: p, Available: available, Attempted: quantity}
	}
	q.subWIP(p, quantity)
	return nil
}

// ReturnUnused moves unused quantity from a process WIP slot back to raw.
func (q *StateQuantities) ReturnUnused(quantity decimal.Decimal, process string) error {
	if !quantity.IsPositive() {
		return errNonPositiveQuantity
	}
	p := NormalizeProcess(process)
	available := q.QtyWIP.Get(p)
	if available.LessThan(quantity) {
		return &InsufficientStockError{State: WIPState(p), Available: available, Requested: quantity}
	}
	q.subWIP(p, quantity)
	q.QtyRaw = q.QtyRaw.Add(quantity)
	return nil
}

// ReleaseInspection moves quantity from inspection into raw.
func (q *StateQuantities) ReleaseInspection(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return errNonPositiveQuantity
	}
	if q.QtyInspection.LessThan(quantity) {
		return &InsufficientStockError{State: StateInspection, Available: q.QtyInspection, Requested: quantity}
	}
	q.QtyInspection = q.QtyInspection.Sub(quantity)
	q.QtyRaw = q.QtyRaw.Add(quantity)
	return nil
}

func (q *StateQuantities) addWIP(process string, quantity decimal.Decimal) {
	p := NormalizeProcess(process)
	wip := q.QtyWIP.clone()
	wip[p] = wip[p].Add(quantity)
	q.QtyWIP = wip
}

func (q *StateQuantities) subWIP(process string, quantity decimal.Decimal) {
	p := NormalizeProcess(process)
	wip := q.QtyWIP.clone()
	next := wip[p].Sub(quantity)
	if next.IsZero() {
		delete(wip, p)
	} else {
		wip[p] = next
	}
	q.QtyWIP = wip
}
