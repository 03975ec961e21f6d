package requests

// ============ BASE REQUEST ============
type BaseStockRequest struct {
	ChangedBy string `json:"changed_by" binding:"required"`
	Notes     string `json:"notes,omitempty"`
}

// ============ RECEIPT ============
type ReceiveStockRequest struct {
	BaseStockRequest

	ItemID    uint   `json:"item_id" binding:"required"`
	BatchCode string `json:"batch_code" binding:"required"`
	Quantity  string `json:"quantity" binding:"required"`

	SupplierBatch      string `json:"supplier_batch,omitempty"`
	ManufactureDate    string `json:"manufacture_date,omitempty"`
	ExpiryDate         string `json:"expiry_date,omitempty"`
	StorageLocation    string `json:"storage_location,omitempty"`
	PurchaseRate       string `json:"purchase_rate,omitempty"`
	SourceType         string `json:"source_type,omitempty" binding:"omitempty,oneof=purchase production return"`
	SourceRefID        *uint  `json:"source_ref_id,omitempty"`
	RequiresInspection bool   `json:"requires_inspection,omitempty"`
}

// ============ WIP TRANSITIONS ============
type MoveToWIPRequest struct {
	BaseStockRequest

	ItemID   uint   `json:"item_id" binding:"required"`
	BatchID  *uint  `json:"batch_id,omitempty"` // omit to draw FIFO
	Quantity string `json:"quantity" binding:"required"`
	Process  string `json:"process" binding:"required"`

	RefType   string `json:"ref_type,omitempty"`
	RefID     *uint  `json:"ref_id,omitempty"`
	RefNumber string `json:"ref_number,omitempty"`
}

type ReceiveFromWIPRequest struct {
	BaseStockRequest

	ItemID   uint   `json:"item_id" binding:"required"`
	BatchID  uint   `json:"batch_id" binding:"required"`
	Process  string `json:"process" binding:"required"`
	Finished string `json:"finished,omitempty"`
	Scrap    string `json:"scrap,omitempty"`

	RefType   string `json:"ref_type,omitempty"`
	RefID     *uint  `json:"ref_id,omitempty"`
	RefNumber string `json:"ref_number,omitempty"`
}

type MoveBetweenProcessesRequest struct {
	BaseStockRequest

	ItemID      uint   `json:"item_id" binding:"required"`
	BatchID     uint   `json:"batch_id" binding:"required"`
	Quantity    string `json:"quantity" binding:"required"`
	FromProcess string `json:"from_process" binding:"required"`
	ToProcess   string `json:"to_process" binding:"required"`

	RefType   string `json:"ref_type,omitempty"`
	RefID     *uint  `json:"ref_id,omitempty"`
	RefNumber string `json:"ref_number,omitempty"`
}

type ReturnUnusedRequest struct {
	BaseStockRequest

	ItemID   uint   `json:"item_id" binding:"required"`
	BatchID  uint   `json:"batch_id" binding:"required"`
	Quantity string `json:"quantity" binding:"required"`
	Process  string `json:"process" binding:"required"`

	RefType   string `json:"ref_type,omitempty"`
	RefID     *uint  `json:"ref_id,omitempty"`
	RefNumber string `json:"ref_number,omitempty"`
}

// ============ INSPECTION ============
type InspectionRequest struct {
	BaseStockRequest

	BatchID    uint `json:"batch_id" binding:"required"`
	Quarantine bool `json:"quarantine,omitempty"`
}
