package requests

// ============ CREATE ============
type JobWorkProcessSpec struct {
	ProcessName        string `json:"process_name" binding:"required"`
	SequenceNumber     int    `json:"sequence_number" binding:"required,min=1"`
	WorkType           string `json:"work_type,omitempty" binding:"omitempty,oneof=outsourced in_house"`
	VendorName         string `json:"vendor_name,omitempty"`
	Department         string `json:"department,omitempty"`
	RatePerUnit        string `json:"rate_per_unit,omitempty"`
	ExpectedScrap      string `json:"expected_scrap,omitempty"`
	ExpectedCompletion string `json:"expected_completion,omitempty"`
}

type CreateJobWorkRequest struct {
	CustomerName string `json:"customer_name" binding:"required"`
	ItemID       uint   `json:"item_id" binding:"required"`
	Kind         string `json:"kind" binding:"required,oneof=single_process multi_process"`

	ProcessName string `json:"process_name,omitempty"`
	WorkType    string `json:"work_type,omitempty" binding:"omitempty,oneof=outsourced in_house"`
	Department  string `json:"department,omitempty"`
	RatePerUnit string `json:"rate_per_unit,omitempty"`

	OutputItemID   *uint  `json:"output_item_id,omitempty"`
	ExpectedReturn string `json:"expected_return,omitempty"`
	Notes          string `json:"notes,omitempty"`
	CreatedBy      string `json:"created_by" binding:"required"`

	Processes []JobWorkProcessSpec `json:"processes,omitempty" binding:"omitempty,dive"`
}

// ============ ISSUE ============
type BatchSelection struct {
	BatchID  uint   `json:"batch_id" binding:"required"`
	Quantity string `json:"quantity" binding:"required"`
}

type IssueMaterialsRequest struct {
	Quantity   string           `json:"quantity,omitempty"`
	Selections []BatchSelection `json:"selections,omitempty" binding:"omitempty,dive"`
	ChangedBy  string           `json:"changed_by" binding:"required"`
	Notes      string           `json:"notes,omitempty"`
}

// ============ RECEIVE ============
type ReceiveReturnRequest struct {
	JobWorkBatchID uint   `json:"job_work_batch_id" binding:"required"`
	Finished       string `json:"finished,omitempty"`
	Scrap          string `json:"scrap,omitempty"`
	Unused         string `json:"unused,omitempty"`
	ChangedBy      string `json:"changed_by" binding:"required"`
	Notes          string `json:"notes,omitempty"`
}

// ============ PROCESS STATUS ============
type ProcessStatusRequest struct {
	NewStatus string `json:"new_status" binding:"required,oneof=in_progress on_hold"`
	Reason    string `json:"reason,omitempty"`
	ChangedBy string `json:"changed_by" binding:"required"`
}

type CompleteProcessRequest struct {
	Output    string `json:"output" binding:"required"`
	Scrap     string `json:"scrap,omitempty"`
	ChangedBy string `json:"changed_by" binding:"required"`
	Notes     string `json:"notes,omitempty"`
}
