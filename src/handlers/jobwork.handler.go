package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"factory-ledger/src/models"
	"factory-ledger/src/requests"
	"factory-ledger/src/services"
)

type JobWorkHandler struct {
	Service *services.JobWorkService
}

// ============ MUTATING ENDPOINTS ============

// CreateJobWork - Create a job work order
func (h *JobWorkHandler) CreateJobWork(c *gin.Context) {
	var req requests.CreateJobWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rate, err := parseOptionalQuantity(req.RatePerUnit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate_per_unit"})
		return
	}
	expectedReturn, err := parseDate(req.ExpectedReturn)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expected_return. Use YYYY-MM-DD"})
		return
	}

	specs := make([]services.ProcessSpec, 0, len(req.Processes))
	for _, p := range req.Processes {
		processRate, err := parseOptionalQuantity(p.RatePerUnit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid process rate_per_unit"})
			return
		}
		expectedScrap, err := parseOptionalQuantity(p.ExpectedScrap)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expected_scrap"})
			return
		}
		expectedCompletion, err := parseDate(p.ExpectedCompletion)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expected_completion. Use YYYY-MM-DD"})
			return
		}
		specs = append(specs, services.ProcessSpec{
			ProcessName:        p.ProcessName,
			SequenceNumber:     p.SequenceNumber,
			WorkType:           models.WorkType(p.WorkType),
			VendorName:         p.VendorName,
			Department:         p.Department,
			RatePerUnit:        processRate,
			ExpectedScrap:      expectedScrap,
			ExpectedCompletion: expectedCompletion,
		})
	}

	job, err := h.Service.CreateJobWork(services.CreateJobWorkRequest{
		CustomerName:   req.CustomerName,
		ItemID:         req.ItemID,
		Kind:           models.JobWorkKind(req.Kind),
		ProcessName:    req.ProcessName,
		WorkType:       models.WorkType(req.WorkType),
		Department:     req.Department,
		RatePerUnit:    rate,
		OutputItemID:   req.OutputItemID,
		ExpectedReturn: expectedReturn,
		Notes:          req.Notes,
		CreatedBy:      req.CreatedBy,
		Processes:      specs,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "job work created",
		"job_work": job,
	})
}

// IssueMaterials - Issue batches into the job's entry process
func (h *JobWorkHandler) IssueMaterials(c *gin.Context) {
	jobWorkID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job work id"})
		return
	}

	var req requests.IssueMaterialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quantity, err := parseOptionalQuantity(req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity"})
		return
	}
	selections := make([]services.BatchSelection, 0, len(req.Selections))
	for _, sel := range req.Selections {
		q, err := parseQuantity(sel.Quantity)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid selection quantity"})
			return
		}
		selections = append(selections, services.BatchSelection{BatchID: sel.BatchID, Quantity: q})
	}

	issued, err := h.Service.IssueMaterials(services.IssueMaterialsRequest{
		JobWorkID:  uint(jobWorkID),
		Quantity:   quantity,
		Selections: selections,
		ChangedBy:  req.ChangedBy,
		Notes:      req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "materials issued",
		"batches": issued,
	})
}

// ReceiveReturn - Reconcile a return against one issuance
func (h *JobWorkHandler) ReceiveReturn(c *gin.Context) {
	jobWorkID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job work id"})
		return
	}

	var req requests.ReceiveReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	finished, err := parseOptionalQuantity(req.Finished)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid finished"})
		return
	}
	scrap, err := parseOptionalQuantity(req.Scrap)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scrap"})
		return
	}
	unused, err := parseOptionalQuantity(req.Unused)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unused"})
		return
	}

	err = h.Service.ReceiveReturn(services.ReceiveReturnRequest{
		JobWorkID:      uint(jobWorkID),
		JobWorkBatchID: req.JobWorkBatchID,
		Finished:       finished,
		Scrap:          scrap,
		Unused:         unused,
		ChangedBy:      req.ChangedBy,
		Notes:          req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "return received"})
}

// UpdateProcessStatus - Start, hold or resume a process
func (h *JobWorkHandler) UpdateProcessStatus(c *gin.Context) {
	jobWorkID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job work id"})
		return
	}
	processID, err := strconv.Atoi(c.Param("process_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid process id"})
		return
	}

	var req requests.ProcessStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.Service.AdvanceProcessStatus(services.ProcessStatusRequest{
		JobWorkID: uint(jobWorkID),
		ProcessID: uint(processID),
		NewStatus: models.ProcessStatus(req.NewStatus),
		Reason:    req.Reason,
		ChangedBy: req.ChangedBy,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "process status updated"})
}

// CompleteProcess - Close a process with its output and scrap counts
func (h *JobWorkHandler) CompleteProcess(c *gin.Context) {
	jobWorkID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job work id"})
		return
	}
	processID, err := strconv.Atoi(c.Param("process_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid process id"})
		return
	}

	var req requests.CompleteProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	output, err := parseQuantity(req.Output)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid output"})
		return
	}
	scrap, err := parseOptionalQuantity(req.Scrap)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scrap"})
		return
	}

	err = h.Service.CompleteProcess(services.CompleteProcessRequest{
		JobWorkID: uint(jobWorkID),
		ProcessID: uint(processID),
		Output:    output,
		Scrap:     scrap,
		ChangedBy: req.ChangedBy,
		Notes:     req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "process completed"})
}

// ============ GET ENDPOINTS ============

// GetJobWork - Full order with processes and reconciliation records
func (h *JobWorkHandler) GetJobWork(c *gin.Context) {
	jobWorkID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job work id"})
		return
	}

	job, err := h.Service.GetJobWork(uint(jobWorkID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobWorks - Paged listing with optional status filter
func (h *JobWorkHandler) ListJobWorks(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	status := models.JobWorkStatus(c.Query("status"))

	jobs, total, err := h.Service.ListJobWorks(status, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_works": jobs,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}

// GetDelayedProcesses - Processes past their expected completion date
func (h *JobWorkHandler) GetDelayedProcesses(c *gin.Context) {
	processes, err := h.Service.GetDelayedProcesses()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"processes": processes})
}

// GetVendorSummary - Per-customer job work totals
func (h *JobWorkHandler) GetVendorSummary(c *gin.Context) {
	summary, err := h.Service.GetVendorSummary()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"vendors": summary})
}

// GetJobWorkTrace - Every movement recorded against one job work
func (h *JobWorkHandler) GetJobWorkTrace(c *gin.Context) {
	jobWorkID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job work id"})
		return
	}

	movements, err := h.Service.GetJobWorkTrace(uint(jobWorkID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_work_id": jobWorkID,
		"movements":   movements,
	})
}
