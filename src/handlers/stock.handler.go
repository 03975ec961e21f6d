package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"factory-ledger/src/models"
	"factory-ledger/src/requests"
	"factory-ledger/src/services"
)

type StockHandler struct {
	Service *services.StockService
}

// ============ MUTATING ENDPOINTS ============

// ReceiveStock - Receive external material into a batch
func (h *StockHandler) ReceiveStock(c *gin.Context) {
	var req requests.ReceiveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quantity, err := parseQuantity(req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity"})
		return
	}
	rate, err := parseOptionalQuantity(req.PurchaseRate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase_rate"})
		return
	}
	manufactureDate, err := parseDate(req.ManufactureDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid manufacture_date. Use YYYY-MM-DD"})
		return
	}
	expiryDate, err := parseDate(req.ExpiryDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expiry_date. Use YYYY-MM-DD"})
		return
	}

	batch, err := h.Service.ReceiveStock(services.ReceiveStockRequest{
		ItemID:             req.ItemID,
		BatchCode:          req.BatchCode,
		Quantity:           quantity,
		SupplierBatch:      req.SupplierBatch,
		ManufactureDate:    manufactureDate,
		ExpiryDate:         expiryDate,
		StorageLocation:    req.StorageLocation,
		PurchaseRate:       rate,
		SourceType:         models.SourceType(req.SourceType),
		SourceRefID:        req.SourceRefID,
		RequiresInspection: req.RequiresInspection,
		ChangedBy:          req.ChangedBy,
		Notes:              req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "stock received",
		"batch":   batch,
	})
}

// MoveToWIP - Move raw stock into a process WIP slot
func (h *StockHandler) MoveToWIP(c *gin.Context) {
	var req requests.MoveToWIPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quantity, err := parseQuantity(req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity"})
		return
	}

	allocations, err := h.Service.MoveToWIP(services.MoveToWIPRequest{
		ItemID:    req.ItemID,
		BatchID:   req.BatchID,
		Quantity:  quantity,
		Process:   req.Process,
		RefType:   req.RefType,
		RefID:     req.RefID,
		RefNumber: req.RefNumber,
		ChangedBy: req.ChangedBy,
		Notes:     req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "moved to wip",
		"process":     models.NormalizeProcess(req.Process),
		"allocations": allocations,
	})
}

// ReceiveFromWIP - Settle finished and scrap out of a WIP slot
func (h *StockHandler) ReceiveFromWIP(c *gin.Context) {
	var req requests.ReceiveFromWIPRequest
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

	err = h.Service.ReceiveFromWIP(services.ReceiveFromWIPRequest{
		ItemID:    req.ItemID,
		BatchID:   req.BatchID,
		Process:   req.Process,
		Finished:  finished,
		Scrap:     scrap,
		RefType:   req.RefType,
		RefID:     req.RefID,
		RefNumber: req.RefNumber,
		ChangedBy: req.ChangedBy,
		Notes:     req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "received from wip"})
}

// MoveBetweenProcesses - Shift WIP from one process slot to another
func (h *StockHandler) MoveBetweenProcesses(c *gin.Context) {
	var req requests.MoveBetweenProcessesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quantity, err := parseQuantity(req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity"})
		return
	}

	err = h.Service.MoveBetweenProcesses(services.MoveBetweenProcessesRequest{
		ItemID:      req.ItemID,
		BatchID:     req.BatchID,
		Quantity:    quantity,
		FromProcess: req.FromProcess,
		ToProcess:   req.ToProcess,
		RefType:     req.RefType,
		RefID:       req.RefID,
		RefNumber:   req.RefNumber,
		ChangedBy:   req.ChangedBy,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "moved between processes"})
}

// ReturnUnused - Bring unconsumed WIP back to raw
func (h *StockHandler) ReturnUnused(c *gin.Context) {
	var req requests.ReturnUnusedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quantity, err := parseQuantity(req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity"})
		return
	}

	err = h.Service.ReturnUnused(services.ReturnUnusedRequest{
		ItemID:    req.ItemID,
		BatchID:   req.BatchID,
		Quantity:  quantity,
		Process:   req.Process,
		RefType:   req.RefType,
		RefID:     req.RefID,
		RefNumber: req.RefNumber,
		ChangedBy: req.ChangedBy,
		Notes:     req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "returned to raw"})
}

// PassInspection - Release a pending batch into raw stock
func (h *StockHandler) PassInspection(c *gin.Context) {
	var req requests.InspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.Service.PassInspection(services.InspectionRequest{
		BatchID:   req.BatchID,
		ChangedBy: req.ChangedBy,
		Notes:     req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "inspection passed"})
}

// RejectInspection - Mark a batch failed or quarantined
func (h *StockHandler) RejectInspection(c *gin.Context) {
	var req requests.InspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.Service.RejectInspection(services.InspectionRequest{
		BatchID:    req.BatchID,
		ChangedBy:  req.ChangedBy,
		Notes:      req.Notes,
		Quarantine: req.Quarantine,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "inspection rejected"})
}

// ============ GET ENDPOINTS ============

// GetBatch - Single batch with its item
func (h *StockHandler) GetBatch(c *gin.Context) {
	batchID, err := strconv.Atoi(c.Param("batch_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch_id"})
		return
	}

	batch, err := h.Service.GetBatch(uint(batchID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

// GetItemSummary - Per-batch state breakdown for one item
func (h *StockHandler) GetItemSummary(c *gin.Context) {
	itemID, err := strconv.Atoi(c.Param("item_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item_id"})
		return
	}

	summary, err := h.Service.GetItemSummary(uint(itemID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetProcessOccupancy - Factory-wide WIP per process
func (h *StockHandler) GetProcessOccupancy(c *gin.Context) {
	occupancy, err := h.Service.GetProcessOccupancy()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"processes": occupancy})
}

// GetLowStock - Items below their reorder threshold
func (h *StockHandler) GetLowStock(c *gin.Context) {
	items, err := h.Service.GetLowStockItems()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetBatchTrace - Movement ledger of one batch
func (h *StockHandler) GetBatchTrace(c *gin.Context) {
	batchID, err := strconv.Atoi(c.Param("batch_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch_id"})
		return
	}

	movements, err := h.Service.GetBatchTrace(uint(batchID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"batch_id":  batchID,
		"movements": movements,
	})
}
