package routes

import (
	"factory-ledger/src/handlers"

	"github.com/gin-gonic/gin"
)

func RegisterStockRoutes(r *gin.RouterGroup, handler *handlers.StockHandler) {
	// GET endpoints
	r.GET("/items/:item_id/summary", handler.GetItemSummary)
	r.GET("/items/low", handler.GetLowStock)
	r.GET("/summary/processes", handler.GetProcessOccupancy)
	r.GET("/batches/:batch_id", handler.GetBatch)
	r.GET("/batches/:batch_id/trace", handler.GetBatchTrace)

	// POST endpoints
	r.POST("/receive", handler.ReceiveStock)
	r.POST("/move-to-wip", handler.MoveToWIP)
	r.POST("/receive-from-wip", handler.ReceiveFromWIP)
	r.POST("/move-between-processes", handler.MoveBetweenProcesses)
	r.POST("/return-unused", handler.ReturnUnused)
	r.POST("/inspection/pass", handler.PassInspection)
	r.POST("/inspection/reject", handler.RejectInspection)
}

func RegisterJobWorkRoutes(r *gin.RouterGroup, handler *handlers.JobWorkHandler) {
	// GET endpoints
	r.GET("", handler.ListJobWorks)
	r.GET("/:id", handler.GetJobWork)
	r.GET("/:id/trace", handler.GetJobWorkTrace)
	r.GET("/delayed", handler.GetDelayedProcesses)
	r.GET("/vendors/summary", handler.GetVendorSummary)

	// POST endpoints
	r.POST("", handler.CreateJobWork)
	r.POST("/:id/issue", handler.IssueMaterials)
	r.POST("/:id/receive", handler.ReceiveReturn)
	r.POST("/:id/processes/:process_id/status", handler.UpdateProcessStatus)
	r.POST("/:id/processes/:process_id/complete", handler.CompleteProcess)
}
