package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"factory-ledger/src/models"
)

// respondError maps the service error taxonomy onto HTTP statuses:
// validation failures are 422, contention is 409, missing records 404 and
// everything else 500.
func respondError(c *gin.Context, err error) {
	var insufficient *models.InsufficientStockError
	var conservation *models.ConservationError
	var overReturn *models.OverReturnError
	var expired *models.ExpiredOrRejectedBatchError
	var sequence *models.SequenceIntegrityError
	var conflict *models.ConcurrencyConflictError

	switch {
	case errors.As(err, &insufficient),
		errors.As(err, &conservation),
		errors.As(err, &overReturn),
		errors.As(err, &expired):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &sequence):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// parseQuantity parses a required decimal field.
func parseQuantity(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// parseOptionalQuantity treats an empty field as zero.
func parseOptionalQuantity(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// parseDate accepts YYYY-MM-DD, empty means nil.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
