package handlers

import (
	"errors"
	"net/http"

	"catalog-inventory-service/internal/repository"
	"catalog-inventory-service/internal/services"

	"github.com/gin-gonic/gin"
)

// respondError maps the service error taxonomy onto HTTP status codes
// and the standard error envelope
func respondError(c *gin.Context, err error) {
	var (
		validationErr   *services.ValidationError
		conflictErr     *services.ConflictError
		cycleErr        *services.CycleError
		insufficientErr *services.InsufficientStockError
		overReserveErr  *services.OverReservationError
		integrityErr    *services.IntegrityError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": validationErr.Message,
				"field":   validationErr.Field,
			},
		})
	case errors.As(err, &cycleErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CYCLE_ERROR",
				"message": cycleErr.Error(),
			},
		})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CONFLICT",
				"message": conflictErr.Error(),
			},
		})
	case errors.As(err, &insufficientErr):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INSUFFICIENT_STOCK",
				"message": insufficientErr.Error(),
			},
		})
	case errors.As(err, &overReserveErr):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "OVER_RESERVATION",
				"message": overReserveErr.Error(),
			},
		})
	case errors.As(err, &integrityErr):
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTEGRITY_ERROR",
				"message": integrityErr.Error(),
			},
		})
	case errors.Is(err, repository.ErrCategoryNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Category not found",
			},
		})
	case errors.Is(err, repository.ErrStockItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Stock item not found",
			},
		})
	case errors.Is(err, repository.ErrAlertNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Alert not found",
			},
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "An unexpected error occurred",
			},
		})
	}
}
