package handlers

import (
	"errors"
	"net/http"

	"catalog-inventory-service/internal/models"
	"catalog-inventory-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InventoryHandler struct {
	inventory *services.InventoryService
}

func NewInventoryHandler(inventory *services.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

func parseProductIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid product ID",
				"field":   "productId",
			},
		})
		return uuid.Nil, false
	}
	return id, true
}

// actorFrom pulls the acting user out of the auth context, when present
func actorFrom(c *gin.Context) *string {
	if email := c.GetString("user_email"); email != "" {
		return &email
	}
	if userID := c.GetString("user_id"); userID != "" {
		return &userID
	}
	return nil
}

// ListStockItems returns all folded stock items
func (h *InventoryHandler) ListStockItems(c *gin.Context) {
	items, err := h.inventory.ListItems()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": items, "total": len(items)})
}

// GetStockItem returns a product's folded stock item
func (h *InventoryHandler) GetStockItem(c *gin.Context) {
	productID, ok := parseProductIDParam(c)
	if !ok {
		return
	}

	item, err := h.inventory.GetItem(productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": item})
}

// AdjustStock appends a stock movement and returns the resulting fold
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	productID, ok := parseProductIDParam(c)
	if !ok {
		return
	}

	var req models.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "VALIDATION_ERROR", "message": err.Error()},
		})
		return
	}

	item, err := h.inventory.Adjust(productID, &req, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": item})
}

// ReserveStock holds stock for an order
func (h *InventoryHandler) ReserveStock(c *gin.Context) {
	productID, ok := parseProductIDParam(c)
	if !ok {
		return
	}

	var req models.ReserveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "VALIDATION_ERROR", "message": err.Error()},
		})
		return
	}

	item, err := h.inventory.Reserve(productID, &req, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": item})
}

// UnreserveStock releases a hold
func (h *InventoryHandler) UnreserveStock(c *gin.Context) {
	productID, ok := parseProductIDParam(c)
	if !ok {
		return
	}

	var req models.ReserveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "VALIDATION_ERROR", "message": err.Error()},
		})
		return
	}

	item, err := h.inventory.Unreserve(productID, &req, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": item})
}

// GetMovements returns a product's ledger. Default is display order
// (newest first); order=asc returns append order for replay.
func (h *InventoryHandler) GetMovements(c *gin.Context) {
	productID, ok := parseProductIDParam(c)
	if !ok {
		return
	}

	movements, err := h.inventory.Movements(productID)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.DefaultQuery("order", "desc") == "desc" {
		for i, j := 0, len(movements)-1; i < j; i, j = i+1, j-1 {
			movements[i], movements[j] = movements[j], movements[i]
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": movements, "total": len(movements)})
}

// UpdateItemSettings changes the non-derived stock item fields
func (h *InventoryHandler) UpdateItemSettings(c *gin.Context) {
	productID, ok := parseProductIDParam(c)
	if !ok {
		return
	}

	var req models.UpdateItemSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "VALIDATION_ERROR", "message": err.Error()},
		})
		return
	}

	item, err := h.inventory.UpdateItemSettings(productID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": item})
}

// RebuildStockItem replays the full ledger and swaps in the result.
// A divergence is repaired but reported as an integrity failure.
func (h *InventoryHandler) RebuildStockItem(c *gin.Context) {
	productID, ok := parseProductIDParam(c)
	if !ok {
		return
	}

	item, err := h.inventory.Rebuild(productID)
	if err != nil {
		var integrityErr *services.IntegrityError
		if errors.As(err, &integrityErr) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"data":    item,
				"error": gin.H{
					"code":    "INTEGRITY_ERROR",
					"message": integrityErr.Error(),
				},
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": item})
}

// ListAlerts returns low stock alerts, newest first
func (h *InventoryHandler) ListAlerts(c *gin.Context) {
	onlyUnacknowledged := c.Query("unacknowledged") == "true"
	alerts, err := h.inventory.Alerts(onlyUnacknowledged)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": alerts, "total": len(alerts)})
}

// AcknowledgeAlert marks an alert as seen
func (h *InventoryHandler) AcknowledgeAlert(c *gin.Context) {
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid alert ID",
				"field":   "id",
			},
		})
		return
	}

	var req models.AcknowledgeAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Fall back to the authenticated user when no body was sent
		if actor := actorFrom(c); actor != nil {
			req.AcknowledgedBy = *actor
		} else {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   gin.H{"code": "VALIDATION_ERROR", "message": "acknowledgedBy is required"},
			})
			return
		}
	}

	alert, err := h.inventory.AcknowledgeAlert(alertID, req.AcknowledgedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": alert})
}

// GetInventorySummary returns the dashboard counters for inventory
func (h *InventoryHandler) GetInventorySummary(c *gin.Context) {
	summary, err := h.inventory.Summary()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}
