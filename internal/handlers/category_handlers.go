package handlers

import (
	"net/http"

	"catalog-inventory-service/internal/models"
	"catalog-inventory-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CategoryHandler struct {
	catalog *services.CatalogService
}

func NewCategoryHandler(catalog *services.CatalogService) *CategoryHandler {
	return &CategoryHandler{catalog: catalog}
}

func parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid category ID",
				"field":   "id",
			},
		})
		return uuid.Nil, false
	}
	return id, true
}

// CreateCategory creates a new category
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "VALIDATION_ERROR", "message": err.Error()},
		})
		return
	}

	category, err := h.catalog.Create(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": category})
}

// GetCategory returns a single category
func (h *CategoryHandler) GetCategory(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	category, err := h.catalog.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": category})
}

// GetCategoryBySlug returns a single category by its slug
func (h *CategoryHandler) GetCategoryBySlug(c *gin.Context) {
	category, err := h.catalog.GetBySlug(c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": category})
}

// GetCategoryTree returns the nested tree, optionally pruned by a search
// query and status filter. A pruned result keeps every ancestor of a
// matching node so the paths stay connected.
func (h *CategoryHandler) GetCategoryTree(c *gin.Context) {
	query := c.Query("q")
	statusParam := c.Query("status")

	if query == "" && statusParam == "" {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": h.catalog.Tree(c.Request.Context())})
		return
	}

	var status *models.CategoryStatus
	if statusParam != "" {
		s := models.CategoryStatus(statusParam)
		if !s.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "VALIDATION_ERROR",
					"message": "status must be active or inactive",
					"field":   "status",
				},
			})
			return
		}
		status = &s
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.catalog.Filter(query, status)})
}

// GetRootCategories returns the top-level categories in sort order
func (h *CategoryHandler) GetRootCategories(c *gin.Context) {
	roots := h.catalog.Roots()
	c.JSON(http.StatusOK, gin.H{"success": true, "data": roots, "total": len(roots)})
}

// GetCategoryChildren returns a category's direct children
func (h *CategoryHandler) GetCategoryChildren(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	children, err := h.catalog.Children(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": children, "total": len(children)})
}

// GetCategoryDescendants returns the subtree below a category in
// pre-order
func (h *CategoryHandler) GetCategoryDescendants(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	descendants, err := h.catalog.Descendants(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": descendants, "total": len(descendants)})
}

// GetCategoryAncestors returns the chain from the root down to the
// category's parent
func (h *CategoryHandler) GetCategoryAncestors(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	ancestors, err := h.catalog.Ancestors(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": ancestors, "total": len(ancestors)})
}

// UpdateCategory renames or edits a category in place
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req models.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "VALIDATION_ERROR", "message": err.Error()},
		})
		return
	}

	category, err := h.catalog.Update(id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": category})
}

// MoveCategory re-parents a category, carrying its whole subtree
func (h *CategoryHandler) MoveCategory(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req models.MoveCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "VALIDATION_ERROR", "message": err.Error()},
		})
		return
	}

	category, err := h.catalog.Move(id, req.ParentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": category})
}

// DeleteCategory removes a category and its entire subtree
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	deletedIDs, err := h.catalog.Delete(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deletedIds": deletedIDs})
}

// UpdateProductStats accepts denormalized counters from the products
// service
func (h *CategoryHandler) UpdateProductStats(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req models.UpdateProductStatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "VALIDATION_ERROR", "message": err.Error()},
		})
		return
	}

	category, err := h.catalog.UpdateProductStats(id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": category})
}

// GetCategoryStats returns the dashboard counters for the category tree
func (h *CategoryHandler) GetCategoryStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.catalog.Stats()})
}
