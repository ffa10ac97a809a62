package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CategoryStatus represents the lifecycle state of a category
type CategoryStatus string

const (
	CategoryStatusActive   CategoryStatus = "active"
	CategoryStatusInactive CategoryStatus = "inactive"
)

// Valid reports whether s is a known category status
func (s CategoryStatus) Valid() bool {
	return s == CategoryStatusActive || s == CategoryStatusInactive
}

// Category represents a node in the product category hierarchy.
// Depth and SortOrder are derived fields owned by the catalog service:
// Depth is 0 for roots and parent.Depth+1 otherwise, and SortOrder is
// unique among siblings.
type Category struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name            string          `json:"name" gorm:"not null"`
	Slug            string          `json:"slug" gorm:"not null;uniqueIndex:idx_categories_slug,where:deleted_at IS NULL"`
	Description     *string         `json:"description,omitempty"`
	ImageURL        *string         `json:"imageUrl,omitempty"`
	ParentID        *uuid.UUID      `json:"parentId,omitempty" gorm:"index"`
	Depth           int             `json:"depth" gorm:"not null;default:0"`
	SortOrder       int             `json:"sortOrder" gorm:"not null;default:1"`
	Status          CategoryStatus  `json:"status" gorm:"not null;default:'active'"`
	ProductCount    int             `json:"productCount" gorm:"not null;default:0"`
	TotalSales      int64           `json:"totalSales" gorm:"not null;default:0"`
	MetaTitle       *string         `json:"metaTitle,omitempty"`
	MetaDescription *string         `json:"metaDescription,omitempty"`
	Metadata        *datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	DeletedAt       *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// CategoryTreeNode is the nested read model returned by tree endpoints
type CategoryTreeNode struct {
	Category
	Children []*CategoryTreeNode `json:"children"`
}

// CreateCategoryRequest represents a request to create a new category
type CreateCategoryRequest struct {
	Name            string          `json:"name" binding:"required"`
	Slug            *string         `json:"slug,omitempty"`
	Description     *string         `json:"description,omitempty"`
	ImageURL        *string         `json:"imageUrl,omitempty"`
	ParentID        *uuid.UUID      `json:"parentId,omitempty"`
	Status          *CategoryStatus `json:"status,omitempty"`
	MetaTitle       *string         `json:"metaTitle,omitempty"`
	MetaDescription *string         `json:"metaDescription,omitempty"`
	Metadata        *datatypes.JSON `json:"metadata,omitempty"`
}

// UpdateCategoryRequest represents a request to rename or edit a category.
// Parent changes go through MoveCategoryRequest instead.
type UpdateCategoryRequest struct {
	Name            *string         `json:"name,omitempty"`
	Slug            *string         `json:"slug,omitempty"`
	Description     *string         `json:"description,omitempty"`
	ImageURL        *string         `json:"imageUrl,omitempty"`
	Status          *CategoryStatus `json:"status,omitempty"`
	MetaTitle       *string         `json:"metaTitle,omitempty"`
	MetaDescription *string         `json:"metaDescription,omitempty"`
	Metadata        *datatypes.JSON `json:"metadata,omitempty"`
}

// MoveCategoryRequest represents a request to re-parent a category.
// A nil ParentID moves the subtree to the root level.
type MoveCategoryRequest struct {
	ParentID *uuid.UUID `json:"parentId"`
}

// UpdateProductStatsRequest carries denormalized counters pushed by the
// products service
type UpdateProductStatsRequest struct {
	ProductCount *int   `json:"productCount,omitempty"`
	TotalSales   *int64 `json:"totalSales,omitempty"`
}

// CategoryStats aggregates the dashboard counters for the category tree
type CategoryStats struct {
	TotalCategories  int   `json:"totalCategories"`
	ActiveCategories int   `json:"activeCategories"`
	TotalProducts    int   `json:"totalProducts"`
	TotalSales       int64 `json:"totalSales"`
}

// CategoryResponse represents a single category response
type CategoryResponse struct {
	Success bool      `json:"success"`
	Data    *Category `json:"data"`
	Message *string   `json:"message,omitempty"`
}

// CategoryListResponse represents a flat list of categories
type CategoryListResponse struct {
	Success bool       `json:"success"`
	Data    []Category `json:"data"`
	Total   int        `json:"total"`
}

// CategoryTreeResponse represents the hierarchical tree response
type CategoryTreeResponse struct {
	Success bool                `json:"success"`
	Data    []*CategoryTreeNode `json:"data"`
}

// DeleteCategoryResponse lists the ids removed by a cascade delete
type DeleteCategoryResponse struct {
	Success    bool        `json:"success"`
	DeletedIDs []uuid.UUID `json:"deletedIds"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Error represents error details
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// TableName returns the table name for the Category model
func (Category) TableName() string {
	return "categories"
}
