package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"catalog-service/internal/tree"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSON type for PostgreSQL JSONB
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Category is a node of a store's category tree
type Category struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID    string         `json:"tenantId" gorm:"not null;index;uniqueIndex:idx_store_slug"`
	StoreID     uuid.UUID      `json:"storeId" gorm:"type:uuid;not null;index;uniqueIndex:idx_store_slug"`
	CreatedByID string         `json:"createdById"`
	UpdatedByID string         `json:"updatedById"`
	Name        string         `json:"name" gorm:"not null"`
	Slug        string         `json:"slug" gorm:"not null;uniqueIndex:idx_store_slug,where:deleted_at IS NULL"`
	Description *string        `json:"description,omitempty"`
	ImageURL    *string        `json:"imageUrl,omitempty"`
	ParentID    *uuid.UUID     `json:"parentId,omitempty" gorm:"type:uuid;index"`
	Position    int            `json:"position" gorm:"not null;default:1"`
	IsActive    bool           `json:"isActive" gorm:"default:true"`
	Metadata    *JSON          `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the table name for the Category model
func (Category) TableName() string {
	return "categories"
}

// ToTreeCategory converts the row into the flat form the tree builder takes
func (c Category) ToTreeCategory(productCount int) tree.Category {
	out := tree.Category{
		ID:           c.ID.String(),
		Name:         c.Name,
		ProductCount: productCount,
		ImageURL:     c.ImageURL,
	}
	if c.ParentID != nil {
		parentID := c.ParentID.String()
		out.ParentID = &parentID
	}
	return out
}

// CategoryWithCount is a category row joined with its direct product count
type CategoryWithCount struct {
	Category
	ProductCount int `json:"productCount" gorm:"column:product_count"`
}

// CreateCategoryRequest represents a request to create a new category
type CreateCategoryRequest struct {
	StoreID     uuid.UUID  `json:"storeId" binding:"required"`
	Name        string     `json:"name" binding:"required"`
	Slug        *string    `json:"slug,omitempty"`
	Description *string    `json:"description,omitempty"`
	ImageURL    *string    `json:"imageUrl,omitempty"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
	Position    *int       `json:"position,omitempty"`
	IsActive    *bool      `json:"isActive,omitempty"`
	Metadata    *JSON      `json:"metadata,omitempty"`
}

// UpdateCategoryRequest represents a request to update a category
type UpdateCategoryRequest struct {
	Name        *string    `json:"name,omitempty"`
	Slug        *string    `json:"slug,omitempty"`
	Description *string    `json:"description,omitempty"`
	ImageURL    *string    `json:"imageUrl,omitempty"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
	ClearParent bool       `json:"clearParent,omitempty"`
	Position    *int       `json:"position,omitempty"`
	IsActive    *bool      `json:"isActive,omitempty"`
	Metadata    *JSON      `json:"metadata,omitempty"`
}

// PaginationInfo represents pagination information
type PaginationInfo struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

// NewPaginationInfo fills in the derived pagination fields
func NewPaginationInfo(page, limit int, total int64) *PaginationInfo {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return &PaginationInfo{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

// CategoryTreeResponse represents hierarchical category tree response
type CategoryTreeResponse struct {
	Success bool         `json:"success"`
	Data    []*tree.Node `json:"data"`
	Meta    *TreeMeta    `json:"meta,omitempty"`
}

// TreeMeta describes how a tree response was produced
type TreeMeta struct {
	Mode       string       `json:"mode"`
	CatalogID  *string      `json:"catalogId,omitempty"`
	NodeCount  int          `json:"nodeCount"`
	Cached     bool         `json:"cached"`
	Diagnostic *tree.Report `json:"diagnostic,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Error represents error details
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details *JSON  `json:"details,omitempty"`
}

// ============================================================================
// Bulk Operation Models
// ============================================================================

// BulkCreateCategoryItem represents a single category in bulk create request
type BulkCreateCategoryItem struct {
	Name        string     `json:"name" binding:"required"`
	Slug        *string    `json:"slug,omitempty"`
	Description *string    `json:"description,omitempty"`
	ImageURL    *string    `json:"imageUrl,omitempty"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
	Position    *int       `json:"position,omitempty"`
	IsActive    *bool      `json:"isActive,omitempty"`
	// ExternalID allows client to track items in response
	ExternalID *string `json:"externalId,omitempty"`
}

// BulkCreateCategoriesRequest represents bulk create request
type BulkCreateCategoriesRequest struct {
	StoreID    uuid.UUID                `json:"storeId" binding:"required"`
	Categories []BulkCreateCategoryItem `json:"categories" binding:"required,min=1,max=100"`
}

// BulkCreateResultItem represents result for a single item
type BulkCreateResultItem struct {
	Index      int       `json:"index"`
	ExternalID *string   `json:"externalId,omitempty"`
	Success    bool      `json:"success"`
	Category   *Category `json:"category,omitempty"`
	Error      *Error    `json:"error,omitempty"`
}

// BulkCreateCategoriesResponse represents bulk create response
type BulkCreateCategoriesResponse struct {
	Success      bool                   `json:"success"`
	TotalCount   int                    `json:"totalCount"`
	SuccessCount int                    `json:"successCount"`
	FailedCount  int                    `json:"failedCount"`
	Results      []BulkCreateResultItem `json:"results"`
}

// BulkDeleteCategoriesRequest represents bulk delete request
type BulkDeleteCategoriesRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1,max=100"`
}

// BulkDeleteCategoriesResponse represents bulk delete response
type BulkDeleteCategoriesResponse struct {
	Success      bool     `json:"success"`
	TotalCount   int      `json:"totalCount"`
	DeletedCount int      `json:"deletedCount"`
	FailedIDs    []string `json:"failedIds,omitempty"`
}
