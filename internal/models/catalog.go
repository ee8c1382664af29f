package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductStatus is a per-catalog availability override
type ProductStatus string

const (
	ProductStatusInStock    ProductStatus = "in_stock"
	ProductStatusOutOfStock ProductStatus = "out_of_stock"
	ProductStatusHidden     ProductStatus = "hidden"
)

// Valid reports whether s is a known status
func (s ProductStatus) Valid() bool {
	switch s {
	case ProductStatusInStock, ProductStatusOutOfStock, ProductStatusHidden:
		return true
	}
	return false
}

// Catalog is a named price-list: a subset of a store's products offered to
// the customers holding its access code
type Catalog struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID    string         `json:"tenantId" gorm:"not null;index"`
	StoreID     uuid.UUID      `json:"storeId" gorm:"type:uuid;not null;index"`
	Name        string         `json:"name" gorm:"not null"`
	AccessCode  *string        `json:"accessCode,omitempty" gorm:"uniqueIndex"`
	IsDefault   bool           `json:"isDefault" gorm:"default:false"`
	IsActive    bool           `json:"isActive" gorm:"default:true"`
	CreatedByID string         `json:"createdById"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the table name for the Catalog model
func (Catalog) TableName() string {
	return "catalogs"
}

// CatalogProductSetting overrides a product's status and pricing inside one catalog
type CatalogProductSetting struct {
	ID            uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID      string        `json:"tenantId" gorm:"not null;index"`
	CatalogID     uuid.UUID     `json:"catalogId" gorm:"type:uuid;not null;uniqueIndex:idx_catalog_product"`
	ProductID     uuid.UUID     `json:"productId" gorm:"type:uuid;not null;uniqueIndex:idx_catalog_product"`
	Status        ProductStatus `json:"status" gorm:"not null;default:'in_stock'"`
	MarkupPercent *float64      `json:"markupPercent,omitempty"`
	FixedPrice    *float64      `json:"fixedPrice,omitempty"`
	UpdatedByID   string        `json:"updatedById"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// TableName returns the table name for the CatalogProductSetting model
func (CatalogProductSetting) TableName() string {
	return "catalog_product_settings"
}

// EffectivePrice applies the override to a base price
func (s CatalogProductSetting) EffectivePrice(base float64) float64 {
	if s.FixedPrice != nil {
		return *s.FixedPrice
	}
	if s.MarkupPercent != nil {
		return base * (1 + *s.MarkupPercent/100)
	}
	return base
}

// CreateCatalogRequest represents a request to create a catalog
type CreateCatalogRequest struct {
	StoreID    uuid.UUID `json:"storeId" binding:"required"`
	Name       string    `json:"name" binding:"required"`
	AccessCode *string   `json:"accessCode,omitempty"`
	IsDefault  bool      `json:"isDefault,omitempty"`
}

// UpdateCatalogRequest represents a request to update a catalog
type UpdateCatalogRequest struct {
	Name       *string `json:"name,omitempty"`
	AccessCode *string `json:"accessCode,omitempty"`
	IsDefault  *bool   `json:"isDefault,omitempty"`
	IsActive   *bool   `json:"isActive,omitempty"`
}

// UpsertSettingRequest writes one product setting. CorrelationID is chosen by
// the client and echoed back so it can match the server-assigned id.
type UpsertSettingRequest struct {
	CorrelationID string        `json:"correlationId" binding:"required"`
	ProductID     uuid.UUID     `json:"productId" binding:"required"`
	Status        ProductStatus `json:"status" binding:"required"`
	MarkupPercent *float64      `json:"markupPercent,omitempty"`
	FixedPrice    *float64      `json:"fixedPrice,omitempty"`
}

// UpsertSettingResponse pairs the client correlation id with the stored row
type UpsertSettingResponse struct {
	Success       bool                   `json:"success"`
	CorrelationID string                 `json:"correlationId"`
	Data          *CatalogProductSetting `json:"data,omitempty"`
	Resynced      bool                   `json:"resynced,omitempty"`
}
