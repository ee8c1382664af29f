package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a per-store product row
type Product struct {
	ID                 uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID           string         `json:"tenantId" gorm:"not null;index"`
	StoreID            uuid.UUID      `json:"storeId" gorm:"type:uuid;not null;index"`
	CategoryID         *uuid.UUID     `json:"categoryId,omitempty" gorm:"type:uuid;index"`
	CanonicalProductID *uuid.UUID     `json:"canonicalProductId,omitempty" gorm:"type:uuid;index"`
	Name               string         `json:"name" gorm:"not null"`
	SKU                *string        `json:"sku,omitempty" gorm:"index"`
	Barcode            *string        `json:"barcode,omitempty" gorm:"index"`
	Price              float64        `json:"price" gorm:"not null;default:0"`
	WholesalePrice     *float64       `json:"wholesalePrice,omitempty"`
	Quantity           int            `json:"quantity" gorm:"not null;default:0"`
	IsActive           bool           `json:"isActive" gorm:"default:true"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	DeletedAt          gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// AliasKind names the product attribute an alias was taken from
type AliasKind string

const (
	AliasBarcode AliasKind = "barcode"
	AliasSKU     AliasKind = "sku"
	AliasName    AliasKind = "name"
)

// CanonicalProduct is the deduplicated master record shared by store products
type CanonicalProduct struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string         `json:"tenantId" gorm:"not null;index"`
	Name      string         `json:"name" gorm:"not null"`
	Aliases   []ProductAlias `json:"aliases,omitempty" gorm:"foreignKey:CanonicalProductID"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// TableName returns the table name for the CanonicalProduct model
func (CanonicalProduct) TableName() string {
	return "canonical_products"
}

// ProductAlias is a normalized name, SKU or barcode pointing at a canonical product
type ProductAlias struct {
	ID                 uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID           string    `json:"tenantId" gorm:"not null;uniqueIndex:idx_alias"`
	CanonicalProductID uuid.UUID `json:"canonicalProductId" gorm:"type:uuid;not null;index"`
	Kind               AliasKind `json:"kind" gorm:"not null;uniqueIndex:idx_alias"`
	Value              string    `json:"value" gorm:"not null;uniqueIndex:idx_alias"`
	CreatedAt          time.Time `json:"createdAt"`
}

// TableName returns the table name for the ProductAlias model
func (ProductAlias) TableName() string {
	return "product_aliases"
}

// CartItem is one line of a storefront cart
type CartItem struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string     `json:"tenantId" gorm:"not null;index"`
	CartID    string     `json:"cartId" gorm:"not null;index"`
	ProductID uuid.UUID  `json:"productId" gorm:"type:uuid;not null"`
	CatalogID *uuid.UUID `json:"catalogId,omitempty" gorm:"type:uuid"`
	Quantity  int        `json:"quantity" gorm:"not null"`
	UnitPrice float64    `json:"unitPrice"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// TableName returns the table name for the CartItem model
func (CartItem) TableName() string {
	return "cart_items"
}

// AddCartItemRequest adds a product to a cart
type AddCartItemRequest struct {
	ProductID uuid.UUID  `json:"productId" binding:"required"`
	CatalogID *uuid.UUID `json:"catalogId,omitempty"`
	Quantity  int        `json:"quantity" binding:"required,min=1"`
}

// CreateProductRequest represents a request to create a store product
type CreateProductRequest struct {
	StoreID        uuid.UUID  `json:"storeId" binding:"required"`
	CategoryID     *uuid.UUID `json:"categoryId,omitempty"`
	Name           string     `json:"name" binding:"required"`
	SKU            *string    `json:"sku,omitempty"`
	Barcode        *string    `json:"barcode,omitempty"`
	Price          float64    `json:"price" binding:"min=0"`
	WholesalePrice *float64   `json:"wholesalePrice,omitempty"`
	Quantity       int        `json:"quantity" binding:"min=0"`
}

// StorefrontProduct is a product as one catalog and mode present it
type StorefrontProduct struct {
	Product
	Status         ProductStatus `json:"status"`
	EffectivePrice float64       `json:"effectivePrice"`
}
