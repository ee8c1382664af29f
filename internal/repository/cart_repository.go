package repository

import (
	"catalog-service/internal/models"
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrCartItemNotFound = errors.New("cart item not found")

type CartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

// AddItem adds quantity to an existing line for the same product and catalog,
// or creates the line
func (r *CartRepository) AddItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	var stored models.CartItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("tenant_id = ? AND cart_id = ? AND product_id = ?", item.TenantID, item.CartID, item.ProductID)
		if item.CatalogID != nil {
			query = query.Where("catalog_id = ?", *item.CatalogID)
		} else {
			query = query.Where("catalog_id IS NULL")
		}

		err := query.First(&stored).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Create(item).Error; err != nil {
				return err
			}
			stored = *item
			return nil
		}
		if err != nil {
			return err
		}

		stored.Quantity += item.Quantity
		stored.UnitPrice = item.UnitPrice
		return tx.Save(&stored).Error
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListItems returns the lines of a cart, oldest first
func (r *CartRepository) ListItems(ctx context.Context, tenantID, cartID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND cart_id = ?", tenantID, cartID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// RemoveItem deletes one line of a cart
func (r *CartRepository) RemoveItem(ctx context.Context, tenantID, cartID string, itemID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND cart_id = ?", itemID, tenantID, cartID).
		Delete(&models.CartItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}
