package repository

import (
	"catalog-service/internal/models"
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrCanonicalNotFound = errors.New("canonical product not found")
)

type ProductRepository struct {
	db         *gorm.DB
	categories *CategoryRepository
}

func NewProductRepository(db *gorm.DB, categories *CategoryRepository) *ProductRepository {
	return &ProductRepository{db: db, categories: categories}
}

// Create stores a product; product counts change, so cached trees are dropped
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return err
	}
	if r.categories != nil {
		r.categories.InvalidateTenant(ctx, product.TenantID)
	}
	return nil
}

// GetByID retrieves a product with tenant isolation
func (r *ProductRepository) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

// ListByCategories returns a page of active products tagged with any of the categories
func (r *ProductRepository) ListByCategories(ctx context.Context, tenantID string, storeID uuid.UUID, categoryIDs []uuid.UUID, limit, offset int) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64
	query := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("tenant_id = ? AND store_id = ? AND is_active = ?", tenantID, storeID, true)
	if len(categoryIDs) > 0 {
		query = query.Where("category_id IN ?", categoryIDs)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("name ASC").Limit(limit).Offset(offset).Find(&products).Error
	return products, total, err
}

// SetCanonical links a store product to its canonical record
func (r *ProductRepository) SetCanonical(ctx context.Context, tenantID string, productID, canonicalID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND tenant_id = ?", productID, tenantID).
		Update("canonical_product_id", canonicalID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// FindCanonicalByAlias looks up the canonical product owning an alias value
func (r *ProductRepository) FindCanonicalByAlias(ctx context.Context, tenantID string, kind models.AliasKind, value string) (*models.CanonicalProduct, error) {
	var alias models.ProductAlias
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND kind = ? AND value = ?", tenantID, kind, value).
		First(&alias).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCanonicalNotFound
		}
		return nil, err
	}

	var canonical models.CanonicalProduct
	err = r.db.WithContext(ctx).Preload("Aliases").
		Where("id = ? AND tenant_id = ?", alias.CanonicalProductID, tenantID).
		First(&canonical).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCanonicalNotFound
		}
		return nil, err
	}
	return &canonical, nil
}

// CreateCanonical stores a new canonical product
func (r *ProductRepository) CreateCanonical(ctx context.Context, canonical *models.CanonicalProduct) error {
	return r.db.WithContext(ctx).Omit("Aliases").Create(canonical).Error
}

// AttachAlias records an alias; an alias that already exists is left untouched
func (r *ProductRepository) AttachAlias(ctx context.Context, alias *models.ProductAlias) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(alias).Error
}
