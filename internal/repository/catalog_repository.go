package repository

import (
	"catalog-service/internal/models"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCatalogNotFound = errors.New("catalog not found")
	ErrSettingNotFound = errors.New("catalog product setting not found")
)

type CatalogRepository struct {
	db         *gorm.DB
	categories *CategoryRepository
}

// NewCatalogRepository takes the category repository so catalog writes can
// drop the cached storefront trees they affect
func NewCatalogRepository(db *gorm.DB, categories *CategoryRepository) *CatalogRepository {
	return &CatalogRepository{db: db, categories: categories}
}

func (r *CatalogRepository) invalidate(ctx context.Context, tenantID string) {
	if r.categories != nil {
		r.categories.InvalidateTenant(ctx, tenantID)
	}
}

// Create creates a catalog. Only one catalog per store can be the default.
func (r *CatalogRepository) Create(ctx context.Context, catalog *models.Catalog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if catalog.IsDefault {
			if err := clearDefault(tx, catalog.TenantID, catalog.StoreID); err != nil {
				return err
			}
		}
		return tx.Create(catalog).Error
	})
}

func clearDefault(tx *gorm.DB, tenantID string, storeID uuid.UUID) error {
	return tx.Model(&models.Catalog{}).
		Where("tenant_id = ? AND store_id = ? AND is_default = ?", tenantID, storeID, true).
		Update("is_default", false).Error
}

// GetByID retrieves a catalog with tenant isolation
func (r *CatalogRepository) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.Catalog, error) {
	var catalog models.Catalog
	err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&catalog).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCatalogNotFound
		}
		return nil, err
	}
	return &catalog, nil
}

// GetByAccessCode resolves the catalog a storefront customer unlocked
func (r *CatalogRepository) GetByAccessCode(ctx context.Context, tenantID, code string) (*models.Catalog, error) {
	var catalog models.Catalog
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND access_code = ? AND is_active = ?", tenantID, code, true).
		First(&catalog).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCatalogNotFound
		}
		return nil, err
	}
	return &catalog, nil
}

// List returns a store's catalogs, default first
func (r *CatalogRepository) List(ctx context.Context, tenantID string, storeID uuid.UUID) ([]models.Catalog, error) {
	var catalogs []models.Catalog
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND store_id = ?", tenantID, storeID).
		Order("is_default DESC, name ASC").
		Find(&catalogs).Error
	return catalogs, err
}

// Update saves a catalog with tenant isolation
func (r *CatalogRepository) Update(ctx context.Context, tenantID string, catalog *models.Catalog) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Catalog
		if err := tx.Where("id = ? AND tenant_id = ?", catalog.ID, tenantID).First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCatalogNotFound
			}
			return err
		}
		if catalog.IsDefault && !existing.IsDefault {
			if err := clearDefault(tx, tenantID, existing.StoreID); err != nil {
				return err
			}
		}
		catalog.TenantID = tenantID
		catalog.StoreID = existing.StoreID
		return tx.Save(catalog).Error
	})
	if err == nil {
		r.invalidate(ctx, tenantID)
	}
	return err
}

// Delete removes a catalog and its product settings
func (r *CatalogRepository) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&models.Catalog{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrCatalogNotFound
		}
		return tx.Where("catalog_id = ? AND tenant_id = ?", id, tenantID).Delete(&models.CatalogProductSetting{}).Error
	})
	if err == nil {
		r.invalidate(ctx, tenantID)
	}
	return err
}

// ListSettings returns every product setting of a catalog
func (r *CatalogRepository) ListSettings(ctx context.Context, tenantID string, catalogID uuid.UUID) ([]models.CatalogProductSetting, error) {
	var settings []models.CatalogProductSetting
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND catalog_id = ?", tenantID, catalogID).
		Order("created_at ASC").
		Find(&settings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog settings: %w", err)
	}
	return settings, nil
}

// UpsertSetting inserts or replaces the setting for (catalog, product) and
// returns the stored row with its server-assigned id
func (r *CatalogRepository) UpsertSetting(ctx context.Context, setting *models.CatalogProductSetting) (*models.CatalogProductSetting, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "catalog_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "markup_percent", "fixed_price", "updated_by_id", "updated_at"}),
	}).Create(setting).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert catalog setting: %w", err)
	}

	var stored models.CatalogProductSetting
	err = r.db.WithContext(ctx).
		Where("tenant_id = ? AND catalog_id = ? AND product_id = ?", setting.TenantID, setting.CatalogID, setting.ProductID).
		First(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("failed to reload catalog setting: %w", err)
	}
	r.invalidate(ctx, setting.TenantID)
	return &stored, nil
}

// DeleteSetting removes a product's override from a catalog
func (r *CatalogRepository) DeleteSetting(ctx context.Context, tenantID string, catalogID, productID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND catalog_id = ? AND product_id = ?", tenantID, catalogID, productID).
		Delete(&models.CatalogProductSetting{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSettingNotFound
	}
	r.invalidate(ctx, tenantID)
	return nil
}
