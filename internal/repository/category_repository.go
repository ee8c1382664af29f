package repository

import (
	"catalog-service/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// uniqueViolation is the postgres error code for a unique index conflict
const uniqueViolation = "23505"

// Cache TTL constants
const (
	CategoryCacheTTL     = 30 * time.Minute // Categories rarely change
	CategoryListCacheTTL = 15 * time.Minute // Category lists
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrInvalidParent    = errors.New("parent category not found in store")
	ErrParentCycle      = errors.New("category cannot be moved below its own descendant")
	ErrDuplicateSlug    = errors.New("category with this slug already exists in store")
)

// translateWriteError maps unique index conflicts on categories to ErrDuplicateSlug
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateSlug
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateSlug
	}
	return err
}

type CategoryRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewCategoryRepository(db *gorm.DB, redis *redis.Client) *CategoryRepository {
	return &CategoryRepository{
		db:    db,
		redis: redis,
	}
}

func categoryKey(tenantID, id string) string {
	return fmt.Sprintf("shopforge:catalog:category:%s:%s", tenantID, id)
}

func categoryListPattern(tenantID string) string {
	return fmt.Sprintf("shopforge:catalog:list:%s:*", tenantID)
}

// TreePattern matches every cached tree of a tenant
func TreePattern(tenantID string) string {
	return fmt.Sprintf("shopforge:catalog:tree:%s:*", tenantID)
}

// invalidateCategoryCaches invalidates all caches related to categories for a tenant,
// including the rendered storefront trees
func (r *CategoryRepository) invalidateCategoryCaches(ctx context.Context, tenantID string, categoryID *string) {
	if r.redis == nil {
		return
	}

	if categoryID != nil {
		r.redis.Del(ctx, categoryKey(tenantID, *categoryID))
	}
	for _, pattern := range []string{categoryListPattern(tenantID), TreePattern(tenantID)} {
		deleteByPattern(ctx, r.redis, pattern)
	}
}

func deleteByPattern(ctx context.Context, client *redis.Client, pattern string) {
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateTenant drops every cached category view of a tenant. Product and
// catalog writes change product counts, so they call this too.
func (r *CategoryRepository) InvalidateTenant(ctx context.Context, tenantID string) {
	r.invalidateCategoryCaches(ctx, tenantID, nil)
}

// Create creates a new category after checking that its parent lives in the same store
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.ParentID != nil {
		if err := r.checkParent(ctx, r.db, category.TenantID, category.StoreID, *category.ParentID); err != nil {
			return err
		}
	}
	err := translateWriteError(r.db.WithContext(ctx).Create(category).Error)
	if err == nil {
		r.invalidateCategoryCaches(ctx, category.TenantID, nil)
	}
	return err
}

func (r *CategoryRepository) checkParent(ctx context.Context, db *gorm.DB, tenantID string, storeID, parentID uuid.UUID) error {
	var count int64
	err := db.WithContext(ctx).Model(&models.Category{}).
		Where("id = ? AND tenant_id = ? AND store_id = ?", parentID, tenantID, storeID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to validate parent category: %w", err)
	}
	if count == 0 {
		return ErrInvalidParent
	}
	return nil
}

// GetByID retrieves a category by ID with tenant isolation and caching
// SECURITY: Always requires tenantID to prevent cross-tenant access
func (r *CategoryRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Category, error) {
	cacheKey := categoryKey(tenantID, id)

	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var category models.Category
			if err := json.Unmarshal([]byte(val), &category); err == nil {
				return &category, nil
			}
		}
	}

	var category models.Category
	err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	if r.redis != nil {
		data, err := json.Marshal(category)
		if err == nil {
			r.redis.Set(ctx, cacheKey, data, CategoryCacheTTL)
		}
	}

	return &category, nil
}

type categoriesResult struct {
	Categories []models.Category `json:"categories"`
	Total      int64             `json:"total"`
}

// GetAll retrieves a page of a store's categories with tenant isolation and caching
func (r *CategoryRepository) GetAll(ctx context.Context, tenantID string, storeID *uuid.UUID, limit, offset int) ([]models.Category, int64, error) {
	store := "all"
	if storeID != nil {
		store = storeID.String()
	}
	cacheKey := fmt.Sprintf("shopforge:catalog:list:%s:%s:%d:%d", tenantID, store, limit, offset)

	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var result categoriesResult
			if err := json.Unmarshal([]byte(val), &result); err == nil {
				return result.Categories, result.Total, nil
			}
		}
	}

	var categories []models.Category
	var total int64
	query := r.db.WithContext(ctx).Model(&models.Category{}).Where("tenant_id = ?", tenantID)
	if storeID != nil {
		query = query.Where("store_id = ?", *storeID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("position ASC, name ASC").Limit(limit).Offset(offset).Find(&categories).Error
	if err != nil {
		return nil, 0, err
	}

	if r.redis != nil {
		data, err := json.Marshal(categoriesResult{Categories: categories, Total: total})
		if err == nil {
			r.redis.Set(ctx, cacheKey, data, CategoryListCacheTTL)
		}
	}

	return categories, total, nil
}

// ListForTree returns every active category of a store, in display order,
// with the number of active products tagged directly with it. With a catalog
// id, products hidden in that catalog are not counted.
func (r *CategoryRepository) ListForTree(ctx context.Context, tenantID string, storeID uuid.UUID, catalogID *uuid.UUID) ([]models.CategoryWithCount, error) {
	counts := r.db.Model(&models.Product{}).
		Select("category_id, COUNT(*) AS product_count").
		Where("tenant_id = ? AND store_id = ? AND is_active = ?", tenantID, storeID, true).
		Where("category_id IS NOT NULL").
		Group("category_id")
	if catalogID != nil {
		counts = counts.Where(
			"NOT EXISTS (SELECT 1 FROM catalog_product_settings s WHERE s.product_id = products.id AND s.catalog_id = ? AND s.status = ?)",
			*catalogID, models.ProductStatusHidden,
		)
	}

	var rows []models.CategoryWithCount
	err := r.db.WithContext(ctx).Model(&models.Category{}).
		Select("categories.*, COALESCE(pc.product_count, 0) AS product_count").
		Joins("LEFT JOIN (?) AS pc ON pc.category_id = categories.id", counts).
		Where("categories.tenant_id = ? AND categories.store_id = ? AND categories.is_active = ?", tenantID, storeID, true).
		Order("categories.position ASC, categories.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list categories for tree: %w", err)
	}
	return rows, nil
}

// Update updates a category with tenant isolation
// SECURITY: Always requires tenantID to prevent cross-tenant updates
func (r *CategoryRepository) Update(ctx context.Context, tenantID string, category *models.Category) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Category
		err := tx.Where("id = ? AND tenant_id = ?", category.ID, tenantID).First(&existing).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCategoryNotFound
			}
			return err
		}

		if category.ParentID != nil {
			if err := r.checkParent(ctx, tx, tenantID, existing.StoreID, *category.ParentID); err != nil {
				return err
			}
			if err := r.checkNoCycle(tx, tenantID, category.ID, *category.ParentID); err != nil {
				return err
			}
		}

		if category.Slug != existing.Slug {
			var taken int64
			if err := tx.Model(&models.Category{}).
				Where("tenant_id = ? AND store_id = ? AND slug = ? AND id <> ?", tenantID, existing.StoreID, category.Slug, existing.ID).
				Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 {
				return ErrDuplicateSlug
			}
		}

		// Ensure tenant and store cannot be changed
		category.TenantID = tenantID
		category.StoreID = existing.StoreID
		return translateWriteError(tx.Save(category).Error)
	})
	if err == nil {
		categoryID := category.ID.String()
		r.invalidateCategoryCaches(ctx, tenantID, &categoryID)
	}
	return err
}

// checkNoCycle walks up from the new parent and fails if it meets id
func (r *CategoryRepository) checkNoCycle(tx *gorm.DB, tenantID string, id, parentID uuid.UUID) error {
	seen := map[uuid.UUID]bool{}
	current := &parentID
	for current != nil {
		if *current == id {
			return ErrParentCycle
		}
		if seen[*current] {
			return nil
		}
		seen[*current] = true

		var parent models.Category
		err := tx.Select("id", "parent_id").Where("id = ? AND tenant_id = ?", *current, tenantID).First(&parent).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		current = parent.ParentID
	}
	return nil
}

// Delete deletes a category with tenant isolation. Direct children are moved
// up to the deleted category's parent so they stay reachable in the tree.
// SECURITY: Always requires tenantID to prevent cross-tenant deletes
func (r *CategoryRepository) Delete(ctx context.Context, tenantID, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteAndReparent(tx, tenantID, id)
	})
	if err != nil {
		return err
	}
	r.invalidateCategoryCaches(ctx, tenantID, &id)
	return nil
}

// deleteAndReparent deletes one category and moves its direct children up to
// its parent
func deleteAndReparent(tx *gorm.DB, tenantID, id string) error {
	var existing models.Category
	if err := tx.Where("id = ? AND tenant_id = ?", id, tenantID).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}
	if err := tx.Model(&models.Category{}).
		Where("parent_id = ? AND tenant_id = ?", existing.ID, tenantID).
		Update("parent_id", existing.ParentID).Error; err != nil {
		return err
	}
	return tx.Delete(&existing).Error
}

// ============================================================================
// Bulk Operations
// ============================================================================

// BulkCreateResult represents the result of a bulk create operation
type BulkCreateResult struct {
	Created []*models.Category
	Errors  []BulkCreateError
	Total   int
	Success int
	Failed  int
}

// BulkCreateError represents an error for a single item in bulk create
type BulkCreateError struct {
	Index      int
	ExternalID *string
	Code       string
	Message    string
}

// BulkCreate creates multiple categories in a transaction with tenant isolation.
// Items may reference parents created earlier in the same batch.
// SECURITY: All categories are assigned the provided tenantID regardless of request data
func (r *CategoryRepository) BulkCreate(ctx context.Context, tenantID string, categories []*models.Category) (*BulkCreateResult, error) {
	result := &BulkCreateResult{
		Created: make([]*models.Category, 0, len(categories)),
		Errors:  make([]BulkCreateError, 0),
		Total:   len(categories),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, category := range categories {
			// SECURITY: Always enforce tenant isolation
			category.TenantID = tenantID

			var existingCount int64
			if err := tx.Model(&models.Category{}).
				Where("tenant_id = ? AND store_id = ? AND slug = ?", tenantID, category.StoreID, category.Slug).
				Count(&existingCount).Error; err != nil {
				result.Errors = append(result.Errors, BulkCreateError{
					Index:   i,
					Code:    "DB_ERROR",
					Message: "Failed to check for duplicate slug",
				})
				continue
			}

			if existingCount > 0 {
				result.Errors = append(result.Errors, BulkCreateError{
					Index:   i,
					Code:    "DUPLICATE_SLUG",
					Message: ErrDuplicateSlug.Error(),
				})
				continue
			}

			if category.ParentID != nil {
				if err := r.checkParent(ctx, tx, tenantID, category.StoreID, *category.ParentID); err != nil {
					code := "DB_ERROR"
					if errors.Is(err, ErrInvalidParent) {
						code = "INVALID_PARENT"
					}
					result.Errors = append(result.Errors, BulkCreateError{
						Index:   i,
						Code:    code,
						Message: err.Error(),
					})
					continue
				}
			}

			// A savepoint per row keeps a failed insert from aborting the batch
			err := tx.Transaction(func(row *gorm.DB) error {
				return translateWriteError(row.Create(category).Error)
			})
			if err != nil {
				code := "CREATE_FAILED"
				if errors.Is(err, ErrDuplicateSlug) {
					code = "DUPLICATE_SLUG"
				}
				result.Errors = append(result.Errors, BulkCreateError{
					Index:   i,
					Code:    code,
					Message: err.Error(),
				})
				continue
			}

			result.Created = append(result.Created, category)
		}

		result.Success = len(result.Created)
		result.Failed = len(result.Errors)

		// If all failed, rollback the transaction
		if result.Success == 0 && result.Total > 0 {
			return errors.New("all categories failed to create")
		}

		return nil
	})

	if err != nil && result.Success == 0 {
		return result, err
	}

	if result.Success > 0 {
		r.invalidateCategoryCaches(ctx, tenantID, nil)
	}

	return result, nil
}

// BulkDelete deletes multiple categories by IDs with tenant isolation. As with
// Delete, children of a deleted category move up to its parent.
// SECURITY: Only deletes categories belonging to the specified tenant
func (r *CategoryRepository) BulkDelete(ctx context.Context, tenantID string, ids []string) (int64, []string, error) {
	failedIDs := make([]string, 0)
	var totalDeleted int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			err := tx.Transaction(func(row *gorm.DB) error {
				return deleteAndReparent(row, tenantID, id)
			})
			if err != nil {
				failedIDs = append(failedIDs, id)
				continue
			}
			totalDeleted++
		}
		return nil
	})

	if totalDeleted > 0 {
		r.invalidateCategoryCaches(ctx, tenantID, nil)
	}

	return totalDeleted, failedIDs, err
}

// GetBySlug retrieves a category by slug within a store
func (r *CategoryRepository) GetBySlug(ctx context.Context, tenantID string, storeID uuid.UUID, slug string) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND store_id = ? AND slug = ?", tenantID, storeID, slug).
		First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}
