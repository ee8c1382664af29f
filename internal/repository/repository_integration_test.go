//go:build integration

package repository

import (
	"context"
	"os"
	"testing"

	"catalog-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// RepositorySuite runs the repositories against a real Postgres
type RepositorySuite struct {
	suite.Suite
	db         *gorm.DB
	categories *CategoryRepository
	catalogs   *CatalogRepository
	products   *ProductRepository
	carts      *CartRepository
	tenantID   string
	storeID    uuid.UUID
	ctx        context.Context
}

func (s *RepositorySuite) SetupSuite() {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=postgres dbname=catalog_service_test port=5432 sslmode=disable"
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		s.T().Skipf("database not available: %v", err)
	}
	s.db = db

	err = s.db.AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.CanonicalProduct{},
		&models.ProductAlias{},
		&models.Catalog{},
		&models.CatalogProductSetting{},
		&models.CartItem{},
	)
	s.Require().NoError(err)

	s.categories = NewCategoryRepository(s.db, nil)
	s.catalogs = NewCatalogRepository(s.db, s.categories)
	s.products = NewProductRepository(s.db, s.categories)
	s.carts = NewCartRepository(s.db)
	s.ctx = context.Background()
}

func (s *RepositorySuite) SetupTest() {
	s.tenantID = "test-tenant-" + uuid.New().String()[:8]
	s.storeID = uuid.New()
}

func (s *RepositorySuite) TearDownTest() {
	for _, table := range []string{"cart_items", "catalog_product_settings", "catalogs", "product_aliases", "canonical_products", "products", "categories"} {
		s.db.Exec("DELETE FROM "+table+" WHERE tenant_id = ?", s.tenantID)
	}
}

func (s *RepositorySuite) newCategory(name string, parent *uuid.UUID) *models.Category {
	c := &models.Category{
		ID:       uuid.New(),
		TenantID: s.tenantID,
		StoreID:  s.storeID,
		Name:     name,
		Slug:     "slug-" + uuid.New().String()[:8],
		ParentID: parent,
		Position: 1,
		IsActive: true,
	}
	s.Require().NoError(s.categories.Create(s.ctx, c))
	return c
}

func (s *RepositorySuite) TestCreateRejectsParentFromOtherStore() {
	parent := s.newCategory("Drinks", nil)
	child := &models.Category{ID: uuid.New(), TenantID: s.tenantID, StoreID: uuid.New(), Name: "Tea", Slug: "tea", ParentID: &parent.ID}

	err := s.categories.Create(s.ctx, child)
	s.ErrorIs(err, ErrInvalidParent)
}

func (s *RepositorySuite) TestUpdateRejectsCycle() {
	root := s.newCategory("Drinks", nil)
	child := s.newCategory("Tea", &root.ID)

	root.ParentID = &child.ID
	err := s.categories.Update(s.ctx, s.tenantID, root)
	s.ErrorIs(err, ErrParentCycle)
}

func (s *RepositorySuite) TestDeleteMovesChildrenUp() {
	root := s.newCategory("Drinks", nil)
	middle := s.newCategory("Hot drinks", &root.ID)
	leaf := s.newCategory("Tea", &middle.ID)

	s.Require().NoError(s.categories.Delete(s.ctx, s.tenantID, middle.ID.String()))

	reloaded, err := s.categories.GetByID(s.ctx, s.tenantID, leaf.ID.String())
	s.Require().NoError(err)
	s.Require().NotNil(reloaded.ParentID)
	s.Equal(root.ID, *reloaded.ParentID)
}

func (s *RepositorySuite) TestBulkDeleteMovesChildrenUp() {
	root := s.newCategory("Drinks", nil)
	middle := s.newCategory("Hot drinks", &root.ID)
	leaf := s.newCategory("Tea", &middle.ID)
	sibling := s.newCategory("Coffee", &middle.ID)

	deleted, failed, err := s.categories.BulkDelete(s.ctx, s.tenantID, []string{middle.ID.String(), uuid.NewString()})
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)
	s.Len(failed, 1)

	for _, id := range []uuid.UUID{leaf.ID, sibling.ID} {
		reloaded, err := s.categories.GetByID(s.ctx, s.tenantID, id.String())
		s.Require().NoError(err)
		s.Require().NotNil(reloaded.ParentID)
		s.Equal(root.ID, *reloaded.ParentID)
	}

	rows, err := s.categories.ListForTree(s.ctx, s.tenantID, s.storeID, nil)
	s.Require().NoError(err)
	s.Len(rows, 3)
}

func (s *RepositorySuite) TestSlugOfDeletedCategoryCanBeReused() {
	shoes := s.newCategory("Shoes", nil)
	s.Require().NoError(s.categories.Delete(s.ctx, s.tenantID, shoes.ID.String()))

	again := &models.Category{ID: uuid.New(), TenantID: s.tenantID, StoreID: s.storeID, Name: "Shoes", Slug: shoes.Slug, Position: 1, IsActive: true}
	s.NoError(s.categories.Create(s.ctx, again))
}

func (s *RepositorySuite) TestDuplicateSlugOnCreateAndUpdate() {
	shoes := s.newCategory("Shoes", nil)
	boots := s.newCategory("Boots", nil)

	dup := &models.Category{ID: uuid.New(), TenantID: s.tenantID, StoreID: s.storeID, Name: "Shoes", Slug: shoes.Slug, Position: 1, IsActive: true}
	s.ErrorIs(s.categories.Create(s.ctx, dup), ErrDuplicateSlug)

	boots.Slug = shoes.Slug
	s.ErrorIs(s.categories.Update(s.ctx, s.tenantID, boots), ErrDuplicateSlug)
}

func (s *RepositorySuite) TestBulkCreateContinuesAfterConflict() {
	existing := s.newCategory("Shoes", nil)
	batch := []*models.Category{
		{ID: uuid.New(), StoreID: s.storeID, Name: "Hats", Slug: "hats", Position: 1, IsActive: true},
		{ID: uuid.New(), StoreID: s.storeID, Name: "Shoes", Slug: existing.Slug, Position: 1, IsActive: true},
		{ID: uuid.New(), StoreID: s.storeID, Name: "Scarves", Slug: "scarves", Position: 1, IsActive: true},
	}

	result, err := s.categories.BulkCreate(s.ctx, s.tenantID, batch)
	s.Require().NoError(err)
	s.Equal(2, result.Success)
	s.Require().Len(result.Errors, 1)
	s.Equal(1, result.Errors[0].Index)
	s.Equal("DUPLICATE_SLUG", result.Errors[0].Code)

	for _, c := range []*models.Category{batch[0], batch[2]} {
		_, err := s.categories.GetBySlug(s.ctx, s.tenantID, s.storeID, c.Slug)
		s.NoError(err)
	}
}

func (s *RepositorySuite) TestListForTreeCountsVisibleProducts() {
	tea := s.newCategory("Tea", nil)
	visible := &models.Product{ID: uuid.New(), TenantID: s.tenantID, StoreID: s.storeID, CategoryID: &tea.ID, Name: "Green tea", Price: 4, IsActive: true}
	hidden := &models.Product{ID: uuid.New(), TenantID: s.tenantID, StoreID: s.storeID, CategoryID: &tea.ID, Name: "Black tea", Price: 3, IsActive: true}
	s.Require().NoError(s.products.Create(s.ctx, visible))
	s.Require().NoError(s.products.Create(s.ctx, hidden))

	catalog := &models.Catalog{ID: uuid.New(), TenantID: s.tenantID, StoreID: s.storeID, Name: "Trade", IsActive: true}
	s.Require().NoError(s.catalogs.Create(s.ctx, catalog))
	_, err := s.catalogs.UpsertSetting(s.ctx, &models.CatalogProductSetting{
		TenantID: s.tenantID, CatalogID: catalog.ID, ProductID: hidden.ID, Status: models.ProductStatusHidden,
	})
	s.Require().NoError(err)

	rows, err := s.categories.ListForTree(s.ctx, s.tenantID, s.storeID, nil)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(2, rows[0].ProductCount)

	rows, err = s.categories.ListForTree(s.ctx, s.tenantID, s.storeID, &catalog.ID)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(1, rows[0].ProductCount)
}

func (s *RepositorySuite) TestUpsertSettingKeepsOneRowPerProduct() {
	catalog := &models.Catalog{ID: uuid.New(), TenantID: s.tenantID, StoreID: s.storeID, Name: "Trade", IsActive: true}
	s.Require().NoError(s.catalogs.Create(s.ctx, catalog))
	productID := uuid.New()

	first, err := s.catalogs.UpsertSetting(s.ctx, &models.CatalogProductSetting{
		TenantID: s.tenantID, CatalogID: catalog.ID, ProductID: productID, Status: models.ProductStatusInStock,
	})
	s.Require().NoError(err)
	markup := 25.0
	second, err := s.catalogs.UpsertSetting(s.ctx, &models.CatalogProductSetting{
		TenantID: s.tenantID, CatalogID: catalog.ID, ProductID: productID, Status: models.ProductStatusOutOfStock, MarkupPercent: &markup,
	})
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Equal(models.ProductStatusOutOfStock, second.Status)

	settings, err := s.catalogs.ListSettings(s.ctx, s.tenantID, catalog.ID)
	s.Require().NoError(err)
	s.Len(settings, 1)

	s.Require().NoError(s.catalogs.DeleteSetting(s.ctx, s.tenantID, catalog.ID, productID))
	s.ErrorIs(s.catalogs.DeleteSetting(s.ctx, s.tenantID, catalog.ID, productID), ErrSettingNotFound)
}

func (s *RepositorySuite) TestCartAddItemMergesLines() {
	productID := uuid.New()
	add := func(qty int) *models.CartItem {
		item, err := s.carts.AddItem(s.ctx, &models.CartItem{
			ID: uuid.New(), TenantID: s.tenantID, CartID: "cart-1", ProductID: productID, Quantity: qty, UnitPrice: 2,
		})
		s.Require().NoError(err)
		return item
	}

	first := add(1)
	second := add(2)

	s.Equal(first.ID, second.ID)
	s.Equal(3, second.Quantity)

	items, err := s.carts.ListItems(s.ctx, s.tenantID, "cart-1")
	s.Require().NoError(err)
	s.Len(items, 1)
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}
