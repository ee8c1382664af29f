package services

import (
	"context"
	"errors"
	"testing"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCanonicalStore struct {
	mock.Mock
}

func (m *mockCanonicalStore) FindCanonicalByAlias(ctx context.Context, tenantID string, kind models.AliasKind, value string) (*models.CanonicalProduct, error) {
	args := m.Called(ctx, tenantID, kind, value)
	canonical, _ := args.Get(0).(*models.CanonicalProduct)
	return canonical, args.Error(1)
}

func (m *mockCanonicalStore) CreateCanonical(ctx context.Context, canonical *models.CanonicalProduct) error {
	return m.Called(ctx, canonical).Error(0)
}

func (m *mockCanonicalStore) AttachAlias(ctx context.Context, alias *models.ProductAlias) error {
	return m.Called(ctx, alias).Error(0)
}

func (m *mockCanonicalStore) SetCanonical(ctx context.Context, tenantID string, productID, canonicalID uuid.UUID) error {
	return m.Called(ctx, tenantID, productID, canonicalID).Error(0)
}

func strPtr(s string) *string {
	return &s
}

func TestNormalizeAlias(t *testing.T) {
	tests := []struct {
		name  string
		kind  models.AliasKind
		value string
		want  string
	}{
		{"name collapses whitespace", models.AliasName, "  Organic   Green TEA ", "organic green tea"},
		{"sku upper-cased", models.AliasSKU, " tea-001 ", "TEA-001"},
		{"sku drops inner spaces", models.AliasSKU, "tea 001", "TEA001"},
		{"barcode keeps alphanumerics", models.AliasBarcode, "4006-3810 0045", "400638100045"},
		{"blank", models.AliasName, "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAlias(tt.kind, tt.value))
		})
	}
}

func TestResolve_MatchesExistingAlias(t *testing.T) {
	ctx := context.Background()
	existing := &models.CanonicalProduct{ID: uuid.New(), TenantID: "tenant-1", Name: "Green Tea"}
	product := &models.Product{ID: uuid.New(), TenantID: "tenant-1", Name: "Green tea", SKU: strPtr("tea-001"), Barcode: strPtr("400638")}

	store := new(mockCanonicalStore)
	store.On("FindCanonicalByAlias", ctx, "tenant-1", models.AliasBarcode, "400638").
		Return(nil, repository.ErrCanonicalNotFound).Once()
	store.On("FindCanonicalByAlias", ctx, "tenant-1", models.AliasSKU, "TEA-001").
		Return(existing, nil).Once()
	store.On("AttachAlias", ctx, mock.MatchedBy(func(a *models.ProductAlias) bool {
		return a.CanonicalProductID == existing.ID
	})).Return(nil).Times(3)
	store.On("SetCanonical", ctx, "tenant-1", product.ID, existing.ID).Return(nil).Once()

	svc := NewCanonicalService(store, testLogger())
	canonical, created, err := svc.Resolve(ctx, product)
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, existing, canonical)
	require.NotNil(t, product.CanonicalProductID)
	assert.Equal(t, existing.ID, *product.CanonicalProductID)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "CreateCanonical", mock.Anything, mock.Anything)
}

func TestResolve_CreatesCanonicalWhenNothingMatches(t *testing.T) {
	ctx := context.Background()
	product := &models.Product{ID: uuid.New(), TenantID: "tenant-1", Name: " Black Tea "}

	store := new(mockCanonicalStore)
	store.On("FindCanonicalByAlias", ctx, "tenant-1", models.AliasName, "black tea").
		Return(nil, repository.ErrCanonicalNotFound).Once()
	store.On("CreateCanonical", ctx, mock.MatchedBy(func(c *models.CanonicalProduct) bool {
		return c.Name == "Black Tea" && c.TenantID == "tenant-1"
	})).Return(nil).Once()
	store.On("AttachAlias", ctx, mock.Anything).Return(nil).Once()
	store.On("SetCanonical", ctx, "tenant-1", product.ID, mock.Anything).Return(nil).Once()

	svc := NewCanonicalService(store, testLogger())
	canonical, created, err := svc.Resolve(ctx, product)
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, "Black Tea", canonical.Name)
	store.AssertExpectations(t)
}

func TestResolve_LookupErrorStops(t *testing.T) {
	ctx := context.Background()
	product := &models.Product{ID: uuid.New(), TenantID: "tenant-1", Name: "Tea"}

	store := new(mockCanonicalStore)
	store.On("FindCanonicalByAlias", ctx, "tenant-1", models.AliasName, "tea").
		Return(nil, errors.New("connection reset")).Once()

	svc := NewCanonicalService(store, testLogger())
	_, _, err := svc.Resolve(ctx, product)
	assert.ErrorContains(t, err, "connection reset")
	store.AssertNotCalled(t, "CreateCanonical", mock.Anything, mock.Anything)
}

func TestResolve_NoKeys(t *testing.T) {
	svc := NewCanonicalService(new(mockCanonicalStore), testLogger())
	_, _, err := svc.Resolve(context.Background(), &models.Product{ID: uuid.New(), Name: "  "})
	assert.Error(t, err)
}
