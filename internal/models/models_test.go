package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectivePrice(t *testing.T) {
	fixed, markup := 7.5, 20.0

	assert.Equal(t, 10.0, CatalogProductSetting{}.EffectivePrice(10))
	assert.InDelta(t, 12.0, CatalogProductSetting{MarkupPercent: &markup}.EffectivePrice(10), 1e-9)
	assert.Equal(t, 7.5, CatalogProductSetting{FixedPrice: &fixed, MarkupPercent: &markup}.EffectivePrice(10))
}

func TestProductStatusValid(t *testing.T) {
	assert.True(t, ProductStatusInStock.Valid())
	assert.True(t, ProductStatusHidden.Valid())
	assert.False(t, ProductStatus("").Valid())
	assert.False(t, ProductStatus("discontinued").Valid())
}

func TestNewPaginationInfo(t *testing.T) {
	p := NewPaginationInfo(2, 20, 45)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrevious)

	p = NewPaginationInfo(1, 20, 0)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNext)
	assert.False(t, p.HasPrevious)
}

func TestToTreeCategory(t *testing.T) {
	parent := uuid.New()
	c := Category{ID: uuid.New(), Name: "Tea", ParentID: &parent}

	tc := c.ToTreeCategory(3)
	assert.Equal(t, c.ID.String(), tc.ID)
	require.NotNil(t, tc.ParentID)
	assert.Equal(t, parent.String(), *tc.ParentID)
	assert.Equal(t, 3, tc.ProductCount)

	root := Category{ID: uuid.New(), Name: "Drinks"}.ToTreeCategory(0)
	assert.True(t, root.IsRoot())
}
