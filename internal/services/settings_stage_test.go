package services

import (
	"testing"

	"catalog-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setting(productID uuid.UUID, status models.ProductStatus) models.CatalogProductSetting {
	return models.CatalogProductSetting{ProductID: productID, Status: status}
}

func TestSettingsStage_StagedWritesOverlayConfirmed(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	stage := NewSettingsStage()
	stage.Load([]models.CatalogProductSetting{setting(p1, models.ProductStatusInStock)})

	require.NoError(t, stage.Stage("c-1", setting(p1, models.ProductStatusHidden)))
	require.NoError(t, stage.Stage("c-2", setting(p2, models.ProductStatusOutOfStock)))

	view := stage.View()
	require.Len(t, view, 2)
	byProduct := map[uuid.UUID]models.ProductStatus{}
	for _, s := range view {
		byProduct[s.ProductID] = s.Status
	}
	assert.Equal(t, models.ProductStatusHidden, byProduct[p1])
	assert.Equal(t, models.ProductStatusOutOfStock, byProduct[p2])
	assert.Equal(t, 2, stage.Pending())
}

func TestSettingsStage_LatestStagedWriteWins(t *testing.T) {
	p := uuid.New()
	stage := NewSettingsStage()

	require.NoError(t, stage.Stage("c-1", setting(p, models.ProductStatusHidden)))
	require.NoError(t, stage.Stage("c-2", setting(p, models.ProductStatusOutOfStock)))

	view := stage.View()
	require.Len(t, view, 1)
	assert.Equal(t, models.ProductStatusOutOfStock, view[0].Status)
}

func TestSettingsStage_DuplicateCorrelation(t *testing.T) {
	stage := NewSettingsStage()
	require.NoError(t, stage.Stage("c-1", setting(uuid.New(), models.ProductStatusHidden)))

	err := stage.Stage("c-1", setting(uuid.New(), models.ProductStatusHidden))
	assert.ErrorIs(t, err, ErrDuplicateCorrelation)
	assert.Equal(t, 1, stage.Pending())
}

func TestSettingsStage_AcknowledgeMergesStoredRow(t *testing.T) {
	p := uuid.New()
	stage := NewSettingsStage()
	require.NoError(t, stage.Stage("c-1", setting(p, models.ProductStatusHidden)))

	stored := setting(p, models.ProductStatusHidden)
	stored.ID = uuid.New()
	require.NoError(t, stage.Acknowledge("c-1", stored))

	assert.Equal(t, 0, stage.Pending())
	view := stage.View()
	require.Len(t, view, 1)
	assert.Equal(t, stored.ID, view[0].ID)

	assert.ErrorIs(t, stage.Acknowledge("c-1", stored), ErrUnknownCorrelation)
}

func TestSettingsStage_DiscardRestoresConfirmed(t *testing.T) {
	p := uuid.New()
	stage := NewSettingsStage()
	stage.Load([]models.CatalogProductSetting{setting(p, models.ProductStatusInStock)})
	require.NoError(t, stage.Stage("c-1", setting(p, models.ProductStatusHidden)))

	stage.Discard("c-1")

	view := stage.View()
	require.Len(t, view, 1)
	assert.Equal(t, models.ProductStatusInStock, view[0].Status)
	assert.Equal(t, 0, stage.Pending())
}

func TestSettingsStage_LoadDropsStagedWrites(t *testing.T) {
	stage := NewSettingsStage()
	assert.True(t, stage.LoadedAt().IsZero())
	require.NoError(t, stage.Stage("c-1", setting(uuid.New(), models.ProductStatusHidden)))

	stage.Load(nil)

	assert.Equal(t, 0, stage.Pending())
	assert.Empty(t, stage.View())
	assert.False(t, stage.LoadedAt().IsZero())
}
