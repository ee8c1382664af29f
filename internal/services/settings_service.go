package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"catalog-service/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SettingsStore is the authoritative store of catalog product settings
type SettingsStore interface {
	ListSettings(ctx context.Context, tenantID string, catalogID uuid.UUID) ([]models.CatalogProductSetting, error)
	UpsertSetting(ctx context.Context, setting *models.CatalogProductSetting) (*models.CatalogProductSetting, error)
}

// SettingsService applies catalog product setting writes through a
// per-catalog SettingsStage: a write is staged, sent to the store, and merged
// only once the store returns the stored row. A failed write drops the stage
// and reloads the whole catalog from the store.
type SettingsService struct {
	store  SettingsStore
	maxAge time.Duration
	logger *logrus.Entry

	mu     sync.Mutex
	stages map[string]*stageEntry
}

// NewSettingsService creates the service. Stages older than maxAge are
// reloaded on read; zero disables the reload.
func NewSettingsService(store SettingsStore, maxAge time.Duration, logger *logrus.Logger) *SettingsService {
	return &SettingsService{
		store:  store,
		maxAge: maxAge,
		logger: logger.WithField("component", "settings-service"),
		stages: make(map[string]*stageEntry),
	}
}

func stageKey(tenantID string, catalogID uuid.UUID) string {
	return tenantID + ":" + catalogID.String()
}

// stageEntry is a stage plus the outcome of its first load. ready is closed
// once err is set.
type stageEntry struct {
	stage *SettingsStage
	ready chan struct{}
	err   error
}

// acquire returns the catalog's stage, loading it on first use. Concurrent
// callers wait for the first load instead of reading an empty stage. fresh
// reports whether this call did the first load.
func (s *SettingsService) acquire(ctx context.Context, tenantID string, catalogID uuid.UUID) (stage *SettingsStage, fresh bool, err error) {
	key := stageKey(tenantID, catalogID)

	s.mu.Lock()
	entry, ok := s.stages[key]
	if !ok {
		entry = &stageEntry{stage: NewSettingsStage(), ready: make(chan struct{})}
		s.stages[key] = entry
	}
	s.mu.Unlock()

	if !ok {
		entry.err = s.load(ctx, entry.stage, tenantID, catalogID)
		if entry.err != nil {
			s.mu.Lock()
			if s.stages[key] == entry {
				delete(s.stages, key)
			}
			s.mu.Unlock()
		}
		close(entry.ready)
		if entry.err != nil {
			return nil, false, entry.err
		}
		return entry.stage, true, nil
	}

	select {
	case <-entry.ready:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	if entry.err != nil {
		return nil, false, entry.err
	}
	return entry.stage, false, nil
}

func (s *SettingsService) stage(ctx context.Context, tenantID string, catalogID uuid.UUID) (*SettingsStage, error) {
	stage, fresh, err := s.acquire(ctx, tenantID, catalogID)
	if err != nil {
		return nil, err
	}
	if !fresh && s.maxAge > 0 && time.Since(stage.LoadedAt()) > s.maxAge && stage.Pending() == 0 {
		if err := s.load(ctx, stage, tenantID, catalogID); err != nil {
			return nil, err
		}
	}
	return stage, nil
}

func (s *SettingsService) load(ctx context.Context, stage *SettingsStage, tenantID string, catalogID uuid.UUID) error {
	settings, err := s.store.ListSettings(ctx, tenantID, catalogID)
	if err != nil {
		return err
	}
	stage.Load(settings)
	return nil
}

// Stages returns the number of catalogs with a cached stage
func (s *SettingsService) Stages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stages)
}

// List returns the catalog's settings, including writes still in flight
func (s *SettingsService) List(ctx context.Context, tenantID string, catalogID uuid.UUID) ([]models.CatalogProductSetting, error) {
	stage, err := s.stage(ctx, tenantID, catalogID)
	if err != nil {
		return nil, err
	}
	return stage.View(), nil
}

// UpsertResult is the outcome of one write
type UpsertResult struct {
	CorrelationID string
	Setting       *models.CatalogProductSetting
	Resynced      bool
}

// Upsert writes one setting. On store failure the error is returned with
// Resynced set once the catalog has been reloaded.
func (s *SettingsService) Upsert(ctx context.Context, tenantID string, catalogID uuid.UUID, userID string, req models.UpsertSettingRequest) (*UpsertResult, error) {
	if !req.Status.Valid() {
		return nil, fmt.Errorf("invalid product status %q", req.Status)
	}

	stage, err := s.stage(ctx, tenantID, catalogID)
	if err != nil {
		return nil, err
	}

	setting := models.CatalogProductSetting{
		TenantID:      tenantID,
		CatalogID:     catalogID,
		ProductID:     req.ProductID,
		Status:        req.Status,
		MarkupPercent: req.MarkupPercent,
		FixedPrice:    req.FixedPrice,
		UpdatedByID:   userID,
	}
	if err := stage.Stage(req.CorrelationID, setting); err != nil {
		return nil, err
	}

	result := &UpsertResult{CorrelationID: req.CorrelationID}
	stored, err := s.store.UpsertSetting(ctx, &setting)
	if err != nil {
		stage.Discard(req.CorrelationID)
		log := s.logger.WithFields(logrus.Fields{
			"tenant_id":      tenantID,
			"catalog_id":     catalogID.String(),
			"correlation_id": req.CorrelationID,
		})
		log.WithError(err).Warn("Catalog setting write failed, resynchronizing catalog")
		if resyncErr := s.Resync(ctx, tenantID, catalogID); resyncErr != nil {
			log.WithError(resyncErr).Error("Catalog resync failed")
		} else {
			result.Resynced = true
		}
		return result, err
	}

	if err := stage.Acknowledge(req.CorrelationID, *stored); err != nil {
		// The stage was reloaded while the write was in flight; the reload
		// may predate the write, so reload again.
		if resyncErr := s.Resync(ctx, tenantID, catalogID); resyncErr == nil {
			result.Resynced = true
		}
	}
	result.Setting = stored
	return result, nil
}

// Resync reloads a catalog's settings from the store, dropping staged writes
func (s *SettingsService) Resync(ctx context.Context, tenantID string, catalogID uuid.UUID) error {
	stage, fresh, err := s.acquire(ctx, tenantID, catalogID)
	if err != nil || fresh {
		return err
	}
	return s.load(ctx, stage, tenantID, catalogID)
}

// Forget drops the stage of a catalog, e.g. after the catalog is deleted
func (s *SettingsService) Forget(tenantID string, catalogID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stages, stageKey(tenantID, catalogID))
}
