package services

import (
	"errors"
	"sort"
	"sync"
	"time"

	"catalog-service/internal/models"

	"github.com/google/uuid"
)

var (
	ErrDuplicateCorrelation = errors.New("correlation id is already staged")
	ErrUnknownCorrelation   = errors.New("correlation id is not staged")
)

type stagedWrite struct {
	setting  models.CatalogProductSetting
	stagedAt time.Time
	seq      int
}

// SettingsStage holds the catalog product settings of one catalog: the
// acknowledged rows, plus writes staged under a client correlation id that
// the backing store has not confirmed yet. Staged writes only reach the
// acknowledged set through Acknowledge.
type SettingsStage struct {
	mu        sync.Mutex
	confirmed map[uuid.UUID]models.CatalogProductSetting
	pending   map[string]stagedWrite
	seq       int
	loadedAt  time.Time
}

func NewSettingsStage() *SettingsStage {
	return &SettingsStage{
		confirmed: make(map[uuid.UUID]models.CatalogProductSetting),
		pending:   make(map[string]stagedWrite),
	}
}

// Load replaces the acknowledged set with settings and drops staged writes
func (s *SettingsStage) Load(settings []models.CatalogProductSetting) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.confirmed = make(map[uuid.UUID]models.CatalogProductSetting, len(settings))
	for _, setting := range settings {
		s.confirmed[setting.ProductID] = setting
	}
	s.pending = make(map[string]stagedWrite)
	s.loadedAt = time.Now()
}

// LoadedAt returns when the acknowledged set was last loaded
func (s *SettingsStage) LoadedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadedAt
}

// Stage records an unconfirmed write
func (s *SettingsStage) Stage(correlationID string, setting models.CatalogProductSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pending[correlationID]; exists {
		return ErrDuplicateCorrelation
	}
	s.seq++
	s.pending[correlationID] = stagedWrite{setting: setting, stagedAt: time.Now(), seq: s.seq}
	return nil
}

// Acknowledge merges the stored row returned by the backing store into the
// acknowledged set and forgets the staged write
func (s *SettingsStage) Acknowledge(correlationID string, stored models.CatalogProductSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pending[correlationID]; !exists {
		return ErrUnknownCorrelation
	}
	delete(s.pending, correlationID)
	s.confirmed[stored.ProductID] = stored
	return nil
}

// Discard forgets a staged write without applying it
func (s *SettingsStage) Discard(correlationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, correlationID)
}

// Pending returns the number of unconfirmed writes
func (s *SettingsStage) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// View returns the acknowledged settings with staged writes laid over them,
// the most recently staged write per product winning. Rows are ordered by
// product id.
func (s *SettingsStage) View() []models.CatalogProductSetting {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[uuid.UUID]models.CatalogProductSetting, len(s.confirmed)+len(s.pending))
	for productID, setting := range s.confirmed {
		merged[productID] = setting
	}

	staged := make([]stagedWrite, 0, len(s.pending))
	for _, w := range s.pending {
		staged = append(staged, w)
	}
	sort.Slice(staged, func(i, j int) bool { return staged[i].seq < staged[j].seq })
	for _, w := range staged {
		merged[w.setting.ProductID] = w.setting
	}

	out := make([]models.CatalogProductSetting, 0, len(merged))
	for _, setting := range merged {
		out = append(out, setting)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductID.String() < out[j].ProductID.String()
	})
	return out
}
