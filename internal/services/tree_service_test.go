package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"catalog-service/internal/cache"
	"catalog-service/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeSource struct {
	rows  []models.CategoryWithCount
	err   error
	calls int
}

func (f *fakeSource) ListForTree(_ context.Context, _ string, _ uuid.UUID, _ *uuid.UUID) ([]models.CategoryWithCount, error) {
	f.calls++
	return f.rows, f.err
}

type mapCache struct {
	entries map[string]cache.Entry
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]cache.Entry)}
}

func (m *mapCache) Get(_ context.Context, key string) (*cache.Entry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	return &entry, true
}

func (m *mapCache) Set(_ context.Context, key string, entry cache.Entry) error {
	m.entries[key] = entry
	return nil
}

func row(id uuid.UUID, parent *uuid.UUID, count int) models.CategoryWithCount {
	return models.CategoryWithCount{
		Category:     models.Category{ID: id, Name: "Category " + id.String()[:8], ParentID: parent},
		ProductCount: count,
	}
}

// fixture: root -> (full -> leaf, empty)
type fixture struct {
	root, full, leaf, empty uuid.UUID
	source                  *fakeSource
}

func newFixture() *fixture {
	f := &fixture{root: uuid.New(), full: uuid.New(), leaf: uuid.New(), empty: uuid.New()}
	f.source = &fakeSource{rows: []models.CategoryWithCount{
		row(f.root, nil, 0),
		row(f.full, &f.root, 2),
		row(f.leaf, &f.full, 1),
		row(f.empty, &f.root, 0),
	}}
	return f
}

func (f *fixture) query(mode Mode) TreeQuery {
	return TreeQuery{TenantID: "tenant-1", StoreID: uuid.New(), Mode: mode}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeRetail, false},
		{"retail", ModeRetail, false},
		{" Wholesale ", ModeWholesale, false},
		{"SHOWCASE", ModeShowcase, false},
		{"outlet", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStorefrontTree_RetailPrunesEmptyBranches(t *testing.T) {
	f := newFixture()
	svc := NewTreeService(f.source, nil, testLogger())

	result, err := svc.StorefrontTree(context.Background(), f.query(ModeRetail))
	require.NoError(t, err)

	require.Len(t, result.Nodes, 1)
	root := result.Nodes[0]
	assert.Equal(t, f.root.String(), root.ID)
	require.Len(t, root.Children, 1)
	assert.Equal(t, f.full.String(), root.Children[0].ID)
	assert.Equal(t, 3, root.TotalProductCount)
	assert.Equal(t, 3, result.NodeCount)
	assert.False(t, result.Cached)
	assert.Nil(t, result.Report)
}

func TestStorefrontTree_ShowcaseKeepsEmptyBranches(t *testing.T) {
	f := newFixture()
	svc := NewTreeService(f.source, nil, testLogger())

	result, err := svc.StorefrontTree(context.Background(), f.query(ModeShowcase))
	require.NoError(t, err)

	require.Len(t, result.Nodes, 1)
	assert.Len(t, result.Nodes[0].Children, 2)
	assert.Equal(t, 4, result.NodeCount)
}

func TestStorefrontTree_SecondCallIsCached(t *testing.T) {
	f := newFixture()
	svc := NewTreeService(f.source, newMapCache(), testLogger())
	q := f.query(ModeRetail)

	first, err := svc.StorefrontTree(context.Background(), q)
	require.NoError(t, err)
	second, err := svc.StorefrontTree(context.Background(), q)
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.NodeCount, second.NodeCount)
	assert.Equal(t, 1, f.source.calls)
}

func TestStorefrontTree_ModesAreCachedSeparately(t *testing.T) {
	f := newFixture()
	c := newMapCache()
	svc := NewTreeService(f.source, c, testLogger())
	q := f.query(ModeRetail)

	_, err := svc.StorefrontTree(context.Background(), q)
	require.NoError(t, err)
	q.Mode = ModeShowcase
	result, err := svc.StorefrontTree(context.Background(), q)
	require.NoError(t, err)

	assert.False(t, result.Cached)
	assert.Equal(t, 4, result.NodeCount)
	assert.Len(t, c.entries, 2)
	assert.Contains(t, c.entries, cache.Key(q.TenantID, q.StoreID, nil, string(ModeShowcase)))
}

func TestStorefrontTree_ReportsDanglingParent(t *testing.T) {
	f := newFixture()
	missing := uuid.New()
	orphan := uuid.New()
	f.source.rows = append(f.source.rows, row(orphan, &missing, 5))
	svc := NewTreeService(f.source, nil, testLogger())

	result, err := svc.StorefrontTree(context.Background(), f.query(ModeShowcase))
	require.NoError(t, err)

	require.NotNil(t, result.Report)
	assert.Contains(t, result.Report.DanglingParents, orphan.String())
	assert.Equal(t, 4, result.NodeCount)
}

func TestStorefrontTree_CachedTreeKeepsReport(t *testing.T) {
	f := newFixture()
	missing := uuid.New()
	orphan := uuid.New()
	f.source.rows = append(f.source.rows, row(orphan, &missing, 5))
	svc := NewTreeService(f.source, newMapCache(), testLogger())
	q := f.query(ModeShowcase)

	_, err := svc.StorefrontTree(context.Background(), q)
	require.NoError(t, err)
	cached, err := svc.StorefrontTree(context.Background(), q)
	require.NoError(t, err)

	assert.True(t, cached.Cached)
	require.NotNil(t, cached.Report)
	assert.Equal(t, []string{orphan.String()}, cached.Report.DanglingParents)
}

func TestStorefrontTree_SourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}
	svc := NewTreeService(source, nil, testLogger())

	_, err := svc.StorefrontTree(context.Background(), TreeQuery{TenantID: "t", StoreID: uuid.New(), Mode: ModeRetail})
	assert.ErrorContains(t, err, "connection refused")
}

func TestSubtreeIDs(t *testing.T) {
	f := newFixture()
	svc := NewTreeService(f.source, nil, testLogger())
	q := f.query(ModeRetail)

	got, err := svc.SubtreeIDs(context.Background(), q, f.root.String())
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{f.root, f.full, f.leaf, f.empty}, got)

	got, err = svc.SubtreeIDs(context.Background(), q, f.full.String())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.full, f.leaf}, got)

	got, err = svc.SubtreeIDs(context.Background(), q, uuid.NewString())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestParentChainAndChildren(t *testing.T) {
	f := newFixture()
	svc := NewTreeService(f.source, nil, testLogger())
	q := f.query(ModeRetail)

	chain, err := svc.ParentChain(context.Background(), q, f.leaf.String())
	require.NoError(t, err)
	assert.Equal(t, []string{f.full.String(), f.root.String()}, chain)

	children, err := svc.DirectChildren(context.Background(), q, f.root.String())
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, f.full.String(), children[0].ID)
	assert.Equal(t, f.empty.String(), children[1].ID)
}
