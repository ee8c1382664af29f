package services

import (
	"context"
	"fmt"
	"strings"

	"catalog-service/internal/cache"
	"catalog-service/internal/models"
	"catalog-service/internal/tree"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Mode is a storefront presentation mode
type Mode string

const (
	ModeRetail    Mode = "retail"
	ModeWholesale Mode = "wholesale"
	ModeShowcase  Mode = "showcase"
)

// ParseMode maps a query value to a Mode; empty means retail
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeRetail:
		return ModeRetail, nil
	case ModeWholesale:
		return ModeWholesale, nil
	case ModeShowcase:
		return ModeShowcase, nil
	}
	return "", fmt.Errorf("unknown storefront mode %q", s)
}

// PrunesEmpty reports whether the mode hides categories without products.
// Showcase lists the whole catalog structure.
func (m Mode) PrunesEmpty() bool {
	return m != ModeShowcase
}

// CategorySource lists the categories of a store with direct product counts
type CategorySource interface {
	ListForTree(ctx context.Context, tenantID string, storeID uuid.UUID, catalogID *uuid.UUID) ([]models.CategoryWithCount, error)
}

// TreeCache memoizes rendered trees
type TreeCache interface {
	Get(ctx context.Context, key string) (*cache.Entry, bool)
	Set(ctx context.Context, key string, entry cache.Entry) error
}

// TreeQuery selects one storefront tree view
type TreeQuery struct {
	TenantID  string
	StoreID   uuid.UUID
	CatalogID *uuid.UUID
	Mode      Mode
}

// TreeResult is a rendered tree plus how it was produced
type TreeResult struct {
	Nodes     []*tree.Node
	NodeCount int
	Cached    bool
	Report    *tree.Report
}

type TreeService struct {
	source CategorySource
	cache  TreeCache
	logger *logrus.Entry
}

// NewTreeService creates the storefront tree service. cache may be nil.
func NewTreeService(source CategorySource, cache TreeCache, logger *logrus.Logger) *TreeService {
	return &TreeService{
		source: source,
		cache:  cache,
		logger: logger.WithField("component", "tree-service"),
	}
}

func (s *TreeService) flat(ctx context.Context, q TreeQuery) ([]tree.Category, error) {
	rows, err := s.source.ListForTree(ctx, q.TenantID, q.StoreID, q.CatalogID)
	if err != nil {
		return nil, err
	}
	categories := make([]tree.Category, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, row.ToTreeCategory(row.ProductCount))
	}
	return categories, nil
}

// StorefrontTree builds the category tree for q. Modes that prune empty
// branches run the built tree through FilterTreeWithProducts.
func (s *TreeService) StorefrontTree(ctx context.Context, q TreeQuery) (*TreeResult, error) {
	key := cache.Key(q.TenantID, q.StoreID, q.CatalogID, string(q.Mode))
	if s.cache != nil {
		if entry, ok := s.cache.Get(ctx, key); ok {
			return &TreeResult{
				Nodes:     entry.Nodes,
				NodeCount: tree.CountNodes(entry.Nodes),
				Cached:    true,
				Report:    entry.Report,
			}, nil
		}
	}

	categories, err := s.flat(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	result := &TreeResult{}
	if report := tree.Diagnose(categories); !report.Empty() {
		result.Report = &report
		s.logger.WithFields(logrus.Fields{
			"tenant_id":        q.TenantID,
			"store_id":         q.StoreID.String(),
			"dangling_parents": report.DanglingParents,
			"duplicate_ids":    report.DuplicateIDs,
			"cycle_members":    report.CycleMembers,
			"unreachable":      len(report.Unreachable),
		}).Warn("Category list has structural problems; affected categories are left out of the tree")
	}

	nodes := tree.BuildCategoryTree(categories)
	if q.Mode.PrunesEmpty() {
		nodes = tree.FilterTreeWithProducts(nodes)
	}
	result.Nodes = nodes
	result.NodeCount = tree.CountNodes(nodes)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cache.Entry{Nodes: nodes, Report: result.Report}); err != nil {
			s.logger.WithError(err).Debug("Failed to cache category tree")
		}
	}
	return result, nil
}

// ParentChain returns the ancestor ids of categoryID, nearest parent first
func (s *TreeService) ParentChain(ctx context.Context, q TreeQuery, categoryID string) ([]string, error) {
	categories, err := s.flat(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	return tree.GetParentChain(categoryID, categories), nil
}

// DirectChildren returns the immediate subcategories of categoryID
func (s *TreeService) DirectChildren(ctx context.Context, q TreeQuery, categoryID string) ([]tree.Category, error) {
	categories, err := s.flat(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	return tree.GetDirectChildren(categoryID, categories), nil
}

// SubtreeIDs returns categoryID and the ids of every category below it that
// is reachable in the full tree. Unknown ids give an empty slice.
func (s *TreeService) SubtreeIDs(ctx context.Context, q TreeQuery, categoryID string) ([]uuid.UUID, error) {
	categories, err := s.flat(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	ids := make([]uuid.UUID, 0)
	root := tree.Find(tree.BuildCategoryTree(categories), categoryID)
	if root == nil {
		return ids, nil
	}
	tree.Walk([]*tree.Node{root}, func(n *tree.Node, _ int) bool {
		if id, err := uuid.Parse(n.ID); err == nil {
			ids = append(ids, id)
		}
		return true
	})
	return ids, nil
}
