package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"catalog-service/internal/tree"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TreeCache stores rendered storefront category trees in Redis
type TreeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTreeCache wraps client. A nil client gives a cache that never hits.
func NewTreeCache(client *redis.Client, ttl time.Duration) *TreeCache {
	return &TreeCache{client: client, ttl: ttl}
}

// Entry is one cached tree view with the diagnostics of the list it was
// built from
type Entry struct {
	Nodes  []*tree.Node `json:"nodes"`
	Report *tree.Report `json:"report,omitempty"`
}

// Key builds the cache key of one tree view. It shares the prefix that
// repository.TreePattern invalidates.
func Key(tenantID string, storeID uuid.UUID, catalogID *uuid.UUID, mode string) string {
	catalog := "none"
	if catalogID != nil {
		catalog = catalogID.String()
	}
	return fmt.Sprintf("shopforge:catalog:tree:%s:%s:%s:%s", tenantID, storeID, catalog, mode)
}

// Get returns the cached tree for key
func (c *TreeCache) Get(ctx context.Context, key string) (*Entry, bool) {
	if c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	return &entry, true
}

// Set caches entry under key
func (c *TreeCache) Set(ctx context.Context, key string, entry Entry) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// IsAvailable returns true if the cache is available
func (c *TreeCache) IsAvailable() bool {
	return c.client != nil
}
