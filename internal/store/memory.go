package store

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sells-group/formfill-cli/internal/prompt"
)

// MemoryCache keeps records in process memory. Entries expire after the
// configured TTL; a zero TTL keeps them for the life of the process.
type MemoryCache struct {
	items *gocache.Cache
}

var _ Cache = (*MemoryCache)(nil)

// NewMemory creates an in-process cache.
func NewMemory(ttl time.Duration) *MemoryCache {
	expiry := gocache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiry = ttl
		cleanup = 2 * ttl
	}
	return &MemoryCache{items: gocache.New(expiry, cleanup)}
}

func memoryKey(hash, model string) string {
	return model + ":" + hash
}

// Get implements prompt.Cache.
func (m *MemoryCache) Get(_ context.Context, hash, model string) (*prompt.Record, error) {
	v, ok := m.items.Get(memoryKey(hash, model))
	if !ok {
		return nil, nil
	}
	rec := v.(prompt.Record)
	return &rec, nil
}

// Put implements prompt.Cache.
func (m *MemoryCache) Put(_ context.Context, rec prompt.Record) error {
	m.items.SetDefault(memoryKey(rec.PromptHash, rec.Model), rec)
	return nil
}

// Len returns the number of unexpired entries.
func (m *MemoryCache) Len() int {
	return m.items.ItemCount()
}

// Close drops all entries.
func (m *MemoryCache) Close() error {
	m.items.Flush()
	return nil
}
