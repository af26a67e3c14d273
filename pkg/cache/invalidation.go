package cache

import (
	"fmt"
	"net/http"
)

// Manager holds separate cache instances for the public registry listing
// and the generated scaffold files, each with its own TTL. Invalidation is
// targeted: editing one registry only evicts that registry's scaffold
// entries plus the shared listing.
type Manager struct {
	listing  *LRUCache
	scaffold *LRUCache
}

// NewManager creates a Manager from the given configuration. If cfg is nil
// or disabled, it returns nil; all Manager methods are nil-safe.
func NewManager(cfg *Config) *Manager {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return &Manager{
		listing:  NewLRUCache(cfg.MaxSize, cfg.ListingTTL),
		scaffold: NewLRUCache(cfg.MaxSize, cfg.ScaffoldTTL),
	}
}

// InvalidateRegistry evicts all cached scaffold files of one hosted
// registry, identified by owner and slug, plus the listing (the registry's
// metadata may have changed).
func (m *Manager) InvalidateRegistry(ownerID, slug string) {
	if m == nil {
		return
	}
	m.scaffold.InvalidatePrefix(fmt.Sprintf("/catalog/%s/%s/", ownerID, slug))
	m.listing.InvalidateAll()
}

// InvalidateAll clears both caches entirely.
func (m *Manager) InvalidateAll() {
	if m == nil {
		return
	}
	m.listing.InvalidateAll()
	m.scaffold.InvalidateAll()
}

// ListingMiddleware caches the public registry listing endpoint.
func (m *Manager) ListingMiddleware() func(http.Handler) http.Handler {
	if m == nil {
		return passthrough
	}
	return Middleware(m.listing)
}

// ScaffoldMiddleware caches the generated scaffold file endpoints.
func (m *Manager) ScaffoldMiddleware() func(http.Handler) http.Handler {
	if m == nil {
		return passthrough
	}
	return Middleware(m.scaffold)
}

func passthrough(next http.Handler) http.Handler { return next }
