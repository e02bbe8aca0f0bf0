// Package prompt resolves the companion's persona system prompt from
// the relational store through an explicit TTL cache. The cache is a
// value object with an injected clock, never package-level mutable
// state, so staleness is decidable in tests without sleeping.
package prompt

import (
	"context"
	"sync"
	"time"

	"github.com/meganlabs/memokit/logging"
)

// DefaultTTL is how long a fetched prompt stays fresh.
const DefaultTTL = 5 * time.Minute

// Cache holds one fetched prompt and when it was fetched.
// The zero value is stale.
type Cache struct {
	Value     string
	FetchedAt time.Time
}

// IsStale reports whether the cached value is too old to serve.
// A zero FetchedAt is always stale.
func (c Cache) IsStale(now time.Time, ttl time.Duration) bool {
	if c.FetchedAt.IsZero() {
		return true
	}
	return now.Sub(c.FetchedAt) >= ttl
}

// PromptStore is the slice of the stats store the resolver needs.
type PromptStore interface {
	PersonaPromptByName(ctx context.Context, name string) (string, error)
}

// Resolver serves a named persona prompt, refreshing from the store
// when the cache goes stale. A failed refresh serves the previous
// value when one exists; prompt resolution never takes the chat down.
type Resolver struct {
	store    PromptStore
	name     string
	fallback string
	ttl      time.Duration
	log      *logging.Logger

	mu      sync.Mutex
	cache   Cache
	nowFunc func() time.Time
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// Name is the persona prompt row to resolve.
	Name string

	// Fallback is served when no value has ever been fetched.
	Fallback string

	// TTL overrides DefaultTTL when positive.
	TTL time.Duration
}

// NewResolver creates a resolver over the given store.
func NewResolver(store PromptStore, cfg ResolverConfig, log *logging.Logger) *Resolver {
	if log == nil {
		log = logging.New()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		store:    store,
		name:     cfg.Name,
		fallback: cfg.Fallback,
		ttl:      ttl,
		log:      log.WithComponent("prompt"),
		nowFunc:  time.Now,
	}
}

// Resolve returns the current persona prompt.
func (r *Resolver) Resolve(ctx context.Context) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	if !r.cache.IsStale(now, r.ttl) {
		return r.cache.Value
	}

	value, err := r.store.PersonaPromptByName(ctx, r.name)
	if err != nil {
		r.log.Warn("prompt refresh failed, serving previous value", map[string]interface{}{
			"name":  r.name,
			"error": err.Error(),
		})
		if r.cache.FetchedAt.IsZero() {
			return r.fallback
		}
		return r.cache.Value
	}

	r.cache = Cache{Value: value, FetchedAt: now}
	return value
}
