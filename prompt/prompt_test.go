package prompt

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type fakeStore struct {
	value string
	err   error
	calls int
}

func (f *fakeStore) PersonaPromptByName(ctx context.Context, name string) (string, error) {
	f.calls++
	return f.value, f.err
}

func TestCache_IsStale(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	ttl := 5 * time.Minute

	tests := []struct {
		name  string
		cache Cache
		want  bool
	}{
		{"zero value", Cache{}, true},
		{"fresh", Cache{Value: "p", FetchedAt: now.Add(-time.Minute)}, false},
		{"exactly at ttl", Cache{Value: "p", FetchedAt: now.Add(-ttl)}, true},
		{"well past ttl", Cache{Value: "p", FetchedAt: now.Add(-time.Hour)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cache.IsStale(now, ttl); got != tt.want {
				t.Errorf("IsStale = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolver_FetchesOnceWithinTTL(t *testing.T) {
	store := &fakeStore{value: "You are Megan."}
	r := NewResolver(store, ResolverConfig{Name: "megan", TTL: 5 * time.Minute}, nil)

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	r.nowFunc = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if got := r.Resolve(context.Background()); got != "You are Megan." {
			t.Fatalf("Resolve() = %q", got)
		}
	}
	if store.calls != 1 {
		t.Errorf("store calls = %d, want 1", store.calls)
	}
}

func TestResolver_RefreshesAfterTTL(t *testing.T) {
	store := &fakeStore{value: "v1"}
	r := NewResolver(store, ResolverConfig{Name: "megan", TTL: 5 * time.Minute}, nil)

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	r.nowFunc = func() time.Time { return now }

	r.Resolve(context.Background())
	store.value = "v2"
	now = now.Add(6 * time.Minute)

	if got := r.Resolve(context.Background()); got != "v2" {
		t.Errorf("Resolve() after ttl = %q, want refreshed value", got)
	}
	if store.calls != 2 {
		t.Errorf("store calls = %d, want 2", store.calls)
	}
}

func TestResolver_FailedRefreshServesPrevious(t *testing.T) {
	store := &fakeStore{value: "v1"}
	r := NewResolver(store, ResolverConfig{Name: "megan", TTL: 5 * time.Minute}, nil)

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	r.nowFunc = func() time.Time { return now }

	r.Resolve(context.Background())
	store.err = fmt.Errorf("database locked")
	now = now.Add(10 * time.Minute)

	if got := r.Resolve(context.Background()); got != "v1" {
		t.Errorf("Resolve() during outage = %q, want previous value", got)
	}
}

func TestResolver_FallbackWhenNeverFetched(t *testing.T) {
	store := &fakeStore{err: fmt.Errorf("unreachable")}
	r := NewResolver(store, ResolverConfig{Name: "megan", Fallback: "default persona"}, nil)

	if got := r.Resolve(context.Background()); got != "default persona" {
		t.Errorf("Resolve() = %q, want fallback", got)
	}
}
