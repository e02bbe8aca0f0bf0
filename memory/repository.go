package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/meganlabs/memokit/errors"
	"github.com/meganlabs/memokit/kv"
	"github.com/meganlabs/memokit/logging"
)

// SchemaVersion tags stored envelopes. Incremented only on breaking
// schema changes; readers accept mismatched versions (forward-compatible).
const SchemaVersion = 1

// envelope is the stored wrapper around a category value.
// The field layout is part of the persisted format and must not change.
type envelope struct {
	Version   int             `json:"__memory_version"`
	UpdatedAt int64           `json:"updatedAt"` // epoch ms
	Value     json.RawMessage `json:"value"`
}

// Repository maps user identities and categories onto KV keys and
// assembles whole-user records. Reads fail soft: a transport error is
// treated as "absent" and logged, never surfaced to the chat path.
// Writes race arbitrarily across concurrent extractions; last write
// wins (accepted limitation, mitigated by the extraction gate upstream).
type Repository struct {
	store   kv.Store
	log     *logging.Logger
	nowFunc func() time.Time
}

// NewRepository creates a repository over the given KV store.
func NewRepository(store kv.Store, log *logging.Logger) *Repository {
	if log == nil {
		log = logging.New()
	}
	return &Repository{
		store:   store,
		log:     log.WithComponent("repository"),
		nowFunc: time.Now,
	}
}

// Key returns the KV key for a user's category.
// Format: memory:v{N}:users:{userId}:{category}
func Key(userID string, category Category) string {
	return fmt.Sprintf("memory:v%d:users:%s:%s", SchemaVersion, userID, category)
}

// GetCategory reads one category's raw value. The boolean reports
// presence; any transport or decode failure reads as absent.
func (r *Repository) GetCategory(ctx context.Context, userID string, category Category) (json.RawMessage, bool) {
	key := Key(userID, category)

	data, err := r.store.Get(ctx, key)
	if err != nil {
		if err != kv.ErrNotFound {
			r.log.Warn("category read failed, treating as absent", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.log.Warn("stored envelope undecodable, treating as absent", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}

	if env.Version != SchemaVersion {
		r.log.VersionMismatch(key, env.Version, SchemaVersion)
		// Still return the value: newer writers may coexist with older readers.
	}

	if len(env.Value) == 0 || string(env.Value) == "null" {
		return nil, false
	}
	return env.Value, true
}

// PutCategory writes one category value wrapped in a versioned envelope.
// ttl of 0 means the key never expires.
func (r *Repository) PutCategory(ctx context.Context, userID string, category Category, value interface{}, ttl time.Duration) error {
	key := Key(userID, category)

	raw, err := json.Marshal(value)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeInvalidInput,
			fmt.Sprintf("encoding %s category", category), errors.WithUserID(userID))
	}

	env := envelope{
		Version:   SchemaVersion,
		UpdatedAt: r.nowFunc().UnixMilli(),
		Value:     raw,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeInternal, "encoding envelope")
	}

	if err := r.store.Put(ctx, key, data, ttl); err != nil {
		return errors.KVWrite(key, err, errors.WithUserID(userID), errors.WithStage("repository"))
	}
	return nil
}

// GetAll fetches all four categories in parallel and assembles the
// categories present. A category that is absent or unreadable is simply
// left nil.
func (r *Repository) GetAll(ctx context.Context, userID string) UserMemory {
	var (
		mem UserMemory
		mu  sync.Mutex
		wg  sync.WaitGroup
	)

	for _, category := range Categories() {
		wg.Add(1)
		go func(category Category) {
			defer wg.Done()

			raw, ok := r.GetCategory(ctx, userID, category)
			if !ok {
				return
			}

			mu.Lock()
			defer mu.Unlock()
			if err := unmarshalCategory(&mem, category, raw); err != nil {
				r.log.Warn("category value undecodable, skipping", map[string]interface{}{
					"key":   Key(userID, category),
					"error": err.Error(),
				})
			}
		}(category)
	}

	wg.Wait()
	return mem
}

// SaveAll writes every populated category of the record. Each category
// is an independent write; a failure in one does not roll back the
// others (each category is independently meaningful).
func (r *Repository) SaveAll(ctx context.Context, userID string, mem UserMemory) error {
	var errs []error

	if mem.Profile != nil {
		if err := r.PutCategory(ctx, userID, CategoryProfile, mem.Profile, 0); err != nil {
			errs = append(errs, err)
		}
	}
	if mem.Preferences != nil {
		if err := r.PutCategory(ctx, userID, CategoryPreferences, mem.Preferences, 0); err != nil {
			errs = append(errs, err)
		}
	}
	if mem.Relationship != nil {
		if err := r.PutCategory(ctx, userID, CategoryRelationship, mem.Relationship, 0); err != nil {
			errs = append(errs, err)
		}
	}
	if mem.LongTerm != nil {
		if err := r.PutCategory(ctx, userID, CategoryLongTerm, mem.LongTerm, 0); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func unmarshalCategory(mem *UserMemory, category Category, raw json.RawMessage) error {
	switch category {
	case CategoryProfile:
		var p Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		mem.Profile = &p
	case CategoryPreferences:
		var p Preferences
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		mem.Preferences = &p
	case CategoryRelationship:
		var rel Relationship
		if err := json.Unmarshal(raw, &rel); err != nil {
			return err
		}
		mem.Relationship = &rel
	case CategoryLongTerm:
		var l LongTerm
		if err := json.Unmarshal(raw, &l); err != nil {
			return err
		}
		mem.LongTerm = &l
	default:
		return fmt.Errorf("unknown category %q", category)
	}
	return nil
}
