// Package kv provides key-value storage clients for the memory pipeline.
// The production implementation talks to an external key-value worker over
// HTTP; MemoryStore backs tests and single-process deployments.
package kv

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Common errors.
var (
	ErrNotFound   = errors.New("key not found")
	ErrClosed     = errors.New("store closed")
	ErrInvalidKey = errors.New("invalid key")
	ErrInvalidTTL = errors.New("invalid TTL")
)

// Store provides key-value storage with optional per-key TTL.
// Writes against the same key race arbitrarily; the backing service
// guarantees per-key atomicity for single writes and nothing more.
type Store interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores a value with an optional TTL.
	// If ttl is 0, the key never expires.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key.
	// Returns nil if the key does not exist.
	Delete(ctx context.Context, key string) error

	// Close shuts down the store and releases resources.
	Close() error
}

// ValidateKey checks if a key is valid.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, " \t\n") {
		return ErrInvalidKey
	}
	return nil
}

// ValidateTTL checks if a TTL is valid. Zero means no expiry.
func ValidateTTL(ttl time.Duration) error {
	if ttl < 0 {
		return ErrInvalidTTL
	}
	return nil
}
