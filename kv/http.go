package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPStore implements Store against the external key-value worker.
// Protocol: GET {base}/memory?key=<k> returns {"value": <json>} (or a 404
// when absent); POST {base}/memory with {key, value, ttl} returns {"ok": bool}.
// The worker is trusted at the network level; no authentication is sent.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// HTTPStoreConfig configures the HTTP-backed store.
type HTTPStoreConfig struct {
	// BaseURL is the worker endpoint, e.g. "https://kv.example.workers.dev".
	BaseURL string

	// Timeout bounds each request. Defaults to 10s.
	Timeout time.Duration

	// Client overrides the HTTP client (for tests). Timeout is ignored when set.
	Client *http.Client
}

// getResponse is the worker's GET payload.
type getResponse struct {
	Value json.RawMessage `json:"value"`
}

// putRequest is the worker's POST payload.
type putRequest struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	TTL   int64           `json:"ttl,omitempty"` // seconds
}

// putResponse is the worker's POST reply.
type putResponse struct {
	OK bool `json:"ok"`
}

// NewHTTPStore creates a store backed by the external key-value worker.
func NewHTTPStore(cfg HTTPStoreConfig) (*HTTPStore, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required")
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPStore{
		baseURL: cfg.BaseURL,
		client:  client,
	}, nil
}

// Get retrieves a value by key.
func (s *HTTPStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/memory?key=%s", s.baseURL, url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kv get %s: unexpected status %d", key, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("kv get %s: reading body: %w", key, err)
	}

	// The worker wraps values as {"value": <json>}. Older deployments
	// returned the raw value; fall back to the body as-is.
	var wrapped getResponse
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Value != nil {
		if string(wrapped.Value) == "null" {
			return nil, ErrNotFound
		}
		return wrapped.Value, nil
	}
	if len(body) == 0 {
		return nil, ErrNotFound
	}
	return body, nil
}

// Put stores a value with an optional TTL.
func (s *HTTPStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ValidateTTL(ttl); err != nil {
		return err
	}

	payload := putRequest{
		Key:   key,
		Value: json.RawMessage(value),
	}
	if ttl > 0 {
		payload.TTL = int64(ttl / time.Second)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("kv put %s: encoding: %w", key, err)
	}

	u := s.baseURL + "/memory"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kv put %s: unexpected status %d", key, resp.StatusCode)
	}

	var reply putResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("kv put %s: decoding reply: %w", key, err)
	}
	if !reply.OK {
		return fmt.Errorf("kv put %s: worker rejected write", key)
	}
	return nil
}

// Delete removes a key by writing a JSON null with a one-second TTL.
// The worker has no delete verb; expiry is the closest equivalent.
func (s *HTTPStore) Delete(ctx context.Context, key string) error {
	return s.Put(ctx, key, []byte("null"), time.Second)
}

// Close implements Store. The HTTP client holds no resources to release.
func (s *HTTPStore) Close() error {
	return nil
}
