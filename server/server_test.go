package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/meganlabs/memokit/extraction"
	"github.com/meganlabs/memokit/kv"
	"github.com/meganlabs/memokit/llm"
	"github.com/meganlabs/memokit/memory"
	"github.com/meganlabs/memokit/search"
)

type serverFixture struct {
	server *Server
	repo   *memory.Repository
	mock   *llm.MockProvider
	index  *search.Index
}

func newTestServer(t *testing.T) *serverFixture {
	t.Helper()

	store := kv.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	repo := memory.NewRepository(store, nil)

	mock := llm.NewMockProvider()
	mock.SetResponse("{}")

	index, err := search.OpenInMemory(nil)
	if err != nil {
		t.Fatalf("search.OpenInMemory() error: %v", err)
	}
	t.Cleanup(func() { index.Close() })

	pipeline := extraction.NewService(repo, memory.NewExtractor(mock, nil), nil, index, extraction.Config{}, nil)

	return &serverFixture{
		server: New(pipeline, repo, index, nil, nil),
		repo:   repo,
		mock:   mock,
		index:  index,
	}
}

func (f *serverFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequestID_GeneratedAndEchoed(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("no X-Request-ID generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "beacon-7")
	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "beacon-7" {
		t.Errorf("X-Request-ID = %q, want caller value echoed", got)
	}
}

func TestExtract_RespondsAcceptedAndRunsPipeline(t *testing.T) {
	f := newTestServer(t)
	f.mock.SetResponse(`{"relationship": {"trust_level": 33}}`)

	body := `{"user_id": "u1", "conversation_id": "c1", "nickname": "Alex", "transcript": [
		{"role": "user", "content": "hi"}, {"role": "assistant", "content": "hey"},
		{"role": "user", "content": "rough day"}, {"role": "assistant", "content": "tell me"},
		{"role": "user", "content": "work stuff"}]}`

	rec := f.do(t, http.MethodPost, "/v1/memory/extract", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	// The pipeline runs after the response; poll for the write.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mem := f.repo.GetAll(context.Background(), "u1")
		if mem.Relationship != nil && mem.Relationship.TrustLevel == 33 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("beacon pipeline never persisted memory")
}

func TestExtract_BadPayload(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/v1/memory/extract", `{"conversation_id": "c1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing user_id", rec.Code)
	}
}

func TestGetMemory(t *testing.T) {
	f := newTestServer(t)

	seed := memory.UserMemory{Profile: &memory.Profile{PersonalitySummary: "gentle"}}
	if err := f.repo.SaveAll(context.Background(), "u1", seed); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodGet, "/v1/users/u1/memory", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got memory.UserMemory
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Profile == nil || got.Profile.PersonalitySummary != "gentle" {
		t.Errorf("memory = %+v", got)
	}
}

func TestGetContext_EmptyUserGetsSentinel(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/v1/users/stranger/context", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Context string `json:"context"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Context != memory.EmptyMemorySentinel {
		t.Errorf("context = %q, want sentinel", resp.Context)
	}
}

func TestGetContext_UsesNickname(t *testing.T) {
	f := newTestServer(t)

	seed := memory.UserMemory{Profile: &memory.Profile{PersonalitySummary: "curious"}}
	if err := f.repo.SaveAll(context.Background(), "u1", seed); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodGet, "/v1/users/u1/context?nickname=Alex", "")

	var resp struct {
		Context string `json:"context"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Context, "Alex") {
		t.Errorf("context missing nickname:\n%s", resp.Context)
	}
}

func TestSearchMemory(t *testing.T) {
	f := newTestServer(t)

	mem := memory.UserMemory{LongTerm: &memory.LongTerm{
		KeyMemories: []string{"ran her first marathon in Sapporo"},
	}}
	if err := f.index.IndexMemory("u1", mem); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodGet, "/v1/users/u1/memory/search?q=marathon", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Results []search.Result `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || !strings.Contains(resp.Results[0].Content, "marathon") {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMemory_MissingQuery(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/v1/users/u1/memory/search", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
