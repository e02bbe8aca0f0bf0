package extraction

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/meganlabs/memokit/kv"
	"github.com/meganlabs/memokit/llm"
	"github.com/meganlabs/memokit/memory"
	"github.com/meganlabs/memokit/search"
	"github.com/meganlabs/memokit/stats"
)

type pipelineFixture struct {
	service *Service
	repo    *memory.Repository
	mock    *llm.MockProvider
	stats   *stats.Store
	index   *search.Index
}

func newPipeline(t *testing.T, cfg Config) *pipelineFixture {
	t.Helper()

	store := kv.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	repo := memory.NewRepository(store, nil)

	mock := llm.NewMockProvider()
	extractor := memory.NewExtractor(mock, nil)

	statsStore, err := stats.Open(filepath.Join(t.TempDir(), "stats.db"), nil)
	if err != nil {
		t.Fatalf("stats.Open() error: %v", err)
	}
	t.Cleanup(func() { statsStore.Close() })

	index, err := search.OpenInMemory(nil)
	if err != nil {
		t.Fatalf("search.OpenInMemory() error: %v", err)
	}
	t.Cleanup(func() { index.Close() })

	return &pipelineFixture{
		service: NewService(repo, extractor, statsStore, index, cfg, nil),
		repo:    repo,
		mock:    mock,
		stats:   statsStore,
		index:   index,
	}
}

func chatRequest(messages int) Request {
	req := Request{UserID: "u1", ConversationID: "c1", Nickname: "Alex"}
	for i := 0; i < messages; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		req.Transcript = append(req.Transcript, memory.TranscriptMessage{
			Role: role, Content: fmt.Sprintf("turn %d", i),
		})
	}
	return req
}

func TestProcessConversation_EmptyTranscriptSkips(t *testing.T) {
	f := newPipeline(t, Config{})

	out := f.service.ProcessConversation(context.Background(), chatRequest(0))
	if out.Status != StatusSkipped || out.Reason != ReasonTranscriptEmpty {
		t.Errorf("outcome = %+v, want skipped/%s", out, ReasonTranscriptEmpty)
	}
	if f.mock.CallCount() != 0 {
		t.Error("LLM called for empty transcript")
	}
}

func TestProcessConversation_ShortTranscriptSkips(t *testing.T) {
	f := newPipeline(t, Config{})

	out := f.service.ProcessConversation(context.Background(), chatRequest(4))
	if out.Status != StatusSkipped || out.Reason != ReasonTranscriptTooShort {
		t.Errorf("outcome = %+v, want skipped/%s", out, ReasonTranscriptTooShort)
	}
}

func TestProcessConversation_RateLimitedSkips(t *testing.T) {
	f := newPipeline(t, Config{Interval: time.Hour})
	f.mock.SetResponse(`{"relationship": {"trust_level": 10}}`)
	ctx := context.Background()

	first := f.service.ProcessConversation(ctx, chatRequest(6))
	if first.Status != StatusExtracted {
		t.Fatalf("first outcome = %+v", first)
	}

	second := f.service.ProcessConversation(ctx, chatRequest(6))
	if second.Status != StatusSkipped || second.Reason != ReasonRateLimited {
		t.Errorf("second outcome = %+v, want skipped/%s", second, ReasonRateLimited)
	}
	if f.mock.CallCount() != 1 {
		t.Errorf("LLM calls = %d, want 1", f.mock.CallCount())
	}
}

func TestProcessConversation_ConversationsGateIndependently(t *testing.T) {
	f := newPipeline(t, Config{Interval: time.Hour})
	f.mock.SetResponse("{}")
	ctx := context.Background()

	f.service.ProcessConversation(ctx, chatRequest(6))

	other := chatRequest(6)
	other.ConversationID = "c2"
	out := f.service.ProcessConversation(ctx, other)
	if out.Status != StatusExtracted {
		t.Errorf("second conversation gated: %+v", out)
	}
}

func TestProcessConversation_ExtractsMergesAndPersists(t *testing.T) {
	f := newPipeline(t, Config{})
	ctx := context.Background()

	// Seed prior state that the new extraction must merge against.
	seed := memory.UserMemory{Relationship: &memory.Relationship{TrustLevel: 50}}
	if err := f.repo.SaveAll(ctx, "u1", seed); err != nil {
		t.Fatal(err)
	}

	f.mock.SetResponse(`{"relationship": {"trust_level": 30, "intimacy_level": 20},
		"longterm": {"key_memories": ["started pottery classes"]}}`)

	out := f.service.ProcessConversation(ctx, chatRequest(6))
	if out.Status != StatusExtracted {
		t.Fatalf("outcome = %+v", out)
	}

	got := f.repo.GetAll(ctx, "u1")
	if got.Relationship == nil || got.Relationship.TrustLevel != 50 {
		t.Errorf("trust = %+v, want ratchet to hold 50", got.Relationship)
	}
	if got.Relationship.IntimacyLevel != 20 {
		t.Errorf("intimacy = %d, want 20", got.Relationship.IntimacyLevel)
	}
	if got.LongTerm == nil || len(got.LongTerm.KeyMemories) != 1 {
		t.Errorf("longterm = %+v", got.LongTerm)
	}
}

func TestProcessConversation_LLMFailureIsFailedOutcome(t *testing.T) {
	f := newPipeline(t, Config{})
	f.mock.SetError(fmt.Errorf("upstream 500"))

	out := f.service.ProcessConversation(context.Background(), chatRequest(6))
	if out.Status != StatusFailed || out.Cause == nil {
		t.Errorf("outcome = %+v, want failed with cause", out)
	}
}

func TestProcessConversation_ProseReplyStillExtracts(t *testing.T) {
	f := newPipeline(t, Config{})
	f.mock.SetResponse("I found nothing new about this user.")

	out := f.service.ProcessConversation(context.Background(), chatRequest(6))
	if out.Status != StatusExtracted {
		t.Errorf("outcome = %+v, want extracted (empty partial is not a failure)", out)
	}
}

func TestProcessConversation_WritesScore(t *testing.T) {
	f := newPipeline(t, Config{})
	ctx := context.Background()

	f.mock.SetResponse(`{"relationship": {"trust_level": 80, "intimacy_level": 40}}`)

	out := f.service.ProcessConversation(ctx, chatRequest(6))
	if out.Status != StatusExtracted {
		t.Fatalf("outcome = %+v", out)
	}
	// trust 80 -> 20, intimacy 40 -> 10; no engagement history yet.
	if out.Score != 30 {
		t.Errorf("score = %d, want 30", out.Score)
	}

	persisted, err := f.stats.RelationshipScoreFor(ctx, "u1")
	if err != nil {
		t.Fatalf("RelationshipScoreFor() error: %v", err)
	}
	if persisted != out.Score {
		t.Errorf("persisted score = %d, want %d", persisted, out.Score)
	}
}

func TestProcessConversation_ReindexesLongTermMemory(t *testing.T) {
	f := newPipeline(t, Config{})

	f.mock.SetResponse(`{"longterm": {"key_memories": ["won a local chess tournament"]}}`)

	out := f.service.ProcessConversation(context.Background(), chatRequest(6))
	if out.Status != StatusExtracted {
		t.Fatalf("outcome = %+v", out)
	}

	results, err := f.index.Search("u1", "chess tournament", 10)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) == 0 {
		t.Error("merged memory not searchable after extraction")
	}
}

func TestProcessConversation_NilOptionalStores(t *testing.T) {
	store := kv.NewMemoryStore()
	defer store.Close()
	repo := memory.NewRepository(store, nil)

	mock := llm.NewMockProvider()
	mock.SetResponse(`{"relationship": {"trust_level": 10}}`)

	service := NewService(repo, memory.NewExtractor(mock, nil), nil, nil, Config{}, nil)

	out := service.ProcessConversation(context.Background(), chatRequest(6))
	if out.Status != StatusExtracted {
		t.Errorf("outcome = %+v, want extracted without stats/search wiring", out)
	}
}
