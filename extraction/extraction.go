// Package extraction is the pipeline entry point: it gates, extracts,
// merges, persists, and scores in one pass. The pipeline soft-fails by
// contract; whatever happens inside it, the user-facing chat flow
// continues, and the outcome says what happened instead of an error
// escaping.
package extraction

import (
	"context"
	"time"

	"github.com/meganlabs/memokit/affinity"
	"github.com/meganlabs/memokit/errors"
	"github.com/meganlabs/memokit/logging"
	"github.com/meganlabs/memokit/memory"
	"github.com/meganlabs/memokit/ratelimit"
	"github.com/meganlabs/memokit/search"
	"github.com/meganlabs/memokit/stats"
)

// Status classifies a pipeline run.
type Status string

const (
	// StatusExtracted means memory was extracted, merged and persisted.
	StatusExtracted Status = "extracted"

	// StatusSkipped means a gate stopped the run before the LLM call.
	StatusSkipped Status = "skipped"

	// StatusFailed means the run started but could not complete.
	StatusFailed Status = "failed"
)

// Skip reasons.
const (
	ReasonTranscriptEmpty    = "transcript_empty"
	ReasonTranscriptTooShort = "transcript_too_short"
	ReasonRateLimited        = "rate_limited"
)

// Outcome is the result of one pipeline run. Exactly one of Reason
// (when skipped) and Cause (when failed) is set.
type Outcome struct {
	Status Status

	// Reason is set when Status is StatusSkipped.
	Reason string

	// Cause is set when Status is StatusFailed.
	Cause error

	// Score is the recomputed affinity score when Status is
	// StatusExtracted, -1 otherwise.
	Score int
}

// Extracted builds a successful outcome.
func Extracted(score int) Outcome {
	return Outcome{Status: StatusExtracted, Score: score}
}

// Skipped builds a gated outcome.
func Skipped(reason string) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason, Score: -1}
}

// Failed builds a failed outcome.
func Failed(cause error) Outcome {
	return Outcome{Status: StatusFailed, Cause: cause, Score: -1}
}

// MinTranscriptMessages is the conversation-length floor below which
// extraction is not worth an LLM call.
const MinTranscriptMessages = 5

// Request is one extraction trigger.
type Request struct {
	UserID         string
	ConversationID string
	Nickname       string
	Transcript     []memory.TranscriptMessage
}

// Config tunes the pipeline gates.
type Config struct {
	// MinMessages overrides MinTranscriptMessages when positive.
	MinMessages int

	// Interval overrides the per-conversation extraction interval
	// when positive.
	Interval time.Duration
}

// Service runs the pipeline. The search index and the stats score
// write are both best-effort: their failures are logged and do not
// change the outcome.
type Service struct {
	repo        *memory.Repository
	extractor   *memory.Extractor
	gate        *ratelimit.IntervalGate
	statsStore  *stats.Store
	searchIndex *search.Index
	log         *logging.Logger
	minMessages int
	nowFunc     func() time.Time
}

// NewService wires the pipeline. statsStore and searchIndex may be nil;
// the corresponding steps are then skipped.
func NewService(repo *memory.Repository, extractor *memory.Extractor, statsStore *stats.Store, searchIndex *search.Index, cfg Config, log *logging.Logger) *Service {
	if log == nil {
		log = logging.New()
	}
	minMessages := cfg.MinMessages
	if minMessages <= 0 {
		minMessages = MinTranscriptMessages
	}
	return &Service{
		repo:        repo,
		extractor:   extractor,
		gate:        ratelimit.NewIntervalGate(cfg.Interval),
		statsStore:  statsStore,
		searchIndex: searchIndex,
		log:         log.WithComponent("extraction"),
		minMessages: minMessages,
		nowFunc:     time.Now,
	}
}

// ProcessConversation runs gating, extraction, merge, persistence and
// scoring for one conversation. It never returns an error; everything
// that can go wrong lands in the Outcome.
func (s *Service) ProcessConversation(ctx context.Context, req Request) Outcome {
	if len(req.Transcript) == 0 {
		s.log.ExtractionSkipped(req.ConversationID, ReasonTranscriptEmpty)
		return Skipped(ReasonTranscriptEmpty)
	}
	if len(req.Transcript) < s.minMessages {
		s.log.ExtractionSkipped(req.ConversationID, ReasonTranscriptTooShort)
		return Skipped(ReasonTranscriptTooShort)
	}
	if !s.gate.Allow(req.ConversationID) {
		s.log.ExtractionSkipped(req.ConversationID, ReasonRateLimited)
		return Skipped(ReasonRateLimited)
	}

	start := s.nowFunc()
	s.log.ExtractionStart(req.ConversationID, len(req.Transcript))

	existing := s.repo.GetAll(ctx, req.UserID)

	partial, err := s.extractor.Extract(ctx, req.Transcript, existing)
	if err != nil {
		s.log.ExtractionFailed(req.ConversationID, "extract", err)
		return Failed(err)
	}

	merged := memory.Merge(existing, partial)

	if err := s.repo.SaveAll(ctx, req.UserID, merged); err != nil {
		s.log.ExtractionFailed(req.ConversationID, "persist", err)
		return Failed(errors.WrapWithCode(err, errors.ErrCodeKVWrite,
			"persisting merged memory", errors.WithUserID(req.UserID), errors.WithStage("persist")))
	}

	s.reindex(req.UserID, merged)
	score := s.updateScore(ctx, req.UserID, req.Nickname, merged)

	s.log.ExtractionComplete(req.ConversationID, s.nowFunc().Sub(start), score)
	return Extracted(score)
}

// reindex refreshes the user's search fragments. Best-effort.
func (s *Service) reindex(userID string, mem memory.UserMemory) {
	if s.searchIndex == nil {
		return
	}
	if err := s.searchIndex.IndexMemory(userID, mem); err != nil {
		s.log.Warn("search reindex failed", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}

// updateScore recomputes and persists the affinity score from the
// merged relationship state and the relational aggregates. The score is
// derived state; a failed write is logged and recomputed next run.
func (s *Service) updateScore(ctx context.Context, userID, nickname string, mem memory.UserMemory) int {
	var trust, intimacy int
	if mem.Relationship != nil {
		trust = mem.Relationship.TrustLevel
		intimacy = mem.Relationship.IntimacyLevel
	}

	metrics := affinity.Metrics{Trust: trust, Intimacy: intimacy}

	if s.statsStore != nil {
		if err := s.statsStore.EnsureUser(ctx, userID, nickname); err != nil {
			s.log.Warn("user row ensure failed", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
		}
		agg, err := s.statsStore.UserAggregates(ctx, userID)
		if err != nil {
			s.log.Warn("aggregates read failed, scoring on relationship only", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
		} else {
			metrics.Conversations = agg.Conversations
			metrics.Messages = agg.Messages
			metrics.ActiveDays = agg.ActiveDays(s.nowFunc())
		}
	}

	score := affinity.ComputeScore(metrics)

	if s.statsStore != nil {
		if err := s.statsStore.SaveRelationshipScore(ctx, userID, score); err != nil {
			s.log.Warn("score write failed", map[string]interface{}{
				"user_id": userID,
				"score":   score,
				"error":   err.Error(),
			})
		}
	}
	return score
}
