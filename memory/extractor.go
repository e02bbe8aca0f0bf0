package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/meganlabs/memokit/errors"
	"github.com/meganlabs/memokit/llm"
	"github.com/meganlabs/memokit/logging"
)

// MaxTranscriptMessages caps how much of the transcript the extractor
// sees. Extraction captures recent signal; older context is dropped on
// purpose.
const MaxTranscriptMessages = 20

// extractTemperature keeps the model conservative; extraction wants
// facts, not creativity.
const extractTemperature = 0.2

// Extractor turns a conversation transcript into a partial memory
// record by prompting an LLM and parsing the JSON object in its reply.
// It is stateless; its only side effect is the outbound LLM call.
type Extractor struct {
	provider llm.Provider
	log      *logging.Logger
}

// NewExtractor creates an extractor over the given provider.
func NewExtractor(provider llm.Provider, log *logging.Logger) *Extractor {
	if log == nil {
		log = logging.New()
	}
	return &Extractor{
		provider: provider,
		log:      log.WithComponent("extractor"),
	}
}

// Extract asks the LLM for new memory facts evidenced by the transcript.
// Only the most recent MaxTranscriptMessages messages are considered.
// A reply with no parseable JSON object is a recoverable condition: the
// result is an empty partial, not an error. A failed LLM call returns a
// coded transient error.
func (e *Extractor) Extract(ctx context.Context, messages []TranscriptMessage, existing UserMemory) (UserMemory, error) {
	if len(messages) > MaxTranscriptMessages {
		messages = messages[len(messages)-MaxTranscriptMessages:]
	}

	prompt := buildExtractionPrompt(messages, existing)

	resp, err := e.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: extractTemperature,
	})
	if err != nil {
		return UserMemory{}, errors.WrapWithCode(err, errors.ErrCodeLLMCall,
			"memory extraction call failed", errors.WithStage("extract"))
	}

	span, ok := firstJSONObject(resp.Content)
	if !ok {
		e.log.Warn("llm reply carried no JSON object, extracting nothing", map[string]interface{}{
			"model": resp.Model,
		})
		return UserMemory{}, nil
	}

	var partial UserMemory
	if err := json.Unmarshal([]byte(span), &partial); err != nil {
		e.log.Warn("llm JSON did not match memory schema, extracting nothing", map[string]interface{}{
			"model": resp.Model,
			"error": err.Error(),
		})
		return UserMemory{}, nil
	}

	return partial, nil
}

// extractionSystemPrompt fixes the extractor's contract with the model.
const extractionSystemPrompt = `You are a memory analyst for a companion chat service. You read a conversation transcript and extract durable facts about the user. You only record facts explicitly present in the transcript. You never fabricate, and you never infer beyond the evidence. Omit any field you are less than 60% confident about. Respond with exactly one JSON object and nothing else.`

// buildExtractionPrompt renders the transcript and current memory into
// the user prompt.
func buildExtractionPrompt(messages []TranscriptMessage, existing UserMemory) string {
	var transcript strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}

	existingJSON, _ := json.Marshal(existing)

	return fmt.Sprintf(`Current stored memory for this user (may be empty):
%s

Recent conversation transcript:
---
%s---

Extract new or updated memory facts as a JSON object with this shape (all fields optional; omit fields with no qualifying evidence):

{
  "profile": {"personality_summary": "", "emotion_patterns": "", "estimated_age": 0, "estimated_gender": "", "estimated_occupation": ""},
  "preferences": {"preferred_tone": "", "avoid_topics": [], "chat_pace": "fast|slow|balanced", "common_words": []},
  "relationship": {"bond_level": "SSS|S|A|B|C", "dependency_pattern": "", "trust_level": 0, "intimacy_level": 0},
  "longterm": {"important_events": [{"date": "", "description": "", "importance": 0}], "key_memories": [], "growth_journey": ""}
}

Rules:
- Only facts stated or directly evidenced in the transcript.
- trust_level and intimacy_level are integers 0-100; importance is 0-10.
- Omit every field with confidence below 60.
- Output the JSON object only, no commentary.`, existingJSON, transcript.String())
}

// firstJSONObject returns the first balanced {...} span in s.
// String literals and escape sequences are honored so braces inside
// strings do not unbalance the scan.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}

		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
