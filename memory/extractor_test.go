package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/meganlabs/memokit/errors"
	"github.com/meganlabs/memokit/llm"
)

func transcript(n int) []TranscriptMessage {
	var msgs []TranscriptMessage
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msgs = append(msgs, TranscriptMessage{Role: role, Content: fmt.Sprintf("message %d", i)})
	}
	return msgs
}

func TestExtractor_ParsesWellFormedReply(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.SetResponse(`Here is what I learned:
{"relationship": {"trust_level": 42}, "longterm": {"key_memories": ["adopted a rescue dog"]}}`)

	ex := NewExtractor(mock, nil)
	got, err := ex.Extract(context.Background(), transcript(6), UserMemory{})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if got.Relationship == nil || got.Relationship.TrustLevel != 42 {
		t.Errorf("relationship = %+v", got.Relationship)
	}
	if got.LongTerm == nil || len(got.LongTerm.KeyMemories) != 1 {
		t.Errorf("longterm = %+v", got.LongTerm)
	}
}

func TestExtractor_ProseOnlyReplyExtractsNothing(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.SetResponse("I could not find any new facts about the user in this conversation.")

	ex := NewExtractor(mock, nil)
	got, err := ex.Extract(context.Background(), transcript(6), UserMemory{})
	if err != nil {
		t.Fatalf("prose reply must not error: %v", err)
	}
	if !got.IsEmpty() {
		t.Errorf("expected empty partial, got %+v", got)
	}
}

func TestExtractor_MalformedJSONExtractsNothing(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.SetResponse(`{"profile": {"estimated_age": "twenty-five"}}`)

	ex := NewExtractor(mock, nil)
	got, err := ex.Extract(context.Background(), transcript(6), UserMemory{})
	if err != nil {
		t.Fatalf("schema mismatch must not error: %v", err)
	}
	if !got.IsEmpty() {
		t.Errorf("expected empty partial, got %+v", got)
	}
}

func TestExtractor_ProviderFailureIsCodedError(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.SetError(fmt.Errorf("connection refused"))

	ex := NewExtractor(mock, nil)
	_, err := ex.Extract(context.Background(), transcript(6), UserMemory{})
	if err == nil {
		t.Fatal("expected error from failed provider")
	}
	if !errors.Is(err, errors.ErrCodeLLMCall) {
		t.Errorf("code = %v, want %v", errors.Code(err), errors.ErrCodeLLMCall)
	}
}

func TestExtractor_TruncatesTranscript(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.SetResponse("{}")

	ex := NewExtractor(mock, nil)
	if _, err := ex.Extract(context.Background(), transcript(50), UserMemory{}); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	req := mock.LastRequest()
	if req == nil {
		t.Fatal("no request captured")
	}
	prompt := req.Messages[len(req.Messages)-1].Content
	if strings.Contains(prompt, "message 29") {
		t.Error("prompt contains messages older than the window")
	}
	if !strings.Contains(prompt, "message 30") || !strings.Contains(prompt, "message 49") {
		t.Error("prompt missing the most recent messages")
	}
}

func TestExtractor_PromptCarriesExistingMemory(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.SetResponse("{}")

	existing := UserMemory{Profile: &Profile{EstimatedOccupation: "nurse"}}
	ex := NewExtractor(mock, nil)
	if _, err := ex.Extract(context.Background(), transcript(6), existing); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	prompt := mock.LastRequest().Messages[len(mock.LastRequest().Messages)-1].Content
	if !strings.Contains(prompt, "nurse") {
		t.Error("existing memory not included in prompt")
	}
}

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"leading prose", `Sure! {"a":1} hope that helps`, `{"a":1}`, true},
		{"nested", `{"a":{"b":{"c":3}}}`, `{"a":{"b":{"c":3}}}`, true},
		{"brace in string", `{"msg":"use {braces} freely"}`, `{"msg":"use {braces} freely"}`, true},
		{"escaped quote", `{"msg":"she said \"hi {there}\""}`, `{"msg":"she said \"hi {there}\""}`, true},
		{"unterminated", `{"a":1`, "", false},
		{"no object", "plain prose only", "", false},
		{"code fence", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := firstJSONObject(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("firstJSONObject(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}
