package llm

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

// Concurrent Chat calls must not touch the shared model: beacon
// extractions overlap, and per-request system instructions or
// temperatures bleeding across requests would corrupt each other.
func TestGoogleProvider_ChatDoesNotMutateSharedModel(t *testing.T) {
	p, err := NewGoogleProvider(GoogleConfig{
		APIKey:    "test-key",
		Model:     "gemini-2.0-flash",
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("NewGoogleProvider() error: %v", err)
	}
	defer p.Close()

	// A cancelled context makes each call fail before any network I/O;
	// the per-request model setup still runs.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = p.Chat(ctx, ChatRequest{
				Messages: []Message{
					{Role: "system", Content: fmt.Sprintf("persona %d", i)},
					{Role: "user", Content: "hello"},
				},
				Temperature: 0.1 * float32(i+1),
			})
		}(i)
	}
	wg.Wait()

	if p.model.SystemInstruction != nil {
		t.Errorf("shared model system instruction mutated: %+v", p.model.SystemInstruction)
	}
	if p.model.Temperature != nil {
		t.Errorf("shared model temperature mutated: %v", *p.model.Temperature)
	}
}
