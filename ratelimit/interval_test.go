package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func newTestGate(interval time.Duration) (*IntervalGate, *time.Time) {
	gate := NewIntervalGate(interval)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	gate.nowFunc = func() time.Time { return now }
	return gate, &now
}

func TestIntervalGate_FirstEventAllowed(t *testing.T) {
	gate, _ := newTestGate(time.Minute)
	if !gate.Allow("conv-1") {
		t.Error("first event should be allowed")
	}
}

func TestIntervalGate_SecondEventWithinIntervalDenied(t *testing.T) {
	gate, now := newTestGate(time.Minute)

	gate.Allow("conv-1")
	*now = now.Add(30 * time.Second)
	if gate.Allow("conv-1") {
		t.Error("event within interval should be denied")
	}
}

func TestIntervalGate_AllowedAfterInterval(t *testing.T) {
	gate, now := newTestGate(time.Minute)

	gate.Allow("conv-1")
	*now = now.Add(time.Minute)
	if !gate.Allow("conv-1") {
		t.Error("event at interval boundary should be allowed")
	}
}

func TestIntervalGate_KeysIndependent(t *testing.T) {
	gate, _ := newTestGate(time.Minute)

	gate.Allow("conv-1")
	if !gate.Allow("conv-2") {
		t.Error("a different conversation should not be gated")
	}
}

func TestIntervalGate_NextAllowed(t *testing.T) {
	gate, now := newTestGate(time.Minute)

	if next := gate.NextAllowed("conv-1"); !next.IsZero() {
		t.Errorf("untracked key NextAllowed = %v, want zero", next)
	}

	gate.Allow("conv-1")
	want := now.Add(time.Minute)
	if next := gate.NextAllowed("conv-1"); !next.Equal(want) {
		t.Errorf("NextAllowed = %v, want %v", next, want)
	}

	*now = now.Add(2 * time.Minute)
	if next := gate.NextAllowed("conv-1"); !next.IsZero() {
		t.Errorf("elapsed key NextAllowed = %v, want zero", next)
	}
}

func TestIntervalGate_Reset(t *testing.T) {
	gate, _ := newTestGate(time.Minute)

	gate.Allow("conv-1")
	gate.Reset("conv-1")
	if !gate.Allow("conv-1") {
		t.Error("reset key should be allowed immediately")
	}
}

func TestIntervalGate_DefaultInterval(t *testing.T) {
	gate := NewIntervalGate(0)
	if gate.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", gate.interval, DefaultInterval)
	}
}

func TestIntervalGate_ConcurrentSameKeyAdmitsOne(t *testing.T) {
	gate, _ := newTestGate(time.Minute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if gate.Allow("conv-1") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 1 {
		t.Errorf("allowed = %d, want exactly 1", allowed)
	}
}
