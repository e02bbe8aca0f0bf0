package memory

import (
	"strings"
	"testing"
)

func TestRender_EmptyMemory(t *testing.T) {
	got := Render("Alex", UserMemory{})
	if got != EmptyMemorySentinel {
		t.Errorf("Render(empty) = %q, want sentinel", got)
	}
}

func TestRender_IncludesNickname(t *testing.T) {
	mem := UserMemory{Profile: &Profile{PersonalitySummary: "kind"}}
	got := Render("Alex", mem)
	if !strings.Contains(got, "Alex") {
		t.Errorf("rendered context missing nickname:\n%s", got)
	}
}

func TestRender_CategoryOrder(t *testing.T) {
	mem := UserMemory{
		Profile:      &Profile{PersonalitySummary: "kind"},
		Preferences:  &Preferences{PreferredTone: "casual"},
		Relationship: &Relationship{TrustLevel: 50},
		LongTerm:     &LongTerm{GrowthJourney: "rebuilding confidence"},
	}
	got := Render("Alex", mem)

	order := []string{"[Profile]", "[Preferences]", "[Relationship]", "[Shared history]"}
	last := -1
	for _, section := range order {
		idx := strings.Index(got, section)
		if idx < 0 {
			t.Fatalf("section %s missing:\n%s", section, got)
		}
		if idx < last {
			t.Errorf("section %s out of order:\n%s", section, got)
		}
		last = idx
	}
}

func TestRender_SkipsAbsentCategories(t *testing.T) {
	mem := UserMemory{Relationship: &Relationship{TrustLevel: 30, IntimacyLevel: 10}}
	got := Render("Alex", mem)

	if strings.Contains(got, "[Profile]") || strings.Contains(got, "[Preferences]") {
		t.Errorf("absent categories rendered:\n%s", got)
	}
	if !strings.Contains(got, "Trust: 30/100") {
		t.Errorf("trust missing:\n%s", got)
	}
}

func TestRender_EventsAndMemories(t *testing.T) {
	mem := UserMemory{LongTerm: &LongTerm{
		ImportantEvents: []Event{
			{Date: "2026-02-14", Description: "first real argument and making up", Importance: 9},
			{Description: "undated milestone", Importance: 4},
		},
		KeyMemories: []string{"allergic to shellfish"},
	}}
	got := Render("Alex", mem)

	if !strings.Contains(got, "- 2026-02-14: first real argument and making up") {
		t.Errorf("dated event malformed:\n%s", got)
	}
	if !strings.Contains(got, "- undated milestone") {
		t.Errorf("undated event malformed:\n%s", got)
	}
	if !strings.Contains(got, "- allergic to shellfish") {
		t.Errorf("key memory missing:\n%s", got)
	}
}
