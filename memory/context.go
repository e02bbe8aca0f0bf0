package memory

import (
	"fmt"
	"strings"
)

// EmptyMemorySentinel is what Render returns when nothing is known
// about the user yet.
const EmptyMemorySentinel = "No memories yet. This is the beginning of your story together."

// Render flattens a memory record into the prose block injected into
// the companion's system prompt. Categories render in a fixed order so
// the prompt stays cache-friendly across turns.
func Render(nickname string, mem UserMemory) string {
	if mem.IsEmpty() {
		return EmptyMemorySentinel
	}

	var b strings.Builder
	fmt.Fprintf(&b, "What you remember about %s:\n", nickname)

	if p := mem.Profile; p != nil {
		b.WriteString("\n[Profile]\n")
		writeLine(&b, "Personality", p.PersonalitySummary)
		writeLine(&b, "Emotional patterns", p.EmotionPatterns)
		if p.EstimatedAge > 0 {
			fmt.Fprintf(&b, "Estimated age: %d\n", p.EstimatedAge)
		}
		writeLine(&b, "Estimated gender", p.EstimatedGender)
		writeLine(&b, "Estimated occupation", p.EstimatedOccupation)
	}

	if p := mem.Preferences; p != nil {
		b.WriteString("\n[Preferences]\n")
		writeLine(&b, "Preferred tone", p.PreferredTone)
		if len(p.AvoidTopics) > 0 {
			fmt.Fprintf(&b, "Topics to avoid: %s\n", strings.Join(p.AvoidTopics, ", "))
		}
		writeLine(&b, "Chat pace", p.ChatPace)
		if len(p.CommonWords) > 0 {
			fmt.Fprintf(&b, "Words they often use: %s\n", strings.Join(p.CommonWords, ", "))
		}
	}

	if r := mem.Relationship; r != nil {
		b.WriteString("\n[Relationship]\n")
		writeLine(&b, "Bond level", r.BondLevel)
		writeLine(&b, "Dependency pattern", r.DependencyPattern)
		if r.TrustLevel > 0 {
			fmt.Fprintf(&b, "Trust: %d/100\n", r.TrustLevel)
		}
		if r.IntimacyLevel > 0 {
			fmt.Fprintf(&b, "Intimacy: %d/100\n", r.IntimacyLevel)
		}
	}

	if lt := mem.LongTerm; lt != nil {
		b.WriteString("\n[Shared history]\n")
		for _, ev := range lt.ImportantEvents {
			if ev.Date != "" {
				fmt.Fprintf(&b, "- %s: %s\n", ev.Date, ev.Description)
			} else {
				fmt.Fprintf(&b, "- %s\n", ev.Description)
			}
		}
		for _, km := range lt.KeyMemories {
			fmt.Fprintf(&b, "- %s\n", km)
		}
		writeLine(&b, "Their journey", lt.GrowthJourney)
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeLine(b *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(b, "%s: %s\n", label, value)
	}
}
