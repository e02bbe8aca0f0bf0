package memory

import "sort"

// Merge combines an existing record with a newly extracted partial record.
// It is a pure function: neither argument is mutated, and the result is
// deterministic given its inputs. Re-merging the same partial is a no-op
// (union/max semantics), which makes beacon-triggered extraction safe to
// replay.
//
// Per-field rules:
//   - profile scalars: incoming overwrites when present, else keep existing
//   - preferences.avoid_topics: set union
//   - preferences.common_words: set union, truncated to the first MaxCommonWords
//   - relationship.trust_level / intimacy_level: max of old and new (ratchet)
//   - relationship.bond_level / dependency_pattern: incoming overwrites when present
//   - longterm.important_events: concatenated, sorted descending by importance
//     (stable, so ties keep original order), kept to the top MaxImportantEvents
//   - longterm.key_memories: concatenated, deduplicated, first MaxKeyMemories
//   - longterm.growth_journey: incoming overwrites when present
func Merge(existing, incoming UserMemory) UserMemory {
	result := existing.Clone()

	if incoming.Profile != nil {
		result.Profile = mergeProfile(result.Profile, incoming.Profile)
	}
	if incoming.Preferences != nil {
		result.Preferences = mergePreferences(result.Preferences, incoming.Preferences)
	}
	if incoming.Relationship != nil {
		result.Relationship = mergeRelationship(result.Relationship, incoming.Relationship)
	}
	if incoming.LongTerm != nil {
		result.LongTerm = mergeLongTerm(result.LongTerm, incoming.LongTerm)
	}

	return result
}

func mergeProfile(existing, incoming *Profile) *Profile {
	out := Profile{}
	if existing != nil {
		out = *existing
	}
	if incoming.PersonalitySummary != "" {
		out.PersonalitySummary = incoming.PersonalitySummary
	}
	if incoming.EmotionPatterns != "" {
		out.EmotionPatterns = incoming.EmotionPatterns
	}
	if incoming.EstimatedAge != 0 {
		out.EstimatedAge = incoming.EstimatedAge
	}
	if incoming.EstimatedGender != "" {
		out.EstimatedGender = incoming.EstimatedGender
	}
	if incoming.EstimatedOccupation != "" {
		out.EstimatedOccupation = incoming.EstimatedOccupation
	}
	return &out
}

func mergePreferences(existing, incoming *Preferences) *Preferences {
	out := Preferences{}
	if existing != nil {
		out = *existing
		out.AvoidTopics = append([]string(nil), existing.AvoidTopics...)
		out.CommonWords = append([]string(nil), existing.CommonWords...)
	}
	if incoming.PreferredTone != "" {
		out.PreferredTone = incoming.PreferredTone
	}
	if incoming.ChatPace != "" {
		out.ChatPace = incoming.ChatPace
	}
	out.AvoidTopics = unionStrings(out.AvoidTopics, incoming.AvoidTopics, 0)
	out.CommonWords = unionStrings(out.CommonWords, incoming.CommonWords, MaxCommonWords)
	return &out
}

func mergeRelationship(existing, incoming *Relationship) *Relationship {
	out := Relationship{}
	if existing != nil {
		out = *existing
	}
	if incoming.BondLevel != "" {
		out.BondLevel = incoming.BondLevel
	}
	if incoming.DependencyPattern != "" {
		out.DependencyPattern = incoming.DependencyPattern
	}
	// Trust and intimacy never regress from a single noisy extraction.
	if incoming.TrustLevel > out.TrustLevel {
		out.TrustLevel = incoming.TrustLevel
	}
	if incoming.IntimacyLevel > out.IntimacyLevel {
		out.IntimacyLevel = incoming.IntimacyLevel
	}
	return &out
}

func mergeLongTerm(existing, incoming *LongTerm) *LongTerm {
	out := LongTerm{}
	if existing != nil {
		out = *existing
		out.ImportantEvents = append([]Event(nil), existing.ImportantEvents...)
		out.KeyMemories = append([]string(nil), existing.KeyMemories...)
	}
	if incoming.GrowthJourney != "" {
		out.GrowthJourney = incoming.GrowthJourney
	}

	out.ImportantEvents = append(out.ImportantEvents, incoming.ImportantEvents...)
	sort.SliceStable(out.ImportantEvents, func(i, j int) bool {
		return out.ImportantEvents[i].Importance > out.ImportantEvents[j].Importance
	})
	if len(out.ImportantEvents) > MaxImportantEvents {
		out.ImportantEvents = out.ImportantEvents[:MaxImportantEvents]
	}

	out.KeyMemories = unionStrings(out.KeyMemories, incoming.KeyMemories, MaxKeyMemories)
	return &out
}

// unionStrings appends items from incoming not already present, preserving
// insertion order, and truncates to limit when limit > 0.
func unionStrings(existing, incoming []string, limit int) []string {
	seen := make(map[string]struct{}, len(existing))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, s := range existing {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, s := range incoming {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
