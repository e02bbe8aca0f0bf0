// Package memory implements the per-user conversational memory record:
// its data model, merge semantics, persistence layout, LLM-driven
// extraction, and prompt-context rendering.
package memory

// Category names one of the four partitions of a user's memory.
type Category string

const (
	CategoryProfile      Category = "profile"
	CategoryPreferences  Category = "preferences"
	CategoryRelationship Category = "relationship"
	CategoryLongTerm     Category = "longterm"
)

// Categories lists all categories in their canonical order.
// Rendering and storage iteration both follow this order.
func Categories() []Category {
	return []Category{CategoryProfile, CategoryPreferences, CategoryRelationship, CategoryLongTerm}
}

// Size bounds applied on every merge.
const (
	MaxCommonWords     = 20
	MaxKeyMemories     = 20
	MaxImportantEvents = 10
)

// Valid chat pace values.
const (
	PaceFast     = "fast"
	PaceSlow     = "slow"
	PaceBalanced = "balanced"
)

// Profile holds inferred facts about who the user is.
type Profile struct {
	PersonalitySummary  string `json:"personality_summary,omitempty"`
	EmotionPatterns     string `json:"emotion_patterns,omitempty"`
	EstimatedAge        int    `json:"estimated_age,omitempty"`
	EstimatedGender     string `json:"estimated_gender,omitempty"`
	EstimatedOccupation string `json:"estimated_occupation,omitempty"`
}

// Preferences holds how the user likes to be talked to.
type Preferences struct {
	PreferredTone string   `json:"preferred_tone,omitempty"`
	AvoidTopics   []string `json:"avoid_topics,omitempty"`
	ChatPace      string   `json:"chat_pace,omitempty"`
	CommonWords   []string `json:"common_words,omitempty"`
}

// Relationship holds the state of the bond between user and companion.
// TrustLevel and IntimacyLevel are in [0,100] and only ever ratchet
// upward across merges.
type Relationship struct {
	BondLevel         string `json:"bond_level,omitempty"` // SSS, S, A, B, C
	DependencyPattern string `json:"dependency_pattern,omitempty"`
	TrustLevel        int    `json:"trust_level,omitempty"`
	IntimacyLevel     int    `json:"intimacy_level,omitempty"`
}

// Event is a dated milestone worth keeping long-term.
type Event struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Importance  int    `json:"importance"` // 0-10
}

// LongTerm holds durable highlights of the relationship.
type LongTerm struct {
	ImportantEvents []Event  `json:"important_events,omitempty"`
	KeyMemories     []string `json:"key_memories,omitempty"`
	GrowthJourney   string   `json:"growth_journey,omitempty"`
}

// UserMemory is one logical record per user identity. A nil category
// pointer means the category is absent from storage; absence is never
// an error.
type UserMemory struct {
	Profile      *Profile      `json:"profile,omitempty"`
	Preferences  *Preferences  `json:"preferences,omitempty"`
	Relationship *Relationship `json:"relationship,omitempty"`
	LongTerm     *LongTerm     `json:"longterm,omitempty"`
}

// IsEmpty reports whether no category is populated.
func (m UserMemory) IsEmpty() bool {
	return m.Profile == nil && m.Preferences == nil && m.Relationship == nil && m.LongTerm == nil
}

// Clone returns a deep copy of the record.
func (m UserMemory) Clone() UserMemory {
	out := UserMemory{}
	if m.Profile != nil {
		p := *m.Profile
		out.Profile = &p
	}
	if m.Preferences != nil {
		p := *m.Preferences
		p.AvoidTopics = append([]string(nil), m.Preferences.AvoidTopics...)
		p.CommonWords = append([]string(nil), m.Preferences.CommonWords...)
		out.Preferences = &p
	}
	if m.Relationship != nil {
		r := *m.Relationship
		out.Relationship = &r
	}
	if m.LongTerm != nil {
		l := *m.LongTerm
		l.ImportantEvents = append([]Event(nil), m.LongTerm.ImportantEvents...)
		l.KeyMemories = append([]string(nil), m.LongTerm.KeyMemories...)
		out.LongTerm = &l
	}
	return out
}

// TranscriptMessage is one turn of a conversation transcript.
type TranscriptMessage struct {
	Role    string `json:"role"` // user, assistant
	Content string `json:"content"`
}
