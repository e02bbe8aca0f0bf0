// Package stats is the relational side of the pipeline: per-user
// engagement aggregates, the persisted affinity score, and companion
// persona prompts. The KV memory store holds what the companion
// remembers; this store holds how much the user shows up.
package stats

import (
	"time"

	"github.com/google/uuid"
)

// User is one account. CreatedAt feeds the affinity time bonus.
type User struct {
	ID        string    `gorm:"primaryKey;column:id"`
	Nickname  string    `gorm:"column:nickname"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

func (User) TableName() string { return "users" }

// Conversation is one chat session belonging to a user.
type Conversation struct {
	ID        string    `gorm:"primaryKey;column:id"`
	UserID    string    `gorm:"index;not null;column:user_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

func (Conversation) TableName() string { return "conversations" }

// Message is one turn inside a conversation.
type Message struct {
	ID             string    `gorm:"primaryKey;column:id"`
	ConversationID string    `gorm:"index;not null;column:conversation_id"`
	UserID         string    `gorm:"index;not null;column:user_id"`
	Role           string    `gorm:"not null;column:role"`
	CreatedAt      time.Time `gorm:"not null;column:created_at"`
}

func (Message) TableName() string { return "messages" }

// RelationshipScore is the persisted affinity score, one row per user,
// overwritten on each successful extraction.
type RelationshipScore struct {
	ID        string    `gorm:"primaryKey;column:id"`
	UserID    string    `gorm:"uniqueIndex;not null;column:user_id"`
	Score     int       `gorm:"not null;column:score"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at"`
}

func (RelationshipScore) TableName() string { return "relationship_scores" }

// PersonaPrompt is a named companion system prompt.
type PersonaPrompt struct {
	Name      string    `gorm:"primaryKey;column:name"`
	Content   string    `gorm:"not null;column:content"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at"`
}

func (PersonaPrompt) TableName() string { return "persona_prompts" }

func newID() string { return uuid.NewString() }
