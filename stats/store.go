package stats

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/meganlabs/memokit/errors"
	"github.com/meganlabs/memokit/logging"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = stderrors.New("stats: not found")

// Aggregates are the engagement inputs to the affinity score.
type Aggregates struct {
	Conversations    int
	Messages         int
	AccountCreatedAt time.Time
}

// ActiveDays converts account age into whole days as of now.
func (a Aggregates) ActiveDays(now time.Time) int {
	if a.AccountCreatedAt.IsZero() || now.Before(a.AccountCreatedAt) {
		return 0
	}
	return int(now.Sub(a.AccountCreatedAt) / (24 * time.Hour))
}

// Store wraps the relational database.
type Store struct {
	db      *gorm.DB
	log     *logging.Logger
	nowFunc func() time.Time
}

// Open opens (creating if needed) the sqlite database at path and
// migrates the schema.
func Open(path string, log *logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.New()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeUnavailable, "opening stats database")
	}

	if err := db.AutoMigrate(&User{}, &Conversation{}, &Message{}, &RelationshipScore{}, &PersonaPrompt{}); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeInternal, "migrating stats schema")
	}

	return &Store{
		db:      db,
		log:     log.WithComponent("stats"),
		nowFunc: time.Now,
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EnsureUser creates the user row if it does not exist. Existing rows
// keep their original CreatedAt.
func (s *Store) EnsureUser(ctx context.Context, userID, nickname string) error {
	user := User{ID: userID, Nickname: nickname, CreatedAt: s.nowFunc()}
	err := s.db.WithContext(ctx).
		Where(User{ID: userID}).
		FirstOrCreate(&user).Error
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeUnavailable, "ensuring user row", errors.WithUserID(userID))
	}
	return nil
}

// RecordConversation inserts a conversation row. Recording the same
// conversation twice is a no-op.
func (s *Store) RecordConversation(ctx context.Context, conversationID, userID string) error {
	conv := Conversation{ID: conversationID, UserID: userID, CreatedAt: s.nowFunc()}
	err := s.db.WithContext(ctx).
		Where(Conversation{ID: conversationID}).
		FirstOrCreate(&conv).Error
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeUnavailable, "recording conversation", errors.WithUserID(userID))
	}
	return nil
}

// RecordMessage inserts a message row.
func (s *Store) RecordMessage(ctx context.Context, conversationID, userID, role string) error {
	msg := Message{
		ID:             newID(),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		CreatedAt:      s.nowFunc(),
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeUnavailable, "recording message", errors.WithUserID(userID))
	}
	return nil
}

// UserAggregates reads the engagement aggregates for a user.
// Returns ErrNotFound if the user row does not exist.
func (s *Store) UserAggregates(ctx context.Context, userID string) (Aggregates, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return Aggregates{}, ErrNotFound
	}
	if err != nil {
		return Aggregates{}, errors.WrapWithCode(err, errors.ErrCodeUnavailable, "reading user row", errors.WithUserID(userID))
	}

	var conversations, messages int64
	if err := s.db.WithContext(ctx).Model(&Conversation{}).Where("user_id = ?", userID).Count(&conversations).Error; err != nil {
		return Aggregates{}, errors.WrapWithCode(err, errors.ErrCodeUnavailable, "counting conversations", errors.WithUserID(userID))
	}
	if err := s.db.WithContext(ctx).Model(&Message{}).Where("user_id = ?", userID).Count(&messages).Error; err != nil {
		return Aggregates{}, errors.WrapWithCode(err, errors.ErrCodeUnavailable, "counting messages", errors.WithUserID(userID))
	}

	return Aggregates{
		Conversations:    int(conversations),
		Messages:         int(messages),
		AccountCreatedAt: user.CreatedAt,
	}, nil
}

// SaveRelationshipScore upserts the user's affinity score.
func (s *Store) SaveRelationshipScore(ctx context.Context, userID string, score int) error {
	now := s.nowFunc()

	var existing RelationshipScore
	err := s.db.WithContext(ctx).First(&existing, "user_id = ?", userID).Error
	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		row := RelationshipScore{ID: newID(), UserID: userID, Score: score, UpdatedAt: now}
		err = s.db.WithContext(ctx).Create(&row).Error
	case err == nil:
		err = s.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"score":      score,
			"updated_at": now,
		}).Error
	}
	if err != nil {
		return errors.New(errors.ErrCodeScoreWrite, "persisting relationship score",
			errors.WithUserID(userID), errors.WithCause(err))
	}
	return nil
}

// RelationshipScoreFor returns the persisted score for a user.
// Returns ErrNotFound when no score has been written yet.
func (s *Store) RelationshipScoreFor(ctx context.Context, userID string) (int, error) {
	var row RelationshipScore
	err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrCodeUnavailable, "reading relationship score", errors.WithUserID(userID))
	}
	return row.Score, nil
}

// PersonaPromptByName returns the stored prompt content for name.
// Returns ErrNotFound when no such prompt exists.
func (s *Store) PersonaPromptByName(ctx context.Context, name string) (string, error) {
	var row PersonaPrompt
	err := s.db.WithContext(ctx).First(&row, "name = ?", name).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrCodeUnavailable, "reading persona prompt")
	}
	return row.Content, nil
}

// SetPersonaPrompt upserts a named prompt.
func (s *Store) SetPersonaPrompt(ctx context.Context, name, content string) error {
	now := s.nowFunc()

	var existing PersonaPrompt
	err := s.db.WithContext(ctx).First(&existing, "name = ?", name).Error
	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		err = s.db.WithContext(ctx).Create(&PersonaPrompt{Name: name, Content: content, UpdatedAt: now}).Error
	case err == nil:
		err = s.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"content":    content,
			"updated_at": now,
		}).Error
	}
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeUnavailable, "writing persona prompt")
	}
	return nil
}
