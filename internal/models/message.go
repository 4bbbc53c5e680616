package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MaxMessageLength bounds user message content.
const MaxMessageLength = 2000

// Message is one turn of a (user, character) conversation. Messages are
// immutable once written; history deletion removes them in bulk per
// (user, character) pair.
type Message struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      string    `json:"userId" gorm:"index:idx_user_character_ts;type:uuid;not null"`
	CharacterID string    `json:"characterId" gorm:"index:idx_user_character_ts;type:uuid;not null"`
	Content     string    `json:"content" gorm:"not null;size:2000"`
	Role        string    `json:"role" gorm:"not null"`
	Timestamp   time.Time `json:"timestamp" gorm:"index:idx_user_character_ts"`
	CreatedAt   time.Time `json:"-"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return nil
}

// SendMessageRequest is the payload for the non-realtime send route.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,min=1,max=2000"`
}
