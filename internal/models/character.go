package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultGreeting is used when a character is created without one.
const DefaultGreeting = "Hello! I'm excited to meet you!"

// Character is an AI persona users can chat with.
type Character struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid"`
	Name         string    `json:"name" gorm:"not null;size:50"`
	Description  string    `json:"description" gorm:"not null;size:500"`
	Personality  string    `json:"personality" gorm:"not null;size:1000"`
	Avatar       string    `json:"avatar" gorm:"not null"`
	Background   string    `json:"background,omitempty" gorm:"size:1000"`
	Greeting     string    `json:"greeting" gorm:"size:200"`
	CreatedBy    string    `json:"createdBy" gorm:"index;type:uuid;not null"`
	IsPublic     bool      `json:"isPublic" gorm:"default:true"`
	Tags         []string  `json:"tags" gorm:"serializer:json"`
	MessageCount int64     `json:"messageCount" gorm:"default:0"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CanAccess reports whether userID may read or chat with the character.
// The realtime path and the HTTP history routes both use this predicate;
// the two must never diverge.
func (c *Character) CanAccess(userID string) bool {
	return c.IsPublic || c.CreatedBy == userID
}

// IsOwner reports whether userID created the character. Mutating routes
// (update, delete) require ownership, not just access.
func (c *Character) IsOwner(userID string) bool {
	return c.CreatedBy == userID
}

func (c *Character) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Greeting == "" {
		c.Greeting = DefaultGreeting
	}
	return nil
}

// CreateCharacterRequest carries the payload for character creation and
// update. Field limits mirror the persisted column sizes.
type CreateCharacterRequest struct {
	Name        string   `json:"name" binding:"required,min=1,max=50"`
	Description string   `json:"description" binding:"required,min=1,max=500"`
	Personality string   `json:"personality" binding:"required,min=1,max=1000"`
	Avatar      string   `json:"avatar" binding:"required,url"`
	Background  string   `json:"background" binding:"omitempty,max=1000"`
	Greeting    string   `json:"greeting" binding:"omitempty,max=200"`
	IsPublic    *bool    `json:"isPublic"`
	Tags        []string `json:"tags" binding:"omitempty,dive,max=20"`
}
