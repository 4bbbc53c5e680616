package service

import (
	"context"

	"persona-chat/backend/internal/models"
	apperrors "persona-chat/backend/pkg/errors"

	"gorm.io/gorm"
)

// MessageService owns Message persistence for (user, character) pairs.
type MessageService struct {
	db *gorm.DB
}

// NewMessageService creates a message service.
func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// Save persists a new message.
func (s *MessageService) Save(ctx context.Context, message *models.Message) error {
	if err := s.db.WithContext(ctx).Create(message).Error; err != nil {
		return apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to save message")
	}
	return nil
}

// History returns messages for a (user, character) pair in timestamp
// ascending order, paginated, plus the total count.
func (s *MessageService) History(ctx context.Context, userID, characterID string, page, limit int) ([]models.Message, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("user_id = ? AND character_id = ?", userID, characterID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to fetch chat history")
	}

	var messages []models.Message
	err := query.
		Order("timestamp ASC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&messages).Error
	if err != nil {
		return nil, 0, apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to fetch chat history")
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, total, nil
}

// Recent returns the most recent limit messages for a (user, character)
// pair in chronological order, most recent last.
func (s *MessageService) Recent(ctx context.Context, userID, characterID string, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND character_id = ?", userID, characterID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to fetch recent messages")
	}

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// DeleteHistory removes every message between a user and a character.
func (s *MessageService) DeleteHistory(ctx context.Context, userID, characterID string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND character_id = ?", userID, characterID).
		Delete(&models.Message{}).Error
	if err != nil {
		return apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to delete chat history")
	}
	return nil
}
