package ai

import (
	"context"
	"errors"
	"fmt"

	"persona-chat/backend/internal/models"
)

// historyWindow is how many past messages a generator considers.
const historyWindow = 10

// ErrGenerationFailed marks any failure of a response generation backend.
// The chat session layer converts it into the error-plus-fallback pair.
var ErrGenerationFailed = errors.New("failed to generate response")

// generationError wraps a cause so callers can match ErrGenerationFailed
// while logs keep the detail.
func generationError(cause error) error {
	return fmt.Errorf("%w: %v", ErrGenerationFailed, cause)
}

// ResponseGenerator produces an in-character reply to a user utterance.
// Implementations are interchangeable; the session layer depends on
// nothing else.
type ResponseGenerator interface {
	Generate(ctx context.Context, characterID, userID, utterance string) (string, error)
}

// CharacterFetcher is the slice of the character store generators need.
type CharacterFetcher interface {
	GetByID(ctx context.Context, id string) (*models.Character, error)
}

// HistoryFetcher is the slice of the message store generators need:
// the most recent messages in chronological order, most recent last.
type HistoryFetcher interface {
	Recent(ctx context.Context, userID, characterID string, limit int) ([]models.Message, error)
}
