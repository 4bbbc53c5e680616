package api

import (
	"context"
	"net/http"

	"persona-chat/backend/internal/models"
	apperrors "persona-chat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// MessageService is the message surface the HTTP layer needs.
type MessageService interface {
	Save(ctx context.Context, message *models.Message) error
	History(ctx context.Context, userID, characterID string, page, limit int) ([]models.Message, int64, error)
	DeleteHistory(ctx context.Context, userID, characterID string) error
}

// CharacterCounter bumps the per-character message counter.
type CharacterCounter interface {
	IncrementMessageCount(ctx context.Context, id string) error
}

// ChatHandler serves the request/response companion routes to the
// realtime channel: history replay, non-realtime send, bulk delete.
type ChatHandler struct {
	characters CharacterService
	counter    CharacterCounter
	messages   MessageService
}

// NewChatHandler creates the chat handler.
func NewChatHandler(characters CharacterService, counter CharacterCounter, messages MessageService) *ChatHandler {
	return &ChatHandler{characters: characters, counter: counter, messages: messages}
}

// RegisterRoutes mounts the chat routes. All require authentication.
func (h *ChatHandler) RegisterRoutes(router gin.IRouter, authRequired gin.HandlerFunc) {
	group := router.Group("/api/chat")
	group.Use(authRequired)
	group.GET("/history/:characterId", h.History)
	group.POST("/send/:characterId", h.Send)
	group.DELETE("/history/:characterId", h.DeleteHistory)
}

// History returns the paginated conversation between the caller and a
// character, oldest first. Applies the same access predicate as the
// realtime path.
func (h *ChatHandler) History(c *gin.Context) {
	userID := c.GetString("userId")
	characterID := c.Param("characterId")

	if _, err := h.accessibleCharacter(c, characterID, userID); err != nil {
		c.Error(err)
		return
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 50)

	messages, total, err := h.messages.History(c.Request.Context(), userID, characterID, page, limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":   messages,
		"pagination": paginationMeta(page, limit, total),
	})
}

// Send is the non-realtime send route. It persists the user message and
// a placeholder assistant reply; the realtime channel is where actual
// generation happens.
func (h *ChatHandler) Send(c *gin.Context) {
	userID := c.GetString("userId")
	characterID := c.Param("characterId")

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeValidationFailed, err.Error()))
		return
	}

	character, err := h.accessibleCharacter(c, characterID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	userMessage := &models.Message{
		UserID:      userID,
		CharacterID: character.ID,
		Content:     req.Content,
		Role:        models.RoleUser,
	}
	if err := h.messages.Save(c.Request.Context(), userMessage); err != nil {
		c.Error(err)
		return
	}

	assistantMessage := &models.Message{
		UserID:      userID,
		CharacterID: character.ID,
		Content:     "This is a placeholder response. Real-time chat will handle AI responses.",
		Role:        models.RoleAssistant,
	}
	if err := h.messages.Save(c.Request.Context(), assistantMessage); err != nil {
		c.Error(err)
		return
	}

	// Best-effort counter, same as the realtime path.
	_ = h.counter.IncrementMessageCount(c.Request.Context(), character.ID)

	c.JSON(http.StatusOK, gin.H{
		"userMessage": userMessage,
		"aiResponse":  assistantMessage,
	})
}

// DeleteHistory removes every message between the caller and a
// character.
func (h *ChatHandler) DeleteHistory(c *gin.Context) {
	userID := c.GetString("userId")
	characterID := c.Param("characterId")

	if _, err := h.characters.GetByID(c.Request.Context(), characterID); err != nil {
		c.Error(err)
		return
	}

	if err := h.messages.DeleteHistory(c.Request.Context(), userID, characterID); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Chat history deleted successfully"})
}

func (h *ChatHandler) accessibleCharacter(c *gin.Context, characterID, userID string) (*models.Character, error) {
	character, err := h.characters.GetByID(c.Request.Context(), characterID)
	if err != nil {
		return nil, err
	}
	if !character.CanAccess(userID) {
		return nil, apperrors.NewForbiddenError(apperrors.CodeCharacterPrivate, "Character is private")
	}
	return character, nil
}
