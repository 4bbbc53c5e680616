package ws

import (
	"context"
	"encoding/json"
	"time"
	"unicode/utf8"

	"persona-chat/backend/internal/models"
	apperrors "persona-chat/backend/pkg/errors"
)

// Inbound event types.
const (
	EventJoinCharacter  = "join-character"
	EventSendMessage    = "send-message"
	EventTyping         = "typing"
	EventLeaveCharacter = "leave-character"
	EventPing           = "ping"
)

// Outbound event types.
const (
	EventJoinedCharacter = "joined-character"
	EventLeftCharacter   = "left-character"
	EventMessage         = "message"
	EventUserTyping      = "user-typing"
	EventError           = "error"
	EventPong            = "pong"
)

// FallbackResponse is persisted and emitted in place of a generated
// reply when the generation backend fails, so history never shows a gap.
const FallbackResponse = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

// User-facing error strings. The HTTP routes use the same wording.
const (
	errCharacterNotFound = "Character not found"
	errCharacterPrivate  = "Character is private"
	errGenerationFailed  = "Failed to generate AI response"
	errSendFailed        = "Failed to send message"
	errJoinFailed        = "Failed to join character chat"
)

type sendMessagePayload struct {
	CharacterID string `json:"characterId"`
	Content     string `json:"content"`
}

type typingPayload struct {
	CharacterID string `json:"characterId"`
	IsTyping    bool   `json:"isTyping"`
}

type messageEvent struct {
	ID          string    `json:"id"`
	CharacterID string    `json:"characterId"`
	Content     string    `json:"content"`
	Role        string    `json:"role"`
	Timestamp   time.Time `json:"timestamp"`
}

func (c *Client) handleEvent(event Event) {
	switch event.Type {
	case EventJoinCharacter:
		id, ok := c.decodeCharacterID(event.Content)
		if !ok {
			c.sendError(errJoinFailed)
			return
		}
		c.handleJoin(id)
	case EventSendMessage:
		var payload sendMessagePayload
		if err := json.Unmarshal(event.Content, &payload); err != nil {
			c.sendError(errSendFailed)
			return
		}
		c.handleSendMessage(payload.CharacterID, payload.Content)
	case EventTyping:
		var payload typingPayload
		if err := json.Unmarshal(event.Content, &payload); err != nil {
			return
		}
		c.handleTyping(payload.CharacterID, payload.IsTyping)
	case EventLeaveCharacter:
		if id, ok := c.decodeCharacterID(event.Content); ok {
			c.handleLeave(id)
		}
	case EventPing:
		c.send(EventPong, nil)
	default:
		c.Hub.log.Debug("unknown event type", "conn_id", c.ID, "type", event.Type)
	}
}

// decodeCharacterID accepts either a bare string or {"characterId": ...}.
func (c *Client) decodeCharacterID(raw json.RawMessage) (string, bool) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil && id != "" {
		return id, true
	}
	var payload struct {
		CharacterID string `json:"characterId"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.CharacterID != "" {
		return payload.CharacterID, true
	}
	return "", false
}

// handleJoin checks existence and access, then adds the session to the
// character's room. Failures notify only this connection and leave the
// membership set untouched.
func (c *Client) handleJoin(characterID string) {
	character, err := c.fetchAccessible(characterID, errJoinFailed)
	if err != nil {
		return
	}

	c.Hub.joinRoom(roomKey(character.ID), c)
	c.rooms[character.ID] = true
	c.send(EventJoinedCharacter, map[string]string{"characterId": character.ID})
}

// handleLeave removes the session from the room unconditionally. Leaving
// a room never joined is safe and still acknowledged.
func (c *Client) handleLeave(characterID string) {
	c.Hub.leaveRoom(roomKey(characterID), c)
	delete(c.rooms, characterID)
	delete(c.typing, characterID)
	c.send(EventLeftCharacter, map[string]string{"characterId": characterID})
}

// handleSendMessage persists the user message, obtains an assistant
// reply and persists and emits it. Access is re-checked on every send;
// an earlier join is never trusted.
func (c *Client) handleSendMessage(characterID, content string) {
	// Rune count, not bytes, so the limit matches the HTTP route's
	// max=2000 binding.
	if content == "" || utf8.RuneCountInString(content) > models.MaxMessageLength {
		c.sendError(errSendFailed)
		return
	}

	character, err := c.fetchAccessible(characterID, errSendFailed)
	if err != nil {
		return
	}

	ctx := context.Background()

	userMessage := &models.Message{
		UserID:      c.UserID,
		CharacterID: character.ID,
		Content:     content,
		Role:        models.RoleUser,
	}
	if err := c.Hub.messages.Save(ctx, userMessage); err != nil {
		c.Hub.log.LogError(err, "persist user message", "conn_id", c.ID, "character_id", character.ID)
		c.sendError(errSendFailed)
		return
	}
	c.emitMessage(userMessage)

	if c.Hub.metrics != nil {
		c.Hub.metrics.MessagesSent.Inc()
	}

	start := time.Now()
	reply, err := c.Hub.generator.Generate(ctx, character.ID, c.UserID, content)
	if c.Hub.metrics != nil {
		c.Hub.metrics.GenerationLatency.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		c.Hub.log.LogError(err, "generate response", "conn_id", c.ID, "character_id", character.ID)
		if c.Hub.metrics != nil {
			c.Hub.metrics.GenerationFailures.Inc()
		}
		c.sendError(errGenerationFailed)

		// Persist a fixed fallback reply so the conversation history
		// stays coherent. The message counter is not bumped on this
		// path.
		fallback := &models.Message{
			UserID:      c.UserID,
			CharacterID: character.ID,
			Content:     FallbackResponse,
			Role:        models.RoleAssistant,
		}
		if err := c.Hub.messages.Save(ctx, fallback); err != nil {
			c.Hub.log.LogError(err, "persist fallback message", "conn_id", c.ID, "character_id", character.ID)
			c.sendError(errSendFailed)
			return
		}
		c.emitMessage(fallback)
		return
	}

	assistantMessage := &models.Message{
		UserID:      c.UserID,
		CharacterID: character.ID,
		Content:     reply,
		Role:        models.RoleAssistant,
	}
	if err := c.Hub.messages.Save(ctx, assistantMessage); err != nil {
		c.Hub.log.LogError(err, "persist assistant message", "conn_id", c.ID, "character_id", character.ID)
		c.sendError(errSendFailed)
		return
	}
	c.emitMessage(assistantMessage)

	// Best-effort popularity counter; failures are logged, never
	// surfaced.
	if err := c.Hub.characters.IncrementMessageCount(ctx, character.ID); err != nil {
		c.Hub.log.Warn("increment message count failed", "character_id", character.ID, "error", err.Error())
	}
}

// handleTyping relays the indicator to every other member of the room.
// The sender never observes its own typing events.
func (c *Client) handleTyping(characterID string, isTyping bool) {
	c.typing[characterID] = isTyping
	data := marshalEvent(EventUserTyping, map[string]interface{}{
		"userId":      c.UserID,
		"characterId": characterID,
		"isTyping":    isTyping,
	})
	c.Hub.broadcastToRoom(roomKey(characterID), data, c)
}

// fetchAccessible resolves a character and applies the shared access
// predicate, emitting the appropriate error event on failure. failMsg
// is the operation-specific message for store failures.
func (c *Client) fetchAccessible(characterID, failMsg string) (*models.Character, error) {
	character, err := c.Hub.characters.GetByID(context.Background(), characterID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeCharacterNotFound) {
			c.sendError(errCharacterNotFound)
		} else {
			c.Hub.log.LogError(err, "fetch character", "conn_id", c.ID, "character_id", characterID)
			c.sendError(failMsg)
		}
		return nil, err
	}
	if !character.CanAccess(c.UserID) {
		c.sendError(errCharacterPrivate)
		return nil, apperrors.NewForbiddenError(apperrors.CodeCharacterPrivate, errCharacterPrivate)
	}
	return character, nil
}

func (c *Client) emitMessage(m *models.Message) {
	c.send(EventMessage, messageEvent{
		ID:          m.ID,
		CharacterID: m.CharacterID,
		Content:     m.Content,
		Role:        m.Role,
		Timestamp:   m.Timestamp,
	})
}

func (c *Client) sendError(message string) {
	c.send(EventError, map[string]string{"message": message})
}
