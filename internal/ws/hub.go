package ws

import (
	"context"
	"sync"

	"persona-chat/backend/internal/models"
	"persona-chat/backend/pkg/logger"
	"persona-chat/backend/pkg/metrics"
)

// CharacterStore is the slice of character persistence the session
// layer needs.
type CharacterStore interface {
	GetByID(ctx context.Context, id string) (*models.Character, error)
	IncrementMessageCount(ctx context.Context, id string) error
}

// MessageStore persists chat messages.
type MessageStore interface {
	Save(ctx context.Context, message *models.Message) error
}

// ResponseGenerator produces an assistant reply for a user utterance.
type ResponseGenerator interface {
	Generate(ctx context.Context, characterID, userID, utterance string) (string, error)
}

// Hub tracks live connections and their character-room membership, and
// routes room broadcasts. Membership changes are synchronous so a
// client's event handlers always observe their own joins.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	characters CharacterStore
	messages   MessageStore
	generator  ResponseGenerator
	metrics    *metrics.Metrics
	log        *logger.Logger
}

// NewHub creates a hub wired to its collaborators.
func NewHub(characters CharacterStore, messages MessageStore, generator ResponseGenerator, m *metrics.Metrics, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		characters: characters,
		messages:   messages,
		generator:  generator,
		metrics:    m,
		log:        log,
	}
}

func roomKey(characterID string) string {
	return "character:" + characterID
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ActiveConnections.Inc()
	}
	h.log.Info("client registered", "conn_id", c.ID, "user_id", c.UserID)
}

// unregister removes the client and vacates every room it joined.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	c.closeSend()
	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}
	h.log.Info("client unregistered", "conn_id", c.ID, "user_id", c.UserID)
}

func (h *Hub) joinRoom(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
}

func (h *Hub) leaveRoom(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// broadcastToRoom delivers data to every member of room except sender.
func (h *Hub) broadcastToRoom(room string, data []byte, sender *Client) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for member := range h.rooms[room] {
		if member != sender {
			members = append(members, member)
		}
	}
	h.mu.RUnlock()

	for _, member := range members {
		member.sendRaw(data)
	}
}

// roomMembers reports how many connections share a room.
func (h *Hub) roomMembers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
