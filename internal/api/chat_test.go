package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"persona-chat/backend/internal/models"
	"persona-chat/backend/internal/service"
	apperrors "persona-chat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCharacterService struct {
	characters map[string]*models.Character
	increments map[string]int
}

func newFakeCharacterService(characters ...*models.Character) *fakeCharacterService {
	s := &fakeCharacterService{
		characters: make(map[string]*models.Character),
		increments: make(map[string]int),
	}
	for _, c := range characters {
		s.characters[c.ID] = c
	}
	return s
}

func (s *fakeCharacterService) Create(ctx context.Context, userID string, req *models.CreateCharacterRequest) (*models.Character, error) {
	character := &models.Character{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Personality: req.Personality,
		Avatar:      req.Avatar,
		Background:  req.Background,
		Greeting:    req.Greeting,
		CreatedBy:   userID,
		IsPublic:    req.IsPublic == nil || *req.IsPublic,
		Tags:        req.Tags,
	}
	if character.Greeting == "" {
		character.Greeting = models.DefaultGreeting
	}
	s.characters[character.ID] = character
	return character, nil
}

func (s *fakeCharacterService) GetByID(ctx context.Context, id string) (*models.Character, error) {
	if c, ok := s.characters[id]; ok {
		return c, nil
	}
	return nil, apperrors.NewNotFoundError(apperrors.CodeCharacterNotFound, "Character not found")
}

func (s *fakeCharacterService) ListPublic(ctx context.Context, opts service.CharacterListOptions) ([]models.Character, int64, error) {
	var out []models.Character
	for _, c := range s.characters {
		if c.IsPublic && characterMatchesSearch(c, opts.Search) {
			out = append(out, *c)
		}
	}
	return out, int64(len(out)), nil
}

// characterMatchesSearch mirrors the persistence layer's search clause:
// a term matches on name, description or tags.
func characterMatchesSearch(c *models.Character, search string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	if strings.Contains(strings.ToLower(c.Name), needle) ||
		strings.Contains(strings.ToLower(c.Description), needle) {
		return true
	}
	for _, tag := range c.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func (s *fakeCharacterService) ListByOwner(ctx context.Context, userID string, page, limit int) ([]models.Character, int64, error) {
	var out []models.Character
	for _, c := range s.characters {
		if c.CreatedBy == userID {
			out = append(out, *c)
		}
	}
	return out, int64(len(out)), nil
}

func (s *fakeCharacterService) Update(ctx context.Context, id, userID string, req *models.CreateCharacterRequest) (*models.Character, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsOwner(userID) {
		return nil, apperrors.NewForbiddenError(apperrors.CodeNotAuthorized, "Not authorized to update this character")
	}
	c.Name = req.Name
	c.Description = req.Description
	c.Personality = req.Personality
	return c, nil
}

func (s *fakeCharacterService) Delete(ctx context.Context, id, userID string) error {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !c.IsOwner(userID) {
		return apperrors.NewForbiddenError(apperrors.CodeNotAuthorized, "Not authorized to delete this character")
	}
	delete(s.characters, id)
	return nil
}

func (s *fakeCharacterService) IncrementMessageCount(ctx context.Context, id string) error {
	s.increments[id]++
	return nil
}

type fakeMessageService struct {
	messages []models.Message
}

func (s *fakeMessageService) Save(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	s.messages = append(s.messages, *m)
	return nil
}

func (s *fakeMessageService) History(ctx context.Context, userID, characterID string, page, limit int) ([]models.Message, int64, error) {
	var out []models.Message
	for _, m := range s.messages {
		if m.UserID == userID && m.CharacterID == characterID {
			out = append(out, m)
		}
	}
	return out, int64(len(out)), nil
}

func (s *fakeMessageService) DeleteHistory(ctx context.Context, userID, characterID string) error {
	var kept []models.Message
	for _, m := range s.messages {
		if m.UserID != userID || m.CharacterID != characterID {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return nil
}

// authAs binds a fixed user id, standing in for the JWT middleware.
func authAs(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID != "" {
			c.Set("userId", userID)
		}
		c.Next()
	}
}

func newChatRouter(characters *fakeCharacterService, messages *fakeMessageService, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(apperrors.ErrorHandler())
	NewChatHandler(characters, characters, messages).RegisterRoutes(router, authAs(userID))
	return router
}

func perform(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func privateCharacter(id, owner string) *models.Character {
	return &models.Character{
		ID:        id,
		Name:      "Echo",
		CreatedBy: owner,
		IsPublic:  false,
	}
}

func TestHistoryOwnerCanReadPrivate(t *testing.T) {
	characters := newFakeCharacterService(privateCharacter("char-1", "A"))
	messages := &fakeMessageService{}
	messages.Save(context.Background(), &models.Message{UserID: "A", CharacterID: "char-1", Content: "hi", Role: models.RoleUser})
	router := newChatRouter(characters, messages, "A")

	w := perform(router, http.MethodGet, "/api/chat/history/char-1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Messages, 1)
}

func TestHistoryPrivateCharacterForbidden(t *testing.T) {
	characters := newFakeCharacterService(privateCharacter("char-1", "A"))
	router := newChatRouter(characters, &fakeMessageService{}, "B")

	w := perform(router, http.MethodGet, "/api/chat/history/char-1", nil)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperrors.CodeCharacterPrivate, errorCode(t, w))
}

func TestHistoryCharacterNotFound(t *testing.T) {
	router := newChatRouter(newFakeCharacterService(), &fakeMessageService{}, "A")

	w := perform(router, http.MethodGet, "/api/chat/history/missing", nil)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeCharacterNotFound, errorCode(t, w))
}

func TestSendPersistsPlaceholderPair(t *testing.T) {
	character := privateCharacter("char-1", "A")
	character.IsPublic = true
	characters := newFakeCharacterService(character)
	messages := &fakeMessageService{}
	router := newChatRouter(characters, messages, "B")

	w := perform(router, http.MethodPost, "/api/chat/send/char-1", gin.H{"content": "hello"})

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, messages.messages, 2)
	assert.Equal(t, models.RoleUser, messages.messages[0].Role)
	assert.Equal(t, "hello", messages.messages[0].Content)
	assert.Equal(t, models.RoleAssistant, messages.messages[1].Role)
	assert.Equal(t, 1, characters.increments["char-1"])
}

func TestSendValidatesContent(t *testing.T) {
	character := privateCharacter("char-1", "A")
	character.IsPublic = true
	router := newChatRouter(newFakeCharacterService(character), &fakeMessageService{}, "B")

	w := perform(router, http.MethodPost, "/api/chat/send/char-1", gin.H{"content": ""})

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidationFailed, errorCode(t, w))
}

func TestDeleteHistoryRemovesOnlyCallersMessages(t *testing.T) {
	character := privateCharacter("char-1", "A")
	character.IsPublic = true
	characters := newFakeCharacterService(character)
	messages := &fakeMessageService{}
	messages.Save(context.Background(), &models.Message{UserID: "A", CharacterID: "char-1", Content: "mine", Role: models.RoleUser})
	messages.Save(context.Background(), &models.Message{UserID: "B", CharacterID: "char-1", Content: "theirs", Role: models.RoleUser})
	router := newChatRouter(characters, messages, "A")

	w := perform(router, http.MethodDelete, "/api/chat/history/char-1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, messages.messages, 1)
	assert.Equal(t, "B", messages.messages[0].UserID)
}
