package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"persona-chat/backend/internal/models"
	apperrors "persona-chat/backend/pkg/errors"
	"persona-chat/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCharacterRouter(characters *fakeCharacterService, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(apperrors.ErrorHandler())
	NewCharacterHandler(characters).RegisterRoutes(router, authAs(userID), authAs(userID))
	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func validCreatePayload() gin.H {
	return gin.H{
		"name":        "Luna",
		"description": "A mystical forest guardian.",
		"personality": "wise and mystical",
		"avatar":      "https://example.com/luna.png",
	}
}

func TestGetPublicCharacterAnonymous(t *testing.T) {
	character := privateCharacter("char-1", "A")
	character.IsPublic = true
	router := newCharacterRouter(newFakeCharacterService(character), "")

	w := perform(router, http.MethodGet, "/api/characters/char-1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got models.Character
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "char-1", got.ID)
}

func TestGetPrivateCharacterAnonymousForbidden(t *testing.T) {
	router := newCharacterRouter(newFakeCharacterService(privateCharacter("char-1", "A")), "")

	w := perform(router, http.MethodGet, "/api/characters/char-1", nil)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperrors.CodeCharacterPrivate, errorCode(t, w))
}

func TestGetPrivateCharacterOwner(t *testing.T) {
	router := newCharacterRouter(newFakeCharacterService(privateCharacter("char-1", "A")), "A")

	w := perform(router, http.MethodGet, "/api/characters/char-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateCharacter(t *testing.T) {
	characters := newFakeCharacterService()
	router := newCharacterRouter(characters, "A")

	w := perform(router, http.MethodPost, "/api/characters", validCreatePayload())

	require.Equal(t, http.StatusCreated, w.Code)
	var got models.Character
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Luna", got.Name)
	assert.Equal(t, "A", got.CreatedBy)
	assert.True(t, got.IsPublic)
	assert.Equal(t, models.DefaultGreeting, got.Greeting)
}

func TestCreateCharacterValidation(t *testing.T) {
	router := newCharacterRouter(newFakeCharacterService(), "A")

	payload := validCreatePayload()
	delete(payload, "name")
	w := perform(router, http.MethodPost, "/api/characters", payload)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidationFailed, errorCode(t, w))

	payload = validCreatePayload()
	payload["avatar"] = "not-a-url"
	w = perform(router, http.MethodPost, "/api/characters", payload)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateCharacterRequiresOwnership(t *testing.T) {
	router := newCharacterRouter(newFakeCharacterService(privateCharacter("char-1", "A")), "B")

	w := perform(router, http.MethodPut, "/api/characters/char-1", validCreatePayload())

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperrors.CodeNotAuthorized, errorCode(t, w))
}

func TestDeleteCharacterRequiresOwnership(t *testing.T) {
	characters := newFakeCharacterService(privateCharacter("char-1", "A"))

	w := perform(newCharacterRouter(characters, "B"), http.MethodDelete, "/api/characters/char-1", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = perform(newCharacterRouter(characters, "A"), http.MethodDelete, "/api/characters/char-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, characters.characters)
}

func TestListPublicCharacters(t *testing.T) {
	public := privateCharacter("char-1", "A")
	public.IsPublic = true
	hidden := privateCharacter("char-2", "A")
	router := newCharacterRouter(newFakeCharacterService(public, hidden), "")

	w := perform(router, http.MethodGet, "/api/characters", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Characters []models.Character `json:"characters"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Characters, 1)
	assert.Equal(t, "char-1", body.Characters[0].ID)
	assert.Equal(t, int64(1), body.Pagination.Total)
}

func TestListCharactersSearchMatchesTags(t *testing.T) {
	tagged := privateCharacter("char-1", "A")
	tagged.IsPublic = true
	tagged.Tags = []string{"Mystical", "Guidance"}
	untagged := privateCharacter("char-2", "A")
	untagged.IsPublic = true
	router := newCharacterRouter(newFakeCharacterService(tagged, untagged), "")

	w := perform(router, http.MethodGet, "/api/characters?search=mystical", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Characters []models.Character `json:"characters"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Characters, 1)
	assert.Equal(t, "char-1", body.Characters[0].ID)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtService := jwt.NewService("test-secret", time.Hour)

	router := gin.New()
	router.GET("/protected", AuthMiddleware(jwtService), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": c.GetString("userId")})
	})

	w := perform(router, http.MethodGet, "/protected", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jwtService.GenerateToken("user-1", "user@example.com")
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = performRequest(router, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")

	req, _ = http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = performRequest(router, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
