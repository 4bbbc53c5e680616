package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"persona-chat/backend/internal/models"
	"persona-chat/backend/internal/service"
	apperrors "persona-chat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// CharacterService is the character surface the HTTP layer needs.
type CharacterService interface {
	Create(ctx context.Context, userID string, req *models.CreateCharacterRequest) (*models.Character, error)
	GetByID(ctx context.Context, id string) (*models.Character, error)
	ListPublic(ctx context.Context, opts service.CharacterListOptions) ([]models.Character, int64, error)
	ListByOwner(ctx context.Context, userID string, page, limit int) ([]models.Character, int64, error)
	Update(ctx context.Context, id, userID string, req *models.CreateCharacterRequest) (*models.Character, error)
	Delete(ctx context.Context, id, userID string) error
}

// CharacterHandler serves character CRUD.
type CharacterHandler struct {
	characters CharacterService
}

// NewCharacterHandler creates the character handler.
func NewCharacterHandler(characters CharacterService) *CharacterHandler {
	return &CharacterHandler{characters: characters}
}

// RegisterRoutes mounts the character routes.
func (h *CharacterHandler) RegisterRoutes(router gin.IRouter, authRequired, authOptional gin.HandlerFunc) {
	group := router.Group("/api/characters")
	group.GET("", h.List)
	group.GET("/:id", authOptional, h.Get)
	group.POST("", authRequired, h.Create)
	group.PUT("/:id", authRequired, h.Update)
	group.DELETE("/:id", authRequired, h.Delete)
	group.GET("/user/my-characters", authRequired, h.ListMine)
}

// List returns public characters, most chatted-with first.
func (h *CharacterHandler) List(c *gin.Context) {
	opts := service.CharacterListOptions{
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
		Search: c.Query("search"),
	}
	if tags := c.Query("tags"); tags != "" {
		opts.Tags = strings.Split(tags, ",")
	}

	characters, total, err := h.characters.ListPublic(c.Request.Context(), opts)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"characters": characters,
		"pagination": paginationMeta(opts.Page, opts.Limit, total),
	})
}

// Get returns one character, applying the shared access predicate.
// Anonymous callers only see public characters.
func (h *CharacterHandler) Get(c *gin.Context) {
	character, err := h.characters.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	if !character.CanAccess(c.GetString("userId")) {
		c.Error(apperrors.NewForbiddenError(apperrors.CodeCharacterPrivate, "Character is private"))
		return
	}

	c.JSON(http.StatusOK, character)
}

func (h *CharacterHandler) Create(c *gin.Context) {
	var req models.CreateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeValidationFailed, err.Error()))
		return
	}

	character, err := h.characters.Create(c.Request.Context(), c.GetString("userId"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, character)
}

func (h *CharacterHandler) Update(c *gin.Context) {
	var req models.CreateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeValidationFailed, err.Error()))
		return
	}

	character, err := h.characters.Update(c.Request.Context(), c.Param("id"), c.GetString("userId"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, character)
}

func (h *CharacterHandler) Delete(c *gin.Context) {
	if err := h.characters.Delete(c.Request.Context(), c.Param("id"), c.GetString("userId")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Character deleted successfully"})
}

func (h *CharacterHandler) ListMine(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	characters, total, err := h.characters.ListByOwner(c.Request.Context(), c.GetString("userId"), page, limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"characters": characters,
		"pagination": paginationMeta(page, limit, total),
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func paginationMeta(page, limit int, total int64) gin.H {
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return gin.H{
		"page":  page,
		"limit": limit,
		"total": total,
		"pages": pages,
	}
}
