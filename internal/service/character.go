package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"persona-chat/backend/internal/models"
	apperrors "persona-chat/backend/pkg/errors"
	"persona-chat/backend/pkg/logger"
	"persona-chat/backend/shared/redis"

	"gorm.io/gorm"
)

// CharacterListOptions filters and paginates character listings.
type CharacterListOptions struct {
	Page   int
	Limit  int
	Search string
	Tags   []string
}

// CharacterService owns Character persistence. Lookups are optionally
// cached in redis; writes invalidate the cached entry.
type CharacterService struct {
	db    *gorm.DB
	cache *redis.Client
	log   *logger.Logger
}

// NewCharacterService creates a character service. cache may be nil.
func NewCharacterService(db *gorm.DB, cache *redis.Client, log *logger.Logger) *CharacterService {
	return &CharacterService{db: db, cache: cache, log: log}
}

func characterCacheKey(id string) string {
	return "character:" + id
}

// Create persists a new character owned by userID.
func (s *CharacterService) Create(ctx context.Context, userID string, req *models.CreateCharacterRequest) (*models.Character, error) {
	character := &models.Character{
		Name:        req.Name,
		Description: req.Description,
		Personality: req.Personality,
		Avatar:      req.Avatar,
		Background:  req.Background,
		Greeting:    req.Greeting,
		CreatedBy:   userID,
		IsPublic:    true,
		Tags:        req.Tags,
	}
	if req.IsPublic != nil {
		character.IsPublic = *req.IsPublic
	}

	if err := s.db.WithContext(ctx).Create(character).Error; err != nil {
		return nil, apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to create character")
	}
	return character, nil
}

// GetByID fetches a character, consulting the redis cache first.
func (s *CharacterService) GetByID(ctx context.Context, id string) (*models.Character, error) {
	if s.cache != nil {
		var cached models.Character
		if found, err := s.cache.GetJSON(ctx, characterCacheKey(id), &cached); err == nil && found {
			return &cached, nil
		}
	}

	var character models.Character
	err := s.db.WithContext(ctx).First(&character, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError(apperrors.CodeCharacterNotFound, "Character not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to fetch character")
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, characterCacheKey(id), &character); err != nil {
			s.log.Warn("character cache write failed", "character_id", id, "error", err.Error())
		}
	}
	return &character, nil
}

// ListPublic returns public characters sorted by popularity then recency.
func (s *CharacterService) ListPublic(ctx context.Context, opts CharacterListOptions) ([]models.Character, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Character{}).Where("is_public = ?", true)

	if opts.Search != "" {
		needle := "%" + strings.ToLower(opts.Search) + "%"
		query = query.Where(
			"LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(tags::text) LIKE ?",
			needle, needle, needle,
		)
	}
	for _, tag := range opts.Tags {
		query = query.Where("tags::text LIKE ?", fmt.Sprintf("%%%q%%", strings.TrimSpace(tag)))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to list characters")
	}

	var characters []models.Character
	err := query.
		Order("message_count DESC, created_at DESC").
		Limit(opts.Limit).
		Offset((opts.Page - 1) * opts.Limit).
		Find(&characters).Error
	if err != nil {
		return nil, 0, apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to list characters")
	}
	if characters == nil {
		characters = []models.Character{}
	}
	return characters, total, nil
}

// ListByOwner returns the characters created by userID, newest first.
func (s *CharacterService) ListByOwner(ctx context.Context, userID string, page, limit int) ([]models.Character, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Character{}).Where("created_by = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to list characters")
	}

	var characters []models.Character
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&characters).Error
	if err != nil {
		return nil, 0, apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to list characters")
	}
	if characters == nil {
		characters = []models.Character{}
	}
	return characters, total, nil
}

// Update overwrites a character's profile. Only the owner may update.
func (s *CharacterService) Update(ctx context.Context, id, userID string, req *models.CreateCharacterRequest) (*models.Character, error) {
	character, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !character.IsOwner(userID) {
		return nil, apperrors.NewForbiddenError(apperrors.CodeNotAuthorized, "Not authorized to update this character")
	}

	character.Name = req.Name
	character.Description = req.Description
	character.Personality = req.Personality
	character.Avatar = req.Avatar
	character.Background = req.Background
	if req.Greeting != "" {
		character.Greeting = req.Greeting
	}
	if req.IsPublic != nil {
		character.IsPublic = *req.IsPublic
	}
	character.Tags = req.Tags

	if err := s.db.WithContext(ctx).Save(character).Error; err != nil {
		return nil, apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to update character")
	}
	s.invalidate(ctx, id)
	return character, nil
}

// Delete removes a character. Only the owner may delete.
func (s *CharacterService) Delete(ctx context.Context, id, userID string) error {
	character, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !character.IsOwner(userID) {
		return apperrors.NewForbiddenError(apperrors.CodeNotAuthorized, "Not authorized to delete this character")
	}

	if err := s.db.WithContext(ctx).Delete(&models.Character{}, "id = ?", id).Error; err != nil {
		return apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to delete character")
	}
	s.invalidate(ctx, id)
	return nil
}

// IncrementMessageCount bumps the character's message counter with a
// single atomic column update, not read-modify-write. The counter is
// best-effort: callers treat failures as non-fatal.
func (s *CharacterService) IncrementMessageCount(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Character{}).
		Where("id = ?", id).
		UpdateColumn("message_count", gorm.Expr("message_count + ?", 1)).Error
	if err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CharacterService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, characterCacheKey(id)); err != nil {
		s.log.Warn("character cache invalidation failed", "character_id", id, "error", err.Error())
	}
}
