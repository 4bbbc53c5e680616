package service

import (
	"context"
	"errors"

	"persona-chat/backend/internal/models"
	apperrors "persona-chat/backend/pkg/errors"
	"persona-chat/backend/pkg/jwt"

	"gorm.io/gorm"
)

// UserService owns account registration and login.
type UserService struct {
	db  *gorm.DB
	jwt *jwt.Service
}

// NewUserService creates a user service.
func NewUserService(db *gorm.DB, jwtService *jwt.Service) *UserService {
	return &UserService{db: db, jwt: jwtService}
}

// Register creates an account and returns the user plus an access token.
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, string, error) {
	var existing models.User
	err := s.db.WithContext(ctx).
		Where("email = ? OR username = ?", req.Email, req.Username).
		First(&existing).Error
	if err == nil {
		return nil, "", apperrors.NewConflictError("USER_EXISTS", "Username or email already in use")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to create user")
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, "", apperrors.NewInternalServerError(apperrors.CodeInternal, "Failed to create user")
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, "", apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to create user")
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, "", apperrors.NewInternalServerError(apperrors.CodeInternal, "Failed to issue token")
	}
	return user, token, nil
}

// Login verifies credentials and returns the user plus an access token.
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", req.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", apperrors.NewUnauthorizedError("INVALID_CREDENTIALS", "Invalid email or password")
	}
	if err != nil {
		return nil, "", apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to log in")
	}

	if !user.CheckPassword(req.Password) {
		return nil, "", apperrors.NewUnauthorizedError("INVALID_CREDENTIALS", "Invalid email or password")
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, "", apperrors.NewInternalServerError(apperrors.CodeInternal, "Failed to issue token")
	}
	return &user, token, nil
}

// GetByID fetches a user by id.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("USER_NOT_FOUND", "User not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalServerError(apperrors.CodePersistenceFailed, "Failed to fetch user")
	}
	return &user, nil
}
