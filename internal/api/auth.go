package api

import (
	"context"
	"net/http"
	"strings"

	"persona-chat/backend/internal/models"
	apperrors "persona-chat/backend/pkg/errors"
	"persona-chat/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// UserService is the account surface the auth handler needs.
type UserService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, string, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AuthHandler serves registration and login.
type AuthHandler struct {
	users UserService
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(users UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// RegisterRoutes mounts the auth routes.
func (h *AuthHandler) RegisterRoutes(router gin.IRouter, authRequired gin.HandlerFunc) {
	group := router.Group("/api/auth")
	group.POST("/register", h.Register)
	group.POST("/login", h.Login)
	group.GET("/me", authRequired, h.Me)
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeValidationFailed, err.Error()))
		return
	}

	user, token, err := h.users.Register(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeValidationFailed, err.Error()))
		return
	}

	user, token, err := h.users.Login(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// AuthMiddleware validates the bearer token and binds the user id to
// the request context under "userId".
func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": apperrors.CodeNotAuthorized, "message": "Authentication required"},
			})
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": apperrors.CodeNotAuthorized, "message": "Invalid or expired token"},
			})
			return
		}

		c.Set("userId", claims.UserID)
		c.Next()
	}
}

// OptionalAuthMiddleware binds the user id when a valid token is
// present but lets anonymous requests through. Used on routes where
// access narrows to public resources for anonymous callers.
func OptionalAuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if claims, err := jwtService.ValidateToken(token); err == nil {
				c.Set("userId", claims.UserID)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
