package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"persona-chat/backend/internal/ai"
	"persona-chat/backend/internal/api"
	"persona-chat/backend/internal/models"
	"persona-chat/backend/internal/service"
	"persona-chat/backend/internal/ws"
	"persona-chat/backend/pkg/config"
	apperrors "persona-chat/backend/pkg/errors"
	"persona-chat/backend/pkg/jwt"
	"persona-chat/backend/pkg/logger"
	"persona-chat/backend/pkg/metrics"
	"persona-chat/backend/pkg/middleware"
	"persona-chat/backend/shared/redis"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"
	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("starting server", "env", cfg.Server.Env, "port", cfg.Server.Port)

	db, err := cfg.OpenDatabase()
	if err != nil {
		log.LogError(err, "failed to open database")
		os.Exit(1)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Character{}, &models.Message{}); err != nil {
		log.LogError(err, "failed to migrate database")
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.TTL)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx); err != nil {
			log.Warn("redis unreachable, character cache disabled", "error", err.Error())
			redisClient = nil
		}
		cancel()
	}

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)
	characterService := service.NewCharacterService(db, redisClient, log)
	messageService := service.NewMessageService(db)
	userService := service.NewUserService(db, jwtService)

	if cfg.Features.SeedOnStart {
		if err := service.Seed(context.Background(), db, log); err != nil {
			log.LogError(err, "failed to seed database")
		}
	}

	generator, err := buildGenerator(cfg, characterService, messageService, log)
	if err != nil {
		log.LogError(err, "failed to configure response generator")
		os.Exit(1)
	}
	log.Info("response generator configured", "provider", cfg.AI.Provider)

	m := metrics.New()
	hub := ws.NewHub(characterService, messageService, generator, m, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(logger.Middleware(log))
	router.Use(apperrors.RecoveryWithLogger())
	router.Use(apperrors.ErrorHandler())

	rateLimiterOpts := middleware.DefaultRateLimiterOptions()
	rateLimiterOpts.Limit = rate.Limit(cfg.Security.RateLimit)
	rateLimiterOpts.Burst = cfg.Security.RateLimitBurst
	rateLimiter := middleware.NewRateLimiter(log, rateLimiterOpts)
	router.Use(rateLimiter.Middleware())

	authRequired := api.AuthMiddleware(jwtService)
	authOptional := api.OptionalAuthMiddleware(jwtService)

	api.NewAuthHandler(userService).RegisterRoutes(router, authRequired)
	api.NewCharacterHandler(characterService).RegisterRoutes(router, authRequired, authOptional)
	api.NewChatHandler(characterService, characterService, messageService).RegisterRoutes(router, authRequired)
	api.NewHealthHandler(db).RegisterRoutes(router)

	router.GET("/metrics", m.Handler())
	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(hub, jwtService, c)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "server stopped")
			os.Exit(1)
		}
	}()
	log.Info("server listening", "addr", server.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.LogError(err, "forced shutdown")
	}
	if redisClient != nil {
		redisClient.Close()
	}
}

// buildGenerator wires the configured response generation backend. The
// session layer only ever sees the interface.
func buildGenerator(cfg *config.Config, characters *service.CharacterService, messages *service.MessageService, log *logger.Logger) (ws.ResponseGenerator, error) {
	switch cfg.AI.Provider {
	case "rules":
		return ai.NewRuleEngine(characters, cfg.AI.SimulatedDelay), nil
	case "advanced-rules":
		return ai.NewAdvancedRuleEngine(characters, ai.AdvancedConfig{
			Delay:          cfg.AI.SimulatedDelay,
			ContextEntries: cfg.AI.ContextEntries,
			ContextTTL:     cfg.AI.ContextTTL,
		}), nil
	default:
		clientConfig := ai.ClientConfig{
			Provider: cfg.AI.Provider,
			Model:    cfg.AI.Model,
			Timeout:  cfg.AI.RequestTimeout,
		}
		switch cfg.AI.Provider {
		case ai.ProviderHuggingFace:
			clientConfig.APIKey = cfg.AI.HuggingFaceKey
		case ai.ProviderGroq:
			clientConfig.APIKey = cfg.AI.GroqKey
		case ai.ProviderOllama:
			clientConfig.BaseURL = cfg.AI.OllamaBaseURL
		}
		return ai.NewClient(clientConfig, characters, messages, log)
	}
}
