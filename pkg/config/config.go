package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
	}

	// Redis configuration
	Redis struct {
		Enabled bool
		Addr    string
		DB      int
		TTL     time.Duration
	}

	// JWT configuration
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// AI response generation configuration
	AI struct {
		// Provider selects the generation backend: huggingface, groq,
		// ollama, rules or advanced-rules.
		Provider       string
		HuggingFaceKey string
		GroqKey        string
		OllamaBaseURL  string
		Model          string
		RequestTimeout time.Duration
		// SimulatedDelay applies only to the rule-based backends.
		SimulatedDelay time.Duration
		// ContextEntries bounds the advanced backend's per-character
		// conversation context cache.
		ContextEntries int
		ContextTTL     time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Feature flags
	Features struct {
		SeedOnStart bool
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance from environment variables. Uses a
// singleton so all callers see the same values.
func New() *Config {
	once.Do(func() {
		godotenv.Load()

		instance = &Config{}

		instance.Server.Port = getEnvString("PORT", "8080")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)

		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "persona-chat")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)

		instance.Redis.Enabled = getEnvBool("REDIS_ENABLED", false)
		instance.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
		instance.Redis.DB = getEnvInt("REDIS_DB", 0)
		instance.Redis.TTL = getEnvDuration("REDIS_TTL", 5*time.Minute)

		instance.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
		instance.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

		instance.AI.Provider = getEnvString("AI_SERVICE_PROVIDER", "advanced-rules")
		instance.AI.HuggingFaceKey = getEnvString("HUGGINGFACE_API_KEY", "")
		instance.AI.GroqKey = getEnvString("GROQ_API_KEY", "")
		instance.AI.OllamaBaseURL = getEnvString("OLLAMA_BASE_URL", "")
		instance.AI.Model = getEnvString("AI_MODEL", "")
		instance.AI.RequestTimeout = getEnvDuration("AI_REQUEST_TIMEOUT", 30*time.Second)
		instance.AI.SimulatedDelay = getEnvDuration("AI_SIMULATED_DELAY", 300*time.Millisecond)
		instance.AI.ContextEntries = getEnvInt("AI_CONTEXT_ENTRIES", 1000)
		instance.AI.ContextTTL = getEnvDuration("AI_CONTEXT_TTL", 30*time.Minute)

		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})

		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		instance.Features.SeedOnStart = getEnvBool("SEED_ON_START", false)
	})

	return instance
}

// Get returns the singleton Config instance.
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvStringSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}
