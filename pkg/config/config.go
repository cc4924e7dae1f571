package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Main-app auth (bearer JWTs issued by the main application)
	JWTSecret string

	// monday.com
	MondayClientID         string
	MondayClientSecret     string
	MondaySigningSecret    string
	MondayOAuthRedirectURI string

	// URLs
	MainAppBaseURL string
	BackendBaseURL string

	// Postgres
	DatabaseURL string

	// Gemini
	GeminiAPIKey   string
	GeminiModel    string
	EmbeddingModel string

	// Chroma Cloud (vector index)
	ChromaAPIKey   string
	ChromaTenant   string
	ChromaDatabase string

	// Object storage (GCS via Firebase)
	FirebaseCredentials string
	StorageBucket       string

	// Pub/Sub (item-updated events)
	GoogleProjectID string
	PubSubTopic     string

	// Access tokens are encrypted at rest with this key (32 bytes, hex)
	EncryptionKey string

	// Gemini API budget shared by every extraction/embedding call
	RateLimitRPM        int
	RateLimitConcurrent int
	RateLimitTimeout    time.Duration

	// Sync pipeline memory ceiling
	MemorySoftLimitMB uint64
	MemoryHardLimitMB uint64

	EmbedBatchSize int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:                   getEnv("PORT", "8080"),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		MondayClientID:         getEnv("MONDAY_CLIENT_ID", ""),
		MondayClientSecret:     getEnv("MONDAY_CLIENT_SECRET", ""),
		MondaySigningSecret:    getEnv("MONDAY_SIGNING_SECRET", ""),
		MondayOAuthRedirectURI: getEnv("MONDAY_OAUTH_REDIRECT_URI", ""),
		MainAppBaseURL:         getEnv("MAIN_APP_BASE_URL", "http://localhost:3000"),
		BackendBaseURL:         getEnv("BACKEND_BASE_URL", "http://localhost:8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", ""),
		GeminiModel:            getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		EmbeddingModel:         getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
		ChromaAPIKey:           getEnv("CHROMA_API_KEY", ""),
		ChromaTenant:           getEnv("CHROMA_TENANT", ""),
		ChromaDatabase:         getEnv("CHROMA_DATABASE", ""),
		FirebaseCredentials:    getEnv("FIREBASE_CREDENTIALS", ""),
		StorageBucket:          getEnv("STORAGE_BUCKET", "raw-monday"),
		GoogleProjectID:        getEnv("GOOGLE_PROJECT_ID", ""),
		PubSubTopic:            getEnv("PUBSUB_TOPIC", "monday-item-updates"),
		EncryptionKey:          getEnv("ENCRYPTION_KEY", ""),
		RateLimitRPM:           getEnvInt("RATE_LIMIT_RPM", 950),
		RateLimitConcurrent:    getEnvInt("RATE_LIMIT_CONCURRENT", 15),
		RateLimitTimeout:       getEnvDuration("RATE_LIMIT_TIMEOUT", 300*time.Second),
		MemorySoftLimitMB:      uint64(getEnvInt("MEMORY_SOFT_LIMIT_MB", 2000)),
		MemoryHardLimitMB:      uint64(getEnvInt("MEMORY_HARD_LIMIT_MB", 3200)),
		EmbedBatchSize:         getEnvInt("EMBED_BATCH_SIZE", 16),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
