package config

import (
	"docchat/internal/logger"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// AppConfig holds all application configuration
type AppConfig struct {
	Server    ServerConfig
	Database  DatabaseConfig
	LLM       LLMConfig
	Retrieval RetrievalConfig
	QA        QAConfig
	Auth      AuthConfig
	Models    *ModelsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string
	Debug          bool
	RateLimit      float64 // requests per second on /response/*
	RateBurst      int
	AllowedOrigins []string
	MaxUploadBytes int64
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// LLMConfig holds completion, embedding and moderation settings
type LLMConfig struct {
	Provider          string // "openai" or "ollama"
	APIKey            string
	BaseURL           string
	ChatModel         string
	EmbeddingModel    string
	Temperature       float64
	ModerationEnabled bool
	ModerationModel   string
}

// RetrievalConfig holds vector index settings
type RetrievalConfig struct {
	WeaviateURL  string
	ClassName    string
	TopK         int
	ChunkSize    int
	ChunkOverlap int
	EmbedBatch   int
	SummaryLimit int // concurrent map calls during document summary
}

// QAConfig holds orchestration settings
type QAConfig struct {
	MemoryWindow    int
	FollowUpHistory int
	RequestTimeout  time.Duration
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	PublicAPIKey    string
	JWTSecret       []byte
	TokenExpiration time.Duration
}

// LoadConfig loads and validates application configuration from environment
func LoadConfig() (*AppConfig, error) {
	config := &AppConfig{}

	config.Server = ServerConfig{
		Port:           getEnvOrDefault("SERVER_PORT", "8080"),
		Debug:          getEnvAsBool("DEBUG", false),
		RateLimit:      getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateBurst:      getEnvAsInt("RATE_LIMIT_BURST", 10),
		AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 20<<20)),
	}

	config.Database = DatabaseConfig{
		Host:         getEnvOrDefault("DB_HOST", "postgres"),
		Port:         getEnvOrDefault("DB_PORT", "5432"),
		User:         getEnvOrDefault("DB_USER", "postgres"),
		Password:     getEnvOrDefault("DB_PASSWORD", "postgres"),
		Name:         getEnvOrDefault("DB_NAME", "docchat"),
		SSLMode:      getEnvOrDefault("DB_SSLMODE", "disable"),
		MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnLifetime: getEnvAsDuration("DB_CONN_LIFETIME", 30*time.Minute),
	}

	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "openai"))
	if provider != "openai" && provider != "ollama" {
		return nil, fmt.Errorf("LLM_PROVIDER must be openai or ollama, got %q", provider)
	}
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" && provider == "openai" {
		logger.Log.Warn("LLM_API_KEY environment variable not set")
	}

	config.LLM = LLMConfig{
		Provider:          provider,
		APIKey:            apiKey,
		BaseURL:           os.Getenv("LLM_BASE_URL"),
		ChatModel:         getEnvOrDefault("LLM_CHAT_MODEL", "gpt-4o-mini"),
		EmbeddingModel:    getEnvOrDefault("LLM_EMBEDDING_MODEL", "text-embedding-3-small"),
		Temperature:       getEnvAsFloat("LLM_TEMPERATURE", 0),
		ModerationEnabled: getEnvAsBool("MODERATION_ENABLED", false),
		ModerationModel:   getEnvOrDefault("MODERATION_MODEL", "omni-moderation-latest"),
	}

	config.Retrieval = RetrievalConfig{
		WeaviateURL:  getEnvOrDefault("WEAVIATE_URL", "http://weaviate:8080"),
		ClassName:    getEnvOrDefault("WEAVIATE_CLASS", "DocumentChunk"),
		TopK:         getEnvAsInt("RETRIEVAL_TOP_K", 4),
		ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 100),
		EmbedBatch:   getEnvAsInt("EMBED_BATCH_SIZE", 64),
		SummaryLimit: getEnvAsInt("SUMMARY_CONCURRENCY", 4),
	}
	if config.Retrieval.ChunkOverlap >= config.Retrieval.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", config.Retrieval.ChunkOverlap, config.Retrieval.ChunkSize)
	}

	config.QA = QAConfig{
		MemoryWindow:    getEnvAsInt("QA_MEMORY_WINDOW", 2),
		FollowUpHistory: getEnvAsInt("QA_FOLLOWUP_HISTORY", 3),
		RequestTimeout:  getEnvAsDuration("QA_REQUEST_TIMEOUT", 2*time.Minute),
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable must be set")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters (current length: %d)", len(jwtSecret))
	}

	config.Auth = AuthConfig{
		PublicAPIKey:    os.Getenv("PUBLIC_API_KEY"),
		JWTSecret:       []byte(jwtSecret),
		TokenExpiration: getEnvAsDuration("JWT_TOKEN_EXPIRATION", 24*time.Hour),
	}
	if config.Auth.PublicAPIKey == "" {
		logger.Log.Warn("PUBLIC_API_KEY not set, only bearer tokens will be accepted")
	}

	modelsConfig, err := NewModelsConfig(os.Getenv("MODELS_CONFIG_PATH"), config.LLM.ChatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load models config: %w", err)
	}
	config.Models = modelsConfig

	return config, nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetURL returns the connection string in URL form, as the migrate CLI expects it
func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// Helper functions for environment variable parsing

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid float value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid boolean value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid duration value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
