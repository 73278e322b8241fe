package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Search     SearchConfig
	Pricing    PricingConfig
	Currency   CurrencyConfig
	AI         AIConfig
	Embedding  EmbeddingConfig
	Store      StoreConfig
	Sources    SourcesConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
	Enabled            bool
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
}

// SearchConfig holds search-related configuration
type SearchConfig struct {
	RadiusKm        float64 // geo filter radius for the strict pass
	NearMissRadius  float64 // widened radius for the near-miss pass
	MaxResults      int
	ResultCacheSize int // bounded arena of past search responses
}

// PricingConfig holds the price-window tolerance knobs. Strict deltas
// take the smaller of percent/absolute, near-miss the larger.
type PricingConfig struct {
	ExactTolerancePercent    float64
	ExactToleranceAbsEUR     float64
	NearMissTolerancePercent float64
	NearMissToleranceAbsEUR  float64
}

// CurrencyConfig holds FX rates into EUR
type CurrencyConfig struct {
	USDToEUR float64
	GBPToEUR float64
}

// AIConfig holds configuration for the AI backend chain
type AIConfig struct {
	GroqAPIKey    string
	GroqBaseURL   string
	GroqModel     string
	OllamaBaseURL string
	OllamaModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	MaxRetries    int
	TimeoutSec    int
	// Ranking knobs
	RankCandidateCeiling int // above this the heuristic ranker takes over
	RankDetailThreshold  int // refine pass kicks in at or below this
	RankTimeoutSec       int
}

// EmbeddingConfig holds embedding API configuration; with no API key
// the deterministic vocabulary embedder is used instead.
type EmbeddingConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int
}

// StoreConfig holds vector knowledge store settings
type StoreConfig struct {
	DataDir string
}

// SourcesConfig holds listing source adapter settings
type SourcesConfig struct {
	MarketplaceBaseURL string
	MarketplaceAPIKey  string
	PageSize           int
	MaxPages           int
	MaxListings        int
	PageDelayMs        int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("PG_DSN", "")),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "propfinder"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Search: SearchConfig{
			RadiusKm:        getEnvAsFloat("SEARCH_RADIUS_KM", 50),
			NearMissRadius:  getEnvAsFloat("SEARCH_NEARMISS_RADIUS_KM", 80),
			MaxResults:      getEnvAsInt("SEARCH_MAX_RESULTS", 40),
			ResultCacheSize: getEnvAsInt("SEARCH_RESULT_CACHE_SIZE", 200),
		},
		Pricing: PricingConfig{
			ExactTolerancePercent:    getEnvAsFloat("PRICE_EXACT_TOLERANCE_PCT", 0.02),
			ExactToleranceAbsEUR:     getEnvAsFloat("PRICE_EXACT_TOLERANCE_ABS_EUR", 50),
			NearMissTolerancePercent: getEnvAsFloat("PRICE_NEARMISS_TOLERANCE_PCT", 0.15),
			NearMissToleranceAbsEUR:  getEnvAsFloat("PRICE_NEARMISS_TOLERANCE_ABS_EUR", 2000),
		},
		Currency: CurrencyConfig{
			USDToEUR: getEnvAsFloat("FX_RATE_USD_EUR", 0.92),
			GBPToEUR: getEnvAsFloat("FX_RATE_GBP_EUR", 1.17),
		},
		AI: AIConfig{
			GroqAPIKey:           getEnv("GROQ_API_KEY", ""),
			GroqBaseURL:          getEnv("GROQ_API_BASE", "https://api.groq.com/openai/v1"),
			GroqModel:            getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
			OllamaBaseURL:        getEnv("OLLAMA_BASE_URL", "http://127.0.0.1:11434"),
			OllamaModel:          getEnv("OLLAMA_MODEL", "llama3.1"),
			OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:        getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			OpenAIModel:          getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			MaxRetries:           getEnvAsInt("AI_MAX_RETRIES", 2),
			TimeoutSec:           getEnvAsInt("AI_TIMEOUT", 30),
			RankCandidateCeiling: getEnvAsInt("RANK_AI_CANDIDATE_CEILING", 20),
			RankDetailThreshold:  getEnvAsInt("RANK_DETAIL_THRESHOLD", 5),
			RankTimeoutSec:       getEnvAsInt("RANK_AI_TIMEOUT", 20),
		},
		Embedding: EmbeddingConfig{
			APIKey:     getEnv("EMBEDDING_API_KEY", getEnv("OPENAI_API_KEY", "")),
			BaseURL:    getEnv("EMBEDDING_API_BASE", getEnv("OPENAI_API_BASE", "https://api.openai.com/v1")),
			Model:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 256),
			BatchSize:  getEnvAsInt("EMBEDDING_BATCH_SIZE", 64),
		},
		Store: StoreConfig{
			DataDir: getEnv("DATA_DIR", "./data"),
		},
		Sources: SourcesConfig{
			MarketplaceBaseURL: getEnv("MARKETPLACE_API_BASE", ""),
			MarketplaceAPIKey:  getEnv("MARKETPLACE_API_KEY", ""),
			PageSize:           getEnvAsInt("MARKETPLACE_PAGE_SIZE", 25),
			MaxPages:           getEnvAsInt("MARKETPLACE_MAX_PAGES", 4),
			MaxListings:        getEnvAsInt("MARKETPLACE_MAX_LISTINGS", 80),
			PageDelayMs:        getEnvAsInt("MARKETPLACE_PAGE_DELAY_MS", 400),
		},
	}

	cfg.PostgreSQL.Enabled = cfg.PostgreSQL.DSN != "" || getEnv("PG_PASSWORD", "") != "" || getEnv("PG_HOST", "") != ""

	return cfg, nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
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
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}
