package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Gemini    GeminiConfig
	Tavily    TavilyConfig
	Apify     ApifyConfig
	Qdrant    QdrantConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Storage   StorageConfig
	Screening ScreeningConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type GeminiConfig struct {
	APIKey     string
	Model      string
	EmbedModel string
}

type TavilyConfig struct {
	APIKey     string
	MaxResults int
}

type ApifyConfig struct {
	Token   string
	ActorID string
}

// QdrantConfig is optional; an empty URL disables calibration retrieval.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

// RedisConfig is optional; an empty Address disables the enrichment cache.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	CacheTTL time.Duration
}

// RabbitMQConfig is optional; an empty URL disables progress notifications.
type RabbitMQConfig struct {
	URL string
}

type StorageConfig struct {
	Driver      string
	UploadPath  string
	MaxFileSize int64
	R2          R2Config
}

type R2Config struct {
	AccountID string
	Bucket    string
	AccessKey string
	SecretKey string
}

type ScreeningConfig struct {
	BatchSize            int
	Concurrency          int
	ClaimLease           time.Duration
	MaxEnrichedCompanies int
	RetryMaxAttempts     int
	PolicyPath           string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using default values.")
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "cto_screener"),
		},
		Gemini: GeminiConfig{
			APIKey:     getEnv("GEMINI_API_KEY", ""),
			Model:      getEnv("GEMINI_MODEL", "gemini-2.5-pro"),
			EmbedModel: getEnv("GEMINI_EMBED_MODEL", "text-embedding-004"),
		},
		Tavily: TavilyConfig{
			APIKey:     getEnv("TAVILY_API_KEY", ""),
			MaxResults: getEnvAsInt("TAVILY_MAX_RESULTS", 5),
		},
		Apify: ApifyConfig{
			Token:   getEnv("APIFY_API_TOKEN", ""),
			ActorID: getEnv("APIFY_ACTOR_ID", "2SyF0bVxmgGr8IVCZ"),
		},
		Qdrant: QdrantConfig{
			URL:        getEnv("QDRANT_URL", ""),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "cto_calibration"),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: getEnvAsDuration("ENRICHMENT_CACHE_TTL", "168h"),
		},
		RabbitMQ: RabbitMQConfig{
			URL: getEnv("RABBITMQ_URL", ""),
		},
		Storage: StorageConfig{
			Driver:      getEnv("STORAGE_DRIVER", "local"),
			UploadPath:  getEnv("UPLOAD_PATH", "./uploads"),
			MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 52428800),
			R2: R2Config{
				AccountID: getEnv("R2_ACCOUNT_ID", ""),
				Bucket:    getEnv("R2_BUCKET", ""),
				AccessKey: getEnv("R2_ACCESS_KEY", ""),
				SecretKey: getEnv("R2_SECRET_KEY", ""),
			},
		},
		Screening: ScreeningConfig{
			BatchSize:            getEnvAsInt("BATCH_SIZE", 2),
			Concurrency:          getEnvAsInt("WORKER_CONCURRENCY", 1),
			ClaimLease:           getEnvAsDuration("CLAIM_LEASE", "10m"),
			MaxEnrichedCompanies: getEnvAsInt("MAX_ENRICHED_COMPANIES", 3),
			RetryMaxAttempts:     getEnvAsInt("RETRY_MAX_ATTEMPTS", 2),
			PolicyPath:           getEnv("POLICY_PATH", ""),
		},
	}
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
