package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Qdrant   QdrantConfig
	Gemini   GeminiConfig
	LLM      LLMConfig
	Storage  StorageConfig
	Worker   WorkerConfig
	Queue    QueueConfig
	Log      LogConfig
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

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	VectorSize uint64
}

type GeminiConfig struct {
	APIKey             string
	Model              string
	EmbeddingModel     string
	EmbeddingDimension int
}

// LLMConfig drives the retry policy of the external-call adapter.
type LLMConfig struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
	CallTimeout    time.Duration
	MaxTokens      int
}

type StorageConfig struct {
	UploadPath  string
	MaxFileSize int64
}

type WorkerConfig struct {
	Concurrency int
}

// QueueConfig holds the queue-level redelivery contract. It is independent
// of the adapter retries performed inside a single delivery.
type QueueConfig struct {
	MaxAttempts  int
	BackoffBase  time.Duration
	PollInterval time.Duration
	LeaseTimeout time.Duration
}

type LogConfig struct {
	JSON  bool
	Debug bool
}

// Load reads .env (when present) and the process environment. The returned
// struct is the only place configuration is looked up; components receive
// the sub-struct they need through their constructors.
func Load() (*Config, bool) {
	envLoaded := godotenv.Load() == nil

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
			DBName:   getEnv("DB_NAME", "ai_cv_evaluator"),
		},
		Qdrant: QdrantConfig{
			URL:        getEnv("QDRANT_URL", "http://localhost:6334"),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "documents"),
			VectorSize: uint64(getEnvAsInt("QDRANT_VECTOR_SIZE", 1536)),
		},
		Gemini: GeminiConfig{
			APIKey:             getEnv("GEMINI_API_KEY", ""),
			Model:              getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			EmbeddingModel:     getEnv("GEMINI_EMBED_MODEL", "gemini-embedding-001"),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),
		},
		LLM: LLMConfig{
			MaxRetries:     getEnvAsInt("LLM_MAX_RETRIES", 3),
			RetryBaseDelay: getEnvAsDuration("LLM_RETRY_BASE_DELAY", "1s"),
			CallTimeout:    getEnvAsDuration("LLM_TIMEOUT", "30s"),
			MaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 2500),
		},
		Storage: StorageConfig{
			UploadPath:  getEnv("UPLOAD_PATH", "./uploads"),
			MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 10485760),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 3),
		},
		Queue: QueueConfig{
			MaxAttempts:  getEnvAsInt("QUEUE_MAX_ATTEMPTS", 3),
			BackoffBase:  getEnvAsDuration("QUEUE_BACKOFF_BASE", "5s"),
			PollInterval: getEnvAsDuration("QUEUE_POLL_INTERVAL", "2s"),
			LeaseTimeout: getEnvAsDuration("QUEUE_LEASE_TIMEOUT", "10m"),
		},
		Log: LogConfig{
			JSON:  getEnvAsBool("LOG_JSON", false),
			Debug: getEnvAsBool("LOG_DEBUG", false),
		},
	}, envLoaded
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

// Validate reports settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.LLM.MaxRetries < 1 {
		return fmt.Errorf("LLM_MAX_RETRIES must be at least 1, got %d", c.LLM.MaxRetries)
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS must be at least 1, got %d", c.Queue.MaxAttempts)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.Worker.Concurrency)
	}
	if c.Qdrant.VectorSize != uint64(c.Gemini.EmbeddingDimension) {
		return fmt.Errorf("QDRANT_VECTOR_SIZE (%d) must match EMBEDDING_DIMENSION (%d)",
			c.Qdrant.VectorSize, c.Gemini.EmbeddingDimension)
	}
	return nil
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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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
