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
	MongoURI string
	DBName   string

	Port    string
	GinMode string

	CORSOrigins []string

	// Upload constraints
	MaxFileSize     int64    // top-level upload ceiling
	MaxArchiveEntry int64    // per-member ceiling inside archives
	AllowedTypes    []string // allow-listed top-level media types

	// Extraction worker pool
	ExtractionWorkers   int
	ExtractionQueueSize int

	// Request correlation
	RequestTimeout time.Duration // pending entry expiry window
	SweepInterval  time.Duration // expiry sweep period
	SummaryWait    time.Duration // upload flow ceiling on the summary result

	// Ollama
	OllamaBaseURL string
	OllamaModel   string
	OllamaTimeout time.Duration

	// OCR bridge (optional)
	OCRServiceURL     string
	OCRServiceEnabled bool
	OCRTimeout        time.Duration

	// Redis (asynq broker + response channels)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/llmontreal"),
		DBName:   getEnv("DB_NAME", "llmontreal"),

		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		MaxFileSize:     getEnvInt64("MAX_FILE_SIZE", 25*1024*1024),       // 25MB single file
		MaxArchiveEntry: getEnvInt64("MAX_ARCHIVE_ENTRY_SIZE", 104857600), // 100MB per zip member
		AllowedTypes: strings.Split(getEnv("ALLOWED_FILE_TYPES",
			"application/pdf,"+
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document,"+
				"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,"+
				"image/jpeg,image/png,text/plain,text/html,"+
				"application/zip,application/x-zip-compressed"), ","),

		ExtractionWorkers:   getEnvInt("EXTRACTION_WORKERS", 2),
		ExtractionQueueSize: getEnvInt("EXTRACTION_QUEUE_SIZE", 100),

		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 5*time.Minute),
		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", 30*time.Second),
		SummaryWait:    getEnvDuration("SUMMARY_WAIT", 10*time.Minute),

		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3.1"),
		OllamaTimeout: getEnvDuration("OLLAMA_TIMEOUT", 2*time.Minute),

		OCRServiceURL:     getEnv("OCR_SERVICE_URL", "http://localhost:8001"),
		OCRServiceEnabled: getEnvBool("OCR_SERVICE_ENABLED", false),
		OCRTimeout:        getEnvDuration("OCR_TIMEOUT", 5*time.Minute),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),
	}

	if cfg.OllamaBaseURL == "" {
		return nil, fmt.Errorf("OLLAMA_BASE_URL is required")
	}

	if cfg.ExtractionWorkers <= 0 {
		cfg.ExtractionWorkers = 2
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
