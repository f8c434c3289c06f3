package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL     string
	AwsAccessKey    string
	AwsSecretKey    string
	AwsRegion       string
	BucketName      string
	AIAPIKey        string
	EmbedModel      string
	Port            string
	Env             string
	IngestWorkers   int
	IngestQueueSize int
	EmbedBatchSize  int
	EmbedMaxRetries int
	EmbedTimeout    time.Duration
	FetchTimeout    time.Duration
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		AwsAccessKey:    getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:    getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:       getEnv("AWS_REGION", "us-east-2"),
		BucketName:      getEnv("BUCKET_NAME", "corpora-docs"),
		AIAPIKey:        getEnv("GEMINI_API_KEY", ""),
		EmbedModel:      getEnv("EMBED_MODEL", "text-embedding-004"),
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		IngestWorkers:   getEnvInt("INGEST_WORKERS", 4),
		IngestQueueSize: getEnvInt("INGEST_QUEUE_SIZE", 64),
		EmbedBatchSize:  getEnvInt("EMBED_BATCH_SIZE", 16),
		EmbedMaxRetries: getEnvInt("EMBED_MAX_RETRIES", 2),
		EmbedTimeout:    getEnvDuration("EMBED_TIMEOUT", 60*time.Second),
		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}
