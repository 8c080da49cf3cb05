package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends for wardrobe documents
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
	StorageMemory   = "memory"
)

// Image store backends
const (
	ImageStoreLocal  = "local"
	ImageStoreMemory = "memory"
	ImageStoreS3     = "s3"
)

// AI providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds application configuration
type Config struct {
	ServerPort  string
	FrontendURL string

	AIProvider   string
	AIAPIKey     string
	AIModel      string
	AIBaseURL    string
	AITimeout    time.Duration
	AIMaxRetries int

	StorageBackend string
	DataDir        string
	DatabaseURL    string
	MongoURI       string
	MongoDatabase  string

	ImageStore     string
	ImageDir       string
	S3Bucket       string
	AWSRegion      string
	MaxUploadBytes int64
	MaxImagePixels int

	RedisURL         string
	RateLimit        string
	RabbitMQURL      string
	RabbitMQPrefetch int

	SessionSecret string
	SessionTTL    time.Duration

	EnableHSTS      bool
	WorkerDebugMode bool
	ServerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
}

// lookupFunc resolves a configuration key; an empty result means unset
type lookupFunc func(key string) string

// Load loads configuration from environment variables. A .env file in the
// working directory and the YAML file named by STYLESYNC_CONFIG are consulted
// for keys the environment does not set.
func Load() (*Config, error) {
	// Missing .env is normal outside local development
	_ = godotenv.Load()

	fileValues, err := readConfigFile(os.Getenv("STYLESYNC_CONFIG"))
	if err != nil {
		return nil, err
	}

	return load(layered(os.Getenv, fileValues))
}

func load(get lookupFunc) (*Config, error) {
	cfg := &Config{
		ServerPort:       getEnv(get, "SERVER_PORT", "8080"),
		FrontendURL:      getEnv(get, "FRONTEND_URL", "http://localhost:3000"),
		AIProvider:       strings.ToLower(getEnv(get, "AI_PROVIDER", ProviderGemini)),
		AIModel:          getEnv(get, "AI_MODEL", ""),
		AIBaseURL:        getEnv(get, "AI_BASE_URL", ""),
		AITimeout:        getEnvDuration(get, "AI_TIMEOUT", 30*time.Second),
		AIMaxRetries:     getEnvInt(get, "AI_MAX_RETRIES", 0),
		StorageBackend:   strings.ToLower(getEnv(get, "STORAGE_BACKEND", StorageFile)),
		DataDir:          getEnv(get, "DATA_DIR", "./data"),
		DatabaseURL:      getEnv(get, "DATABASE_URL", ""),
		MongoURI:         getEnv(get, "MONGO_URI", ""),
		MongoDatabase:    getEnv(get, "MONGO_DATABASE", "stylesync"),
		ImageStore:       strings.ToLower(getEnv(get, "IMAGE_STORE", ImageStoreLocal)),
		ImageDir:         getEnv(get, "IMAGE_DIR", "./data/images"),
		S3Bucket:         getEnv(get, "S3_BUCKET", ""),
		AWSRegion:        getEnv(get, "AWS_REGION", "us-east-1"),
		MaxUploadBytes:   int64(getEnvInt(get, "MAX_UPLOAD_BYTES", 10<<20)),
		MaxImagePixels:   getEnvInt(get, "MAX_IMAGE_PIXELS", 40_000_000),
		RedisURL:         getEnv(get, "REDIS_URL", ""),
		RateLimit:        getEnv(get, "RATE_LIMIT", "30-M"),
		RabbitMQURL:      getEnv(get, "RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt(get, "RABBITMQ_PREFETCH", 1),
		SessionSecret:    getEnv(get, "SESSION_SECRET", ""),
		SessionTTL:       getEnvDuration(get, "SESSION_TTL", 720*time.Hour),
		EnableHSTS:       getEnvBool(get, "ENABLE_HSTS", false),
		WorkerDebugMode:  getEnvBool(get, "WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool(get, "SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool(get, "OTEL_ENABLED", false),
		OTELEndpoint:     getEnv(get, "OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	switch cfg.AIProvider {
	case ProviderGemini:
		cfg.AIAPIKey = getEnv(get, "GEMINI_API_KEY", "")
	case ProviderOpenAI:
		cfg.AIAPIKey = getEnv(get, "OPENAI_API_KEY", "")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.AIProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("AI_PROVIDER must be one of %q or %q, got %q", ProviderGemini, ProviderOpenAI, c.AIProvider)
	}

	switch c.StorageBackend {
	case StorageFile, StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	case StorageMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORAGE_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.ImageStore {
	case ImageStoreLocal, ImageStoreMemory:
	case ImageStoreS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when IMAGE_STORE=s3")
		}
	default:
		return fmt.Errorf("unsupported IMAGE_STORE %q", c.ImageStore)
	}

	if c.AITimeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be positive")
	}
	if c.AIMaxRetries < 0 {
		return fmt.Errorf("AI_MAX_RETRIES must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// RequireAI reports an error when no API key is configured for the selected provider
func (c *Config) RequireAI() error {
	if c.AIAPIKey == "" {
		if c.AIProvider == ProviderOpenAI {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	return nil
}

// RequireSessionSecret reports an error when session tokens cannot be signed safely
func (c *Config) RequireSessionSecret() error {
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET is required and must be at least 32 characters")
	}
	return nil
}

// readConfigFile reads a flat YAML map of configuration keys
func readConfigFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return parseConfigFile(data)
}

func parseConfigFile(data []byte) (map[string]string, error) {
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	values := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		values[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	return values, nil
}

// layered prefers the environment and falls back to file values
func layered(env lookupFunc, file map[string]string) lookupFunc {
	return func(key string) string {
		if v := env(key); v != "" {
			return v
		}
		return file[key]
	}
}

func getEnv(get lookupFunc, key, defaultValue string) string {
	if value := get(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(get lookupFunc, key string, defaultValue bool) bool {
	if value := get(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(get lookupFunc, key string, defaultValue int) int {
	if value := get(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(get lookupFunc, key string, defaultValue time.Duration) time.Duration {
	if value := get(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
