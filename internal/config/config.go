package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingSettings is returned by Validate when required settings are absent.
var ErrMissingSettings = errors.New("missing required settings")

// Provider identifies an LLM or embedding backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "ollama"
	ProviderBedrock   Provider = "bedrock"
)

// Storage drivers.
const (
	StorageSurrealDB = "surrealdb"
	StorageSQLite    = "sqlite"
)

// MinExtractionInputChars is the floor applied to the extraction input budget.
const MinExtractionInputChars = 4000

// Config holds all configuration values.
type Config struct {
	// Storage
	StorageDriver string
	SQLitePath    string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Text generation
	LLMProvider       Provider
	ExtractionModel   string
	AnthropicAPIKey   string
	OpenAIAPIKey      string
	OllamaHost        string
	AWSRegion         string
	LLMTimeout        time.Duration
	ExtractionRetries int
	MaxInputChars     int

	// Embeddings
	EmbedProvider  Provider
	EmbedModel     string
	EmbedDimension int

	// Policy retrieval and validation
	PolicyDir        string
	RetrievalK       int
	PolicyThreshold  float64
	RoutingThreshold *float64

	// Webhook surface
	ServerPort         string
	WebhookSecret      string
	AdminAPIKey        string
	UploadDir          string
	MaxUploadSizeBytes int64
	SyncWaitTimeout    time.Duration
	PipelineWorkers    int
	IdempotencyEnabled bool

	// Logging and tracing
	LogFile   string
	LogLevel  slog.Level
	TraceFile string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first if present;
// variables already set in the environment win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageSurrealDB)),
		SQLitePath:    getEnv("SQLITE_PATH", "./contractflow.db"),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "contracts"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "intake"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:       Provider(strings.ToLower(getEnv("LLM_PROVIDER", string(ProviderAnthropic)))),
		ExtractionModel:   getEnv("EXTRACTION_MODEL", getEnv("LLM_MODEL", "")),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", getEnv("LLM_API_KEY", "")),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OllamaHost:        getEnv("OLLAMA_HOST", "http://localhost:11434"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		LLMTimeout:        time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
		ExtractionRetries: max(getEnvInt("EXTRACTION_MAX_RETRIES", 3), 1),
		MaxInputChars:     max(getEnvInt("EXTRACTION_MAX_INPUT_CHARS", 24000), MinExtractionInputChars),

		EmbedProvider:  Provider(strings.ToLower(getEnv("EMBEDDING_PROVIDER", string(ProviderOllama)))),
		EmbedModel:     getEnv("EMBEDDING_MODEL", "all-minilm:l6-v2"),
		EmbedDimension: getEnvInt("EMBEDDING_DIMENSION", 384),

		PolicyDir:        getEnv("POLICY_DIR", "./data/policies"),
		RetrievalK:       max(getEnvInt("RETRIEVAL_K", 4), 1),
		PolicyThreshold:  getEnvFloat("POLICY_THRESHOLD", 500000),
		RoutingThreshold: getEnvOptionalFloat("ROUTING_OVERRIDE_THRESHOLD"),

		ServerPort:         getEnv("SERVER_PORT", "8080"),
		WebhookSecret:      getEnv("WEBHOOK_SECRET", ""),
		AdminAPIKey:        getEnv("ADMIN_API_KEY", ""),
		UploadDir:          getEnv("UPLOAD_DIR", "./tmp_uploads"),
		MaxUploadSizeBytes: int64(getEnvInt("MAX_UPLOAD_SIZE_BYTES", 10<<20)),
		SyncWaitTimeout:    time.Duration(max(getEnvInt("WEBHOOK_SYNC_TIMEOUT_SECONDS", 30), 1)) * time.Second,
		PipelineWorkers:    max(getEnvInt("PIPELINE_WORKERS", 4), 1),
		IdempotencyEnabled: getEnvBool("WEBHOOK_IDEMPOTENCY_ENABLED", true),

		LogFile:   getEnv("CONTRACTFLOW_LOG_FILE", "/tmp/contractflow.log"),
		LogLevel:  parseLogLevel(getEnv("LOG_LEVEL", "INFO")),
		TraceFile: getEnv("CONTRACTFLOW_TRACE_FILE", ""),
	}
}

// ResolvedAdminKey returns the admin key, falling back to the webhook secret.
func (c Config) ResolvedAdminKey() string {
	if c.AdminAPIKey != "" {
		return c.AdminAPIKey
	}
	return c.WebhookSecret
}

// Validate reports every required setting that is missing.
// The returned error wraps ErrMissingSettings.
func (c Config) Validate() error {
	checks := map[string]string{
		"WEBHOOK_SECRET":   c.WebhookSecret,
		"EXTRACTION_MODEL": c.ExtractionModel,
		"EMBEDDING_MODEL":  c.EmbedModel,
	}
	switch c.LLMProvider {
	case ProviderAnthropic:
		checks["ANTHROPIC_API_KEY"] = c.AnthropicAPIKey
	case ProviderOpenAI:
		checks["OPENAI_API_KEY"] = c.OpenAIAPIKey
	}
	switch c.StorageDriver {
	case StorageSurrealDB:
		checks["SURREALDB_URL"] = c.SurrealDBURL
	case StorageSQLite:
		checks["SQLITE_PATH"] = c.SQLitePath
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.StorageDriver)
	}

	var missing []string
	for key, val := range checks {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrMissingSettings, strings.Join(missing, ", "))
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvOptionalFloat(key string) *float64 {
	val, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return nil
	}
	return &val
}

func getEnvBool(key string, defaultVal bool) bool {
	switch strings.ToLower(getEnv(key, "")) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
