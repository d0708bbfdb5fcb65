package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PIPELINE_WORKERS", "WEBHOOK_SYNC_TIMEOUT_SECONDS", "EXTRACTION_MAX_INPUT_CHARS",
		"MAX_UPLOAD_SIZE_BYTES", "POLICY_THRESHOLD", "ROUTING_OVERRIDE_THRESHOLD",
		"WEBHOOK_IDEMPOTENCY_ENABLED", "RETRIEVAL_K", "STORAGE_DRIVER",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, 4, cfg.PipelineWorkers)
	assert.Equal(t, 30*time.Second, cfg.SyncWaitTimeout)
	assert.Equal(t, 24000, cfg.MaxInputChars)
	assert.Equal(t, int64(10485760), cfg.MaxUploadSizeBytes)
	assert.Equal(t, 500000.0, cfg.PolicyThreshold)
	assert.Nil(t, cfg.RoutingThreshold)
	assert.True(t, cfg.IdempotencyEnabled)
	assert.Equal(t, 4, cfg.RetrievalK)
	assert.Equal(t, StorageSurrealDB, cfg.StorageDriver)
}

func TestLoad_Floors(t *testing.T) {
	t.Setenv("PIPELINE_WORKERS", "0")
	t.Setenv("WEBHOOK_SYNC_TIMEOUT_SECONDS", "-5")
	t.Setenv("EXTRACTION_MAX_INPUT_CHARS", "100")
	t.Setenv("EXTRACTION_MAX_RETRIES", "0")

	cfg := Load()

	assert.Equal(t, 1, cfg.PipelineWorkers)
	assert.Equal(t, time.Second, cfg.SyncWaitTimeout)
	assert.Equal(t, MinExtractionInputChars, cfg.MaxInputChars)
	assert.Equal(t, 1, cfg.ExtractionRetries)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ROUTING_OVERRIDE_THRESHOLD", "250000")
	t.Setenv("WEBHOOK_IDEMPOTENCY_ENABLED", "false")
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	require.NotNil(t, cfg.RoutingThreshold)
	assert.Equal(t, 250000.0, *cfg.RoutingThreshold)
	assert.False(t, cfg.IdempotencyEnabled)
	assert.Equal(t, StorageSQLite, cfg.StorageDriver)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		StorageDriver:   StorageSQLite,
		SQLitePath:      "x.db",
		LLMProvider:     ProviderAnthropic,
		EmbedModel:      "all-minilm",
		ExtractionModel: "claude",
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingSettings)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY, WEBHOOK_SECRET")

	cfg.WebhookSecret = "s3cret"
	cfg.AnthropicAPIKey = "key"
	assert.NoError(t, cfg.Validate())

	cfg.StorageDriver = "mongo"
	assert.Error(t, cfg.Validate())
}

func TestResolvedAdminKey(t *testing.T) {
	cfg := Config{WebhookSecret: "hook"}
	assert.Equal(t, "hook", cfg.ResolvedAdminKey())
	cfg.AdminAPIKey = "admin"
	assert.Equal(t, "admin", cfg.ResolvedAdminKey())
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var text, js bytes.Buffer
	logger := SetupLoggerWithWriters(&text, &js, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("pipeline_started", "request_id", "r1")

	assert.NotContains(t, text.String(), "hidden")
	assert.Contains(t, text.String(), "pipeline_started")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &rec))
	assert.Equal(t, "pipeline_started", rec["msg"])
	assert.Equal(t, "r1", rec["request_id"])
	assert.Equal(t, ServiceName, rec["service"])
}
