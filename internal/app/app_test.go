package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/raphaelgruber/contractflow/internal/config"
	"github.com/raphaelgruber/contractflow/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		StorageDriver:     config.StorageSQLite,
		SQLitePath:        filepath.Join(dir, "contracts.db"),
		LLMProvider:       config.ProviderOllama,
		ExtractionModel:   "llama3.1",
		OllamaHost:        "http://127.0.0.1:1",
		LLMTimeout:        time.Second,
		ExtractionRetries: 3,
		MaxInputChars:     config.MinExtractionInputChars,
		EmbedProvider:     config.ProviderOllama,
		EmbedModel:        "all-minilm:l6-v2",
		EmbedDimension:    384,
		RetrievalK:        4,
		PolicyThreshold:   500000,
		WebhookSecret:     "secret",
		UploadDir:         filepath.Join(dir, "uploads"),
		SyncWaitTimeout:   time.Second,
		PipelineWorkers:   2,
	}
}

func TestNew_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)

	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)

	assert.NotNil(t, a.Pipeline)
	assert.NotNil(t, a.Executor)
	assert.NotNil(t, a.Reviews)
	assert.NotNil(t, a.Indexer)
	assert.DirExists(t, cfg.UploadDir)

	pending, err := a.Reviews.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	require.NoError(t, a.WipeData(ctx))

	require.NoError(t, a.Close(ctx))

	_, err = a.Executor.SubmitAndWait(ctx, "s", "subj", "/tmp/x.pdf", "")
	assert.ErrorIs(t, err, service.ErrExecutorClosed)
}

func TestNew_MissingSettings(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.WebhookSecret = ""

	_, err := New(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, config.ErrMissingSettings)
}

func TestOpenStore_UnsupportedDriver(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.StorageDriver = "postgres"

	_, err := OpenStore(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unsupported storage driver")
}
