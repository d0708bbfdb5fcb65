// Package app wires configuration into a running contract intake service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/contractflow/internal/config"
	"github.com/raphaelgruber/contractflow/internal/db"
	"github.com/raphaelgruber/contractflow/internal/document"
	"github.com/raphaelgruber/contractflow/internal/extraction"
	"github.com/raphaelgruber/contractflow/internal/llm"
	"github.com/raphaelgruber/contractflow/internal/metrics"
	"github.com/raphaelgruber/contractflow/internal/retrieval"
	"github.com/raphaelgruber/contractflow/internal/service"
	"github.com/raphaelgruber/contractflow/internal/storage"
	"github.com/raphaelgruber/contractflow/internal/storage/sqlite"
	"github.com/raphaelgruber/contractflow/internal/telemetry"
	"github.com/raphaelgruber/contractflow/internal/validation"
)

// App holds the constructed service graph.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Collector
	Store    storage.Store
	Pipeline *service.Pipeline
	Executor *service.Executor
	Reviews  *service.ReviewService
	Indexer  *retrieval.Indexer

	shutdownTracer func(context.Context) error
}

// New builds every component from cfg. The returned App must be closed.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	shutdownTracer, err := telemetry.InitTracer(config.ServiceName, cfg.TraceFile, logger)
	if err != nil {
		return nil, err
	}

	mc := metrics.NewCollector()

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		_ = shutdownTracer(ctx)
		return nil, err
	}

	fail := func(err error) (*App, error) {
		_ = store.Close(ctx)
		_ = shutdownTracer(ctx)
		return nil, err
	}

	embedder, err := llm.NewEmbedder(cfg, mc, logger)
	if err != nil {
		return fail(err)
	}
	model, err := llm.NewModel(ctx, cfg, cfg.ExtractionModel, logger)
	if err != nil {
		return fail(err)
	}

	pipeline := service.NewPipeline(service.PipelineDeps{
		Documents: document.NewProcessor(logger),
		Extractor: extraction.NewExtractor(model, extraction.Options{
			MaxRetries:    cfg.ExtractionRetries,
			MaxInputChars: cfg.MaxInputChars,
			Logger:        logger,
			Metrics:       mc,
		}),
		Retriever:       retrieval.NewRetriever(embedder, store, cfg.RetrievalK, mc, logger),
		Validator:       validation.NewValidator(cfg.PolicyThreshold, logger),
		Store:           store,
		RoutingOverride: cfg.RoutingThreshold,
		Metrics:         mc,
		Logger:          logger,
	})

	logger.Info("model providers configured",
		"event", "provider_configured",
		"llm_provider", cfg.LLMProvider,
		"extraction_model", cfg.ExtractionModel,
		"embedding_provider", cfg.EmbedProvider,
		"embedding_model", cfg.EmbedModel,
		"storage_driver", cfg.StorageDriver,
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  mc,
		Store:    store,
		Pipeline: pipeline,
		Executor: service.NewExecutor(pipeline, service.ExecutorOptions{
			Workers:     cfg.PipelineWorkers,
			WaitTimeout: cfg.SyncWaitTimeout,
			Idempotency: cfg.IdempotencyEnabled,
			Metrics:     mc,
			Logger:      logger,
		}),
		Reviews:        service.NewReviewService(store, mc, logger),
		Indexer:        retrieval.NewIndexer(embedder, store, logger),
		shutdownTracer: shutdownTracer,
	}, nil
}

// OpenStore connects the configured storage backend and prepares its schema.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageSQLite:
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil

	case config.StorageSurrealDB:
		client, err := db.NewClient(ctx, db.Config{
			URL:                cfg.SurrealDBURL,
			Namespace:          cfg.SurrealDBNamespace,
			Database:           cfg.SurrealDBDatabase,
			Username:           cfg.SurrealDBUser,
			Password:           cfg.SurrealDBPass,
			AuthLevel:          cfg.SurrealDBAuthLevel,
			EmbeddingDimension: cfg.EmbedDimension,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := client.InitSchema(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}

// WipeData deletes all stored data. Use for testing only.
func (a *App) WipeData(ctx context.Context) error {
	w, ok := a.Store.(interface{ WipeData(context.Context) error })
	if !ok {
		return fmt.Errorf("storage driver %s does not support wiping", a.Config.StorageDriver)
	}
	return w.WipeData(ctx)
}

// Close stops accepting pipeline work, waits for in-flight runs within ctx,
// then flushes traces and closes the store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Executor.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown executor: %w", err))
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(context.WithoutCancel(ctx)); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}
	if err := a.Store.Close(context.WithoutCancel(ctx)); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
