package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/raphaelgruber/contractflow/internal/metrics"
	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/raphaelgruber/contractflow/internal/routing"
	"github.com/raphaelgruber/contractflow/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DocumentIngester turns a file into normalized document text.
type DocumentIngester interface {
	ExtractDocumentText(ctx context.Context, path string, meta models.DocumentMetadata) (models.DocumentText, error)
}

// ContractExtractor pulls typed contract fields out of document text.
type ContractExtractor interface {
	Extract(ctx context.Context, doc models.DocumentText) (models.ContractExtraction, models.Usage, time.Duration, error)
}

// PolicyRetriever finds the policy passages relevant to a contract.
type PolicyRetriever interface {
	RetrieveRelevantPolicies(ctx context.Context, contract models.ContractExtraction) ([]models.RetrievedPolicy, error)
}

// ContractValidator evaluates a contract against retrieved policies.
type ContractValidator interface {
	Validate(ctx context.Context, contract models.ContractExtraction, policies []models.RetrievedPolicy) (models.ValidationResult, models.Usage, time.Duration)
}

// PipelineDeps are the collaborators of a Pipeline.
type PipelineDeps struct {
	Documents DocumentIngester
	Extractor ContractExtractor
	Retriever PolicyRetriever
	Validator ContractValidator
	Store     storage.ContractStore

	// RoutingOverride, when set, sends contracts above this value to review.
	RoutingOverride *float64

	Metrics *metrics.Collector
	Logger  *slog.Logger
	Tracer  trace.Tracer
}

// Pipeline runs one document through ingest, extract, validate, route and
// persist. Each run owns its state; a Pipeline is safe for concurrent use.
type Pipeline struct {
	deps   PipelineDeps
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewPipeline creates a pipeline. Nil logger and tracer fall back to the
// process defaults.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/raphaelgruber/contractflow/internal/service")
	}
	return &Pipeline{deps: deps, logger: logger, tracer: tracer, now: time.Now}
}

type pipelineStage struct {
	name string
	op   string
	run  func(ctx context.Context, state *models.RunState) (models.Usage, error)
}

func (p *Pipeline) stages() []pipelineStage {
	return []pipelineStage{
		{models.StageIngest, metrics.OpStageIngest, p.ingest},
		{models.StageExtract, metrics.OpStageExtract, p.extract},
		{models.StageValidate, metrics.OpStageValidate, p.validate},
		{models.StageRoute, metrics.OpStageRoute, p.route},
		{models.StagePersist, metrics.OpStagePersist, p.persist},
	}
}

// Run executes every stage in order. On failure it records a failure log
// entry and returns the error. The file at filePath is removed on every exit
// path.
func (p *Pipeline) Run(ctx context.Context, requestID, sender, subject, filePath string) (result models.PipelineResult, err error) {
	start := time.Now()
	state := models.NewRunState(requestID, sender, subject, filePath)
	defer p.cleanupUpload(filePath)

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("request_id", requestID),
		attribute.String("file_path", filePath),
	))
	defer span.End()

	// A panicking stage takes the same failure path as a returned error.
	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("%s: stage panic: %v", state.Stage, r)
			span.RecordError(perr)
			span.SetStatus(codes.Error, perr.Error())
			result, err = models.PipelineResult{}, p.fail(ctx, state, perr)
		}
	}()

	for _, s := range p.stages() {
		state.Stage = s.name
		if serr := p.runStage(ctx, s, state); serr != nil {
			span.RecordError(serr)
			span.SetStatus(codes.Error, serr.Error())
			return models.PipelineResult{}, p.fail(ctx, state, serr)
		}
	}
	state.Stage = models.StageDone

	elapsed := time.Since(start)
	p.deps.Metrics.RecordTiming(metrics.OpPipeline, elapsed)
	p.deps.Metrics.Inc(metrics.CounterPipelineSucceeded)
	p.logger.Info("pipeline completed",
		"event", "pipeline_completed",
		"request_id", requestID,
		"contract_id", state.ContractID,
		"route", state.Routing.Route,
		"elapsed_ms", elapsed.Milliseconds(),
	)

	return models.PipelineResult{
		RequestID:        requestID,
		ContractID:       state.ContractID,
		Contract:         *state.Contract,
		Routing:          *state.Routing,
		Validation:       *state.Validation,
		ProcessingTimeMS: elapsed.Milliseconds(),
	}, nil
}

func (p *Pipeline) runStage(ctx context.Context, s pipelineStage, state *models.RunState) error {
	ctx, span := p.tracer.Start(ctx, "pipeline."+s.name)
	defer span.End()

	start := time.Now()
	usage, err := s.run(ctx, state)
	elapsed := time.Since(start)

	if usage.InputTokens > 0 || usage.OutputTokens > 0 {
		p.deps.Metrics.RecordLLMUsage(s.op, elapsed, usage.InputTokens, usage.OutputTokens)
		span.SetAttributes(
			attribute.Int64("llm.input_tokens", usage.InputTokens),
			attribute.Int64("llm.output_tokens", usage.OutputTokens),
		)
	} else {
		p.deps.Metrics.RecordTiming(s.op, elapsed)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}

func (p *Pipeline) ingest(ctx context.Context, state *models.RunState) (models.Usage, error) {
	doc, err := p.deps.Documents.ExtractDocumentText(ctx, state.FilePath, models.DocumentMetadata{
		Sender:     state.Sender,
		Subject:    state.Subject,
		Filename:   filepath.Base(state.FilePath),
		ReceivedAt: p.now().UTC(),
	})
	if err != nil {
		return models.Usage{}, err
	}
	state.Document = &doc
	return models.Usage{}, nil
}

func (p *Pipeline) extract(ctx context.Context, state *models.RunState) (models.Usage, error) {
	contract, usage, latency, err := p.deps.Extractor.Extract(ctx, *state.Document)
	if err != nil {
		return usage, err
	}
	state.Contract = &contract
	state.RecordStage(models.StageExtract, models.StageMetrics{LatencyMS: latency.Milliseconds(), Usage: usage})

	p.logger.Info("extraction completed",
		"event", "extraction_completed",
		"request_id", state.RequestID,
		"vendor_name", contract.VendorName,
		"confidence_score", contract.ConfidenceScore,
		"extraction_latency_ms", latency.Milliseconds(),
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
	)
	return usage, nil
}

func (p *Pipeline) validate(ctx context.Context, state *models.RunState) (models.Usage, error) {
	policies, err := p.deps.Retriever.RetrieveRelevantPolicies(ctx, *state.Contract)
	if err != nil {
		return models.Usage{}, err
	}
	result, usage, latency := p.deps.Validator.Validate(ctx, *state.Contract, policies)

	state.RetrievedPolicies = policies
	state.Validation = &result
	state.RecordStage(models.StageValidate, models.StageMetrics{LatencyMS: latency.Milliseconds(), Usage: usage})

	p.logger.Info("validation completed",
		"event", "validation_completed",
		"request_id", state.RequestID,
		"risk_level", result.RiskLevel,
		"requires_human_review", result.RequiresHumanReview,
		"policy_violations", result.PolicyViolations,
		"policies_retrieved", len(policies),
		"validation_latency_ms", latency.Milliseconds(),
	)
	return usage, nil
}

func (p *Pipeline) route(_ context.Context, state *models.RunState) (models.Usage, error) {
	decision := routing.Route(*state.Contract, *state.Validation, p.deps.RoutingOverride)
	state.Routing = &decision

	p.logger.Info("routing decision created",
		"event", "routing_completed",
		"request_id", state.RequestID,
		"route", decision.Route,
		"reasons", decision.Reasons,
	)
	return models.Usage{}, nil
}

func (p *Pipeline) persist(ctx context.Context, state *models.RunState) (models.Usage, error) {
	id, err := p.deps.Store.PersistSuccess(ctx, state)
	if err != nil {
		return models.Usage{}, err
	}
	state.ContractID = id
	return models.Usage{}, nil
}

// fail logs the failed run and records it in the processing log. The
// original error is always returned.
func (p *Pipeline) fail(ctx context.Context, state *models.RunState, err error) error {
	p.deps.Metrics.Inc(metrics.CounterPipelineFailed)
	p.logger.Error("pipeline failed",
		"event", "pipeline_failed",
		"request_id", state.RequestID,
		"stage", state.Stage,
		"file_path", state.FilePath,
		"error", err,
	)

	// The failure record is written even when the caller's context is done.
	if perr := p.deps.Store.PersistFailure(context.WithoutCancel(ctx), state.Sender, state.Subject, state.FilePath, err.Error()); perr != nil {
		p.logger.Error("failed to persist failure log",
			"event", "failure_log_persist_failed",
			"request_id", state.RequestID,
			"error", perr,
		)
	}
	return err
}

func (p *Pipeline) cleanupUpload(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		p.logger.Warn("failed to delete uploaded file after processing",
			"event", "uploaded_file_cleanup_failed",
			"file_path", path,
			"error", err,
		)
	}
}
