// Package extraction turns contract text into a typed ContractExtraction
// using a text-generation model.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/contractflow/internal/llm"
	"github.com/raphaelgruber/contractflow/internal/metrics"
	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/raphaelgruber/contractflow/internal/normalize"
	"github.com/tmc/langchaingo/llms"
)

// ErrExtraction is wrapped into every extraction failure.
var ErrExtraction = errors.New("extraction failed")

const systemPrompt = "You extract contract fields and return STRICT JSON only with these keys: " +
	"vendor_name, contract_start_date, contract_end_date, total_value. " +
	"Do not add extra keys. Return JSON only with no prose or markdown."

const userPromptPrefix = "Extract fields from this contract text and return strict JSON only:\n\n"

const notFoundMessage = "configured EXTRACTION_MODEL is not available for this provider account; " +
	"set EXTRACTION_MODEL to a model id your provider serves"

// ContractSchema is the field layout requested from the model.
var ContractSchema = normalize.Schema{
	{Name: "vendor_name", Type: normalize.Text},
	{Name: "contract_start_date", Type: normalize.Text},
	{Name: "contract_end_date", Type: normalize.Text},
	{Name: "total_value", Type: normalize.Float},
}

// Options configures an Extractor.
type Options struct {
	MaxRetries    int
	MaxInputChars int
	Logger        *slog.Logger
	Metrics       *metrics.Collector
}

// Extractor is the extraction stage of the pipeline.
type Extractor struct {
	gen           llm.Generator
	maxRetries    int
	maxInputChars int
	logger        *slog.Logger
	metrics       *metrics.Collector
}

// NewExtractor creates an extraction stage backed by gen.
func NewExtractor(gen llm.Generator, opts Options) *Extractor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		gen:           gen,
		maxRetries:    max(opts.MaxRetries, 1),
		maxInputChars: max(opts.MaxInputChars, MinInputChars),
		logger:        logger,
		metrics:       opts.Metrics,
	}
}

// Extract pulls the contract fields out of doc.
// Failures wrap ErrExtraction; an unknown model also wraps llm.ErrModelNotFound.
func (e *Extractor) Extract(ctx context.Context, doc models.DocumentText) (models.ContractExtraction, models.Usage, time.Duration, error) {
	bounded, trunc := BuildBoundedInput(doc.Text, e.maxInputChars)
	if trunc.Truncated {
		e.metrics.Inc(metrics.CounterInputTruncated)
		e.logger.Warn("contract text truncated before extraction",
			"event", "extraction_input_truncated",
			"original_chars", trunc.OriginalChars,
			"bounded_chars", trunc.FinalChars,
			"max_input_chars", e.maxInputChars,
		)
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPromptPrefix+bounded),
	}

	contract, usage, elapsed, err := llm.RunStructured(ctx, e.gen, messages, llm.StructuredOptions{
		MaxRetries:      e.maxRetries,
		FailureEvent:    "extraction_parse_failure",
		NotFoundMessage: notFoundMessage,
		ErrorPrefix:     "no valid contract fields",
		Err:             ErrExtraction,
		Logger:          e.logger,
		Metrics:         e.metrics,
	}, ParseContract)
	if err != nil {
		if !errors.Is(err, ErrExtraction) {
			err = fmt.Errorf("%w: %w", ErrExtraction, err)
		}
		return models.ContractExtraction{}, usage, elapsed, err
	}

	e.metrics.RecordLLMUsage(metrics.OpLLMExtract, elapsed, usage.InputTokens, usage.OutputTokens)
	return contract, usage, elapsed, nil
}

// ParseContract coerces a decoded model payload into a ContractExtraction,
// fills defaults for missing fields and derives the confidence score.
func ParseContract(payload any) (models.ContractExtraction, error) {
	fields, err := normalize.Coerce(payload, ContractSchema)
	if err != nil {
		return models.ContractExtraction{}, err
	}

	c := models.ContractExtraction{
		VendorName:        textField(fields, "vendor_name"),
		ContractStartDate: textField(fields, "contract_start_date"),
		ContractEndDate:   textField(fields, "contract_end_date"),
	}
	if v, ok := fields["total_value"].(float64); ok {
		c.TotalValue = v
	}
	c.ConfidenceScore = c.DeriveConfidence()

	if err := c.Validate(); err != nil {
		return models.ContractExtraction{}, err
	}
	return c, nil
}

func textField(fields map[string]any, name string) string {
	s, _ := fields[name].(string)
	return s
}
