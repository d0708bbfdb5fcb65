package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/contractflow/internal/metrics"
	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/tmc/langchaingo/llms"
)

// StructuredOptions configures RunStructured.
type StructuredOptions struct {
	// MaxRetries is the number of attempts; values below 1 mean one attempt.
	MaxRetries int

	// FailureEvent is logged as the event attribute of each parse failure.
	FailureEvent string

	// NotFoundMessage describes an unknown model identifier to the operator.
	NotFoundMessage string

	// ErrorPrefix starts the message of the exhausted-retries error.
	ErrorPrefix string

	// Err is wrapped into every error RunStructured produces itself.
	Err error

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// RunStructured asks gen for a JSON object and hands it to parse until parse
// succeeds or the attempts run out.
//
// Parse and validation failures are retried. An unknown model identifier
// fails at once. Any other generator error is returned unchanged.
// Usage is summed over all attempts.
func RunStructured[T any](
	ctx context.Context,
	gen Generator,
	messages []llms.MessageContent,
	opts StructuredOptions,
	parse func(payload any) (T, error),
) (T, models.Usage, time.Duration, error) {
	var zero T
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attempts := max(opts.MaxRetries, 1)
	prefix := opts.ErrorPrefix
	if prefix == "" {
		prefix = "structured output failed"
	}

	var usage models.Usage
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := gen.Generate(ctx, messages)
		if err != nil {
			if IsModelNotFound(err) {
				return zero, usage, time.Since(start), wrapWith(opts.Err, fmt.Errorf("%w: %s", ErrModelNotFound, opts.NotFoundMessage))
			}
			return zero, usage, time.Since(start), err
		}
		usage = usage.Add(resp.Usage)

		result, err := decodeStructured(resp.Content, parse)
		if err == nil {
			return result, usage, time.Since(start), nil
		}

		lastErr = err
		opts.Metrics.Inc(metrics.CounterParseFailure)
		logger.Warn("structured output parse failure",
			"event", opts.FailureEvent,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err,
		)
	}

	return zero, usage, time.Since(start), wrapWith(opts.Err,
		fmt.Errorf("%s after %d attempts: %w", prefix, attempts, lastErr))
}

func decodeStructured[T any](content string, parse func(payload any) (T, error)) (T, error) {
	var zero T

	text, err := ExtractJSONText(content)
	if err != nil {
		return zero, err
	}

	var payload any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}

	result, err := parse(payload)
	if err != nil {
		if errors.Is(err, ErrMalformedOutput) {
			return zero, err
		}
		return zero, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	return result, nil
}

// ExtractJSONText returns the span from the first '{' to the last '}' of
// content after removing a surrounding code fence.
func ExtractJSONText(content string) (string, error) {
	cleaned := strings.TrimSpace(content)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimPrefix(cleaned, "json")
		cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "```"))
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("%w: no JSON object found in model response", ErrMalformedOutput)
	}
	return cleaned[start : end+1], nil
}

func wrapWith(sentinel, err error) error {
	if sentinel == nil {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
