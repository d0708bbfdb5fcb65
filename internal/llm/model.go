package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/contractflow/internal/config"
	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const defaultMaxTokens = 1024

// Response is the text content of a generation plus reported usage.
type Response struct {
	Content string
	Usage   models.Usage
}

// Generator produces a response for a sequence of messages.
type Generator interface {
	Generate(ctx context.Context, messages []llms.MessageContent) (Response, error)
}

// Model wraps a langchaingo LLM for deterministic text generation.
type Model struct {
	llm       llms.Model
	modelName string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewModel creates an LLM for modelName on the configured provider.
func NewModel(ctx context.Context, cfg config.Config, modelName string, logger *slog.Logger) (*Model, error) {
	if modelName == "" {
		return nil, fmt.Errorf("%w: model name is empty", ErrModelNotFound)
	}

	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(modelName),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(modelName),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(modelName),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, awsErr := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if awsErr != nil {
			return nil, fmt.Errorf("load aws config: %w", awsErr)
		}
		model, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(modelName),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return NewModelFromLLM(model, modelName, cfg.LLMTimeout, logger), nil
}

// NewModelFromLLM wraps an already constructed langchaingo model.
func NewModelFromLLM(model llms.Model, modelName string, timeout time.Duration, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{
		llm:       model,
		modelName: modelName,
		timeout:   timeout,
		logger:    logger,
	}
}

// Generate runs the messages at temperature 0 and returns the first choice.
// Errors are classified as ErrModelNotFound or ErrFatalAPI where possible.
func (m *Model) Generate(ctx context.Context, messages []llms.MessageContent) (Response, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := m.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(0),
		llms.WithMaxTokens(defaultMaxTokens),
	)
	duration := time.Since(start)

	if err != nil {
		m.logger.Warn("llm generate failed", "model", m.modelName, "duration_ms", duration.Milliseconds(), "error", err)
		return Response{}, fmt.Errorf("generate: %w", classifyError(err))
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: no response choices", ErrMalformedOutput)
	}

	choice := resp.Choices[0]
	usage := UsageFromGenerationInfo(choice.GenerationInfo)
	m.logger.Debug("llm generate complete",
		"model", m.modelName,
		"duration_ms", duration.Milliseconds(),
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
	)

	return Response{Content: choice.Content, Usage: usage}, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}
