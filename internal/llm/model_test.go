package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"billing issue", errors.New("billing account inactive"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"authentication failed", errors.New("authentication failed"), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"403 status", errors.New("HTTP 403: forbidden"), true},
		{"wrapped error", fmt.Errorf("generate: %w", errors.New("credit balance too low")), true},
		{"404 not fatal", errors.New("HTTP 404: not found"), false},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, isFatalAPIError(tt.err))
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	t.Run("wraps fatal error", func(t *testing.T) {
		wrapped := wrapFatalError(errors.New("invalid api key provided"))
		assert.ErrorIs(t, wrapped, ErrFatalAPI)
	})

	t.Run("passes through non-fatal error", func(t *testing.T) {
		err := errors.New("network timeout")
		result := wrapFatalError(err)
		assert.NotErrorIs(t, result, ErrFatalAPI)
		assert.Same(t, err, result)
	})

	t.Run("nil error", func(t *testing.T) {
		assert.NoError(t, wrapFatalError(nil))
	})
}

func TestIsModelNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"anthropic not_found", errors.New(`404 {"type":"not_found_error","message":"model: claude-x"}`), true},
		{"ollama missing model", errors.New(`model "llama9" not found, try pulling it first`), true},
		{"openai missing model", errors.New("The model `gpt-9` does not exist"), true},
		{"sentinel", fmt.Errorf("x: %w", ErrModelNotFound), true},
		{"404 without model", errors.New("HTTP 404: route not found"), false},
		{"model overloaded", errors.New("model is overloaded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsModelNotFound(tt.err))
		})
	}
}

func TestClassifyError(t *testing.T) {
	assert.ErrorIs(t, classifyError(errors.New("model foo not found")), ErrModelNotFound)
	assert.ErrorIs(t, classifyError(errors.New("HTTP 401")), ErrFatalAPI)
	assert.NoError(t, classifyError(nil))
}

type fakeLLM struct {
	resp *llms.ContentResponse
	err  error
	opts llms.CallOptions
}

func (f *fakeLLM) GenerateContent(_ context.Context, _ []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, o := range options {
		o(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestModelGenerate(t *testing.T) {
	fake := &fakeLLM{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        `{"vendor_name":"Acme"}`,
		GenerationInfo: map[string]any{"InputTokens": 120, "OutputTokens": 30},
	}}}}
	m := NewModelFromLLM(fake, "claude-test", 0, nil)

	resp, err := m.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, `{"vendor_name":"Acme"}`, resp.Content)
	assert.Equal(t, int64(120), resp.Usage.InputTokens)
	assert.Equal(t, int64(30), resp.Usage.OutputTokens)
	assert.Equal(t, int64(150), resp.Usage.TotalTokens)
	assert.Equal(t, 0.0, fake.opts.Temperature)
	assert.Equal(t, "claude-test", m.Model())
}

func TestModelGenerate_Errors(t *testing.T) {
	m := NewModelFromLLM(&fakeLLM{err: errors.New("model claude-x not found")}, "claude-x", 0, nil)
	_, err := m.Generate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrModelNotFound)

	m = NewModelFromLLM(&fakeLLM{resp: &llms.ContentResponse{}}, "claude-x", 0, nil)
	_, err = m.Generate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestUsageFromGenerationInfo(t *testing.T) {
	assert.True(t, UsageFromGenerationInfo(nil).IsZero())

	u := UsageFromGenerationInfo(map[string]any{"PromptTokens": 10, "CompletionTokens": 5, "TotalTokens": 15})
	assert.Equal(t, int64(10), u.InputTokens)
	assert.Equal(t, int64(5), u.OutputTokens)
	assert.Equal(t, int64(15), u.TotalTokens)

	u = UsageFromGenerationInfo(map[string]any{"unrelated": "x"})
	assert.True(t, u.IsZero())
}
