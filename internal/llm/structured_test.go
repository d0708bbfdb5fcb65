package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/raphaelgruber/contractflow/internal/metrics"
	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

var errStage = errors.New("stage failed")

type scriptedGenerator struct {
	responses []Response
	errs      []error
	calls     int
}

func (g *scriptedGenerator) Generate(_ context.Context, _ []llms.MessageContent) (Response, error) {
	i := g.calls
	g.calls++
	if i < len(g.errs) && g.errs[i] != nil {
		return Response{}, g.errs[i]
	}
	if i < len(g.responses) {
		return g.responses[i], nil
	}
	return Response{Content: "{}"}, nil
}

func parseVendor(payload any) (string, error) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", errors.New("not an object")
	}
	v, ok := obj["vendor_name"].(string)
	if !ok {
		return "", errors.New("vendor_name missing")
	}
	return v, nil
}

func testOptions(retries int) StructuredOptions {
	return StructuredOptions{
		MaxRetries:      retries,
		FailureEvent:    "extraction_parse_failure",
		NotFoundMessage: "configured model is unavailable",
		ErrorPrefix:     "Extraction failed",
		Err:             errStage,
	}
}

func TestRunStructured_SuccessFirstAttempt(t *testing.T) {
	gen := &scriptedGenerator{responses: []Response{{
		Content: "```json\n{\"vendor_name\": \"Acme\"}\n```",
		Usage:   models.Usage{InputTokens: 10, OutputTokens: 4, TotalTokens: 14},
	}}}

	got, usage, _, err := RunStructured(context.Background(), gen, nil, testOptions(3), parseVendor)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got)
	assert.Equal(t, int64(14), usage.TotalTokens)
	assert.Equal(t, 1, gen.calls)
}

func TestRunStructured_RetriesMalformed(t *testing.T) {
	collector := metrics.NewCollector()
	opts := testOptions(3)
	opts.Metrics = collector
	gen := &scriptedGenerator{responses: []Response{
		{Content: "I cannot find any JSON here"},
		{Content: `{"other": 1}`},
		{Content: `Sure! {"vendor_name": "Globex"} hope that helps`},
	}}

	got, _, _, err := RunStructured(context.Background(), gen, nil, opts, parseVendor)
	require.NoError(t, err)
	assert.Equal(t, "Globex", got)
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, int64(2), collector.Snapshot().Counters[metrics.CounterParseFailure])
}

func TestRunStructured_ExhaustsAttempts(t *testing.T) {
	gen := &scriptedGenerator{responses: []Response{
		{Content: "{not json}"},
		{Content: "{not json}"},
	}}

	_, _, _, err := RunStructured(context.Background(), gen, nil, testOptions(2), parseVendor)
	require.Error(t, err)
	assert.ErrorIs(t, err, errStage)
	assert.ErrorIs(t, err, ErrMalformedOutput)
	assert.Contains(t, err.Error(), "Extraction failed after 2 attempts")
	assert.Equal(t, 2, gen.calls)
}

func TestRunStructured_ModelNotFoundFailsFast(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{errors.New(`model "claude-nope" not found`)}}

	_, _, _, err := RunStructured(context.Background(), gen, nil, testOptions(5), parseVendor)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelNotFound)
	assert.ErrorIs(t, err, errStage)
	assert.Contains(t, err.Error(), "configured model is unavailable")
	assert.Equal(t, 1, gen.calls)
}

func TestRunStructured_OtherErrorsPropagate(t *testing.T) {
	boom := errors.New("connection reset by peer")
	gen := &scriptedGenerator{errs: []error{boom}}

	_, _, _, err := RunStructured(context.Background(), gen, nil, testOptions(3), parseVendor)
	assert.Same(t, boom, err)
	assert.Equal(t, 1, gen.calls)
}

func TestRunStructured_ZeroRetriesStillAttemptsOnce(t *testing.T) {
	gen := &scriptedGenerator{responses: []Response{{Content: `{"vendor_name":"Initech"}`}}}

	got, _, _, err := RunStructured(context.Background(), gen, nil, testOptions(0), parseVendor)
	require.NoError(t, err)
	assert.Equal(t, "Initech", got)
}

func TestExtractJSONText(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, false},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"fenced plain", "```\n{\"a\":1}\n```", `{"a":1}`, false},
		{"fenced plain keeps json in values", "```\n{\"vendor_name\": \"jsonworks Ltd\"}\n```", `{"vendor_name": "jsonworks Ltd"}`, false},
		{"fenced json keeps json in values", "```json\n{\"note\": \"see json\"}\n```", `{"note": "see json"}`, false},
		{"prose around", `Here you go: {"a":{"b":2}} done`, `{"a":{"b":2}}`, false},
		{"no braces", "nothing here", "", true},
		{"reversed braces", "} then {", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONText(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedOutput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
