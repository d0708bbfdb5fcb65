package extraction

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/raphaelgruber/contractflow/internal/llm"
	"github.com/raphaelgruber/contractflow/internal/metrics"
	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeGenerator struct {
	replies  []string
	err      error
	calls    int
	lastUser string
}

func (f *fakeGenerator) Generate(_ context.Context, messages []llms.MessageContent) (llm.Response, error) {
	f.calls++
	if len(messages) == 2 {
		if part, ok := messages[1].Parts[0].(llms.TextContent); ok {
			f.lastUser = part.Text
		}
	}
	if f.err != nil {
		return llm.Response{}, f.err
	}
	reply := f.replies[min(f.calls-1, len(f.replies)-1)]
	return llm.Response{Content: reply, Usage: models.Usage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120}}, nil
}

func doc(text string) models.DocumentText {
	return models.DocumentText{Text: text, Metadata: models.DocumentMetadata{Filename: "contract.pdf"}}
}

func TestExtract_FullPayload(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"```json\n" + `{
		"vendor_name": "Acme Corp",
		"contract_start_date": "March 1st, 2026",
		"contract_end_date": "03/31/2027",
		"total_value": "$70,000 USD",
		"confidence_score": 0.1
	}` + "\n```"}}
	collector := metrics.NewCollector()
	e := NewExtractor(gen, Options{MaxRetries: 3, MaxInputChars: 24000, Metrics: collector})

	got, usage, _, err := e.Extract(context.Background(), doc("Vendor: Acme Corp"))
	require.NoError(t, err)

	assert.Equal(t, models.ContractExtraction{
		VendorName:        "Acme Corp",
		ContractStartDate: "2026-03-01",
		ContractEndDate:   "2027-03-31",
		TotalValue:        70000,
		ConfidenceScore:   1,
	}, got)
	assert.Equal(t, int64(120), usage.TotalTokens)
	assert.Equal(t, 1, gen.calls)
	assert.NotNil(t, collector.Snapshot().Operations[metrics.OpLLMExtract])
}

func TestExtract_DefaultsAndDerivedConfidence(t *testing.T) {
	gen := &fakeGenerator{replies: []string{`{"vendor_name":"Acme","contract_start_date":"2026-01-01","contract_end_date":"2027-01-01"}`}}
	e := NewExtractor(gen, Options{MaxRetries: 1})

	got, _, _, err := e.Extract(context.Background(), doc("text"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.TotalValue)
	assert.Equal(t, 0.75, got.ConfidenceScore)
}

func TestExtract_NullishFields(t *testing.T) {
	gen := &fakeGenerator{replies: []string{`{"vendor_name":"N/A","contract_start_date":null,"contract_end_date":"unknown","total_value":"1.5 million dollars"}`}}
	e := NewExtractor(gen, Options{MaxRetries: 1})

	got, _, _, err := e.Extract(context.Background(), doc("text"))
	require.NoError(t, err)
	assert.Equal(t, "", got.VendorName)
	assert.Equal(t, "", got.ContractStartDate)
	assert.Equal(t, 1500000.0, got.TotalValue)
	assert.Equal(t, 0.25, got.ConfidenceScore)
}

func TestExtract_RetriesThenFails(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"no json", `{"total_value": "(500)"}`}}
	e := NewExtractor(gen, Options{MaxRetries: 2})

	_, _, _, err := e.Extract(context.Background(), doc("text"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtraction)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Contains(t, err.Error(), "non-negative")
	assert.Equal(t, 2, gen.calls)
}

func TestExtract_ModelNotFound(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model claude-nope not found")}
	e := NewExtractor(gen, Options{MaxRetries: 3})

	_, _, _, err := e.Extract(context.Background(), doc("text"))
	assert.ErrorIs(t, err, ErrExtraction)
	assert.ErrorIs(t, err, llm.ErrModelNotFound)
	assert.Equal(t, 1, gen.calls)
}

func TestExtract_OtherErrorsWrapped(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	e := NewExtractor(gen, Options{MaxRetries: 3})

	_, _, _, err := e.Extract(context.Background(), doc("text"))
	assert.ErrorIs(t, err, ErrExtraction)
	assert.Equal(t, 1, gen.calls)
}

func TestExtract_TruncatesLongInput(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	collector := metrics.NewCollector()
	gen := &fakeGenerator{replies: []string{`{"vendor_name":"Acme"}`}}
	e := NewExtractor(gen, Options{MaxRetries: 1, MaxInputChars: 4000, Logger: logger, Metrics: collector})

	_, _, _, err := e.Extract(context.Background(), doc(strings.Repeat("contract text. ", 2000)))
	require.NoError(t, err)

	assert.Contains(t, gen.lastUser, TruncatedMarker)
	assert.Contains(t, buf.String(), `"event":"extraction_input_truncated"`)
	assert.Equal(t, int64(1), collector.Snapshot().Counters[metrics.CounterInputTruncated])
}

func TestParseContract_NotObject(t *testing.T) {
	_, err := ParseContract([]any{"x"})
	assert.Error(t, err)
}
