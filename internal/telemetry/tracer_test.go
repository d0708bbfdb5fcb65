package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracer_Noop(t *testing.T) {
	shutdown, err := InitTracer("contractflow", "", nil)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")

	shutdown, err := InitTracer("contractflow", path, nil)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "pipeline.extract")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pipeline.extract")
	assert.Contains(t, string(data), "contractflow")
}

func TestInitTracer_BadPath(t *testing.T) {
	_, err := InitTracer("contractflow", filepath.Join(t.TempDir(), "missing", "traces.jsonl"), nil)
	assert.Error(t, err)
}
