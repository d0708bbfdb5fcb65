package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/raphaelgruber/contractflow/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbeddings struct {
	dim int
	err error
}

func (f fakeEmbeddings) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func (f fakeEmbeddings) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, f.dim), nil
}

func TestEmbedder_Embed(t *testing.T) {
	collector := metrics.NewCollector()
	e := NewEmbedderFrom(fakeEmbeddings{dim: 4}, "test", 4, collector, nil)

	v, err := e.Embed(context.Background(), "approval threshold")
	require.NoError(t, err)
	assert.Len(t, v, 4)
	assert.Equal(t, int64(1), collector.Snapshot().Operations[metrics.OpEmbedding].Count)
}

func TestEmbedder_DimensionMismatch(t *testing.T) {
	e := NewEmbedderFrom(fakeEmbeddings{dim: 3}, "test", 4, nil, nil)

	_, err := e.Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "dimension mismatch")

	_, err = e.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "dimension mismatch")
}

func TestEmbedder_FatalErrors(t *testing.T) {
	e := NewEmbedderFrom(fakeEmbeddings{err: errors.New("HTTP 401 unauthorized")}, "test", 4, nil, nil)

	_, err := e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrFatalAPI)
}

func TestEmbedder_EmptyBatch(t *testing.T) {
	e := NewEmbedderFrom(fakeEmbeddings{dim: 4}, "test", 4, nil, nil)

	out, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
