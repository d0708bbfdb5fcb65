package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpStageIngest, 10*time.Millisecond)
	c.RecordTiming(OpStageIngest, 30*time.Millisecond)

	snap := c.Snapshot()
	op := snap.Operations[OpStageIngest]
	require.NotNil(t, op)
	assert.Equal(t, int64(2), op.Count)
	assert.Equal(t, int64(40), op.TotalTimeMs)
	assert.Equal(t, 20.0, op.AvgTimeMs)
	assert.Equal(t, int64(10), op.MinTimeMs)
	assert.Equal(t, int64(30), op.MaxTimeMs)
	assert.Nil(t, op.TotalInputTokens)
}

func TestCollector_RecordLLMUsage(t *testing.T) {
	c := NewCollector()
	c.RecordLLMUsage(OpLLMExtract, time.Second, 100, 20)
	c.RecordLLMUsage(OpLLMExtract, time.Second, 300, 40)

	op := c.Snapshot().Operations[OpLLMExtract]
	require.NotNil(t, op)
	require.NotNil(t, op.TotalInputTokens)
	assert.Equal(t, int64(400), *op.TotalInputTokens)
	assert.Equal(t, int64(60), *op.TotalOutputTokens)
	assert.Equal(t, 200.0, *op.AvgInputTokens)
	assert.Equal(t, int64(100), *op.MinInputTokens)
	assert.Equal(t, int64(40), *op.MaxOutputTokens)
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc(CounterPipelineSucceeded)
		}()
	}
	wg.Wait()
	c.Inc(CounterPipelineFailed)

	snap := c.Snapshot()
	assert.Equal(t, int64(50), snap.Counters[CounterPipelineSucceeded])
	assert.Equal(t, int64(1), snap.Counters[CounterPipelineFailed])
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.RecordTiming(OpPipeline, time.Second)
	c.RecordLLMUsage(OpLLMExtract, time.Second, 1, 1)
	c.Inc(CounterDeferred)

	snap := c.Snapshot()
	assert.Empty(t, snap.Operations)
	assert.Empty(t, snap.Counters)
}
