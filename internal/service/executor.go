package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/contractflow/internal/metrics"
	"github.com/raphaelgruber/contractflow/internal/models"
	"golang.org/x/sync/semaphore"
)

// ErrExecutorClosed is returned when submitting after Shutdown.
var ErrExecutorClosed = errors.New("pipeline executor is shut down")

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, requestID, sender, subject, filePath string) (models.PipelineResult, error)
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// Workers bounds the number of runs executing at once (default 4).
	Workers int
	// WaitTimeout is how long SubmitAndWait blocks before deferring (default 30s).
	WaitTimeout time.Duration
	// Idempotency enables joining in-flight runs by idempotency key.
	Idempotency bool

	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Outcome is what a waiting caller learns about its submission.
// Result is nil when the wait timed out before the run settled.
// Joined reports that the submission reused an in-flight run, so the
// caller's file was never handed to a pipeline.
type Outcome struct {
	Completed bool
	Joined    bool
	RequestID string
	Result    *models.PipelineResult
}

// call is an in-flight run shared by every caller that joined it.
type call struct {
	done   chan struct{}
	result models.PipelineResult
	err    error
}

// Executor runs pipelines on a bounded pool and deduplicates concurrent
// submissions that share an idempotency key.
type Executor struct {
	runner      Runner
	sem         *semaphore.Weighted
	waitTimeout time.Duration
	idempotency bool
	metrics     *metrics.Collector
	logger      *slog.Logger

	// mu guards calls, keys and closed.
	mu     sync.Mutex
	calls  map[string]*call  // request ID -> in-flight run
	keys   map[string]string // idempotency key -> request ID
	closed bool

	wg sync.WaitGroup
}

// NewExecutor creates an executor over runner.
func NewExecutor(runner Runner, opts ExecutorOptions) *Executor {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	wait := opts.WaitTimeout
	if wait <= 0 {
		wait = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		runner:      runner,
		sem:         semaphore.NewWeighted(int64(workers)),
		waitTimeout: wait,
		idempotency: opts.Idempotency,
		metrics:     opts.Metrics,
		logger:      logger,
		calls:       make(map[string]*call),
		keys:        make(map[string]string),
	}
}

// SubmitAndWait starts a run (or joins the in-flight run for the same
// idempotency key) and waits up to the configured timeout for it to settle.
// On timeout the run keeps going in the background and the outcome reports
// Completed=false. A run failure inside the window is returned as the error.
func (e *Executor) SubmitAndWait(ctx context.Context, sender, subject, filePath, idempotencyKey string) (Outcome, error) {
	requestID, c, joined, err := e.getOrSubmit(ctx, sender, subject, filePath, idempotencyKey)
	if err != nil {
		return Outcome{}, err
	}
	outcome := Outcome{Joined: joined, RequestID: requestID}

	timer := time.NewTimer(e.waitTimeout)
	defer timer.Stop()

	select {
	case <-c.done:
		if c.err != nil {
			return outcome, c.err
		}
		result := c.result
		outcome.Completed = true
		outcome.Result = &result
		return outcome, nil
	case <-timer.C:
		e.metrics.Inc(metrics.CounterDeferred)
		e.logger.Warn("pipeline still running after sync timeout; returning accepted response",
			"event", "pipeline_deferred_response",
			"request_id", requestID,
			"wait_timeout_seconds", e.waitTimeout.Seconds(),
		)
		return outcome, nil
	case <-ctx.Done():
		// The caller left; the run itself is not cancelled.
		return outcome, ctx.Err()
	}
}

func (e *Executor) getOrSubmit(ctx context.Context, sender, subject, filePath, idempotencyKey string) (string, *call, bool, error) {
	key := strings.TrimSpace(idempotencyKey)
	dedupe := e.idempotency && key != ""

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return "", nil, false, ErrExecutorClosed
	}

	if dedupe {
		if existingID, ok := e.keys[key]; ok {
			if existing, ok := e.calls[existingID]; ok && !settled(existing) {
				e.metrics.Inc(metrics.CounterIdempotentReuse)
				e.logger.Info("reusing in-flight pipeline execution for idempotency key",
					"event", "pipeline_idempotency_reused",
					"request_id", existingID,
				)
				return existingID, existing, true, nil
			}
		}
	}

	requestID := uuid.NewString()
	c := &call{done: make(chan struct{})}
	e.calls[requestID] = c
	if dedupe {
		e.keys[key] = requestID
	}

	e.wg.Add(1)
	go e.execute(context.WithoutCancel(ctx), requestID, key, c, sender, subject, filePath)

	return requestID, c, false, nil
}

// execute waits for a pool slot, runs the pipeline and settles the call.
func (e *Executor) execute(ctx context.Context, requestID, key string, c *call, sender, subject, filePath string) {
	defer e.wg.Done()

	var (
		result models.PipelineResult
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("pipeline panic: %v", r)
			}
		}()
		if err = e.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer e.sem.Release(1)
		result, err = e.runner.Run(ctx, requestID, sender, subject, filePath)
	}()

	e.settle(requestID, key, c, result, err)

	if err != nil {
		e.logger.Error("asynchronous pipeline execution failed",
			"event", "pipeline_async_failed",
			"request_id", requestID,
			"error", err,
		)
		return
	}
	e.logger.Info("asynchronous pipeline execution completed",
		"event", "pipeline_async_completed",
		"request_id", requestID,
		"contract_id", result.ContractID,
	)
}

// settle publishes the outcome and releases the request ID and key binding
// in one critical section, so a key is reusable exactly when its run is done.
func (e *Executor) settle(requestID, key string, c *call, result models.PipelineResult, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.calls, requestID)
	if key != "" && e.keys[key] == requestID {
		delete(e.keys, key)
	}
	c.result = result
	c.err = err
	close(c.done)
}

func settled(c *call) bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// InFlight returns the number of runs that have not settled.
func (e *Executor) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// Shutdown stops accepting submissions and waits for running work to finish
// or ctx to end. Running work is never cancelled.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		e.logger.Warn("executor shutdown deadline reached with runs still in flight",
			"in_flight", e.InFlight(),
		)
		return ctx.Err()
	}
}
