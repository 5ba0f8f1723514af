// Package dispatch runs evaluator calls with bounded concurrency, memoization, per-call
// timeouts and bounded retries. Evaluator failures are returned as data, never as panics
// or aborted batches.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"bondfuzz/domain/canon"
	"bondfuzz/domain/core"
	"bondfuzz/domain/scenario"
	"bondfuzz/internal"
	"bondfuzz/ports"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Config controls how evaluator calls are issued
type Config struct {
	Workers    int           // concurrent evaluator calls
	Timeout    time.Duration // per attempt; zero disables
	MaxRetries int           // extra attempts for transient failures
	Backoff    time.Duration // first retry delay, doubled each attempt
	MaxBackoff time.Duration
	RateLimit  float64 // calls per second; zero disables
	Burst      int
	Cache      bool
}

// DefaultConfig suits in-process evaluators and small remote services
func DefaultConfig() Config {
	return Config{
		Workers:    8,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		Backoff:    100 * time.Millisecond,
		MaxBackoff: 5 * time.Second,
		Burst:      1,
		Cache:      true,
	}
}

// Outcome is the result of one dispatched evaluation
type Outcome struct {
	Result   scenario.EvaluationResult
	Err      *core.EvaluationError
	Attempts int
	Cached   bool
	// Skipped is set when the campaign context ended before the call could complete
	Skipped bool
}

// OK reports whether the evaluation produced a usable selection
func (o Outcome) OK() bool {
	return o.Err == nil && !o.Skipped
}

// Stats are running counters for logging and tests
type Stats struct {
	Calls     int64
	CacheHits int64
	Retries   int64
	Failures  int64
}

// Dispatcher wraps one evaluator
type Dispatcher struct {
	evaluator ports.Evaluator
	cfg       Config
	sem       *semaphore.Weighted
	limiter   *rate.Limiter
	flights   singleflight.Group
	metrics   *Metrics
	logger    *internal.Logger

	mu    sync.RWMutex
	cache map[core.Hash]scenario.EvaluationResult

	calls, cacheHits, retries, failures atomic.Int64
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithMetrics records call metrics on m
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the logger used for retry and failure messages
func WithLogger(l *internal.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a dispatcher for evaluator
func New(evaluator ports.Evaluator, cfg Config, opts ...Option) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	d := &Dispatcher{
		evaluator: evaluator,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(int64(cfg.Workers)),
		cache:     make(map[core.Hash]scenario.EvaluationResult),
		logger:    internal.NewNopLogger(),
	}
	if cfg.RateLimit > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, cfg.Burst))
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the wrapped evaluator's name
func (d *Dispatcher) Name() string {
	return d.evaluator.Name()
}

// Stats returns a snapshot of the running counters
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Calls:     d.calls.Load(),
		CacheHits: d.cacheHits.Load(),
		Retries:   d.retries.Load(),
		Failures:  d.failures.Load(),
	}
}

// Evaluate runs one evaluation. Identical scenarios in flight at the same time share a single
// call, and successful results are memoized by the scenario's surface hash.
func (d *Dispatcher) Evaluate(ctx context.Context, s scenario.Scenario) Outcome {
	if ctx.Err() != nil {
		return Outcome{Skipped: true, Err: core.NewTimeoutError(d.Name(), ctx.Err())}
	}

	key := canon.SurfaceHash(s)
	if out, ok := d.cached(key); ok {
		return out
	}

	v, _, _ := d.flights.Do(string(key), func() (interface{}, error) {
		// a flight for the same key may have finished between the lookup and Do
		if out, ok := d.cached(key); ok {
			return out, nil
		}
		out := d.evaluateWithRetry(ctx, s)
		if out.OK() && d.cfg.Cache {
			d.mu.Lock()
			d.cache[key] = out.Result
			d.mu.Unlock()
		}
		return out, nil
	})
	return v.(Outcome)
}

func (d *Dispatcher) cached(key core.Hash) (Outcome, bool) {
	if !d.cfg.Cache {
		return Outcome{}, false
	}
	d.mu.RLock()
	res, ok := d.cache[key]
	d.mu.RUnlock()
	if !ok {
		return Outcome{}, false
	}
	d.cacheHits.Add(1)
	d.metrics.observeCacheHit(d.Name())
	return Outcome{Result: res, Cached: true}, true
}

// EvaluateAll evaluates every scenario and returns outcomes in input order
func (d *Dispatcher) EvaluateAll(ctx context.Context, scenarios []scenario.Scenario) []Outcome {
	outcomes := make([]Outcome, len(scenarios))
	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)
	for i := range scenarios {
		g.Go(func() error {
			outcomes[i] = d.Evaluate(ctx, scenarios[i])
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (d *Dispatcher) evaluateWithRetry(ctx context.Context, s scenario.Scenario) Outcome {
	var lastErr *core.EvaluationError
	attempts := 0
	for attempts <= d.cfg.MaxRetries {
		if attempts > 0 {
			d.retries.Add(1)
			d.metrics.observeRetry(d.Name())
			if err := sleepCtx(ctx, d.backoff(attempts)); err != nil {
				return Outcome{Err: lastErr, Attempts: attempts, Skipped: true}
			}
		}
		attempts++

		res, err := d.callOnce(ctx, s)
		if err == nil {
			return Outcome{Result: res, Attempts: attempts}
		}

		lastErr = core.AsEvaluationError(d.Name(), err)
		d.metrics.observeError(d.Name(), string(lastErr.Kind))
		if ctx.Err() != nil {
			return Outcome{Err: lastErr, Attempts: attempts, Skipped: true}
		}
		if !lastErr.Transient {
			break
		}
		d.logger.Debug("evaluator %s attempt %d on %s failed: %v", d.Name(), attempts, s.ID, lastErr)
	}
	d.failures.Add(1)
	d.logger.Warn("evaluator %s gave up on scenario %s after %d attempts: %v", d.Name(), s.ID, attempts, lastErr)
	return Outcome{Err: lastErr, Attempts: attempts}
}

// backoff returns Backoff * 2^(retry-1), capped at MaxBackoff
func (d *Dispatcher) backoff(retry int) time.Duration {
	delay := d.cfg.Backoff * time.Duration(1<<(retry-1))
	if d.cfg.MaxBackoff > 0 && delay > d.cfg.MaxBackoff {
		delay = d.cfg.MaxBackoff
	}
	return delay
}

type callResult struct {
	res scenario.EvaluationResult
	err error
}

// callOnce issues a single attempt. The evaluator runs in its own goroutine so the timeout
// holds even for evaluators that ignore their context.
func (d *Dispatcher) callOnce(ctx context.Context, s scenario.Scenario) (scenario.EvaluationResult, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return scenario.EvaluationResult{}, core.NewTimeoutError(d.Name(), err)
		}
	}
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return scenario.EvaluationResult{}, core.NewTimeoutError(d.Name(), err)
	}
	defer d.sem.Release(1)

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if d.cfg.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
	}
	defer cancel()

	d.calls.Add(1)
	start := time.Now()
	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: core.NewExternalError(d.Name(), false, fmt.Errorf("evaluator panic: %v", r))}
			}
		}()
		res, err := d.evaluator.Evaluate(callCtx, s.Clone())
		done <- callResult{res: res, err: err}
	}()

	select {
	case r := <-done:
		d.metrics.observeCall(d.Name(), r.err == nil, time.Since(start))
		return r.res, r.err
	case <-callCtx.Done():
		d.metrics.observeCall(d.Name(), false, time.Since(start))
		return scenario.EvaluationResult{}, core.NewTimeoutError(d.Name(), callCtx.Err())
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
