package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"deckhand/internal/modules/generation/domain"
	genout "deckhand/internal/modules/generation/port/out"
	"deckhand/internal/platform/clock"
)

// DefaultEstimateDebounce is how long slider-style input must settle
// before a cost estimate request goes out.
const DefaultEstimateDebounce = 400 * time.Millisecond

// Estimator coalesces bursty config changes into single EstimateCost
// calls. Request records the desired input and restarts the debounce
// window; Pump dispatches once the window has passed. A newer Request
// aborts whatever is in flight, and a response that lost that race is
// dropped instead of applied.
type Estimator struct {
	clock   clock.Clock
	backend genout.Backend
	logger  *zap.Logger
	delay   time.Duration

	mu        sync.Mutex
	pending   *domain.JobConfig
	due       time.Time
	seq       uint64
	abort     context.CancelFunc
	result    domain.Estimate
	hasResult bool
}

func NewEstimator(clk clock.Clock, backend genout.Backend, logger *zap.Logger) *Estimator {
	return &Estimator{clock: clk, backend: backend, logger: logger, delay: DefaultEstimateDebounce}
}

// Request notes the latest input. Nothing is sent until the debounce
// window elapses without another Request.
func (e *Estimator) Request(cfg domain.JobConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = &cfg
	e.due = e.clock.Now().Add(e.delay)
	if e.abort != nil {
		e.abort()
		e.abort = nil
	}
}

// Pump dispatches the pending request if its window has passed. It
// reports whether the stored result changed.
func (e *Estimator) Pump(ctx context.Context) bool {
	e.mu.Lock()
	if e.pending == nil || e.clock.Now().Before(e.due) {
		e.mu.Unlock()
		return false
	}
	cfg := *e.pending
	e.pending = nil
	e.seq++
	seq := e.seq
	cctx, cancel := context.WithCancel(ctx)
	e.abort = cancel
	e.mu.Unlock()
	defer cancel()

	est, err := e.backend.EstimateCost(cctx, cfg)

	e.mu.Lock()
	defer e.mu.Unlock()
	if seq != e.seq || cctx.Err() != nil {
		return false
	}
	e.abort = nil
	if err != nil {
		e.logger.Warn("cost estimate failed", zap.Error(err))
		e.hasResult = false
		return true
	}
	e.result = est
	e.hasResult = true
	return true
}

// Latest returns the most recent successful estimate, if any.
func (e *Estimator) Latest() (domain.Estimate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result, e.hasResult
}

// Invalidate drops the stored result and anything pending; used when
// the engine returns to the dashboard.
func (e *Estimator) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = nil
	e.hasResult = false
	if e.abort != nil {
		e.abort()
		e.abort = nil
	}
}

// EstimateNow bypasses the debounce for one-shot callers.
func (e *Estimator) EstimateNow(ctx context.Context, cfg domain.JobConfig) (domain.Estimate, error) {
	return e.backend.EstimateCost(ctx, cfg)
}
