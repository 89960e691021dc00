package prediction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/obstacles"
	"github.com/picogrid/swarm-simulations/pkg/swarm"
)

// SnapshotSource hands the worker the most recent snapshot. ok is false when
// there is nothing new to forecast.
type SnapshotSource func() (req Request, ok bool)

// Runner forecasts in the background. The latest finished result replaces
// any earlier one. A panic in the worker is logged and the worker restarts.
type Runner struct {
	params       swarm.Params
	store        *obstacles.Store
	source       SnapshotSource
	interval     time.Duration
	restartDelay time.Duration
	onResult     func(*Result)
	log          logger.Logger

	latest    atomic.Pointer[Result]
	restarts  atomic.Int64
	forecasts atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	workers *conc.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithInterval sets the pause between forecasts.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) { r.interval = d }
}

// WithRestartDelay sets the pause before a crashed worker restarts.
func WithRestartDelay(d time.Duration) Option {
	return func(r *Runner) { r.restartDelay = d }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// OnResult registers a callback invoked on the worker goroutine for every
// finished forecast. It must not block for long.
func OnResult(fn func(*Result)) Option {
	return func(r *Runner) { r.onResult = fn }
}

// NewRunner returns a stopped runner.
func NewRunner(params swarm.Params, store *obstacles.Store, source SnapshotSource, opts ...Option) *Runner {
	r := &Runner{
		params:       params,
		store:        store,
		source:       source,
		interval:     100 * time.Millisecond,
		restartDelay: 250 * time.Millisecond,
		log:          logger.WithPrefix("prediction"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the worker. It fails if the runner is already running or
// its interval or restart delay is not positive.
func (r *Runner) Start(ctx context.Context) error {
	if r.interval <= 0 {
		return fmt.Errorf("prediction interval must be positive, got %v", r.interval)
	}
	if r.restartDelay <= 0 {
		return fmt.Errorf("prediction restart delay must be positive, got %v", r.restartDelay)
	}
	if r.source == nil {
		return errors.New("prediction runner has no snapshot source")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return errors.New("prediction runner already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.workers = &conc.WaitGroup{}
	r.workers.Go(func() { r.supervise(ctx) })
	return nil
}

// Stop ends the worker and waits for it. Stopping a stopped runner is a no-op.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, workers := r.cancel, r.workers
	r.cancel, r.workers = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	workers.Wait()
}

// Latest returns the most recent forecast, or nil.
func (r *Runner) Latest() *Result { return r.latest.Load() }

// Restarts returns how many times the worker was restarted after a panic.
func (r *Runner) Restarts() int64 { return r.restarts.Load() }

// Forecasts returns how many forecasts completed.
func (r *Runner) Forecasts() int64 { return r.forecasts.Load() }

func (r *Runner) supervise(ctx context.Context) {
	for {
		var pc panics.Catcher
		pc.Try(func() { r.work(ctx) })
		rec := pc.Recovered()
		if rec == nil {
			return
		}

		n := r.restarts.Add(1)
		r.log.WithField("restarts", n).Warnf("worker failed, restarting: %v", rec.Value)
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.restartDelay):
		}
	}
}

func (r *Runner) work(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if req, ok := r.source(); ok {
			var obs swarm.ObstacleQuerier
			if r.store != nil {
				obs = r.store.WorkingSet()
			}
			res := RunForecast(r.params, obs, req)
			r.latest.Store(&res)
			r.forecasts.Add(1)
			if r.onResult != nil {
				r.onResult(&res)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
