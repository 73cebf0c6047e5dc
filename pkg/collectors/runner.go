package collectors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// fallbackInterval applies when a collector reports a non-positive interval.
const fallbackInterval = time.Second

// ErrStarted is returned by a second call to Start.
var ErrStarted = errors.New("collectors: runner already started")

// Runner drives every collector in a Registry on its own goroutine. Each
// collector runs once immediately and then every Interval. Results are
// recorded in the registry, where widgets read them with Latest.
type Runner struct {
	registry *Registry
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner returns a runner for reg.
func NewRunner(reg *Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: reg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches one goroutine per registered collector. Collectors
// registered afterwards are not picked up.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrStarted
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	for _, c := range r.registry.snapshot() {
		r.wg.Add(1)
		go r.loop(ctx, c)
	}
	return nil
}

// Stop cancels every collector goroutine and waits for them to return. It
// is safe to call more than once, and before Start.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// RunOnce runs the named collector synchronously and records the result.
func (r *Runner) RunOnce(ctx context.Context, name string) (any, error) {
	c, ok := r.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("collector %q not registered", name)
	}
	u := r.collect(ctx, c)
	return u.Data, u.Error
}

// Health reports each collector's health, combining its own view with the
// outcome of its last cycle.
func (r *Runner) Health() map[string]bool {
	health := make(map[string]bool)
	for _, c := range r.registry.snapshot() {
		s, _ := r.registry.Status(c.Name())
		health[c.Name()] = s.Healthy && c.Healthy()
	}
	return health
}

func (r *Runner) loop(ctx context.Context, c Collector) {
	defer r.wg.Done()

	for {
		r.collect(ctx, c)
		if ctx.Err() != nil {
			return
		}

		interval := c.Interval()
		if interval <= 0 {
			interval = fallbackInterval
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (r *Runner) collect(ctx context.Context, c Collector) Update {
	start := time.Now()
	data, err := c.Collect(ctx)
	latency := time.Since(start)

	u := Update{
		Source:    c.Name(),
		Data:      data,
		Timestamp: time.Now(),
		Error:     err,
	}
	r.registry.record(u, latency)

	if err != nil && ctx.Err() == nil {
		r.logger.Warn("collection failed", "collector", u.Source, "error", err)
	} else if err == nil {
		r.logger.Debug("collected", "collector", u.Source, "latency", latency)
	}
	return u
}
