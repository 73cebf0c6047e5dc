// Package collectors runs the slow data sources behind bar widgets. A
// collector may block on the network or a subprocess, so it never runs on
// the scheduler goroutine: a Runner drives every registered collector on its
// own goroutine and the Registry keeps the latest result for widgets to read
// without blocking.
package collectors

import (
	"context"
	"time"
)

// Collector is implemented by every background data source (stock quotes,
// tailscale, k8s, mixer volume).
type Collector interface {
	// Name returns a unique identifier, e.g. "stock".
	Name() string

	// Collect performs one cycle. Consumers type-assert the result based on
	// the collector name. A collector may return data together with an error
	// when a cycle only partly failed.
	Collect(ctx context.Context) (any, error)

	// Interval is re-read after every cycle, so a collector can back off.
	Interval() time.Duration

	// Healthy reports whether the last cycle succeeded.
	Healthy() bool
}

// CollectorStatus is the runtime state of one collector.
type CollectorStatus struct {
	Name        string
	Healthy     bool
	LastRun     time.Time
	LastError   error
	RunCount    int64
	ErrorCount  int64
	LastLatency time.Duration
}

// Update is the result of one collection cycle.
type Update struct {
	Source    string
	Data      any
	Timestamp time.Time
	Error     error
}
