package collectors

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MockCollector is a configurable Collector for tests in this and other
// packages.
type MockCollector struct {
	name string

	mu       sync.RWMutex
	interval time.Duration
	data     any
	err      error
	healthy  bool

	calls atomic.Int64

	// CollectFunc, when set, replaces the canned data and error.
	CollectFunc func(ctx context.Context) (any, error)
}

// MockCollectorOption configures a MockCollector.
type MockCollectorOption func(*MockCollector)

// WithData sets the data returned by Collect.
func WithData(data any) MockCollectorOption {
	return func(m *MockCollector) { m.data = data }
}

// WithError sets the error returned by Collect.
func WithError(err error) MockCollectorOption {
	return func(m *MockCollector) { m.err = err }
}

// WithHealthy sets the value returned by Healthy.
func WithHealthy(healthy bool) MockCollectorOption {
	return func(m *MockCollector) { m.healthy = healthy }
}

// WithCollectFunc installs fn as the Collect implementation.
func WithCollectFunc(fn func(ctx context.Context) (any, error)) MockCollectorOption {
	return func(m *MockCollector) { m.CollectFunc = fn }
}

// NewMockCollector returns a healthy mock.
func NewMockCollector(name string, interval time.Duration, opts ...MockCollectorOption) *MockCollector {
	m := &MockCollector{name: name, interval: interval, healthy: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockCollector) Name() string { return m.name }

func (m *MockCollector) Interval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.interval
}

func (m *MockCollector) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy
}

// SetInterval changes the interval seen by the runner on its next cycle.
func (m *MockCollector) SetInterval(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = d
}

func (m *MockCollector) SetHealthy(h bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = h
}

func (m *MockCollector) SetData(data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
}

func (m *MockCollector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Collect counts the call and returns the configured result.
func (m *MockCollector) Collect(ctx context.Context) (any, error) {
	m.calls.Add(1)
	if m.CollectFunc != nil {
		return m.CollectFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data, m.err
}

// CallCount returns how many times Collect ran.
func (m *MockCollector) CallCount() int64 { return m.calls.Load() }
