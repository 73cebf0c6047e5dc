package collectors

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry holds named collectors, their status and their most recent data.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	collectors map[string]Collector
	statuses   map[string]*CollectorStatus
	latest     map[string]Update
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		collectors: make(map[string]Collector),
		statuses:   make(map[string]*CollectorStatus),
		latest:     make(map[string]Update),
	}
}

// Register adds c. Names must be unique.
func (r *Registry) Register(c Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, exists := r.collectors[name]; exists {
		return fmt.Errorf("collector %q already registered", name)
	}

	r.collectors[name] = c
	r.statuses[name] = &CollectorStatus{Name: name, Healthy: true}
	return nil
}

// Get returns the named collector.
func (r *Registry) Get(name string) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.collectors[name]
	return c, ok
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status returns a copy of the named collector's status.
func (r *Registry) Status(name string) (CollectorStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.statuses[name]
	if !ok {
		return CollectorStatus{}, false
	}
	return *s, true
}

// AllStatus returns every status, sorted by name.
func (r *Registry) AllStatus() []CollectorStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]CollectorStatus, 0, len(r.statuses))
	for _, s := range r.statuses {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Latest returns the last update that carried data for name. Widgets poll
// this from the scheduler goroutine; it never blocks on a collector.
func (r *Registry) Latest(name string) (Update, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.latest[name]
	return u, ok
}

// record folds the result of one cycle into the collector's status. Data is
// kept even when the cycle also returned an error.
func (r *Registry) record(u Update, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.statuses[u.Source]
	if !ok {
		return
	}
	s.RunCount++
	s.LastRun = u.Timestamp
	s.LastLatency = latency
	s.LastError = u.Error
	s.Healthy = u.Error == nil
	if u.Error != nil {
		s.ErrorCount++
	}
	if u.Data != nil {
		r.latest[u.Source] = u
	}
}

func (r *Registry) snapshot() []Collector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Collector, 0, len(r.collectors))
	for _, c := range r.collectors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
