// Package scheduler multiplexes many independently timed widgets onto one
// goroutine. Each widget is polled when it asked to be, the resulting
// segments are kept in a snapshot ordered by slot, and every successful
// poll hands the whole snapshot to an Emitter.
//
// The loop never busy-waits: between polls it sleeps until the earliest
// pending event is due.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/i3pulse/pkg/protocol"
	"gitlab.com/tinyland/lab/i3pulse/pkg/widget"
)

// ErrRunning is returned by Register once Run has been called, and by a
// second call to Run.
var ErrRunning = errors.New("scheduler: already running")

// noSlot marks a widget that has no position in the snapshot.
const noSlot = -1

// Emitter receives the full snapshot after every successful poll. The slice
// is only valid for the duration of the call.
type Emitter interface {
	Emit(snapshot []protocol.Segment) error
}

// Collection owns a fixed, ordered set of widgets and drives them.
type Collection struct {
	clock  Clock
	logger *slog.Logger

	widgets  []widget.Widget
	slots    []int
	queue    eventQueue
	snapshot []protocol.Segment

	mu        sync.Mutex
	started   bool
	suspended bool
	wake      chan struct{}
}

// Option configures a Collection.
type Option func(*Collection)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(col *Collection) {
		if c != nil {
			col.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(col *Collection) {
		if l != nil {
			col.logger = l
		}
	}
}

// New returns an empty collection.
func New(opts ...Option) *Collection {
	c := &Collection{
		clock:  SystemClock{},
		logger: slog.Default(),
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register appends w. Widgets appear on the bar in the order they first
// produce a segment; widgets that produce one on their first poll therefore
// appear in registration order.
func (c *Collection) Register(w widget.Widget) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrRunning
	}
	if w == nil {
		return errors.New("scheduler: nil widget")
	}
	c.widgets = append(c.widgets, w)
	return nil
}

// Len returns the number of registered widgets.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.widgets)
}

// Suspend stops polling and emitting until Resume. It is safe to call from
// any goroutine, typically a signal handler reacting to i3bar's stop signal.
func (c *Collection) Suspend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suspended = true
}

// Resume undoes Suspend. Events that fell due while suspended fire at once.
func (c *Collection) Resume() {
	c.mu.Lock()
	c.suspended = false
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run primes every widget, then polls them as their events fall due and
// emits after each successful poll. It returns nil once every widget has
// finished, ctx.Err() when ctx is cancelled, or the first Emit error.
//
// Run may be called once. The caller owns e and is responsible for closing
// it on every exit path.
func (c *Collection) Run(ctx context.Context, e Emitter) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrRunning
	}
	c.started = true
	c.mu.Unlock()

	c.prime()
	c.logger.Debug("scheduler primed",
		"widgets", len(c.widgets),
		"segments", len(c.snapshot),
		"pending", c.queue.Len(),
	)

	for c.queue.Len() > 0 {
		ev := c.queue.pop()

		if err := c.clock.Sleep(ctx, ev.due.Sub(c.clock.Now())); err != nil {
			return err
		}
		if err := c.waitResumed(ctx); err != nil {
			return err
		}

		out, ok := c.widgets[ev.widget].Poll()
		if !ok {
			c.logger.Info("widget finished", "widget", ev.widget, "type", fmt.Sprintf("%T", c.widgets[ev.widget]))
			continue
		}
		if out.Segment != nil {
			c.apply(ev.widget, out.Segment)
		}
		c.schedule(ev.widget, out.Next)

		if err := e.Emit(c.snapshot); err != nil {
			return fmt.Errorf("emit snapshot: %w", err)
		}
	}

	c.logger.Info("all widgets finished")
	return nil
}

// prime polls every widget once, in registration order.
func (c *Collection) prime() {
	c.slots = make([]int, len(c.widgets))
	for i, w := range c.widgets {
		c.slots[i] = noSlot

		out, ok := w.Poll()
		if !ok {
			c.logger.Info("widget finished during priming", "widget", i, "type", fmt.Sprintf("%T", w))
			continue
		}
		if out.Segment != nil {
			c.apply(i, out.Segment)
		}
		c.schedule(i, out.Next)
	}
}

// apply stores seg in the widget's slot. A widget without a slot gets the
// next free one at the end of the snapshot.
func (c *Collection) apply(idx int, seg *protocol.Segment) {
	slot := c.slots[idx]
	if slot == noSlot {
		c.slots[idx] = len(c.snapshot)
		c.snapshot = append(c.snapshot, *seg)
		c.logger.Debug("slot assigned", "widget", idx, "slot", c.slots[idx])
		return
	}
	c.snapshot[slot] = *seg
}

func (c *Collection) schedule(idx int, next time.Duration) {
	if next < 0 {
		next = 0
	}
	c.queue.push(event{due: c.clock.Now().Add(next), widget: idx})
}

func (c *Collection) waitResumed(ctx context.Context) error {
	for {
		c.mu.Lock()
		suspended := c.suspended
		c.mu.Unlock()
		if !suspended {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		}
	}
}

// Snapshot returns a copy of the current snapshot. It must not be called
// concurrently with Run.
func (c *Collection) Snapshot() []protocol.Segment {
	out := make([]protocol.Segment, len(c.snapshot))
	copy(out, c.snapshot)
	return out
}
