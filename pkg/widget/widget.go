// Package widget defines the contract between the scheduler and the data
// sources it drives. A Widget is polled on the scheduler goroutine and tells
// the scheduler when to poll it next and, optionally, what to show.
package widget

import (
	"time"

	"gitlab.com/tinyland/lab/i3pulse/pkg/protocol"
)

// Outcome is the result of one successful poll.
type Outcome struct {
	// Next is the delay until the widget wants to be polled again.
	// Negative values are treated as zero.
	Next time.Duration

	// Segment is the new content, or nil to keep whatever the widget
	// showed before.
	Segment *protocol.Segment
}

// Widget is a data source on the status bar.
//
// Poll runs on the scheduler goroutine and must return promptly; a slow
// Poll delays every other widget. Work that can block (network, devices,
// subprocesses) belongs on a goroutine owned by the widget, with Poll doing
// a non-blocking read of the latest result.
//
// Poll returns ok == false when the widget is permanently finished. The
// scheduler never polls it again and its last segment stays on the bar.
type Widget interface {
	Poll() (out Outcome, ok bool)
}

// Func adapts a function to the Widget interface.
type Func func() (Outcome, bool)

// Poll calls f.
func (f Func) Poll() (Outcome, bool) { return f() }

// Update returns an outcome that replaces the widget's content with seg and
// asks to be polled again after next.
func Update(next time.Duration, seg *protocol.Segment) (Outcome, bool) {
	return Outcome{Next: next, Segment: seg}, true
}

// Reschedule returns an outcome that keeps the current content and asks to
// be polled again after next.
func Reschedule(next time.Duration) (Outcome, bool) {
	return Outcome{Next: next}, true
}

// Done returns the permanent-completion result.
func Done() (Outcome, bool) {
	return Outcome{}, false
}
