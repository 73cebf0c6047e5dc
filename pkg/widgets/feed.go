package widgets

import (
	"time"

	"gitlab.com/tinyland/lab/i3pulse/pkg/collectors"
	"gitlab.com/tinyland/lab/i3pulse/pkg/protocol"
	"gitlab.com/tinyland/lab/i3pulse/pkg/widget"
)

// Render turns a collector update into a segment. Returning nil keeps the
// widget's current content.
type Render func(u collectors.Update) *protocol.Segment

// Feed is a widget backed by a collector's latest value in a Registry. Poll
// never blocks: it only reads the registry and re-renders when the
// collector has published something newer.
type Feed struct {
	reg         *collectors.Registry
	source      string
	every       time.Duration
	render      Render
	placeholder *protocol.Segment

	seen  time.Time
	shown bool
}

// NewFeed returns a Feed over source. placeholder, if non-nil, is shown
// until the first value arrives.
func NewFeed(reg *collectors.Registry, source string, every time.Duration, render Render, placeholder *protocol.Segment) *Feed {
	return &Feed{
		reg:         reg,
		source:      source,
		every:       orDefault(every, defaultInterval),
		render:      render,
		placeholder: placeholder,
	}
}

// Source returns the collector name the feed reads.
func (f *Feed) Source() string { return f.source }

func (f *Feed) Poll() (widget.Outcome, bool) {
	u, ok := f.reg.Latest(f.source)
	if !ok || !u.Timestamp.After(f.seen) {
		if !f.shown && f.placeholder != nil {
			f.shown = true
			return widget.Update(f.every, f.placeholder.Clone())
		}
		return widget.Reschedule(f.every)
	}

	f.seen = u.Timestamp
	seg := f.render(u)
	if seg == nil {
		return f.placeholderOnce()
	}
	f.shown = true
	return widget.Update(f.every, seg)
}

func (f *Feed) placeholderOnce() (widget.Outcome, bool) {
	if !f.shown && f.placeholder != nil {
		f.shown = true
		return widget.Update(f.every, f.placeholder.Clone())
	}
	return widget.Reschedule(f.every)
}
