package widgets

import (
	"strings"
	"time"

	"gitlab.com/tinyland/lab/i3pulse/pkg/protocol"
	"gitlab.com/tinyland/lab/i3pulse/pkg/widget"
)

// DefaultTimeLayout is the clock layout used when none is configured.
const DefaultTimeLayout = "15:04"

// DateTime shows the local time. With blinking on, colons are replaced by
// spaces on every other poll.
type DateTime struct {
	layout string
	blink  bool
	every  time.Duration
	now    func() time.Time

	colon bool
}

// NewDateTime returns a clock using a Go time layout. An empty layout
// selects DefaultTimeLayout.
func NewDateTime(layout string, blink bool) *DateTime {
	if layout == "" {
		layout = DefaultTimeLayout
	}
	return &DateTime{
		layout: layout,
		blink:  blink,
		every:  time.Second,
		now:    time.Now,
		colon:  true,
	}
}

func (d *DateTime) Poll() (widget.Outcome, bool) {
	text := d.now().Format(d.layout)
	if d.blink {
		if !d.colon {
			text = strings.ReplaceAll(text, ":", " ")
		}
		d.colon = !d.colon
	}
	return widget.Update(d.every, protocol.Text(text))
}
