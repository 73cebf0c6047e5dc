package widgets

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/distatus/battery"

	"gitlab.com/tinyland/lab/i3pulse/pkg/protocol"
	"gitlab.com/tinyland/lab/i3pulse/pkg/widget"
)

const batteryInterval = 5 * time.Second

// Battery reports charge, status and remaining time for the index-th
// battery the system exposes.
type Battery struct {
	index int
	every time.Duration
	get   func(idx int) (*battery.Battery, error)
}

// NewBattery returns a widget for battery index (0 is the first battery).
func NewBattery(index int, every time.Duration) *Battery {
	return &Battery{
		index: index,
		every: orDefault(every, batteryInterval),
		get:   battery.Get,
	}
}

func (b *Battery) Poll() (widget.Outcome, bool) {
	bat, err := readBattery(b.get, b.index)
	if err != nil {
		return widget.Update(b.every, protocol.Text("Unknown"))
	}
	return widget.Update(b.every, renderBattery(bat))
}

// readBattery accepts a partial read as long as the state and both charge
// levels came through; design capacity, rate and voltage are optional.
func readBattery(get func(int) (*battery.Battery, error), idx int) (*battery.Battery, error) {
	bat, err := get(idx)
	if err == nil {
		return bat, nil
	}
	var partial battery.ErrPartial
	if errors.As(err, &partial) && bat != nil &&
		partial.State == nil && partial.Current == nil && partial.Full == nil {
		return bat, nil
	}
	return nil, err
}

// renderBattery formats levels in mWh and the rate in mW.
func renderBattery(bat *battery.Battery) *protocol.Segment {
	capacity := bat.Design
	if capacity <= 0 {
		capacity = bat.Full
	}
	percent := 0
	if capacity > 0 {
		percent = int(math.Round(bat.Current * 100 / capacity))
	}

	state := bat.State.Raw
	text := statusMark(state) + fmt.Sprintf(" %d%%", percent)

	// Some drivers report a negative rate while discharging.
	rate := math.Abs(bat.ChargeRate)
	if rate > 0 && (state == battery.Charging || state == battery.Discharging) {
		remaining := bat.Current
		if state == battery.Charging {
			remaining = bat.Full - bat.Current
		}
		minutes := int(math.Round(math.Abs(remaining) / rate * 60))
		text += fmt.Sprintf(" [%02d:%02d|%.1fW]", minutes/60, minutes%60, rate/1000)
	}

	seg := protocol.Text(text).UsePango()
	switch {
	case percent <= 10:
		seg.SetColor(protocol.Red)
	case percent <= 30:
		seg.SetColor(protocol.Yellow)
	}
	return seg
}

func statusMark(state battery.AgnosticState) string {
	switch state {
	case battery.Charging:
		return span(pangoGreen, "C")
	case battery.Discharging:
		return span(pangoRed, "D")
	case battery.Full:
		return span(pangoGreen, "F")
	default:
		return span(pangoGrey, "U")
	}
}
