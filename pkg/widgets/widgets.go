// Package widgets implements the data sources shown on the bar. Widgets
// that read cheap local counters (cpu, network, battery, clock) sample in
// Poll. Everything that can block is fed by a background collector through
// a Feed, or by a goroutine that hands values over a one-slot channel.
package widgets

import (
	"fmt"
	"html"
	"time"
)

const defaultInterval = time.Second

// Pango colors shared by several widgets.
const (
	pangoGrey  = "grey"
	pangoGreen = "green"
	pangoRed   = "red"
	pangoLabel = "#eaeaea"
	pangoDim   = "#777777"
)

// span wraps text in a Pango span with the given foreground color.
func span(color, text string) string {
	return fmt.Sprintf(`<span foreground="%s">%s</span>`, color, html.EscapeString(text))
}

// offer stores v in a one-slot channel, replacing any value the reader has
// not taken yet. It never blocks, so producers cannot stall on a widget
// whose Poll runs rarely.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// latest returns the pending value of a one-slot channel, if any.
func latest[T any](ch chan T) (T, bool) {
	select {
	case v := <-ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
