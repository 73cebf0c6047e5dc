package widget

import (
	"html"

	"github.com/charmbracelet/x/ansi"

	"gitlab.com/tinyland/lab/i3pulse/pkg/protocol"
)

// Decoration mutates a segment in place.
type Decoration func(*protocol.Segment)

// Decorator wraps a Widget and applies a Decoration to every segment the
// inner widget produces. Completion and empty outcomes pass through
// untouched. A Decorator is itself a Widget, so decorators nest.
type Decorator struct {
	inner    Widget
	decorate Decoration
}

// Decorate wraps w so fn is applied to each of its segments.
//
//	clock := widget.Decorate(widgets.NewDateTime(), widget.WithColor(protocol.Red))
func Decorate(w Widget, fn Decoration) *Decorator {
	return &Decorator{inner: w, decorate: fn}
}

// Poll polls the inner widget and decorates a copy of its segment. The
// copy keeps widgets that reuse one segment across polls from seeing the
// decoration applied twice.
func (d *Decorator) Poll() (Outcome, bool) {
	out, ok := d.inner.Poll()
	if !ok {
		return out, false
	}
	if out.Segment != nil && d.decorate != nil {
		seg := out.Segment.Clone()
		d.decorate(seg)
		out.Segment = seg
	}
	return out, true
}

// Unwrap returns the wrapped widget.
func (d *Decorator) Unwrap() Widget { return d.inner }

// Chain combines decorations, applied left to right.
func Chain(fns ...Decoration) Decoration {
	return func(s *protocol.Segment) {
		for _, fn := range fns {
			if fn != nil {
				fn(s)
			}
		}
	}
}

// WithColor overrides the foreground color.
func WithColor(c protocol.Color) Decoration {
	return func(s *protocol.Segment) { s.SetColor(c) }
}

// Identify sets the name and instance i3bar reports in click events.
func Identify(name, instance string) Decoration {
	return func(s *protocol.Segment) {
		s.SetName(name).SetInstance(instance)
	}
}

// Prefix prepends text to the full text. The prefix is always literal text;
// it is escaped when the segment is Pango markup.
func Prefix(p string) Decoration {
	escaped := html.EscapeString(p)
	return func(s *protocol.Segment) {
		if s.Markup() == protocol.Pango {
			s.SetFullText(escaped + s.FullText())
			return
		}
		s.SetFullText(p + s.FullText())
	}
}

// WithShortText sets the short alternative text.
func WithShortText(text string) Decoration {
	return func(s *protocol.Segment) { s.SetShortText(text) }
}

// Truncate limits plain-text content to width terminal cells, ending with
// an ellipsis when cut. Pango segments are left alone because cutting
// through a tag would produce invalid markup.
func Truncate(width int) Decoration {
	return func(s *protocol.Segment) {
		if width <= 0 || s.Markup() == protocol.Pango {
			return
		}
		if ansi.StringWidth(s.FullText()) > width {
			s.SetFullText(ansi.Truncate(s.FullText(), width, "…"))
		}
	}
}
