package protocol

import (
	"fmt"
	"strings"
)

// MarkupMode tells i3bar how to interpret a segment's text.
type MarkupMode uint8

const (
	// PlainText renders text verbatim.
	PlainText MarkupMode = iota
	// Pango renders text as Pango markup (<span foreground="...">).
	Pango
)

// String returns the wire name of the mode: "none" or "pango".
func (m MarkupMode) String() string {
	if m == Pango {
		return "pango"
	}
	return "none"
}

// MarshalText implements encoding.TextMarshaler.
func (m MarkupMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MarkupMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "none":
		*m = PlainText
	case "pango":
		*m = Pango
	default:
		return fmt.Errorf("unknown markup %q", text)
	}
	return nil
}

// Segment is one block on the status line. The zero value is an empty
// plain-text segment. Setters return the receiver so a segment can be built
// in a single expression:
//
//	seg := protocol.NewSegment().SetName("clock").AppendFullText("12:00")
//
// Segments are values: the scheduler stores copies, so a widget may keep
// mutating its own segment after returning it.
type Segment struct {
	name      string
	instance  string
	fullText  string
	shortText string
	color     Color
	hasColor  bool
	markup    MarkupMode
}

// NewSegment returns an empty plain-text segment.
func NewSegment() *Segment {
	return &Segment{}
}

// Text returns a plain-text segment showing s.
func Text(s string) *Segment {
	return &Segment{fullText: s}
}

// SetName sets the block name reported back in click events.
func (s *Segment) SetName(name string) *Segment {
	s.name = name
	return s
}

// SetInstance sets the block instance reported back in click events.
func (s *Segment) SetInstance(instance string) *Segment {
	s.instance = instance
	return s
}

// SetFullText replaces the displayed text.
func (s *Segment) SetFullText(text string) *Segment {
	s.fullText = text
	return s
}

// AppendFullText appends to the displayed text.
func (s *Segment) AppendFullText(text string) *Segment {
	s.fullText += text
	return s
}

// SetShortText sets the text i3bar shows when the bar runs out of space.
// An empty short text is omitted from the wire form.
func (s *Segment) SetShortText(text string) *Segment {
	s.shortText = text
	return s
}

// SetColor sets the foreground color.
func (s *Segment) SetColor(c Color) *Segment {
	s.color = c
	s.hasColor = true
	return s
}

// ClearColor drops the foreground color so i3bar uses its default.
func (s *Segment) ClearColor() *Segment {
	s.color = Color{}
	s.hasColor = false
	return s
}

// UsePango marks the text as Pango markup.
func (s *Segment) UsePango() *Segment {
	s.markup = Pango
	return s
}

// UsePlainText marks the text as plain text.
func (s *Segment) UsePlainText() *Segment {
	s.markup = PlainText
	return s
}

// Clone returns an independent copy of s.
func (s *Segment) Clone() *Segment {
	c := *s
	return &c
}

// Name returns the block name.
func (s Segment) Name() string { return s.name }

// Instance returns the block instance.
func (s Segment) Instance() string { return s.instance }

// FullText returns the displayed text.
func (s Segment) FullText() string { return s.fullText }

// ShortText returns the short alternative text.
func (s Segment) ShortText() string { return s.shortText }

// Color returns the foreground color and whether one is set.
func (s Segment) Color() (Color, bool) { return s.color, s.hasColor }

// Markup returns the markup mode.
func (s Segment) Markup() MarkupMode { return s.markup }

// wireSegment is the JSON shape of a block. Field order is the order the
// fields appear on the wire.
type wireSegment struct {
	Name      string `json:"name"`
	Instance  string `json:"instance"`
	FullText  string `json:"full_text"`
	ShortText string `json:"short_text,omitempty"`
	Color     string `json:"color,omitempty"`
	Markup    string `json:"markup"`
}

// i3bar stops reading the stream at the first invalid UTF-8 byte.
func validUTF8(s string) string { return strings.ToValidUTF8(s, "\uFFFD") }

func (s Segment) wire() wireSegment {
	w := wireSegment{
		Name:      validUTF8(s.name),
		Instance:  validUTF8(s.instance),
		FullText:  validUTF8(s.fullText),
		ShortText: validUTF8(s.shortText),
		Markup:    s.markup.String(),
	}
	if s.hasColor {
		w.Color = s.color.String()
	}
	return w
}

// MarshalJSON implements json.Marshaler.
func (s Segment) MarshalJSON() ([]byte, error) {
	return wireJSON.Marshal(s.wire())
}
