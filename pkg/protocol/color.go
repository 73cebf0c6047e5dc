// Package protocol implements the render primitives and the streaming
// encoder for the i3bar JSON protocol (https://i3wm.org/docs/i3bar-protocol.html).
//
// A stream consists of one header object followed by an endless JSON array
// of status lines. Each status line is an array of segments:
//
//	{"version":1}
//	[ []
//	,
//	[{"name":"","instance":"","full_text":"12:00","markup":"none"}]
//	...
//	]
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is an RGB foreground color. It serializes as "#rrggbb".
type Color struct {
	R, G, B uint8
}

// Common colors.
var (
	Red    = RGB(255, 0, 0)
	Green  = RGB(0, 255, 0)
	Blue   = RGB(0, 0, 255)
	Yellow = RGB(255, 255, 0)
)

// RGB returns the color with the given channel values.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// String returns the color as a lowercase "#rrggbb" hex string.
func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting the same
// forms as ParseColor.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseColor parses "#rrggbb" or "#rgb". The leading '#' is optional.
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return RGB(uint8(v>>16), uint8(v>>8), uint8(v)), nil
}
