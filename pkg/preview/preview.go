// Package preview renders the bar in a terminal instead of feeding i3bar.
// Each status line overwrites the previous one in place, with segment
// colors and Pango spans mapped to terminal colors.
package preview

import (
	"fmt"
	"html"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"
	"github.com/muesli/termenv"

	"gitlab.com/tinyland/lab/i3pulse/pkg/protocol"
)

// DefaultSeparator is drawn between segments.
const DefaultSeparator = " | "

var (
	spanRE = regexp.MustCompile(`<span foreground="([^"]*)">(.*?)</span>`)
	tagRE  = regexp.MustCompile(`<[^>]*>`)
)

// pangoNames maps the Pango color names widgets use to ANSI colors.
var pangoNames = map[string]string{
	"black":  "0",
	"red":    "1",
	"green":  "2",
	"yellow": "3",
	"blue":   "4",
	"white":  "7",
	"grey":   "8",
	"gray":   "8",
}

// Emitter implements scheduler.Emitter for a terminal.
type Emitter struct {
	w        io.Writer
	renderer *lipgloss.Renderer
	sep      string
	width    func() int
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithProfile forces a color profile instead of detecting one from the
// writer.
func WithProfile(p termenv.Profile) Option {
	return func(e *Emitter) { e.renderer.SetColorProfile(p) }
}

// WithWidth fixes the line width. Zero disables truncation.
func WithWidth(n int) Option {
	return func(e *Emitter) { e.width = func() int { return n } }
}

// WithSeparator replaces DefaultSeparator.
func WithSeparator(sep string) Option {
	return func(e *Emitter) { e.sep = sep }
}

// New returns an Emitter writing to w. When w is a terminal, lines are cut
// to its current width.
func New(w io.Writer, opts ...Option) *Emitter {
	e := &Emitter{
		w:        w,
		renderer: lipgloss.NewRenderer(w),
		sep:      DefaultSeparator,
		width:    func() int { return 0 },
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(f.Fd()) {
		e.width = func() int {
			width, _, err := term.GetSize(f.Fd())
			if err != nil {
				return 0
			}
			return width
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit redraws the line.
func (e *Emitter) Emit(snapshot []protocol.Segment) error {
	parts := make([]string, 0, len(snapshot))
	for i := range snapshot {
		parts = append(parts, e.render(&snapshot[i]))
	}
	line := strings.Join(parts, e.sep)
	if width := e.width(); width > 0 {
		line = ansi.Truncate(line, width, "")
	}
	_, err := io.WriteString(e.w, "\r"+ansi.EraseEntireLine+line)
	return err
}

// Close ends the line so the shell prompt starts on a fresh one.
func (e *Emitter) Close() error {
	_, err := fmt.Fprintln(e.w)
	return err
}

func (e *Emitter) render(seg *protocol.Segment) string {
	style := e.renderer.NewStyle()
	if c, ok := seg.Color(); ok {
		style = style.Foreground(lipgloss.Color(c.String()))
	}
	if seg.Markup() != protocol.Pango {
		return style.Render(seg.FullText())
	}

	text := seg.FullText()
	var b strings.Builder
	last := 0
	for _, m := range spanRE.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(style.Render(plain(text[last:m[0]])))
		color := text[m[2]:m[3]]
		inner := plain(text[m[4]:m[5]])
		b.WriteString(e.renderer.NewStyle().Foreground(pangoColor(color)).Render(inner))
		last = m[1]
	}
	b.WriteString(style.Render(plain(text[last:])))
	return b.String()
}

// plain strips markup and decodes entities.
func plain(s string) string {
	if s == "" {
		return ""
	}
	return html.UnescapeString(tagRE.ReplaceAllString(s, ""))
}

func pangoColor(name string) lipgloss.Color {
	if ansiColor, ok := pangoNames[strings.ToLower(name)]; ok {
		return lipgloss.Color(ansiColor)
	}
	return lipgloss.Color(name)
}
