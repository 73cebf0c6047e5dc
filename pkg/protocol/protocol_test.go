package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

// --- Color ---

func TestColorString(t *testing.T) {
	tests := []struct {
		c    Color
		want string
	}{
		{RGB(0, 0, 0), "#000000"},
		{Red, "#ff0000"},
		{Green, "#00ff00"},
		{Blue, "#0000ff"},
		{Yellow, "#ffff00"},
		{RGB(1, 2, 171), "#0102ab"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("%v.String() = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"#ff8800", RGB(255, 136, 0), false},
		{"ff8800", RGB(255, 136, 0), false},
		{"#F80", RGB(255, 136, 0), false},
		{" #00ff00 ", Green, false},
		{"#ff88", Color{}, true},
		{"#gggggg", Color{}, true},
		{"", Color{}, true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// --- Segment ---

func TestSegmentWireForm(t *testing.T) {
	tests := []struct {
		name string
		seg  *Segment
		want string
	}{
		{
			name: "empty",
			seg:  NewSegment(),
			want: `{"name":"","instance":"","full_text":"","markup":"none"}`,
		},
		{
			name: "short text omitted when empty",
			seg:  Text("12:00").SetShortText(""),
			want: `{"name":"","instance":"","full_text":"12:00","markup":"none"}`,
		},
		{
			name: "all fields",
			seg: NewSegment().
				SetName("cpu").
				SetInstance("0").
				SetFullText("1[").
				AppendFullText("||]").
				SetShortText("1").
				SetColor(Red).
				UsePango(),
			want: `{"name":"cpu","instance":"0","full_text":"1[||]","short_text":"1","color":"#ff0000","markup":"pango"}`,
		},
		{
			name: "cleared color",
			seg:  Text("x").SetColor(Blue).ClearColor().UsePango().UsePlainText(),
			want: `{"name":"","instance":"","full_text":"x","markup":"none"}`,
		},
		{
			name: "markup is not escaped",
			seg:  Text(`<span foreground="grey">|</span> & more`).UsePango(),
			want: `{"name":"","instance":"","full_text":"<span foreground=\"grey\">|</span> & more","markup":"pango"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.seg.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("MarshalJSON =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestSegmentCloneIsIndependent(t *testing.T) {
	orig := Text("a").SetColor(Red)
	c := orig.Clone()
	c.AppendFullText("b").ClearColor()

	if orig.FullText() != "a" {
		t.Errorf("original FullText = %q, want %q", orig.FullText(), "a")
	}
	if _, ok := orig.Color(); !ok {
		t.Error("original color should still be set")
	}
	if c.FullText() != "ab" {
		t.Errorf("clone FullText = %q, want %q", c.FullText(), "ab")
	}
}

func TestMarkupModeText(t *testing.T) {
	var m MarkupMode
	if err := m.UnmarshalText([]byte("pango")); err != nil || m != Pango {
		t.Errorf("UnmarshalText(pango) = %v, %v", m, err)
	}
	if err := m.UnmarshalText([]byte("none")); err != nil || m != PlainText {
		t.Errorf("UnmarshalText(none) = %v, %v", m, err)
	}
	if err := m.UnmarshalText([]byte("html")); err == nil {
		t.Error("UnmarshalText(html) should fail")
	}
}

// --- Header ---

func TestHeaderWireForm(t *testing.T) {
	tests := []struct {
		name string
		h    Header
		want string
	}{
		{"version only", NewHeader(1), `{"version":1}`},
		{"click events false is still emitted", NewHeader(1).WithClickEvents(false), `{"version":1,"click_events":false}`},
		{"signals", NewHeader(1).WithStopSignal(10).WithContSignal(12), `{"version":1,"stop_signal":10,"cont_signal":12}`},
		{
			"everything",
			NewHeader(1).WithClickEvents(true).WithContSignal(18).WithStopSignal(19),
			`{"version":1,"stop_signal":19,"cont_signal":18,"click_events":true}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.h.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("MarshalJSON = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHeaderIsImmutable(t *testing.T) {
	base := NewHeader(1)
	_ = base.WithClickEvents(true)
	if _, ok := base.ClickEvents(); ok {
		t.Error("WithClickEvents modified the receiver")
	}
	h := base.WithStopSignal(10)
	if sig, ok := h.StopSignal(); !ok || sig != 10 {
		t.Errorf("StopSignal = %d, %v; want 10, true", sig, ok)
	}
	if _, ok := h.ContSignal(); ok {
		t.Error("ContSignal should be unset")
	}
}

// --- Encoder ---

func TestEncoderExactStream(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, NewHeader(Version))
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	if err := enc.Emit([]Segment{*Text("a")}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := enc.Emit(nil); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := strings.Join([]string{
		`{"version":1}`,
		`[ []`,
		`,`,
		`[{"name":"","instance":"","full_text":"a","markup":"none"}]`,
		`,`,
		`[]`,
		`]`,
		``,
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("stream mismatch (-want +got):\n%s", diff)
	}
}

func TestEncoderReplacesInvalidUTF8(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, NewHeader(Version))
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	seg := Text("bad\xff\xfetext").SetShortText("\xc3").SetName("n\x80").SetInstance("ok")
	if err := enc.Emit([]Segment{*seg}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	enc.Close()

	if !utf8.Valid(buf.Bytes()) {
		t.Fatalf("stream is not valid UTF-8: %q", buf.String())
	}
	want := "[{\"name\":\"n\uFFFD\",\"instance\":\"ok\",\"full_text\":\"bad\uFFFDtext\",\"short_text\":\"\uFFFD\",\"markup\":\"none\"}]"
	if got := strings.Split(buf.String(), "\n")[3]; got != want {
		t.Errorf("line = %s, want %s", got, want)
	}
	// The segment itself keeps its bytes.
	if seg.FullText() != "bad\xff\xfetext" {
		t.Errorf("FullText = %q, segment was modified", seg.FullText())
	}
}

func TestEncoderHeaderWrittenOnOpen(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewEncoder(&buf, NewHeader(1).WithClickEvents(true)); err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	want := "{\"version\":1,\"click_events\":true}\n[ []\n"
	if buf.String() != want {
		t.Errorf("after open = %q, want %q", buf.String(), want)
	}
}

func TestEncoderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, NewHeader(Version))
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	snapshots := [][]Segment{
		{*Text("one")},
		{*Text("one"), *Text("two").SetColor(Yellow)},
		{*Text("one"), *Text("<b>two</b>").UsePango()},
	}
	for _, s := range snapshots {
		if err := enc.Emit(s); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	dec := json.NewDecoder(&buf)

	var header map[string]any
	if err := dec.Decode(&header); err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if header["version"] != float64(1) {
		t.Errorf("header version = %v, want 1", header["version"])
	}

	var body []json.RawMessage
	if err := dec.Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if dec.More() {
		t.Error("trailing data after body")
	}
	if len(body) != len(snapshots)+1 {
		t.Fatalf("body has %d elements, want %d", len(body), len(snapshots)+1)
	}
	if string(body[0]) != "[]" {
		t.Errorf("first element = %s, want []", body[0])
	}

	type block struct {
		FullText string `json:"full_text"`
		Color    string `json:"color"`
		Markup   string `json:"markup"`
	}
	for i, raw := range body[1:] {
		var got []block
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("element %d: %v", i+1, err)
		}
		if len(got) != len(snapshots[i]) {
			t.Fatalf("element %d has %d blocks, want %d", i+1, len(got), len(snapshots[i]))
		}
		for j, seg := range snapshots[i] {
			if got[j].FullText != seg.FullText() {
				t.Errorf("element %d block %d full_text = %q, want %q", i+1, j, got[j].FullText, seg.FullText())
			}
			if got[j].Markup != seg.Markup().String() {
				t.Errorf("element %d block %d markup = %q, want %q", i+1, j, got[j].Markup, seg.Markup())
			}
		}
	}
}

func TestEncoderCloseIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, NewHeader(Version))
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := enc.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i+1, err)
		}
	}
	if n := strings.Count(buf.String(), "]\n"); n != 2 {
		// One from "[ []", one terminator.
		t.Errorf("found %d closing brackets, want 2:\n%s", n, buf.String())
	}
	if !strings.HasSuffix(buf.String(), "[ []\n]\n") {
		t.Errorf("stream does not end with a single terminator: %q", buf.String())
	}
}

func TestEncoderEmitAfterClose(t *testing.T) {
	var buf bytes.Buffer
	enc, _ := NewEncoder(&buf, NewHeader(Version))
	_ = enc.Close()

	if err := enc.Emit([]Segment{*Text("late")}); !errors.Is(err, ErrClosed) {
		t.Errorf("Emit after Close = %v, want ErrClosed", err)
	}
	if strings.Contains(buf.String(), "late") {
		t.Error("segment written after Close")
	}
}

func TestEncoderSkipsUnencodableLine(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, NewHeader(Version))
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	enc.marshal = func(v any) ([]byte, error) {
		return nil, errors.New("boom")
	}
	before := buf.Len()

	if err := enc.Emit([]Segment{*Text("x")}); err != nil {
		t.Fatalf("Emit should swallow serialization errors, got %v", err)
	}
	if buf.Len() != before {
		t.Errorf("skipped line still wrote %q", buf.String()[before:])
	}

	enc.marshal = wireJSON.Marshal
	if err := enc.Emit([]Segment{*Text("y")}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	_ = enc.Close()

	var header map[string]any
	var body []json.RawMessage
	dec := json.NewDecoder(&buf)
	if err := dec.Decode(&header); err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if err := dec.Decode(&body); err != nil {
		t.Fatalf("stream invalid after skipped line: %v", err)
	}
	if len(body) != 2 {
		t.Errorf("body has %d elements, want 2", len(body))
	}
}

// failingWriter accepts the first n writes and fails every later one.
type failingWriter struct {
	n     int
	calls int
}

var errSink = errors.New("sink gone")

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	if w.calls > w.n {
		return 0, errSink
	}
	return len(p), nil
}

func TestEncoderWriteFailureIsSticky(t *testing.T) {
	w := &failingWriter{n: 1}
	enc, err := NewEncoder(w, NewHeader(Version))
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	err1 := enc.Emit([]Segment{*Text("a")})
	if !errors.Is(err1, errSink) {
		t.Fatalf("Emit = %v, want wrapped errSink", err1)
	}
	err2 := enc.Emit([]Segment{*Text("b")})
	if !errors.Is(err2, errSink) {
		t.Errorf("second Emit = %v, want wrapped errSink", err2)
	}
	if !errors.Is(enc.Close(), errSink) {
		t.Error("Close after failure should report the sink error")
	}
}

// flakyWriter fails only on call number failOn.
type flakyWriter struct {
	buf    bytes.Buffer
	calls  int
	failOn int
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	w.calls++
	if w.calls == w.failOn {
		return 0, errSink
	}
	return w.buf.Write(p)
}

func TestEncoderCloseTerminatesAfterFailure(t *testing.T) {
	w := &flakyWriter{failOn: 2}
	enc, err := NewEncoder(w, NewHeader(Version))
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	if err := enc.Emit([]Segment{*Text("lost")}); !errors.Is(err, errSink) {
		t.Fatalf("Emit = %v, want wrapped errSink", err)
	}
	if err := enc.Close(); !errors.Is(err, errSink) {
		t.Errorf("Close = %v, want the first failure", err)
	}
	want := "{\"version\":1}\n[ []\n]\n"
	if w.buf.String() != want {
		t.Errorf("stream = %q, want %q", w.buf.String(), want)
	}
}

func TestNewEncoderFailsOnDeadSink(t *testing.T) {
	if _, err := NewEncoder(&failingWriter{}, NewHeader(Version)); !errors.Is(err, errSink) {
		t.Errorf("NewEncoder = %v, want wrapped errSink", err)
	}
}
