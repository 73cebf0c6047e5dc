package protocol

// Version is the only i3bar protocol version in existence.
const Version = 1

// Header is the first record of the stream. Optional fields that were never
// set are left out of the wire form entirely. Header is immutable: the With*
// methods return modified copies.
type Header struct {
	version     int
	stopSignal  *int
	contSignal  *int
	clickEvents *bool
}

// NewHeader returns a header announcing the given protocol version.
func NewHeader(version int) Header {
	return Header{version: version}
}

// WithStopSignal returns a copy of h asking i3bar to send sig instead of
// SIGSTOP when the bar is hidden.
func (h Header) WithStopSignal(sig int) Header {
	h.stopSignal = &sig
	return h
}

// WithContSignal returns a copy of h asking i3bar to send sig instead of
// SIGCONT when the bar is shown again.
func (h Header) WithContSignal(sig int) Header {
	h.contSignal = &sig
	return h
}

// WithClickEvents returns a copy of h with click event reporting set.
func (h Header) WithClickEvents(enable bool) Header {
	h.clickEvents = &enable
	return h
}

// Version returns the protocol version.
func (h Header) Version() int { return h.version }

// StopSignal returns the stop signal and whether it is set.
func (h Header) StopSignal() (int, bool) { return deref(h.stopSignal) }

// ContSignal returns the continue signal and whether it is set.
func (h Header) ContSignal() (int, bool) { return deref(h.contSignal) }

// ClickEvents returns the click event flag and whether it is set.
func (h Header) ClickEvents() (bool, bool) {
	if h.clickEvents == nil {
		return false, false
	}
	return *h.clickEvents, true
}

func deref(p *int) (int, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

type wireHeader struct {
	Version     int   `json:"version"`
	StopSignal  *int  `json:"stop_signal,omitempty"`
	ContSignal  *int  `json:"cont_signal,omitempty"`
	ClickEvents *bool `json:"click_events,omitempty"`
}

func (h Header) wire() wireHeader {
	return wireHeader{
		Version:     h.version,
		StopSignal:  h.stopSignal,
		ContSignal:  h.contSignal,
		ClickEvents: h.clickEvents,
	}
}

// MarshalJSON implements json.Marshaler.
func (h Header) MarshalJSON() ([]byte, error) {
	return wireJSON.Marshal(h.wire())
}
