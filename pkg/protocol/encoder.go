package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

// wireJSON leaves '<', '>' and '&' unescaped so Pango markup stays
// readable on the wire.
var wireJSON = jsoniter.Config{
	EscapeHTML:             false,
	ValidateJsonRawMessage: true,
}.Froze()

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("protocol: encoder closed")

const (
	openArray  = "[ []"
	separator  = ","
	closeArray = "]"
)

// Encoder writes the i3bar stream to a sink. Every record is one
// newline-terminated line, and every Emit flushes the sink.
//
// Write failures are sticky: once the sink has failed, every later Emit
// returns the same error. A status line that cannot be serialized is
// skipped (separator included) so the stream stays valid JSON.
type Encoder struct {
	sink    io.Writer
	w       *bufio.Writer
	logger  *slog.Logger
	marshal func(v any) ([]byte, error)

	mu       sync.Mutex
	err      error
	closed   bool
	closeErr error
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithLogger sets the logger used to report skipped records.
func WithLogger(l *slog.Logger) Option {
	return func(e *Encoder) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEncoder writes the header and the opening of the status-line array to
// w and returns an encoder ready for Emit. The caller must Close the encoder
// on every exit path so the array is terminated:
//
//	enc, err := protocol.NewEncoder(os.Stdout, protocol.NewHeader(protocol.Version))
//	if err != nil { ... }
//	defer enc.Close()
func NewEncoder(w io.Writer, h Header, opts ...Option) (*Encoder, error) {
	e := &Encoder{
		sink:    w,
		w:       bufio.NewWriter(w),
		logger:  slog.Default(),
		marshal: wireJSON.Marshal,
	}
	for _, opt := range opts {
		opt(e)
	}

	if data, err := e.marshal(h.wire()); err != nil {
		e.logger.Warn("skipping unencodable header", "error", err)
	} else if err := e.writeLine(data); err != nil {
		return nil, err
	}
	// The array opens with an empty status line so that every later line
	// can be preceded by a separator.
	if err := e.writeLine([]byte(openArray)); err != nil {
		return nil, err
	}
	if err := e.flush(); err != nil {
		return nil, err
	}
	return e, nil
}

// Emit writes a separator followed by the snapshot as one JSON array. The
// encoder does not retain snapshot.
func (e *Encoder) Emit(snapshot []Segment) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.err != nil {
		return e.err
	}

	line := make([]wireSegment, len(snapshot))
	for i := range snapshot {
		line[i] = snapshot[i].wire()
	}
	data, err := e.marshal(line)
	if err != nil {
		e.logger.Warn("skipping unencodable status line", "segments", len(snapshot), "error", err)
		return nil
	}

	if err := e.writeLine([]byte(separator)); err != nil {
		return err
	}
	if err := e.writeLine(data); err != nil {
		return err
	}
	return e.flush()
}

// Close terminates the status-line array. Only the first call writes; later
// calls return the first call's result.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return e.closeErr
	}
	e.closed = true

	if e.err != nil {
		// The sink may have recovered; drop the failed buffer and still try
		// to terminate the array. The close error stays the first failure.
		e.w.Reset(e.sink)
		if _, err := e.w.WriteString(closeArray + "\n"); err == nil {
			e.w.Flush()
		}
		e.closeErr = e.err
		return e.closeErr
	}
	if err := e.writeLine([]byte(closeArray)); err != nil {
		e.closeErr = err
		return err
	}
	e.closeErr = e.flush()
	return e.closeErr
}

func (e *Encoder) writeLine(data []byte) error {
	if _, err := e.w.Write(data); err != nil {
		return e.fail(err)
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return e.fail(err)
	}
	return nil
}

func (e *Encoder) flush() error {
	if err := e.w.Flush(); err != nil {
		return e.fail(err)
	}
	return nil
}

func (e *Encoder) fail(err error) error {
	e.err = fmt.Errorf("write i3bar stream: %w", err)
	return e.err
}
