package widgets

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"gitlab.com/tinyland/lab/i3pulse/pkg/protocol"
	"gitlab.com/tinyland/lab/i3pulse/pkg/widget"
)

// File shows the first line of a text file and follows changes to it. The
// parent directory is watched, so editors that replace the file on save and
// files created after startup are both picked up. A missing file shows as
// an empty segment.
type File struct {
	path   string
	every  time.Duration
	logger *slog.Logger
	lines  chan string
}

// NewFile starts watching path. The watch stops when ctx is cancelled.
func NewFile(ctx context.Context, path string, every time.Duration, logger *slog.Logger) (*File, error) {
	if logger == nil {
		logger = slog.Default()
	}
	path = filepath.Clean(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	f := &File{
		path:   path,
		every:  orDefault(every, defaultInterval),
		logger: logger,
		lines:  make(chan string, 1),
	}
	f.reload()
	go f.watch(ctx, w)
	return f, nil
}

func (f *File) Poll() (widget.Outcome, bool) {
	if line, ok := latest(f.lines); ok {
		return widget.Update(f.every, protocol.Text(line))
	}
	return widget.Reschedule(f.every)
}

func (f *File) watch(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
				ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				f.reload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			f.logger.Warn("file watch error", "path", f.path, "error", err)
		}
	}
}

func (f *File) reload() {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.logger.Warn("read failed", "path", f.path, "error", err)
		}
		offer(f.lines, "")
		return
	}
	offer(f.lines, firstLine(data))
}

func firstLine(data []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(data))
	if sc.Scan() {
		return strings.TrimSpace(sc.Text())
	}
	return ""
}
