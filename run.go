package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"gitlab.com/tinyland/lab/i3pulse/pkg/collectors"
	"gitlab.com/tinyland/lab/i3pulse/pkg/config"
	"gitlab.com/tinyland/lab/i3pulse/pkg/preview"
	"gitlab.com/tinyland/lab/i3pulse/pkg/protocol"
	"gitlab.com/tinyland/lab/i3pulse/pkg/scheduler"
	"gitlab.com/tinyland/lab/i3pulse/pkg/widgets"
)

type mode int

const (
	modeBar mode = iota
	modePreview
)

// checkTimeout bounds each collector in the check command.
const checkTimeout = 15 * time.Second

// sink is where status lines go: the i3bar encoder or the terminal preview.
type sink interface {
	scheduler.Emitter
	Close() error
}

func run(ctx context.Context, opts options, m mode) error {
	cfg, path, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg.General, opts.verbose, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	if path != "" {
		logger.Debug("loaded config", "path", path)
	}
	if m == modeBar && isatty.IsTerminal(os.Stdout.Fd()) {
		logger.Warn("stdout is a terminal; i3pulse writes the i3bar protocol, try `i3pulse preview`")
	}

	reg := collectors.NewRegistry()
	env := widgets.NewEnv(ctx, cfg, reg, logger)
	defer env.Close()

	ws, err := env.BuildAll(cfg.BarWidgets())
	if err != nil {
		return err
	}
	bar := scheduler.New(scheduler.WithLogger(logger))
	for _, w := range ws {
		if err := bar.Register(w); err != nil {
			return err
		}
	}

	runner := collectors.NewRunner(reg, collectors.WithLogger(logger))
	if err := runner.Start(ctx); err != nil {
		return err
	}
	defer runner.Stop()

	if err := env.Connect(ctx); err != nil {
		logger.Warn("mqtt unavailable", "error", err)
	}

	var out sink
	switch m {
	case modePreview:
		out = preview.New(os.Stdout)
	default:
		h, err := buildHeader(cfg.Protocol)
		if err != nil {
			return err
		}
		enc, err := protocol.NewEncoder(os.Stdout, h, protocol.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		out = enc
		stopSignals := forwardStopCont(cfg.Protocol, bar, logger)
		defer stopSignals()
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Debug("close output", "error", err)
		}
	}()

	logger.Info("bar running", "widgets", bar.Len(), "collectors", len(reg.List()))
	err = bar.Run(ctx, out)
	for _, s := range reg.AllStatus() {
		logger.Debug("collector summary", "collector", s.Name, "runs", s.RunCount, "errors", s.ErrorCount, "last_error", s.LastError)
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}

func loadConfig(opts options) (*config.Config, string, error) {
	cfg, path, err := config.Load(opts.configPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, path, nil
}

// setupLogger writes text logs to w and, when configured, to the log file.
// stdout belongs to i3bar, so logs never go there.
func setupLogger(general config.GeneralConfig, verbose bool, w io.Writer) (*slog.Logger, func(), error) {
	level := parseLevel(general.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}

	closeLog := func() {}
	if general.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(general.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(general.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(w, f)
		closeLog = func() { f.Close() }
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, closeLog, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildHeader(pc config.ProtocolConfig) (protocol.Header, error) {
	h := protocol.NewHeader(pc.Version)
	if pc.ClickEvents {
		h = h.WithClickEvents(true)
	}
	if pc.StopSignal != "" {
		n, err := config.SignalNumber(pc.StopSignal)
		if err != nil {
			return protocol.Header{}, err
		}
		h = h.WithStopSignal(n)
	}
	if pc.ContSignal != "" {
		n, err := config.SignalNumber(pc.ContSignal)
		if err != nil {
			return protocol.Header{}, err
		}
		h = h.WithContSignal(n)
	}
	return h, nil
}

// pauser is the part of the scheduler driven by i3bar's stop/cont signals.
type pauser interface {
	Suspend()
	Resume()
}

// stopContSignals resolves the signals to catch. With no stop signal i3bar
// sends SIGSTOP, which the kernel handles, so nothing is caught. An unset
// continue signal means SIGCONT.
func stopContSignals(pc config.ProtocolConfig) (stop, cont syscall.Signal, ok bool, err error) {
	if pc.StopSignal == "" {
		return 0, 0, false, nil
	}
	n, err := config.SignalNumber(pc.StopSignal)
	if err != nil {
		return 0, 0, false, err
	}
	stop, cont = syscall.Signal(n), syscall.SIGCONT
	if pc.ContSignal != "" {
		n, err := config.SignalNumber(pc.ContSignal)
		if err != nil {
			return 0, 0, false, err
		}
		cont = syscall.Signal(n)
	}
	return stop, cont, true, nil
}

// forwardStopCont pauses the bar when i3bar sends the configured stop signal
// and resumes it on the continue signal. It returns a function that
// uninstalls the handler.
func forwardStopCont(pc config.ProtocolConfig, bar pauser, logger *slog.Logger) func() {
	stopSig, contSig, ok, err := stopContSignals(pc)
	if err != nil {
		logger.Warn("stop/cont signals not installed", "error", err)
		return func() {}
	}
	if !ok {
		return func() {}
	}

	ch := make(chan os.Signal, 2)
	signal.Notify(ch, stopSig, contSig)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-ch:
				if sig == stopSig {
					logger.Debug("bar hidden, suspending")
					bar.Suspend()
				} else {
					logger.Debug("bar visible, resuming")
					bar.Resume()
				}
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}

// check validates the configuration, builds every widget and runs each
// collector once, printing a report.
func check(ctx context.Context, opts options, w io.Writer) error {
	cfg, path, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(w, "❌ %v\n", err)
		return err
	}
	if path == "" {
		path = "(defaults)"
	}
	fmt.Fprintf(w, "📁 Config: %s\n", path)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := collectors.NewRegistry()
	env := widgets.NewEnv(ctx, cfg, reg, logger)
	defer env.Close()

	wcs := cfg.BarWidgets()
	if _, err := env.BuildAll(wcs); err != nil {
		fmt.Fprintf(w, "❌ %v\n", err)
		return err
	}
	fmt.Fprintf(w, "🧩 Widgets: %d\n", len(wcs))
	for i, wc := range wcs {
		fmt.Fprintf(w, "   %2d. %s\n", i+1, wc.Type)
	}

	runner := collectors.NewRunner(reg, collectors.WithLogger(logger))
	for _, name := range reg.List() {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		runner.RunOnce(cctx, name)
		cancel()
	}

	if failed := reportCollectors(w, reg, runner.Health()); len(failed) > 0 {
		return fmt.Errorf("collectors failed: %s", strings.Join(failed, ", "))
	}
	fmt.Fprintln(w, "✅ OK")
	return nil
}

// reportCollectors prints one line per collector from its recorded status
// and returns the names whose last cycle failed. A collector that succeeded
// but reports itself unhealthy is flagged without failing the check.
func reportCollectors(w io.Writer, reg *collectors.Registry, health map[string]bool) []string {
	var failed []string
	for _, s := range reg.AllStatus() {
		switch {
		case s.LastError != nil:
			fmt.Fprintf(w, "   ❌ %s: %v\n", s.Name, s.LastError)
			failed = append(failed, s.Name)
		case s.RunCount == 0:
			fmt.Fprintf(w, "   ❔ %s: not run\n", s.Name)
		case !health[s.Name]:
			fmt.Fprintf(w, "   ⚠️  %s (%s, unhealthy)\n", s.Name, s.LastLatency.Round(time.Millisecond))
		default:
			fmt.Fprintf(w, "   ✅ %s (%s)\n", s.Name, s.LastLatency.Round(time.Millisecond))
		}
	}
	return failed
}
