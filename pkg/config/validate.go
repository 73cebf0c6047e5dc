package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sys/unix"

	"gitlab.com/tinyland/lab/i3pulse/pkg/protocol"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration and reports every problem it finds.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(logLevels, strings.ToLower(c.General.LogLevel)) {
		errs = append(errs, fmt.Errorf("general.log_level: unknown level %q", c.General.LogLevel))
	}
	if c.General.Preset != "" && !slices.Contains(PresetNames, c.General.Preset) {
		errs = append(errs, fmt.Errorf("general.preset: unknown preset %q (have %s)", c.General.Preset, strings.Join(PresetNames, ", ")))
	}
	if c.Protocol.Version != protocol.Version {
		errs = append(errs, fmt.Errorf("protocol.version: only version %d is supported, got %d", protocol.Version, c.Protocol.Version))
	}
	for _, field := range []struct{ key, name string }{
		{"protocol.stop_signal", c.Protocol.StopSignal},
		{"protocol.cont_signal", c.Protocol.ContSignal},
	} {
		if field.name == "" {
			continue
		}
		if _, err := SignalNumber(field.name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field.key, err))
		}
	}
	// A bar stopped with SIGSTOP only wakes on SIGCONT.
	if c.Protocol.ContSignal != "" && c.Protocol.StopSignal == "" {
		errs = append(errs, errors.New("protocol.cont_signal: needs protocol.stop_signal"))
	}
	if c.Stock.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("stock.requests_per_minute: must not be negative"))
	}

	for i, w := range c.BarWidgets() {
		if err := w.validate(); err != nil {
			errs = append(errs, fmt.Errorf("widget[%d]: %w", i, err))
		}
		if w.Type == TypeMQTT && c.MQTT.Broker == "" {
			errs = append(errs, fmt.Errorf("widget[%d]: mqtt widget needs mqtt.broker", i))
		}
	}
	return errors.Join(errs...)
}

func (w WidgetConfig) validate() error {
	if !slices.Contains(WidgetTypes, w.Type) {
		return fmt.Errorf("unknown type %q", w.Type)
	}
	if w.Color != "" {
		if _, err := protocol.ParseColor(w.Color); err != nil {
			return err
		}
	}
	if w.MaxWidth < 0 {
		return errors.New("max_width must not be negative")
	}
	switch w.Type {
	case TypeCPU:
		if w.Core < 0 {
			return errors.New("core must not be negative")
		}
	case TypeStock:
		if w.Symbol == "" {
			return errors.New("stock widget needs a symbol")
		}
	case TypeFile:
		if w.Path == "" {
			return errors.New("file widget needs a path")
		}
	case TypeMQTT:
		if w.Topic == "" {
			return errors.New("mqtt widget needs a topic")
		}
	}
	return nil
}

// SignalNumber resolves a signal name such as "SIGUSR1" or "usr1".
func SignalNumber(name string) (int, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if !strings.HasPrefix(n, "SIG") {
		n = "SIG" + n
	}
	sig := unix.SignalNum(n)
	if sig == 0 {
		return 0, fmt.Errorf("unknown signal %q", name)
	}
	return int(sig), nil
}
