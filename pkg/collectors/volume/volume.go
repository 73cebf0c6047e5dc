// Package volume reads an ALSA mixer control through amixer.
package volume

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultDevice = "default"
	DefaultMixer  = "Master"

	defaultInterval = time.Second
)

// Config selects the mixer control.
type Config struct {
	Device   string
	Mixer    string
	Index    int
	Interval time.Duration
}

// Level is one reading of the control.
type Level struct {
	Percent int
	Muted   bool
}

// runFunc runs a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Collector polls one mixer control.
type Collector struct {
	cfg Config
	run runFunc

	mu      sync.Mutex
	healthy bool
}

// New returns a collector for cfg, filling in the default device and mixer.
func New(cfg Config) *Collector {
	if cfg.Device == "" {
		cfg.Device = DefaultDevice
	}
	if cfg.Mixer == "" {
		cfg.Mixer = DefaultMixer
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	return &Collector{cfg: cfg, run: runCommand, healthy: true}
}

// Name is unique per device and control so several volume widgets can
// share one registry.
func (c *Collector) Name() string {
	return fmt.Sprintf("volume:%s/%s,%d", c.cfg.Device, c.cfg.Mixer, c.cfg.Index)
}

func (c *Collector) Interval() time.Duration { return c.cfg.Interval }

func (c *Collector) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy
}

// Collect runs amixer once.
func (c *Collector) Collect(ctx context.Context) (any, error) {
	control := fmt.Sprintf("%s,%d", c.cfg.Mixer, c.cfg.Index)
	out, err := c.run(ctx, "amixer", "-D", c.cfg.Device, "sget", control)
	if err == nil {
		var lvl Level
		if lvl, err = parse(out); err == nil {
			c.setHealthy(true)
			return lvl, nil
		}
	}
	c.setHealthy(false)
	return nil, fmt.Errorf("amixer %s %s: %w", c.cfg.Device, control, err)
}

func (c *Collector) setHealthy(v bool) {
	c.mu.Lock()
	c.healthy = v
	c.mu.Unlock()
}

var (
	percentRE = regexp.MustCompile(`\[(\d+)%\]`)
	switchRE  = regexp.MustCompile(`\[(on|off)\]`)
)

// parse reads the first channel line that carries a percentage. Controls
// without a playback switch are never muted.
func parse(out []byte) (Level, error) {
	for _, line := range strings.Split(string(out), "\n") {
		m := percentRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		pct, err := strconv.Atoi(m[1])
		if err != nil {
			return Level{}, err
		}
		lvl := Level{Percent: pct}
		if sw := switchRE.FindStringSubmatch(line); sw != nil {
			lvl.Muted = sw[1] == "off"
		}
		return lvl, nil
	}
	return Level{}, errors.New("no volume in output")
}
