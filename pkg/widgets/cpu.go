package widgets

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"

	"gitlab.com/tinyland/lab/i3pulse/pkg/protocol"
	"gitlab.com/tinyland/lab/i3pulse/pkg/widget"
)

const cpuBarWidth = 20

// CPU draws a usage bar for one core. Each poll compares the core's time
// counters with the previous sample and fills the bar with system, nice and
// user time in that order.
type CPU struct {
	core   int
	every  time.Duration
	times  func() ([]cpu.TimesStat, error)
	logger *slog.Logger

	last *cpu.TimesStat
}

// NewCPU returns a bar for the zero-based core index.
func NewCPU(core int, every time.Duration, logger *slog.Logger) *CPU {
	if logger == nil {
		logger = slog.Default()
	}
	return &CPU{
		core:   core,
		every:  orDefault(every, defaultInterval),
		times:  func() ([]cpu.TimesStat, error) { return cpu.Times(true) },
		logger: logger,
	}
}

func (c *CPU) Poll() (widget.Outcome, bool) {
	all, err := c.times()
	if err == nil && c.core >= len(all) {
		err = fmt.Errorf("core %d not present (%d cores)", c.core, len(all))
	}
	if err != nil {
		c.logger.Debug("cpu sample failed", "core", c.core, "error", err)
		return widget.Reschedule(c.every)
	}

	cur := all[c.core]
	bar := c.bar(cur)
	c.last = &cur

	seg := protocol.Text(fmt.Sprintf("%d[%s]", c.core+1, bar)).UsePango()
	return widget.Update(c.every, seg)
}

func (c *CPU) bar(cur cpu.TimesStat) string {
	cells := make([]string, 0, cpuBarWidth)
	if c.last != nil {
		prev := *c.last
		total := busy(cur) + cur.Idle - busy(prev) - prev.Idle
		if total > 0 {
			parts := []struct {
				delta float64
				color protocol.Color
			}{
				{cur.System - prev.System, protocol.Red},
				{cur.Nice - prev.Nice, protocol.Blue},
				{cur.User - prev.User, protocol.Green},
			}
			for _, p := range parts {
				n := int(p.delta * cpuBarWidth / total)
				for i := 0; i < n && len(cells) < cpuBarWidth; i++ {
					cells = append(cells, span(p.color.String(), "|"))
				}
			}
		}
	}
	for len(cells) < cpuBarWidth {
		cells = append(cells, span(pangoGrey, "|"))
	}
	return strings.Join(cells, "")
}

func busy(t cpu.TimesStat) float64 {
	return t.User + t.Nice + t.System
}
