package widgets

import (
	"fmt"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"

	"gitlab.com/tinyland/lab/i3pulse/pkg/collectors"
	"gitlab.com/tinyland/lab/i3pulse/pkg/collectors/sysmetrics"
	"gitlab.com/tinyland/lab/i3pulse/pkg/protocol"
)

// Usage thresholds, in percent, for memory and disk coloring.
const (
	warnPercent = 80
	critPercent = 90
)

func metricsOf(u collectors.Update) (sysmetrics.Metrics, bool) {
	m, ok := u.Data.(sysmetrics.Metrics)
	return m, ok
}

func thresholdColor(seg *protocol.Segment, percent float64) *protocol.Segment {
	switch {
	case percent >= critPercent:
		seg.SetColor(protocol.Red)
	case percent >= warnPercent:
		seg.SetColor(protocol.Yellow)
	}
	return seg
}

// NewMemory shows used and total physical memory.
func NewMemory(reg *collectors.Registry, every time.Duration) *Feed {
	return NewFeed(reg, sysmetrics.Name, every, func(u collectors.Update) *protocol.Segment {
		m, ok := metricsOf(u)
		if !ok || m.Memory.Total == 0 {
			return nil
		}
		seg := protocol.Text(fmt.Sprintf("MEM %s/%s",
			humanize.IBytes(m.Memory.Used), humanize.IBytes(m.Memory.Total)))
		return thresholdColor(seg, m.Memory.UsedPercent)
	}, nil)
}

// NewLoad shows the 1, 5 and 15 minute load averages. The segment turns
// yellow when the one minute load exceeds the core count and red at twice
// that.
func NewLoad(reg *collectors.Registry, every time.Duration) *Feed {
	cores := float64(runtime.NumCPU())
	return NewFeed(reg, sysmetrics.Name, every, func(u collectors.Update) *protocol.Segment {
		m, ok := metricsOf(u)
		if !ok {
			return nil
		}
		l := m.Load
		seg := protocol.Text(fmt.Sprintf("LOAD %.2f %.2f %.2f", l.Load1, l.Load5, l.Load15))
		switch {
		case l.Load1 >= 2*cores:
			seg.SetColor(protocol.Red)
		case l.Load1 >= cores:
			seg.SetColor(protocol.Yellow)
		}
		return seg
	}, nil)
}

// NewDisk shows free space on mount. The mount must also be added to the
// sysmetrics collector with AddMount.
func NewDisk(reg *collectors.Registry, mount string, every time.Duration) *Feed {
	return NewFeed(reg, sysmetrics.Name, every, func(u collectors.Update) *protocol.Segment {
		m, ok := metricsOf(u)
		if !ok {
			return nil
		}
		d, ok := m.Disks[mount]
		if !ok {
			return nil
		}
		seg := protocol.Text(fmt.Sprintf("%s %s free", mount, humanize.IBytes(d.Free)))
		return thresholdColor(seg, d.UsedPercent)
	}, nil)
}

// NewUptime shows time since boot.
func NewUptime(reg *collectors.Registry, every time.Duration) *Feed {
	return NewFeed(reg, sysmetrics.Name, every, func(u collectors.Update) *protocol.Segment {
		m, ok := metricsOf(u)
		if !ok || m.Uptime <= 0 {
			return nil
		}
		return protocol.Text("UP " + formatUptime(m.Uptime))
	}, nil)
}

func formatUptime(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	mins := int(d/time.Minute) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
