package widgets

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/net"

	"gitlab.com/tinyland/lab/i3pulse/pkg/protocol"
	"gitlab.com/tinyland/lab/i3pulse/pkg/widget"
)

type netSample struct {
	rx, tx uint64
	at     time.Time
}

// Network shows receive and transmit rates for one interface. Rates need
// two samples, so the first poll and any poll after a counter reset show
// N/A.
type Network struct {
	iface    string
	every    time.Duration
	counters func() ([]net.IOCountersStat, error)
	now      func() time.Time
	logger   *slog.Logger

	last *netSample
}

// NewNetwork returns a rate widget for iface, e.g. "wlan0".
func NewNetwork(iface string, every time.Duration, logger *slog.Logger) *Network {
	if logger == nil {
		logger = slog.Default()
	}
	return &Network{
		iface:    iface,
		every:    orDefault(every, defaultInterval),
		counters: func() ([]net.IOCountersStat, error) { return net.IOCounters(true) },
		now:      time.Now,
		logger:   logger,
	}
}

func (n *Network) Poll() (widget.Outcome, bool) {
	stats, err := n.counters()
	if err != nil {
		n.logger.Debug("network counters failed", "interface", n.iface, "error", err)
		return widget.Reschedule(n.every)
	}

	var cur *netSample
	for _, s := range stats {
		if s.Name == n.iface {
			cur = &netSample{rx: s.BytesRecv, tx: s.BytesSent, at: n.now()}
			break
		}
	}
	if cur == nil {
		n.last = nil
		return widget.Update(n.every, protocol.Text(n.iface+" down"))
	}

	rx, tx := "N/A", "N/A"
	if prev := n.last; prev != nil && cur.rx >= prev.rx && cur.tx >= prev.tx {
		if dt := cur.at.Sub(prev.at).Seconds(); dt > 0 {
			rx = formatRate(float64(cur.rx-prev.rx) / dt)
			tx = formatRate(float64(cur.tx-prev.tx) / dt)
		}
	}
	n.last = cur

	seg := protocol.Text(fmt.Sprintf("Rx:<tt>%s</tt> Tx:<tt>%s</tt>", rx, tx)).UsePango()
	return widget.Update(n.every, seg)
}

func formatRate(bytesPerSec float64) string {
	return fmt.Sprintf("%11s", humanize.IBytes(uint64(bytesPerSec))+"/s")
}
