package widgets

import (
	"fmt"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/i3pulse/pkg/collectors"
	"gitlab.com/tinyland/lab/i3pulse/pkg/collectors/k8s"
	"gitlab.com/tinyland/lab/i3pulse/pkg/collectors/stock"
	"gitlab.com/tinyland/lab/i3pulse/pkg/collectors/tailscale"
	"gitlab.com/tinyland/lab/i3pulse/pkg/collectors/volume"
	"gitlab.com/tinyland/lab/i3pulse/pkg/protocol"
)

// NewVolume renders a volume collector's level, e.g. "65%🔊".
func NewVolume(reg *collectors.Registry, source string, every time.Duration) *Feed {
	return NewFeed(reg, source, every, func(u collectors.Update) *protocol.Segment {
		lvl, ok := u.Data.(volume.Level)
		if !ok {
			return nil
		}
		if lvl.Muted {
			return protocol.Text(fmt.Sprintf("%d%%🔇", lvl.Percent)).SetColor(protocol.Yellow)
		}
		return protocol.Text(fmt.Sprintf("%d%%🔊", lvl.Percent))
	}, nil)
}

var stockFlat = protocol.RGB(255, 255, 255)

// NewStock renders the last close and daily change of symbol from the
// shared stock collector. It shows a grey placeholder until the first quote
// arrives.
func NewStock(reg *collectors.Registry, symbol string, every time.Duration) *Feed {
	label := span(pangoLabel, symbol+" ")
	placeholder := protocol.Text(label + span(pangoDim, "waiting")).UsePango()

	return NewFeed(reg, stock.Name, every, func(u collectors.Update) *protocol.Segment {
		quotes, ok := u.Data.(stock.Quotes)
		if !ok {
			return nil
		}
		q, ok := quotes[symbol]
		if !ok {
			return nil
		}
		color := stockFlat
		switch change := q.Change(); {
		case change > 0:
			color = protocol.Green
		case change < 0:
			color = protocol.Red
		}
		body := fmt.Sprintf("%.2f(%.1f%%)", q.Close, q.ChangePercent())
		return protocol.Text(label + span(color.String(), body)).UsePango()
	}, placeholder)
}

// NewTailscale renders the tailnet node state, e.g. "TS laptop 3/7".
func NewTailscale(reg *collectors.Registry, every time.Duration) *Feed {
	return NewFeed(reg, tailscale.Name, every, func(u collectors.Update) *protocol.Segment {
		st, ok := u.Data.(*tailscale.Status)
		if !ok {
			return nil
		}
		if !st.Running() {
			return protocol.Text("TS " + strings.ToLower(st.BackendState)).SetColor(protocol.Red)
		}
		text := fmt.Sprintf("TS %s %d/%d", st.Hostname, st.OnlinePeers, st.TotalPeers)
		if st.ExitNode != "" {
			text += " via " + st.ExitNode
		}
		return protocol.Text(text)
	}, nil)
}

// NewKube renders a cluster summary, e.g. "⎈ prod 3/3 42 pods". Not-ready
// nodes, failed pods or degraded deployments color it red; pending pods
// yellow.
func NewKube(reg *collectors.Registry, every time.Duration) *Feed {
	return NewFeed(reg, k8s.Name, every, func(u collectors.Update) *protocol.Segment {
		s, ok := u.Data.(*k8s.Summary)
		if !ok {
			return nil
		}
		text := fmt.Sprintf("⎈ %s %d/%d %d pods", s.Context, s.ReadyNodes, s.TotalNodes, s.TotalPods)
		if n := len(s.Degraded); n > 0 {
			text += fmt.Sprintf(" %d degraded", n)
		}
		seg := protocol.Text(text)
		switch {
		case s.ReadyNodes < s.TotalNodes || s.FailedPods > 0 || len(s.Degraded) > 0:
			seg.SetColor(protocol.Red)
		case s.PendingPods > 0:
			seg.SetColor(protocol.Yellow)
		}
		return seg
	}, nil)
}
