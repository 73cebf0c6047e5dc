// Package tailscale reports the state of the local tailnet node for the bar:
// whether the backend is running, this node's address, how many peers are
// online and which exit node is in use.
package tailscale

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tailscale.com/client/local"
	"tailscale.com/ipn/ipnstate"
)

// Name is the collector's registry key.
const Name = "tailscale"

// DefaultInterval applies when Config.Interval is zero.
const DefaultInterval = 10 * time.Second

// StatusClient is the part of the tailscaled LocalAPI the collector uses.
// *local.Client satisfies it.
type StatusClient interface {
	Status(ctx context.Context) (*ipnstate.Status, error)
}

// Config configures the collector.
type Config struct {
	Interval time.Duration
	// Socket overrides the platform's tailscaled socket path.
	Socket string
}

// Status is the result of one Collect.
type Status struct {
	BackendState string
	Hostname     string
	IPv4         string
	Tailnet      string
	OnlinePeers  int
	TotalPeers   int
	// ExitNode is the hostname of the active exit node, if any.
	ExitNode string
}

// Running reports whether tailscaled is up and connected.
func (s *Status) Running() bool { return s.BackendState == "Running" }

// Collector polls tailscaled.
type Collector struct {
	client   StatusClient
	interval time.Duration

	mu      sync.Mutex
	healthy bool
}

// New returns a collector. A nil client talks to the local daemon over
// cfg.Socket.
func New(cfg Config, client StatusClient) *Collector {
	if client == nil {
		client = &lazyLocal{socket: cfg.Socket}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Collector{client: client, interval: interval, healthy: true}
}

func (c *Collector) Name() string            { return Name }
func (c *Collector) Interval() time.Duration { return c.interval }

func (c *Collector) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy
}

func (c *Collector) setHealthy(v bool) {
	c.mu.Lock()
	c.healthy = v
	c.mu.Unlock()
}

// Collect queries the daemon once.
func (c *Collector) Collect(ctx context.Context) (any, error) {
	st, err := c.client.Status(ctx)
	if err == nil && st == nil {
		err = errors.New("nil response")
	}
	if err != nil {
		c.setHealthy(false)
		return nil, fmt.Errorf("tailscale status: %w", err)
	}
	c.setHealthy(true)
	return summarize(st), nil
}

func summarize(st *ipnstate.Status) *Status {
	s := &Status{BackendState: st.BackendState}

	if st.Self != nil {
		s.Hostname = st.Self.HostName
	}
	for _, addr := range st.TailscaleIPs {
		if addr.Is4() {
			s.IPv4 = addr.String()
			break
		}
	}
	if st.CurrentTailnet != nil {
		s.Tailnet = st.CurrentTailnet.Name
	}

	for _, k := range st.Peers() {
		p := st.Peer[k]
		if p == nil {
			continue
		}
		s.TotalPeers++
		if p.Online {
			s.OnlinePeers++
		}
		if p.ExitNode {
			s.ExitNode = p.HostName
		}
	}
	return s
}

// lazyLocal defers building the LocalAPI client until the first call.
type lazyLocal struct {
	socket string
	once   sync.Once
	client *local.Client
}

func (l *lazyLocal) Status(ctx context.Context) (*ipnstate.Status, error) {
	l.once.Do(func() {
		l.client = &local.Client{}
		if l.socket != "" {
			l.client.Socket = l.socket
		}
	})
	return l.client.Status(ctx)
}
