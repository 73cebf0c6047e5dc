// Package sysmetrics gathers memory, load, disk and uptime figures with
// gopsutil. Disk usage can stall on network mounts, so these run on a
// collector goroutine rather than in a widget's Poll.
package sysmetrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Name is the collector's registry key.
const Name = "sysmetrics"

const defaultInterval = 2 * time.Second

// MemoryMetrics holds physical and swap memory statistics.
type MemoryMetrics struct {
	Total       uint64
	Used        uint64
	Available   uint64
	UsedPercent float64
	SwapTotal   uint64
	SwapUsed    uint64
}

// DiskMetrics holds usage data for one mount point.
type DiskMetrics struct {
	Path        string
	FSType      string
	Total       uint64
	Used        uint64
	Free        uint64
	UsedPercent float64
}

// LoadMetrics holds the system load averages.
type LoadMetrics struct {
	Load1  float64
	Load5  float64
	Load15 float64
}

// Metrics is the snapshot returned by Collect.
type Metrics struct {
	Memory MemoryMetrics
	Load   LoadMetrics
	// Disks is keyed by the mount path passed to AddMount.
	Disks  map[string]DiskMetrics
	Uptime time.Duration
}

// sources are the gopsutil calls, replaceable in tests.
type sources struct {
	virtual func(context.Context) (*mem.VirtualMemoryStat, error)
	swap    func(context.Context) (*mem.SwapMemoryStat, error)
	avg     func(context.Context) (*load.AvgStat, error)
	usage   func(context.Context, string) (*disk.UsageStat, error)
	uptime  func(context.Context) (uint64, error)
}

var gopsutil = sources{
	virtual: mem.VirtualMemoryWithContext,
	swap:    mem.SwapMemoryWithContext,
	avg:     load.AvgWithContext,
	usage:   disk.UsageWithContext,
	uptime:  host.UptimeWithContext,
}

// Collector samples the host.
type Collector struct {
	interval time.Duration
	src      sources

	mu      sync.Mutex
	mounts  []string
	healthy bool
}

// New returns a collector; a non-positive interval means two seconds.
func New(interval time.Duration) *Collector {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Collector{interval: interval, src: gopsutil, healthy: true}
}

// AddMount adds a mount point to measure. Duplicates are ignored.
func (c *Collector) AddMount(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.mounts {
		if m == path {
			return
		}
	}
	c.mounts = append(c.mounts, path)
}

func (c *Collector) Name() string            { return Name }
func (c *Collector) Interval() time.Duration { return c.interval }

func (c *Collector) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy
}

func (c *Collector) setHealthy(h bool) {
	c.mu.Lock()
	c.healthy = h
	c.mu.Unlock()
}

// Collect gathers every metric. Partial failures still return the metrics
// that could be read, joined with the errors; only a total failure returns
// nil data.
func (c *Collector) Collect(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	mounts := append([]string(nil), c.mounts...)
	c.mu.Unlock()

	m := Metrics{Disks: make(map[string]DiskMetrics, len(mounts))}
	var errs []error
	ok := 0

	if vm, err := c.src.virtual(ctx); err != nil {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	} else {
		ok++
		m.Memory = MemoryMetrics{
			Total:       vm.Total,
			Used:        vm.Used,
			Available:   vm.Available,
			UsedPercent: vm.UsedPercent,
		}
		// Swap may be absent.
		if sw, err := c.src.swap(ctx); err == nil {
			m.Memory.SwapTotal = sw.Total
			m.Memory.SwapUsed = sw.Used
		}
	}

	if avg, err := c.src.avg(ctx); err != nil {
		errs = append(errs, fmt.Errorf("load: %w", err))
	} else {
		ok++
		m.Load = LoadMetrics{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}
	}

	for _, mp := range mounts {
		u, err := c.src.usage(ctx, mp)
		if err != nil {
			errs = append(errs, fmt.Errorf("disk %s: %w", mp, err))
			continue
		}
		ok++
		m.Disks[mp] = DiskMetrics{
			Path:        u.Path,
			FSType:      u.Fstype,
			Total:       u.Total,
			Used:        u.Used,
			Free:        u.Free,
			UsedPercent: u.UsedPercent,
		}
	}

	if secs, err := c.src.uptime(ctx); err != nil {
		errs = append(errs, fmt.Errorf("uptime: %w", err))
	} else {
		ok++
		m.Uptime = time.Duration(secs) * time.Second
	}

	err := errors.Join(errs...)
	if ok == 0 {
		c.setHealthy(false)
		return nil, fmt.Errorf("sysmetrics: all sources failed: %w", err)
	}
	c.setHealthy(true)
	return m, err
}
