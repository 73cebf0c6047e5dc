package widgets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gitlab.com/tinyland/lab/i3pulse/pkg/cache"
	"gitlab.com/tinyland/lab/i3pulse/pkg/collectors"
	"gitlab.com/tinyland/lab/i3pulse/pkg/collectors/k8s"
	"gitlab.com/tinyland/lab/i3pulse/pkg/collectors/stock"
	"gitlab.com/tinyland/lab/i3pulse/pkg/collectors/sysmetrics"
	"gitlab.com/tinyland/lab/i3pulse/pkg/collectors/tailscale"
	"gitlab.com/tinyland/lab/i3pulse/pkg/collectors/volume"
	"gitlab.com/tinyland/lab/i3pulse/pkg/config"
	"gitlab.com/tinyland/lab/i3pulse/pkg/protocol"
	"gitlab.com/tinyland/lab/i3pulse/pkg/widget"
)

// Env builds widgets from configuration. Collectors and the MQTT broker
// are created on first use and shared by every widget that needs them, so
// a bar with three stock widgets still makes one paced set of requests.
type Env struct {
	ctx    context.Context
	cfg    *config.Config
	reg    *collectors.Registry
	logger *slog.Logger

	stock  *stock.Collector
	sys    *sysmetrics.Collector
	broker *Broker
}

// NewEnv returns an Env registering collectors in reg. ctx bounds the
// lifetime of widget-owned goroutines such as file watchers.
func NewEnv(ctx context.Context, cfg *config.Config, reg *collectors.Registry, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	return &Env{ctx: ctx, cfg: cfg, reg: reg, logger: logger}
}

// BuildAll builds every widget in order.
func (e *Env) BuildAll(wcs []config.WidgetConfig) ([]widget.Widget, error) {
	out := make([]widget.Widget, 0, len(wcs))
	for i, wc := range wcs {
		w, err := e.Build(wc)
		if err != nil {
			return nil, fmt.Errorf("widget %d (%s): %w", i, wc.Type, err)
		}
		out = append(out, w)
	}
	return out, nil
}

// Build returns the widget described by wc, wrapped in its decorations.
func (e *Env) Build(wc config.WidgetConfig) (widget.Widget, error) {
	w, err := e.build(wc)
	if err != nil {
		return nil, err
	}
	return decorate(w, wc)
}

func (e *Env) build(wc config.WidgetConfig) (widget.Widget, error) {
	every := wc.Interval.Duration
	log := e.logger.With("widget", wc.Type)

	switch wc.Type {
	case config.TypeDateTime:
		return NewDateTime(wc.Format, wc.Format == ""), nil
	case config.TypeCPU:
		return NewCPU(wc.Core, every, log), nil
	case config.TypeNetwork:
		return NewNetwork(wc.Interface, every, log), nil
	case config.TypeBattery:
		return NewBattery(wc.Battery, every), nil

	case config.TypeMemory:
		e.sysmetrics()
		return NewMemory(e.reg, every), nil
	case config.TypeLoad:
		e.sysmetrics()
		return NewLoad(e.reg, every), nil
	case config.TypeUptime:
		e.sysmetrics()
		return NewUptime(e.reg, every), nil
	case config.TypeDisk:
		mount := wc.Path
		if mount == "" {
			mount = "/"
		}
		e.sysmetrics().AddMount(mount)
		return NewDisk(e.reg, mount, every), nil

	case config.TypeVolume:
		c := volume.New(volume.Config{
			Device:   wc.Device,
			Mixer:    wc.Mixer,
			Index:    wc.Index,
			Interval: every,
		})
		if err := e.register(c); err != nil {
			return nil, err
		}
		return NewVolume(e.reg, c.Name(), every), nil

	case config.TypeStock:
		if e.stock == nil {
			e.stock = stock.New(stock.Config{
				APIKey:            e.cfg.Stock.APIKey,
				Refresh:           e.cfg.Stock.Refresh.Duration,
				RequestsPerMinute: e.cfg.Stock.RequestsPerMinute,
				Cache:             e.openCache(),
			})
			if err := e.register(e.stock); err != nil {
				return nil, err
			}
		}
		e.stock.AddSymbol(wc.Symbol)
		return NewStock(e.reg, wc.Symbol, every), nil

	case config.TypeTailscale:
		c := tailscale.New(tailscale.Config{
			Interval: e.cfg.Tailscale.Interval.Duration,
			Socket:   e.cfg.Tailscale.Socket,
		}, nil)
		if err := e.register(c); err != nil {
			return nil, err
		}
		return NewTailscale(e.reg, every), nil

	case config.TypeK8s:
		c := k8s.New(k8s.Config{
			Interval:   e.cfg.K8s.Interval.Duration,
			Kubeconfig: e.cfg.K8s.Kubeconfig,
			Context:    e.cfg.K8s.Context,
			Namespaces: e.cfg.K8s.Namespaces,
		})
		if err := e.register(c); err != nil {
			return nil, err
		}
		return NewKube(e.reg, every), nil

	case config.TypeFile:
		return NewFile(e.ctx, wc.Path, every, log)

	case config.TypeMQTT:
		if e.broker == nil {
			e.broker = NewBroker(e.cfg.MQTT, e.logger.With("component", "mqtt"))
		}
		m := NewMQTT(wc.Topic, every)
		e.broker.Attach(m)
		return m, nil
	}
	return nil, fmt.Errorf("unknown widget type %q", wc.Type)
}

// register adds c unless a collector with the same name already exists.
func (e *Env) register(c collectors.Collector) error {
	if _, ok := e.reg.Get(c.Name()); ok {
		return nil
	}
	return e.reg.Register(c)
}

func (e *Env) sysmetrics() *sysmetrics.Collector {
	if e.sys == nil {
		e.sys = sysmetrics.New(e.cfg.General.SysMetrics.Duration)
		// Cannot collide: sysmetrics is only created here.
		_ = e.register(e.sys)
	}
	return e.sys
}

// openCache opens the quote cache, or returns nil when caching is disabled
// or the directory is unusable.
func (e *Env) openCache() *cache.Store {
	dir := e.cfg.General.CacheDir
	if dir == "-" {
		return nil
	}
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			e.logger.Warn("no cache directory, quotes will not persist", "error", err)
			return nil
		}
		dir = filepath.Join(base, "i3pulse")
	}
	store, err := cache.NewStore(dir)
	if err != nil {
		e.logger.Warn("quote cache unavailable", "error", err)
		return nil
	}
	return store
}

// Connect connects the MQTT broker if any mqtt widget was built.
func (e *Env) Connect(ctx context.Context) error {
	if e.broker == nil {
		return nil
	}
	return e.broker.Connect(ctx)
}

// Close releases the MQTT connection.
func (e *Env) Close() {
	if e.broker != nil {
		e.broker.Close()
	}
}

func decorate(w widget.Widget, wc config.WidgetConfig) (widget.Widget, error) {
	var decs []widget.Decoration
	if wc.Name != "" || wc.Instance != "" {
		decs = append(decs, widget.Identify(wc.Name, wc.Instance))
	}
	if wc.Prefix != "" {
		decs = append(decs, widget.Prefix(wc.Prefix))
	}
	if wc.Color != "" {
		c, err := protocol.ParseColor(wc.Color)
		if err != nil {
			return nil, err
		}
		decs = append(decs, widget.WithColor(c))
	}
	if wc.ShortText != "" {
		decs = append(decs, widget.WithShortText(wc.ShortText))
	}
	if wc.MaxWidth > 0 {
		decs = append(decs, widget.Truncate(wc.MaxWidth))
	}
	if len(decs) == 0 {
		return w, nil
	}
	return widget.Decorate(w, widget.Chain(decs...)), nil
}
