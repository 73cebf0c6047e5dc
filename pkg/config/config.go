package config

import "time"

// Config is the root of the configuration file.
type Config struct {
	General   GeneralConfig   `toml:"general" yaml:"general"`
	Protocol  ProtocolConfig  `toml:"protocol" yaml:"protocol"`
	Stock     StockConfig     `toml:"stock" yaml:"stock"`
	Tailscale TailscaleConfig `toml:"tailscale" yaml:"tailscale"`
	K8s       K8sConfig       `toml:"k8s" yaml:"k8s"`
	MQTT      MQTTConfig      `toml:"mqtt" yaml:"mqtt"`

	// Widgets lists the bar's segments, left to right. When empty the
	// widgets of General.Preset are used.
	Widgets []WidgetConfig `toml:"widget" yaml:"widget"`
}

// GeneralConfig holds process-wide settings.
type GeneralConfig struct {
	LogLevel string `toml:"log_level" yaml:"log_level"`
	// LogFile, if set, receives a copy of every log line.
	LogFile string `toml:"log_file" yaml:"log_file"`
	Preset  string `toml:"preset" yaml:"preset"`
	// CacheDir keeps stock quotes between runs. Empty means the user cache
	// directory; "-" disables caching.
	CacheDir string `toml:"cache_dir" yaml:"cache_dir"`
	// SysMetrics is the sampling interval for memory, load, disk and uptime.
	SysMetrics Duration `toml:"sysmetrics_interval" yaml:"sysmetrics_interval"`
}

// ProtocolConfig controls the i3bar header.
type ProtocolConfig struct {
	Version     int  `toml:"version" yaml:"version"`
	ClickEvents bool `toml:"click_events" yaml:"click_events"`
	// StopSignal and ContSignal are signal names such as "SIGUSR1". Empty
	// leaves i3bar's defaults (SIGSTOP/SIGCONT) in place.
	StopSignal string `toml:"stop_signal" yaml:"stop_signal"`
	ContSignal string `toml:"cont_signal" yaml:"cont_signal"`
}

// StockConfig configures the shared Alpha Vantage client.
type StockConfig struct {
	APIKey            string   `toml:"api_key" yaml:"api_key"`
	Refresh           Duration `toml:"refresh" yaml:"refresh"`
	RequestsPerMinute int      `toml:"requests_per_minute" yaml:"requests_per_minute"`
}

// TailscaleConfig configures the tailscale collector.
type TailscaleConfig struct {
	Socket   string   `toml:"socket" yaml:"socket"`
	Interval Duration `toml:"interval" yaml:"interval"`
}

// K8sConfig configures the Kubernetes collector.
type K8sConfig struct {
	Kubeconfig string   `toml:"kubeconfig" yaml:"kubeconfig"`
	Context    string   `toml:"context" yaml:"context"`
	Namespaces []string `toml:"namespaces" yaml:"namespaces"`
	Interval   Duration `toml:"interval" yaml:"interval"`
}

// MQTTConfig configures the broker connection shared by mqtt widgets.
type MQTTConfig struct {
	Broker   string `toml:"broker" yaml:"broker"`
	ClientID string `toml:"client_id" yaml:"client_id"`
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
}

// WidgetConfig describes one segment. Type selects the widget; the
// remaining fields are decorations or type-specific options.
type WidgetConfig struct {
	Type     string   `toml:"type" yaml:"type"`
	Interval Duration `toml:"interval" yaml:"interval"`

	Name      string `toml:"name" yaml:"name"`
	Instance  string `toml:"instance" yaml:"instance"`
	Color     string `toml:"color" yaml:"color"`
	Prefix    string `toml:"prefix" yaml:"prefix"`
	MaxWidth  int    `toml:"max_width" yaml:"max_width"`
	ShortText string `toml:"short_text" yaml:"short_text"`

	// datetime
	Format string `toml:"format" yaml:"format"`
	// cpu
	Core int `toml:"core" yaml:"core"`
	// network
	Interface string `toml:"interface" yaml:"interface"`
	// battery
	Battery int `toml:"battery" yaml:"battery"`
	// volume
	Device string `toml:"device" yaml:"device"`
	Mixer  string `toml:"mixer" yaml:"mixer"`
	Index  int    `toml:"index" yaml:"index"`
	// stock
	Symbol string `toml:"symbol" yaml:"symbol"`
	// file, disk (mount point)
	Path string `toml:"path" yaml:"path"`
	// mqtt
	Topic string `toml:"topic" yaml:"topic"`
}

// Widget types understood by the widgets package.
const (
	TypeDateTime  = "datetime"
	TypeCPU       = "cpu"
	TypeNetwork   = "network"
	TypeMemory    = "memory"
	TypeLoad      = "load"
	TypeDisk      = "disk"
	TypeUptime    = "uptime"
	TypeBattery   = "battery"
	TypeVolume    = "volume"
	TypeStock     = "stock"
	TypeTailscale = "tailscale"
	TypeK8s       = "k8s"
	TypeFile      = "file"
	TypeMQTT      = "mqtt"
)

// WidgetTypes lists every known widget type.
var WidgetTypes = []string{
	TypeDateTime, TypeCPU, TypeNetwork, TypeMemory, TypeLoad, TypeDisk,
	TypeUptime, TypeBattery, TypeVolume, TypeStock, TypeTailscale, TypeK8s, TypeFile, TypeMQTT,
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:   "info",
			Preset:     "minimal",
			SysMetrics: Duration{2 * time.Second},
		},
		Protocol: ProtocolConfig{
			Version: 1,
		},
		Stock: StockConfig{
			Refresh:           Duration{5 * time.Minute},
			RequestsPerMinute: 5,
		},
		Tailscale: TailscaleConfig{
			Interval: Duration{10 * time.Second},
		},
		K8s: K8sConfig{
			Interval: Duration{30 * time.Second},
		},
		MQTT: MQTTConfig{
			ClientID: "i3pulse",
		},
	}
}

// BarWidgets returns the configured widgets, or the preset's when none are
// configured.
func (c *Config) BarWidgets() []WidgetConfig {
	if len(c.Widgets) > 0 {
		return c.Widgets
	}
	return Preset(c.General.Preset)
}
