package config

// Preset returns the widgets of a named bar layout. Validate rejects
// unknown names; Preset itself falls back to "minimal".
func Preset(name string) []WidgetConfig {
	switch name {
	case "laptop":
		return laptopPreset()
	case "ops":
		return opsPreset()
	default:
		return minimalPreset()
	}
}

// PresetNames lists the built-in presets.
var PresetNames = []string{"minimal", "laptop", "ops"}

// minimalPreset: [cpu0] [memory] [load] [time]
func minimalPreset() []WidgetConfig {
	return []WidgetConfig{
		{Type: TypeCPU, Core: 0},
		{Type: TypeMemory},
		{Type: TypeLoad},
		{Type: TypeDateTime},
	}
}

// laptopPreset adds battery and volume to the minimal bar.
func laptopPreset() []WidgetConfig {
	return []WidgetConfig{
		{Type: TypeCPU, Core: 0},
		{Type: TypeCPU, Core: 1},
		{Type: TypeMemory},
		{Type: TypeVolume},
		{Type: TypeBattery, Battery: 0},
		{Type: TypeDateTime},
	}
}

// opsPreset shows cluster and tailnet health next to the basics.
func opsPreset() []WidgetConfig {
	return []WidgetConfig{
		{Type: TypeK8s},
		{Type: TypeTailscale},
		{Type: TypeDisk, Path: "/"},
		{Type: TypeUptime},
		{Type: TypeLoad},
		{Type: TypeMemory},
		{Type: TypeDateTime},
	}
}
