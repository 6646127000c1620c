package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/foldscreen/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string         `mapstructure:"state_dir" yaml:"state_dir"`
	Emulator      EmulatorConfig `mapstructure:"emulator" yaml:"emulator"`
	HTTP          HTTPConfig     `mapstructure:"http" yaml:"http"`
	Probe         ProbeConfig    `mapstructure:"probe" yaml:"probe"`
	Logging       LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// EmulatorConfig controls the geometry emulator of every browsing context.
type EmulatorConfig struct {
	Namespace      string  `mapstructure:"namespace" yaml:"namespace"`
	ResizeQuietMS  int     `mapstructure:"resize_quiet_ms" yaml:"resize_quiet_ms"`
	DefaultWidth   float64 `mapstructure:"default_width" yaml:"default_width"`
	DefaultHeight  float64 `mapstructure:"default_height" yaml:"default_height"`
	WatchDepth     int     `mapstructure:"watch_depth" yaml:"watch_depth"`
	WatchStateDir  bool    `mapstructure:"watch_state_dir" yaml:"watch_state_dir"`
	DefaultContext string  `mapstructure:"default_context" yaml:"default_context"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr          string `mapstructure:"addr" yaml:"addr"`
	BaseURL       string `mapstructure:"base_url" yaml:"base_url"`
	BasePath      string `mapstructure:"base_path" yaml:"base_path"`
	StreamHistory int    `mapstructure:"stream_history" yaml:"stream_history"`
	Metrics       bool   `mapstructure:"metrics" yaml:"metrics"`
}

// ProbeConfig configures the headless browser probe.
type ProbeConfig struct {
	ChromePath     string `mapstructure:"chrome_path" yaml:"chrome_path"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`
	Structured    bool   `mapstructure:"structured" yaml:"structured"`
	DisableColors bool   `mapstructure:"disable_colors" yaml:"disable_colors"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".foldscreen", "state"),
		Emulator: EmulatorConfig{
			Namespace:      schema.DefaultNamespace,
			ResizeQuietMS:  int(schema.DefaultResizeQuietWindow / time.Millisecond),
			DefaultWidth:   800,
			DefaultHeight:  600,
			WatchDepth:     schema.DefaultWatchDepth,
			WatchStateDir:  true,
			DefaultContext: string(schema.DefaultContextID),
		},
		HTTP: HTTPConfig{
			Addr:          ":27490",
			BaseURL:       "",
			BasePath:      "",
			StreamHistory: 256,
			Metrics:       true,
		},
		Probe: ProbeConfig{
			ChromePath:     "",
			TimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:         "info",
			Structured:    false,
			DisableColors: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".foldscreen", "config.yaml"), nil
}

// EmulatorSettings converts the emulator section to the core config.
func (c Config) EmulatorSettings() schema.EmulatorConfig {
	return schema.EmulatorConfig{
		Namespace:         c.Emulator.Namespace,
		ResizeQuietWindow: time.Duration(c.Emulator.ResizeQuietMS) * time.Millisecond,
		DefaultViewport:   schema.Viewport{Width: c.Emulator.DefaultWidth, Height: c.Emulator.DefaultHeight},
		WatchDepth:        c.Emulator.WatchDepth,
	}
}

// ProbeTimeout returns the probe timeout as a duration.
func (c Config) ProbeTimeout() time.Duration {
	if c.Probe.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}
