package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/foldscreen/schema"
)

// EnvPrefix prefixes environment overrides, e.g. FOLDSCREEN_HTTP_ADDR for http.addr.
const EnvPrefix = "FOLDSCREEN"

// Load reads configuration from path, or DefaultConfigPath when path is
// empty. A missing file yields the defaults. Environment variables named
// after a key override both.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaultSettings(cfg) {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if got := v.GetInt("config_version"); got != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", got, CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Probe.ChromePath = expandEnv(cfg.Probe.ChromePath)
	if err := errors.Join(validateHTTPConfig(cfg.HTTP), validateEmulatorConfig(cfg.Emulator)); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// defaultSettings flattens cfg into viper keys. Every key needs a default
// for environment overrides to reach Unmarshal.
func defaultSettings(cfg Config) map[string]any {
	return map[string]any{
		"config_version":           cfg.ConfigVersion,
		"state_dir":                cfg.StateDir,
		"emulator.namespace":       cfg.Emulator.Namespace,
		"emulator.resize_quiet_ms": cfg.Emulator.ResizeQuietMS,
		"emulator.default_width":   cfg.Emulator.DefaultWidth,
		"emulator.default_height":  cfg.Emulator.DefaultHeight,
		"emulator.watch_depth":     cfg.Emulator.WatchDepth,
		"emulator.watch_state_dir": cfg.Emulator.WatchStateDir,
		"emulator.default_context": cfg.Emulator.DefaultContext,
		"http.addr":                cfg.HTTP.Addr,
		"http.base_url":            cfg.HTTP.BaseURL,
		"http.base_path":           cfg.HTTP.BasePath,
		"http.stream_history":      cfg.HTTP.StreamHistory,
		"http.metrics":             cfg.HTTP.Metrics,
		"probe.chrome_path":        cfg.Probe.ChromePath,
		"probe.timeout_seconds":    cfg.Probe.TimeoutSeconds,
		"logging.level":            cfg.Logging.Level,
		"logging.structured":       cfg.Logging.Structured,
		"logging.disable_colors":   cfg.Logging.DisableColors,
	}
}

func validateHTTPConfig(cfg HTTPConfig) error {
	var errs []error
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errs = append(errs, errors.New("http.base_url must include scheme and host (e.g. https://example.com)"))
		}
	}
	if basePath := strings.TrimSpace(cfg.BasePath); basePath != "" {
		if strings.Contains(basePath, "://") {
			errs = append(errs, errors.New("http.base_path must be a path prefix, not a URL"))
		} else if strings.ContainsAny(basePath, "?#") {
			errs = append(errs, errors.New("http.base_path must not include query or fragment"))
		}
	}
	if cfg.StreamHistory < 0 {
		errs = append(errs, errors.New("http.stream_history must not be negative"))
	}
	return errors.Join(errs...)
}

func validateEmulatorConfig(cfg EmulatorConfig) error {
	var errs []error
	if strings.TrimSpace(cfg.Namespace) == "" {
		errs = append(errs, errors.New("emulator.namespace must not be empty"))
	}
	if cfg.ResizeQuietMS <= 0 {
		errs = append(errs, errors.New("emulator.resize_quiet_ms must be positive"))
	}
	if cfg.DefaultWidth < 0 || cfg.DefaultHeight < 0 {
		errs = append(errs, errors.New("emulator.default_width and emulator.default_height must not be negative"))
	}
	if cfg.DefaultContext != "" {
		if err := schema.ValidateContextID(schema.ContextID(cfg.DefaultContext)); err != nil {
			errs = append(errs, fmt.Errorf("emulator.default_context: %w", err))
		}
	}
	return errors.Join(errs...)
}

// expandEnv expands $VAR references, leaving unknown ones in place. UID and
// GID resolve to the current process ids when not set.
func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		switch key {
		case "UID":
			return strconv.Itoa(os.Getuid())
		case "GID":
			return strconv.Itoa(os.Getgid())
		case "":
			return ""
		}
		return "$" + key
	})
}

// WriteDefault writes the default config to path, or DefaultConfigPath when
// path is empty, and returns the path written.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	header := "# foldscreen configuration. Any key can be overridden with " + EnvPrefix + "_<KEY>, e.g. " + EnvPrefix + "_HTTP_ADDR.\n"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, append([]byte(header), data...), 0o600); err != nil {
		return "", err
	}
	return path, nil
}
