package schema

import (
	"errors"
	"strings"
	"time"
)

// EmulatorConfig defines defaults shared by every browsing context.
type EmulatorConfig struct {
	// Namespace prefixes every persisted key, e.g. "<ns>-spanning".
	Namespace string
	// ResizeQuietWindow is how long resizing must stop before an invalidation fires.
	ResizeQuietWindow time.Duration
	// DefaultViewport is the viewport of a context that has not reported one.
	DefaultViewport Viewport
	// WatchDepth is the buffer size of each change subscription channel.
	WatchDepth int
}

const (
	// DefaultNamespace is the default persisted key prefix.
	DefaultNamespace = "foldscreen"
	// DefaultResizeQuietWindow is the default resize debounce window.
	DefaultResizeQuietWindow = 200 * time.Millisecond
	// DefaultWatchDepth is the default per-subscriber channel depth.
	DefaultWatchDepth = 64
)

// NormalizeEmulatorConfig applies defaults and validates the config.
func NormalizeEmulatorConfig(cfg EmulatorConfig) (EmulatorConfig, error) {
	cfg.Namespace = strings.TrimSpace(cfg.Namespace)
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.ResizeQuietWindow <= 0 {
		cfg.ResizeQuietWindow = DefaultResizeQuietWindow
	}
	if cfg.DefaultViewport.Width == 0 && cfg.DefaultViewport.Height == 0 {
		cfg.DefaultViewport = Viewport{Width: 800, Height: 600}
	}
	if cfg.DefaultViewport.Width < 0 || cfg.DefaultViewport.Height < 0 {
		return EmulatorConfig{}, errors.New("default viewport must not be negative")
	}
	if cfg.WatchDepth <= 0 {
		cfg.WatchDepth = DefaultWatchDepth
	}
	return cfg, nil
}

// StoreKeys holds the namespaced keys of the persisted geometry fields.
type StoreKeys struct {
	SpanningMode     string
	FoldSize         string
	BrowserShellSize string
}

// KeysFor returns the persisted keys for namespace ns.
func KeysFor(ns string) StoreKeys {
	return StoreKeys{
		SpanningMode:     ns + "-spanning",
		FoldSize:         ns + "-fold-size",
		BrowserShellSize: ns + "-browser-shell-size",
	}
}
