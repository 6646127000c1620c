package appconfig

import (
	"testing"
	"time"

	"pkt.systems/foldscreen/schema"
)

func TestDefaultConfigEmulatorSettings(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	settings := cfg.EmulatorSettings()
	if settings.Namespace != schema.DefaultNamespace {
		t.Fatalf("namespace = %q", settings.Namespace)
	}
	if settings.ResizeQuietWindow != 200*time.Millisecond {
		t.Fatalf("resize quiet window = %v, want 200ms", settings.ResizeQuietWindow)
	}
	if settings.DefaultViewport != (schema.Viewport{Width: 800, Height: 600}) {
		t.Fatalf("default viewport = %+v", settings.DefaultViewport)
	}
	if cfg.Emulator.DefaultContext != string(schema.DefaultContextID) {
		t.Fatalf("default context = %q", cfg.Emulator.DefaultContext)
	}
}

func TestProbeTimeoutFallback(t *testing.T) {
	var cfg Config
	if got := cfg.ProbeTimeout(); got != 30*time.Second {
		t.Fatalf("probe timeout = %v, want 30s", got)
	}
	cfg.Probe.TimeoutSeconds = 5
	if got := cfg.ProbeTimeout(); got != 5*time.Second {
		t.Fatalf("probe timeout = %v, want 5s", got)
	}
}
