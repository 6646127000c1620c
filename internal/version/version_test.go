package version

import (
	"runtime/debug"
	"testing"
	"time"
)

func stampedBuildInfo(modified bool) *debug.BuildInfo {
	ts := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	value := "false"
	if modified {
		value = "true"
	}
	return &debug.BuildInfo{
		Main: debug.Module{Path: "example.com/fold", Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "1234567890abcdef"},
			{Key: "vcs.time", Value: ts.Format(time.RFC3339)},
			{Key: "vcs.modified", Value: value},
		},
	}
}

func TestCurrentPrefersBuildVersion(t *testing.T) {
	old := buildVersion
	buildVersion = "v1.2.3"
	t.Cleanup(func() { buildVersion = old })

	if got := Current(); got != "v1.2.3" {
		t.Fatalf("expected build version, got %q", got)
	}
}

func TestFromBuildInfoPseudoVersion(t *testing.T) {
	info := fromBuildInfo(stampedBuildInfo(true), "")
	if info.Module != "example.com/fold" {
		t.Fatalf("unexpected module %q", info.Module)
	}
	if info.Version != "v0.0.0-20250102030405-1234567890ab" {
		t.Fatalf("unexpected version %q", info.Version)
	}
	if got := info.String(true); got != "v0.0.0-20250102030405-1234567890ab+dirty" {
		t.Fatalf("expected dirty suffix, got %q", got)
	}
	if got := info.String(false); got != info.Version {
		t.Fatalf("expected clean version, got %q", got)
	}
	if clean := fromBuildInfo(stampedBuildInfo(false), ""); clean.String(true) != info.Version {
		t.Fatalf("unmodified tree must not be dirty: %q", clean.String(true))
	}
}

func TestFromBuildInfoFallbacks(t *testing.T) {
	info := fromBuildInfo(nil, "")
	if info.Module != defaultModule || info.Version != "v0.0.0-unknown" {
		t.Fatalf("unexpected fallback %+v", info)
	}
	if info.GoVersion == "" {
		t.Fatalf("expected go version")
	}
	tagged := fromBuildInfo(&debug.BuildInfo{Main: debug.Module{Version: "v1.4.0"}}, "")
	if tagged.Version != "v1.4.0" || tagged.Module != defaultModule {
		t.Fatalf("unexpected tagged info %+v", tagged)
	}
	if got := fromBuildInfo(stampedBuildInfo(true), " v2.0.0+dirty ").String(false); got != "v2.0.0" {
		t.Fatalf("override = %q", got)
	}
}
