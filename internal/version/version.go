// Package version reports the build identity of the foldscreen binary.
package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/foldscreen"

// buildVersion is set via -ldflags "-X pkt.systems/foldscreen/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running build.
type Info struct {
	Module    string    `json:"module"`
	Version   string    `json:"version"`
	GoVersion string    `json:"go"`
	Revision  string    `json:"revision,omitempty"`
	Time      time.Time `json:"time,omitzero"`
	Modified  bool      `json:"modified,omitempty"`
}

// Read collects build information from the linker flag and the embedded
// build info.
func Read() Info {
	info, _ := debug.ReadBuildInfo()
	return fromBuildInfo(info, buildVersion)
}

// Current returns the best available version string without a dirty suffix.
func Current() string {
	return Read().String(false)
}

// CurrentWithDirty returns the best available version string, marking
// builds from a modified tree.
func CurrentWithDirty() string {
	return Read().String(true)
}

// Module returns the module path from build info when available.
func Module() string {
	return Read().Module
}

// String renders the version, optionally with a "+dirty" suffix.
func (i Info) String(includeDirty bool) string {
	v := i.Version
	if !includeDirty {
		return strings.TrimSuffix(v, "+dirty")
	}
	if i.Modified && !strings.HasSuffix(v, "+dirty") && strings.HasPrefix(v, "v0.0.0-") {
		v += "+dirty"
	}
	return v
}

func fromBuildInfo(info *debug.BuildInfo, override string) Info {
	out := Info{Module: defaultModule, GoVersion: runtime.Version()}
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			out.Module = path
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				out.Revision = setting.Value
			case "vcs.time":
				if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					out.Time = parsed.UTC()
				}
			case "vcs.modified":
				out.Modified = setting.Value == "true"
			}
		}
	}
	switch {
	case strings.TrimSpace(override) != "":
		out.Version = strings.TrimSpace(override)
	case info != nil && info.Main.Version != "" && info.Main.Version != "(devel)":
		out.Version = strings.TrimSpace(info.Main.Version)
	case out.Revision != "" && !out.Time.IsZero():
		out.Version = pseudoVersion(out.Revision, out.Time)
	default:
		out.Version = "v0.0.0-unknown"
	}
	return out
}

// pseudoVersion builds a Go module style pseudo-version from VCS stamps.
func pseudoVersion(revision string, at time.Time) string {
	rev := revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return "v0.0.0-" + at.UTC().Format("20060102150405") + "-" + rev
}
