package app

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

var (
	// Version is filled by ldflags in release builds.
	Version = "dev"
	// BuildDate is filled by ldflags in release builds.
	BuildDate = ""
)

// BuildVersion prefers the ldflags version, then the module version recorded
// by `go install`, then "dev".
func BuildVersion() string {
	if version := strings.TrimSpace(Version); version != "" && version != "dev" {
		return version
	}

	return moduleVersion(debug.ReadBuildInfo)
}

func moduleVersion(read func() (*debug.BuildInfo, bool)) string {
	info, ok := read()
	if !ok || info == nil {
		return "dev"
	}
	switch version := strings.TrimSpace(info.Main.Version); version {
	case "", "(devel)":
		return "dev"
	default:
		return version
	}
}

func BuildDateYMD() string {
	raw := strings.TrimSpace(BuildDate)
	if raw == "" {
		return ""
	}

	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.Format(time.DateOnly)
	}
	if len(raw) >= len(time.DateOnly) {
		date := raw[:len(time.DateOnly)]
		if _, err := time.Parse(time.DateOnly, date); err == nil {
			return date
		}
	}

	return raw
}

func BuildVersionWithDate() string {
	version := BuildVersion()
	if buildDate := BuildDateYMD(); buildDate != "" {
		return fmt.Sprintf("%s (%s)", version, buildDate)
	}

	return version
}

// UserAgent identifies joylink to the web APIs it calls.
func UserAgent() string {
	return fmt.Sprintf("%s/%s (+%s)", Name, BuildVersion(), SourceURL)
}
