// Package version provides build information for the gones NES emulator.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

var (
	// These are set at build time via -ldflags.
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	BuildUser = "unknown"
)

// BuildInfo contains detailed build information.
type BuildInfo struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildTime  string `json:"build_time"`
	BuildUser  string `json:"build_user"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
	Arch       string `json:"arch"`
	CGOEnabled bool   `json:"cgo_enabled"`
}

// GetBuildInfo returns detailed build information, filling in VCS fields
// from the binary's embedded build info when the ldflags vars were left
// at their defaults.
func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		BuildUser: BuildUser,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.GitCommit == "unknown" {
					info.GitCommit = setting.Value
				}
			case "vcs.time":
				if info.BuildTime == "unknown" {
					info.BuildTime = setting.Value
				}
			case "CGO_ENABLED":
				info.CGOEnabled = setting.Value == "1"
			}
		}
	}

	return info
}

// GetVersion returns a short version string, falling back to a
// commit-derived dev string when no release version was baked in.
func GetVersion() string {
	if Version == "dev" {
		bi := GetBuildInfo()
		if bi.GitCommit != "unknown" && len(bi.GitCommit) >= 7 {
			return fmt.Sprintf("dev-%s", bi.GitCommit[:7])
		}
	}
	return Version
}

// GetDetailedVersion returns a human-readable one-line summary of the
// build, for the -version flag.
func GetDetailedVersion() string {
	bi := GetBuildInfo()

	s := fmt.Sprintf("gones version %s", bi.Version)

	if bi.GitCommit != "unknown" {
		if len(bi.GitCommit) >= 7 {
			s += fmt.Sprintf(" (commit %s)", bi.GitCommit[:7])
		} else {
			s += fmt.Sprintf(" (commit %s)", bi.GitCommit)
		}
	}

	if bi.BuildTime != "unknown" {
		if t, err := time.Parse(time.RFC3339, bi.BuildTime); err == nil {
			s += fmt.Sprintf(" built on %s", t.Format("2006-01-02 15:04:05"))
		} else {
			s += fmt.Sprintf(" built on %s", bi.BuildTime)
		}
	}

	s += fmt.Sprintf(" with %s for %s/%s", bi.GoVersion, bi.Platform, bi.Arch)

	if bi.BuildUser != "unknown" {
		s += fmt.Sprintf(" by %s", bi.BuildUser)
	}

	return s
}
