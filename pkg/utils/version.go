// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

import (
	"fmt"
	"runtime"
)

// Set at link time with -ldflags "-X".
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// BuildInfo describes the running kbase binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Sha       string `json:"sha"`
	Buildtime string `json:"built_at"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Build returns the link-time build metadata plus the Go toolchain and target.
func Build() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Sha:       Sha,
		Buildtime: Buildtime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Short is the version with an abbreviated sha, e.g. "v0.3.1 (4f2c9ab)".
func (b BuildInfo) Short() string {
	sha := b.Sha
	if len(sha) > 7 {
		sha = sha[:7]
	}
	return fmt.Sprintf("%s (%s)", b.Version, sha)
}

// UserAgent identifies kbase to servers and clients.
func (b BuildInfo) UserAgent() string {
	return "kbase/" + b.Version
}
