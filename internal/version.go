package internal

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (

	// Program name, used for logging groups, paths and the CLI.
	Name = "cradle"

	// Shown for any build variable that was not injected.
	undefined = "(undefined)"

	// Shown instead of a version string for local builds.
	localBuild = "(local)"

	// Branch whose builds carry no stage suffix.
	mainBranch = "main"
)

// Injected with -ldflags "-X github.com/cruciblehq/cradle/internal.<name>=...".
var (
	version   = ""
	stage     = ""
	gitCommit = ""

	rawQuiet   = "false"
	rawDebug   = "false"
	rawVerbose = "false"
)

// Returns the release version without a leading "v", or "(undefined)".
func Version() string {
	v := strings.ToLower(strings.TrimSpace(version))
	if v == "" {
		return undefined
	}
	return strings.TrimPrefix(v, "v")
}

// Returns the lower-cased build stage (git branch), or "(undefined)".
func Stage() string {
	return orUndefined(strings.ToLower(strings.TrimSpace(stage)))
}

// Returns the git commit the binary was built from.
//
// Pipeline builds inject the commit. Local builds fall back to the VCS
// revision recorded by the Go toolchain, if any.
func GitCommit() string {
	if c := strings.TrimSpace(gitCommit); c != "" {
		return c
	}
	return orUndefined(vcsRevision())
}

// Returns the build architecture.
func Arch() string {
	return runtime.GOARCH
}

// Reports whether any of version, stage or commit was left unset by ldflags.
func IsLocal() bool {
	return strings.TrimSpace(version) == "" ||
		strings.TrimSpace(gitCommit) == "" ||
		strings.TrimSpace(stage) == ""
}

// Returns "<version>[+<stage>] <commit> [<arch>]", or "(local)" for local builds.
//
// The stage suffix is omitted for builds of the main branch.
func VersionString() string {
	if IsLocal() {
		return localBuild
	}

	suffix := ""
	if s := Stage(); s != mainBranch {
		suffix = "+" + s
	}

	return fmt.Sprintf("%s%s %s [%s]", Version(), suffix, GitCommit(), Arch())
}

func orUndefined(s string) string {
	if s == "" {
		return undefined
	}
	return s
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			return setting.Value
		}
	}
	return ""
}
