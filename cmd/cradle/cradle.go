package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"

	"github.com/cruciblehq/cradle/internal"
	"github.com/cruciblehq/cradle/internal/cli"
)

// The entry point for cradle.
//
// Initializes logging and executes the root command. A jailed process's exit
// code becomes cradle's exit code; any other error is logged and exits with
// status 1.
func main() {
	slog.SetDefault(logger())

	slog.Debug("build", "version", internal.VersionString())

	slog.Debug("cradle is running",
		"pid", os.Getpid(),
		"cwd", cwd(),
		"args", os.Args,
	)

	if err := cli.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// Logs err when it carries a diagnostic and returns the exit code for it.
func exitCode(err error) int {
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			slog.Error(exitErr.Err.Error())
		}
		return exitErr.Code
	}
	slog.Error(err.Error())
	return 1
}

// Creates a logger seeded from build-time linker flags.
//
// The logger is reconfigured after flag parsing via cli.Execute.
func logger() *slog.Logger {
	handler := log.NewWithOptions(os.Stderr, log.Options{
		Level:  logLevel(),
		Prefix: internal.Name,
	})
	return slog.New(handler)
}

// Returns the log level derived from build-time linker flags.
func logLevel() log.Level {
	if internal.IsDebug() {
		return log.DebugLevel
	}
	if internal.IsQuiet() {
		return log.WarnLevel
	}
	return log.InfoLevel
}

// Returns the current working directory or "(unknown)".
func cwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "(unknown)"
	}
	return cwd
}
