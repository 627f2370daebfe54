package cli

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/cruciblehq/cradle/internal"
	"github.com/cruciblehq/cradle/internal/jail"
	"github.com/cruciblehq/cradle/internal/registry"
)

// Parses args into a fresh Root without exiting on errors.
func parse(t *testing.T, args ...string) (*Root, *kong.Context, error) {
	t.Helper()

	var root Root
	parser, err := newParser(&root,
		kong.Exit(func(int) {}),
		kong.Writers(io.Discard, io.Discard),
	)
	if err != nil {
		t.Fatalf("newParser: %v", err)
	}
	ctx, err := parser.Parse(args)
	return &root, ctx, err
}

func TestParseRun(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantImage   string
		wantCommand []string
	}{
		{"image only", []string{"run", "alpine:3.18"}, "alpine:3.18", nil},
		{"with command", []string{"run", "alpine", "ls", "-la", "/"}, "alpine", []string{"ls", "-la", "/"}},
		{"command flags pass through", []string{"run", "alpine", "sh", "-c", "exit 3"}, "alpine", []string{"sh", "-c", "exit 3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, ctx, err := parse(t, tt.args...)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !strings.HasPrefix(ctx.Command(), "run") {
				t.Fatalf("command = %q, want run", ctx.Command())
			}
			if root.Run.Image != tt.wantImage {
				t.Fatalf("image = %q, want %q", root.Run.Image, tt.wantImage)
			}
			if diff := cmp.Diff(tt.wantCommand, root.Run.Command); diff != "" {
				t.Fatalf("command mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no subcommand", nil},
		{"unknown subcommand", []string{"launch", "alpine"}},
		{"pull without image", []string{"pull"}},
		{"run without image", []string{"run"}},
		{"bad duration", []string{"--timeout", "soon", "pull", "alpine"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := parse(t, tt.args...); err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.args)
			}
		})
	}
}

func TestParseDefaults(t *testing.T) {
	for _, env := range []string{"CRADLE_ROOTFS", "CRADLE_PLATFORM", "CRADLE_REGISTRY", "CRADLE_AUTH_URL"} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}

	root, _, err := parse(t, "pull", "alpine")
	if err != nil {
		t.Fatal(err)
	}

	want := registry.Config{
		Registry: registry.DefaultRegistry,
		AuthURL:  registry.DefaultAuthURL,
		Service:  registry.DefaultService,
		Platform: registry.DefaultPlatform,
		Timeout:  30 * time.Second,
		RetryMax: 3,
	}
	got := root.registryConfig()
	got.Logger = nil
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("registry config mismatch (-want +got):\n%s", diff)
	}

	if !filepath.IsAbs(root.RootFS) || filepath.Base(root.RootFS) != "rootfs" {
		t.Fatalf("rootfs = %q, want absolute default ending in rootfs", root.RootFS)
	}
	if root.Hostname != "cradle" {
		t.Fatalf("hostname = %q, want cradle", root.Hostname)
	}
}

func TestParseOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CRADLE_ROOTFS", filepath.Join(dir, "from-env"))
	t.Setenv("CRADLE_PLATFORM", "linux/arm64")

	root, _, err := parse(t, "-d", "--retries", "0", "--timeout", "5s", "--hostname", "box", "pull", "alpine")
	if err != nil {
		t.Fatal(err)
	}

	if root.RootFS != filepath.Join(dir, "from-env") {
		t.Fatalf("rootfs = %q, want value from environment", root.RootFS)
	}
	if root.Platform != "linux/arm64" {
		t.Fatalf("platform = %q, want linux/arm64", root.Platform)
	}
	if root.Retries != 0 || root.Timeout != 5*time.Second || root.Hostname != "box" || !root.Debug {
		t.Fatalf("flags not applied: %+v", root)
	}

	root, _, err = parse(t, "--rootfs", filepath.Join(dir, "flag"), "-p", "linux/amd64", "pull", "alpine")
	if err != nil {
		t.Fatal(err)
	}
	if root.RootFS != filepath.Join(dir, "flag") || root.Platform != "linux/amd64" {
		t.Fatalf("flags did not override environment: rootfs=%q platform=%q", root.RootFS, root.Platform)
	}
}

func TestInitArgs(t *testing.T) {
	tests := []struct {
		name string
		root Root
		want []string
	}{
		{"plain", Root{}, []string{jail.InitCommand}},
		{"debug", Root{Debug: true}, []string{jail.InitCommand, "--debug"}},
		{"quiet verbose", Root{Quiet: true, Verbose: true}, []string{jail.InitCommand, "--quiet", "--verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.root.initArgs()); diff != "" {
				t.Fatalf("initArgs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInitArgsParse(t *testing.T) {
	root, ctx, err := parse(t, (&Root{Debug: true}).initArgs()...)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.HasPrefix(ctx.Command(), "init") || !root.Debug {
		t.Fatalf("command = %q debug = %v, want init with debug", ctx.Command(), root.Debug)
	}
}

func TestLockRootFS(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data", "rootfs")

	unlock, err := lockRootFS(root)
	if err != nil {
		t.Fatalf("lockRootFS: %v", err)
	}

	if _, err := lockRootFS(root); !errors.Is(err, ErrRootFSBusy) {
		t.Fatalf("second lockRootFS error = %v, want ErrRootFSBusy", err)
	}

	unlock()

	again, err := lockRootFS(root)
	if err != nil {
		t.Fatalf("lockRootFS after unlock: %v", err)
	}
	again()
}

func TestExitError(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  *ExitError
		want string
	}{
		{"code only", &ExitError{Code: 3}, "exit status 3"},
		{"with cause", &ExitError{Code: -1, Err: cause}, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Fatalf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	var exitErr *ExitError
	wrapped := error(&ExitError{Code: -1, Err: cause})
	if !errors.As(wrapped, &exitErr) || !errors.Is(wrapped, cause) {
		t.Fatalf("ExitError does not unwrap to its cause")
	}
}

func TestConfigureLogger(t *testing.T) {
	tests := []struct {
		name        string
		root        Root
		wantLevel   log.Level
		wantDebug   bool
		wantQuiet   bool
		wantVerbose bool
	}{
		{"defaults", Root{}, log.InfoLevel, false, false, false},
		{"quiet", Root{Quiet: true}, log.WarnLevel, false, true, false},
		{"debug wins over quiet", Root{Debug: true, Quiet: true}, log.DebugLevel, true, true, false},
		{"verbose", Root{Verbose: true}, log.InfoLevel, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := slog.Default()
			quiet, debug, verbose := internal.IsQuiet(), internal.IsDebug(), internal.IsVerbose()
			t.Cleanup(func() {
				slog.SetDefault(prev)
				internal.SetQuiet(quiet)
				internal.SetDebug(debug)
				internal.SetVerbose(verbose)
			})
			internal.SetQuiet(false)
			internal.SetDebug(false)
			internal.SetVerbose(false)

			handler := log.New(io.Discard)
			slog.SetDefault(slog.New(handler))

			configureLogger(&tt.root)

			if got := handler.GetLevel(); got != tt.wantLevel {
				t.Fatalf("level = %v, want %v", got, tt.wantLevel)
			}
			if internal.IsDebug() != tt.wantDebug || internal.IsQuiet() != tt.wantQuiet || internal.IsVerbose() != tt.wantVerbose {
				t.Fatalf("modes = debug %v quiet %v verbose %v, want %v %v %v",
					internal.IsDebug(), internal.IsQuiet(), internal.IsVerbose(),
					tt.wantDebug, tt.wantQuiet, tt.wantVerbose)
			}
		})
	}
}
