package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/cruciblehq/cradle/internal"
	"github.com/cruciblehq/cradle/internal/jail"
	"github.com/cruciblehq/cradle/internal/paths"
	"github.com/cruciblehq/cradle/internal/registry"
)

// Represents the root command for cradle.
type Root struct {
	Quiet    bool          `short:"q" help:"Suppress informational output."`
	Verbose  bool          `short:"v" help:"Enable verbose output."`
	Debug    bool          `short:"d" help:"Enable debug output."`
	RootFS   string        `name:"rootfs" type:"path" env:"CRADLE_ROOTFS" default:"${rootfs}" help:"Directory images are extracted into and run from." placeholder:"PATH"`
	Registry string        `env:"CRADLE_REGISTRY" default:"${registry}" help:"Registry API endpoint." placeholder:"URL"`
	AuthURL  string        `name:"auth-url" env:"CRADLE_AUTH_URL" default:"${auth_url}" help:"Token endpoint." placeholder:"URL"`
	Service  string        `default:"${service}" help:"Service name sent to the token endpoint."`
	Platform string        `short:"p" env:"CRADLE_PLATFORM" default:"${platform}" help:"Platform selected from multi-platform images." placeholder:"OS/ARCH[/VARIANT]"`
	Timeout  time.Duration `default:"30s" help:"Bound on connecting and receiving response headers."`
	Retries  int           `default:"3" help:"Retries for transient registry failures."`
	Hostname string        `default:"${hostname}" help:"Hostname inside the jail."`

	Pull    PullCmd    `cmd:"" help:"Pull an image into the root filesystem."`
	Run     RunCmd     `cmd:"" help:"Pull an image and run a command inside it."`
	Version VersionCmd `cmd:"" help:"Show version information."`
	Init    InitCmd    `cmd:"" hidden:"" help:"Set up the jail and run the target process."`
}

// Holds the parsed command line.
var RootCmd Root

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	parser, err := newParser(&RootCmd, kong.BindTo(ctx, (*context.Context)(nil)))
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	configureLogger(&RootCmd)

	return kongCtx.Run()
}

// Builds the command-line parser for root.
func newParser(root *Root, options ...kong.Option) (*kong.Kong, error) {
	base := []kong.Option{
		kong.Name(internal.Name),
		kong.Description("A minimal container launcher.\n\nPulls images from a registry and runs them in a chroot with fresh UTS and PID namespaces."),
		kong.UsageOnError(),
		kong.Vars{
			"version":  internal.VersionString(),
			"rootfs":   paths.RootFS(),
			"registry": registry.DefaultRegistry,
			"auth_url": registry.DefaultAuthURL,
			"service":  registry.DefaultService,
			"platform": registry.DefaultPlatform,
			"hostname": internal.DefaultHostname,
		},
		kong.Bind(root),
	}
	return kong.New(root, append(base, options...)...)
}

// Returns the registry client configuration selected by the flags.
func (r *Root) registryConfig() registry.Config {
	return registry.Config{
		Registry: r.Registry,
		AuthURL:  r.AuthURL,
		Service:  r.Service,
		Platform: r.Platform,
		Timeout:  r.Timeout,
		RetryMax: r.Retries,
		Logger:   slog.Default(),
	}
}

// Returns the arguments that start the init process, carrying the output
// flags across the re-exec.
func (r *Root) initArgs() []string {
	args := []string{jail.InitCommand}
	if r.Debug {
		args = append(args, "--debug")
	}
	if r.Quiet {
		args = append(args, "--quiet")
	}
	if r.Verbose {
		args = append(args, "--verbose")
	}
	return args
}

// Configures the global logger based on CLI flags.
//
// Flags only ever enable a mode that linker flags left disabled. The
// resulting modes are stored so the rest of the process sees them.
func configureLogger(root *Root) {
	internal.SetDebug(root.Debug || internal.IsDebug())
	internal.SetQuiet(root.Quiet || internal.IsQuiet())
	internal.SetVerbose(root.Verbose || internal.IsVerbose())

	handler, ok := slog.Default().Handler().(*log.Logger)
	if !ok {
		return // Not a charmbracelet logger, nothing to configure
	}

	debug := internal.IsDebug()
	verbose := internal.IsVerbose()

	if debug {
		handler.SetLevel(log.DebugLevel)
	} else if internal.IsQuiet() {
		handler.SetLevel(log.WarnLevel)
	} else {
		handler.SetLevel(log.InfoLevel)
	}

	handler.SetReportTimestamp(verbose)
	handler.SetReportCaller(debug && verbose)
}
