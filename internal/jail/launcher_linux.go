package jail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"
)

const (

	// Executable re-run as the init process.
	DefaultSelf = "/proc/self/exe"

	// Argument that selects the init entry point in the re-run executable.
	InitCommand = "init"

	// Time init is given to close its session after a cancelled launch
	// before it is killed.
	DefaultStopTimeout = 5 * time.Second
)

// Namespaces created for every launch unless configured otherwise. Mount,
// network, IPC and cgroup namespaces are shared with the host.
var DefaultNamespaces = []specs.LinuxNamespace{
	{Type: specs.UTSNamespace},
	{Type: specs.PIDNamespace},
}

var namespaceFlags = map[specs.LinuxNamespaceType]uintptr{
	specs.PIDNamespace:     unix.CLONE_NEWPID,
	specs.UTSNamespace:     unix.CLONE_NEWUTS,
	specs.MountNamespace:   unix.CLONE_NEWNS,
	specs.NetworkNamespace: unix.CLONE_NEWNET,
	specs.IPCNamespace:     unix.CLONE_NEWIPC,
	specs.UserNamespace:    unix.CLONE_NEWUSER,
	specs.CgroupNamespace:  unix.CLONE_NEWCGROUP,
}

// Launcher configuration.
type Config struct {
	RootFS      string                 // Extracted image root.
	Hostname    string                 // Hostname inside the jail.
	Namespaces  []specs.LinuxNamespace // Nil uses DefaultNamespaces. Empty creates none.
	Self        string                 // Executable to re-run. Empty uses DefaultSelf.
	InitArgs    []string               // Arguments selecting init. Nil uses [InitCommand].
	Env         []string               // Environment of the init process. Nil inherits ours.
	System      System                 // Releases mounts init left behind. Nil uses HostSystem.
	StopTimeout time.Duration          // Grace period after cancellation. Zero uses DefaultStopTimeout.
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
	Logger      *slog.Logger
}

// Starts jailed processes by re-running the current executable as an init
// process inside new namespaces.
type Launcher struct {
	cfg        Config
	cloneFlags uintptr
	logger     *slog.Logger
}

// Creates a launcher.
//
// Fails with [ErrNamespaceSetup] if a namespace type is unknown or asks to
// join an existing namespace by path.
func NewLauncher(cfg Config) (*Launcher, error) {
	if cfg.Namespaces == nil {
		cfg.Namespaces = DefaultNamespaces
	}
	if cfg.Self == "" {
		cfg.Self = DefaultSelf
	}
	if cfg.InitArgs == nil {
		cfg.InitArgs = []string{InitCommand}
	}
	if cfg.Env == nil {
		cfg.Env = os.Environ()
	}
	if cfg.System == nil {
		cfg.System = HostSystem{}
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}

	flags, err := cloneFlags(cfg.Namespaces)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Launcher{cfg: cfg, cloneFlags: flags, logger: logger}, nil
}

// Runs the image's command, or args when given, inside a new jail and
// returns its exit code.
//
// A target killed by a signal, and any failure to set up the jail, resolve
// the command or spawn it, yields [ExitFailure] together with the error.
//
// Cancelling ctx sends SIGTERM to init, which stops the target and releases
// its mounts. Init is killed if it has not exited after the stop timeout.
// The mount namespace is shared with the host, so when init dies without
// reporting, the launcher unmounts anything it left on the jail's /proc.
func (l *Launcher) Launch(ctx context.Context, image ocispec.ImageConfig, args []string) (int, error) {
	payloadR, payloadW, err := os.Pipe()
	if err != nil {
		return ExitFailure, fmt.Errorf("%w: %w", ErrProcessSpawn, err)
	}
	defer payloadW.Close()

	resultR, resultW, err := os.Pipe()
	if err != nil {
		payloadR.Close()
		return ExitFailure, fmt.Errorf("%w: %w", ErrProcessSpawn, err)
	}
	defer resultR.Close()

	cmd := exec.CommandContext(ctx, l.cfg.Self, l.cfg.InitArgs...)
	cmd.Env = l.cfg.Env
	cmd.Stdin = l.cfg.Stdin
	cmd.Stdout = l.cfg.Stdout
	cmd.Stderr = l.cfg.Stderr
	cmd.ExtraFiles = []*os.File{payloadR, resultW}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: l.cloneFlags,
		Pdeathsig:  syscall.SIGKILL,
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = l.cfg.StopTimeout

	err = cmd.Start()
	payloadR.Close()
	resultW.Close()
	if err != nil {
		return ExitFailure, fmt.Errorf("%w: start init: %w", ErrProcessSpawn, err)
	}

	l.logger.Debug("init started", "pid", cmd.Process.Pid, "namespaces", namespaceNames(l.cfg.Namespaces))

	werr := json.NewEncoder(payloadW).Encode(payload{
		RootFS:   l.cfg.RootFS,
		Hostname: l.cfg.Hostname,
		Args:     args,
		Image:    image,
	})
	payloadW.Close()
	if werr != nil {
		l.logger.Debug("failed to send launch payload", "error", werr)
	}

	res, reported := readResult(resultR)
	waitErr := cmd.Wait()

	if reported {
		return res.Code, res.err()
	}

	l.releaseLeftovers()

	code, err := exitStatus(waitErr)
	if err != nil {
		return ExitFailure, err
	}
	return ExitFailure, fmt.Errorf("%w: init exited with status %d without reporting", ErrWait, code)
}

// Unmounts the jail's /proc if init exited without releasing it.
func (l *Launcher) releaseLeftovers() {
	target := filepath.Join(l.cfg.RootFS, procMount.Destination)

	mounted, err := l.cfg.System.Mounted(target)
	if err != nil {
		l.logger.Debug("failed to check for leftover mount", "target", target, "error", err)
		return
	}
	if !mounted {
		return
	}

	if err := l.cfg.System.Unmount(target); err != nil {
		l.logger.Warn("failed to release leftover mount", "target", target, "error", err)
		return
	}
	l.logger.Debug("released leftover mount", "target", target)
}

// Returns the pipes a launcher hands to the init process.
//
// Both are marked close-on-exec so the target process does not inherit
// them.
func InitPipes() (in io.ReadCloser, out io.WriteCloser) {
	unix.CloseOnExec(payloadFD)
	unix.CloseOnExec(resultFD)
	return os.NewFile(payloadFD, "cradle-payload"), os.NewFile(resultFD, "cradle-result")
}

// Combines runtime-spec namespaces into clone(2) flags.
func cloneFlags(namespaces []specs.LinuxNamespace) (uintptr, error) {
	var flags uintptr
	for _, ns := range namespaces {
		f, ok := namespaceFlags[ns.Type]
		if !ok {
			return 0, fmt.Errorf("%w: unknown namespace type %q", ErrNamespaceSetup, ns.Type)
		}
		if ns.Path != "" {
			return 0, fmt.Errorf("%w: joining %s namespace %s is not supported", ErrNamespaceSetup, ns.Type, ns.Path)
		}
		flags |= f
	}
	return flags, nil
}

func namespaceNames(namespaces []specs.LinuxNamespace) []string {
	names := make([]string, 0, len(namespaces))
	for _, ns := range namespaces {
		names = append(names, string(ns.Type))
	}
	return names
}
