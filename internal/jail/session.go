package jail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Exit code reported when the target's status cannot be represented as a
// normal exit, such as termination by a signal or a failure before spawn.
const ExitFailure = -1

// Mount description for the jail's /proc.
var procMount = specs.Mount{
	Destination: "/proc",
	Type:        "proc",
	Source:      "proc",
}

// Standard streams handed to the target process.
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Parameters for establishing a jail.
type SessionConfig struct {
	RootFS   string       // Directory that becomes the new root.
	Hostname string       // Hostname inside the UTS namespace.
	Logger   *slog.Logger // Nil uses slog.Default().
}

// An isolation session running inside freshly cloned namespaces.
//
// A session establishes the jail, resolves and runs one target process, and
// releases everything it mounted when closed. Callers must always call
// [Session.Close], whatever happened before.
type Session struct {
	sys    System
	cfg    SessionConfig
	mounts *MountTracker
	state  State
	plan   *LaunchPlan
	cmd    *exec.Cmd
	logger *slog.Logger
}

// Establishes the jail from inside the new namespaces.
//
// The root is changed to cfg.RootFS, the working directory to the new root,
// the hostname is set and proc is mounted on /proc. If any step fails the
// session is closed before the error is returned.
func Open(sys System, cfg SessionConfig) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		sys:    sys,
		cfg:    cfg,
		mounts: NewMountTracker(sys, logger),
		state:  StateCreated,
		logger: logger,
	}

	if err := s.open(); err != nil {
		if cerr := s.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, err
	}
	return s, nil
}

func (s *Session) open() error {
	if err := s.advance(StateCloned); err != nil {
		return err
	}

	s.logger.Debug("setting up jail", "rootfs", s.cfg.RootFS, "hostname", s.cfg.Hostname)

	if err := s.sys.Chroot(s.cfg.RootFS); err != nil {
		return fmt.Errorf("%w: chroot %s: %w", ErrNamespaceSetup, s.cfg.RootFS, err)
	}
	if err := s.sys.Chdir("/"); err != nil {
		return fmt.Errorf("%w: chdir /: %w", ErrNamespaceSetup, err)
	}
	if err := s.sys.Sethostname(s.cfg.Hostname); err != nil {
		return fmt.Errorf("%w: sethostname %q: %w", ErrNamespaceSetup, s.cfg.Hostname, err)
	}
	if err := s.advance(StateJailEstablished); err != nil {
		return err
	}

	if err := s.mounts.Mount(procMount); err != nil {
		return err
	}
	return s.advance(StateProcMounted)
}

// Returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Returns the mounts made by the session, in creation order.
func (s *Session) Mounts() []MountRecord {
	return s.mounts.Records()
}

// Resolves the launch plan for the target process.
func (s *Session) Resolve(cfg ocispec.ImageConfig, overrides []string) (*LaunchPlan, error) {
	if s.state != StateProcMounted {
		return nil, fmt.Errorf("%w: resolve in state %s", ErrInvalidTransition, s.state)
	}

	plan, err := ResolvePlan(cfg, overrides)
	if err != nil {
		return nil, err
	}
	s.plan = plan

	s.logger.Debug("command resolved", "argv", plan.Argv, "dir", plan.Dir)
	return plan, s.advance(StateCommandResolved)
}

// Starts the target process described by the resolved plan.
func (s *Session) Spawn(ctx context.Context, stdio Stdio) error {
	if s.state != StateCommandResolved {
		return fmt.Errorf("%w: spawn in state %s", ErrInvalidTransition, s.state)
	}

	executable, err := s.plan.Executable()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, executable)
	cmd.Args = s.plan.Argv
	cmd.Env = s.plan.Environ()
	cmd.Dir = s.plan.Dir
	cmd.Stdin = stdio.Stdin
	cmd.Stdout = stdio.Stdout
	cmd.Stderr = stdio.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrProcessSpawn, s.plan.Argv[0], err)
	}
	s.cmd = cmd

	s.logger.Debug("process started", "pid", cmd.Process.Pid, "path", executable)
	return s.advance(StateSpawned)
}

// Waits for the target process and returns its exit code.
//
// A process terminated by a signal yields [ExitFailure] and [ErrWait].
func (s *Session) Wait() (int, error) {
	if s.state != StateSpawned {
		return ExitFailure, fmt.Errorf("%w: wait in state %s", ErrInvalidTransition, s.state)
	}

	code, err := exitStatus(s.cmd.Wait())
	if aerr := s.advance(StateExited); aerr != nil {
		return ExitFailure, aerr
	}

	s.logger.Debug("process exited", "code", code)
	return code, err
}

// Releases every mount the session made and ends the session.
//
// Close may be called in any state and more than once; only the first call
// releases mounts.
func (s *Session) Close() error {
	if s.state == StateDone {
		return nil
	}

	err := s.mounts.Release()
	if err != nil {
		err = fmt.Errorf("%w: release mounts: %w", ErrNamespaceSetup, err)
	}

	if s.state == StateExited {
		s.state = StateUnmounted
	}
	s.state = StateDone
	return err
}

func (s *Session) advance(next State) error {
	state, err := s.state.advance(next)
	if err != nil {
		return err
	}
	s.state = state
	return nil
}

// Maps the result of waiting on a process to an exit code.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		return ExitFailure, fmt.Errorf("%w: %s", ErrWait, exitErr)
	}
	return ExitFailure, fmt.Errorf("%w: %w", ErrWait, err)
}
