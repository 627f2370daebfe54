package jail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Descriptor numbers of the pipes inherited by the init process. They follow
// stdin, stdout and stderr in the order of exec.Cmd.ExtraFiles.
const (
	payloadFD = 3
	resultFD  = 4
)

// Instructions sent from the launcher to the init process.
type payload struct {
	RootFS   string              `json:"rootfs"`
	Hostname string              `json:"hostname"`
	Args     []string            `json:"args,omitempty"`
	Image    ocispec.ImageConfig `json:"image"`
}

// Outcome reported by the init process.
type result struct {
	Code  int    `json:"code"`
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error,omitempty"`
}

// Error classes that survive the trip from the init process to the launcher.
var resultKinds = []struct {
	name string
	err  error
}{
	{"namespace", ErrNamespaceSetup},
	{"command", ErrCommandResolution},
	{"spawn", ErrProcessSpawn},
	{"wait", ErrWait},
	{"state", ErrInvalidTransition},
}

// Error rebuilt from a result, matching its original class.
type initError struct {
	class error
	msg   string
}

func (e *initError) Error() string { return e.msg }
func (e *initError) Unwrap() error { return e.class }

// Runs the jail from inside the cloned namespaces and returns the exit code
// to report.
//
// The payload is read from in, the jail is established through sys, the
// target is run with stdio and waited on, and the session is closed. The
// outcome is written to out, when non-nil, so the launcher can recover the
// exact code and error class. Any failure before the target exits yields
// [ExitFailure].
func Init(ctx context.Context, sys System, in io.Reader, out io.Writer, stdio Stdio) int {
	code, err := runInit(ctx, sys, in, stdio)
	if err != nil {
		slog.Error("jail init failed", "error", err)
	}
	if out != nil {
		if werr := writeResult(out, code, err); werr != nil {
			slog.Warn("failed to report init result", "error", werr)
		}
	}
	return code
}

func runInit(ctx context.Context, sys System, in io.Reader, stdio Stdio) (int, error) {
	var p payload
	if err := json.NewDecoder(in).Decode(&p); err != nil {
		return ExitFailure, fmt.Errorf("%w: read launch payload: %w", ErrNamespaceSetup, err)
	}

	s, err := Open(sys, SessionConfig{RootFS: p.RootFS, Hostname: p.Hostname})
	if err != nil {
		return ExitFailure, err
	}
	defer func() {
		if err := s.Close(); err != nil {
			slog.Warn("failed to release jail mounts", "error", err)
		}
	}()

	if _, err := s.Resolve(p.Image, p.Args); err != nil {
		return ExitFailure, err
	}
	if err := s.Spawn(ctx, stdio); err != nil {
		return ExitFailure, err
	}
	return s.Wait()
}

func writeResult(w io.Writer, code int, err error) error {
	r := result{Code: code}
	if err != nil {
		r.Error = err.Error()
		for _, k := range resultKinds {
			if errors.Is(err, k.err) {
				r.Kind = k.name
				break
			}
		}
	}
	return json.NewEncoder(w).Encode(r)
}

// Decodes a result written by the init process.
//
// ok is false when nothing was reported, which happens when the init
// process dies before it gets that far.
func readResult(r io.Reader) (res result, ok bool) {
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return result{}, false
	}
	return res, true
}

// Rebuilds the reported error with its original class.
func (r result) err() error {
	if r.Error == "" {
		return nil
	}

	class := ErrWait
	for _, k := range resultKinds {
		if k.name == r.Kind {
			class = k.err
			break
		}
	}
	return &initError{class: class, msg: r.Error}
}
