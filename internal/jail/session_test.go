package jail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

func shellConfig(script string) ocispec.ImageConfig {
	return ocispec.ImageConfig{
		Env: []string{"PATH=" + DefaultPath},
		Cmd: []string{"/bin/sh", "-c", script},
	}
}

func TestSessionOpenOrder(t *testing.T) {
	sys := newFakeSystem()
	s, err := Open(sys, SessionConfig{RootFS: "/var/lib/cradle/rootfs", Hostname: "cradle"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.State() != StateProcMounted {
		t.Fatalf("state = %s, want proc-mounted", s.State())
	}

	want := []string{
		"chroot /var/lib/cradle/rootfs",
		"chdir /",
		"sethostname cradle",
		"mount /proc",
	}
	if diff := cmp.Diff(want, sys.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := sys.Unmounts("/proc"); n != 1 {
		t.Fatalf("/proc unmounted %d times, want 1", n)
	}
}

func TestSessionOpenFailure(t *testing.T) {
	tests := []struct {
		fail      string
		wantCalls []string
	}{
		{"chroot", []string{"chroot /rootfs"}},
		{"chdir", []string{"chroot /rootfs", "chdir /"}},
		{"sethostname", []string{"chroot /rootfs", "chdir /", "sethostname box"}},
		{"mount", []string{"chroot /rootfs", "chdir /", "sethostname box", "mount /proc"}},
	}

	for _, tt := range tests {
		t.Run(tt.fail, func(t *testing.T) {
			sys := newFakeSystem(tt.fail)
			_, err := Open(sys, SessionConfig{RootFS: "/rootfs", Hostname: "box"})
			if !errors.Is(err, ErrNamespaceSetup) || !errors.Is(err, errInjected) {
				t.Fatalf("Open error = %v, want ErrNamespaceSetup wrapping the cause", err)
			}
			if diff := cmp.Diff(tt.wantCalls, sys.Calls()); diff != "" {
				t.Fatalf("calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSessionRun(t *testing.T) {
	sys := newFakeSystem()
	s, err := Open(sys, SessionConfig{RootFS: "/", Hostname: "cradle"})
	if err != nil {
		t.Fatal(err)
	}

	plan, err := s.Resolve(shellConfig(`printf "%s" "$GREETING"; exit 7`), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	plan.Env["GREETING"] = "hello"

	var stdout bytes.Buffer
	if err := s.Spawn(context.Background(), Stdio{Stdout: &stdout}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	code, err := s.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 7 {
		t.Fatalf("exit code = %d, want 7", code)
	}
	if stdout.String() != "hello" {
		t.Fatalf("stdout = %q, want hello", stdout.String())
	}
	if s.State() != StateExited {
		t.Fatalf("state = %s, want exited", s.State())
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if s.State() != StateDone {
		t.Fatalf("state = %s, want done", s.State())
	}
	if n := sys.Unmounts("/proc"); n != 1 {
		t.Fatalf("/proc unmounted %d times, want 1", n)
	}
}

func TestSessionSignaled(t *testing.T) {
	s, err := Open(newFakeSystem(), SessionConfig{RootFS: "/", Hostname: "cradle"})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.Resolve(shellConfig("kill -9 $$"), nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Spawn(context.Background(), Stdio{}); err != nil {
		t.Fatal(err)
	}

	code, err := s.Wait()
	if code != ExitFailure {
		t.Fatalf("exit code = %d, want %d", code, ExitFailure)
	}
	if !errors.Is(err, ErrWait) {
		t.Fatalf("Wait error = %v, want ErrWait", err)
	}
}

func TestSessionOutOfOrder(t *testing.T) {
	s, err := Open(newFakeSystem(), SessionConfig{RootFS: "/", Hostname: "cradle"})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Spawn(context.Background(), Stdio{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Spawn before Resolve error = %v, want ErrInvalidTransition", err)
	}
	if _, err := s.Wait(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Wait before Spawn error = %v, want ErrInvalidTransition", err)
	}
	if _, err := s.Resolve(shellConfig("true"), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Resolve(shellConfig("true"), nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Resolve error = %v, want ErrInvalidTransition", err)
	}
}

func runInitForTest(t *testing.T, sys System, p payload) (int, result) {
	t.Helper()

	var in, out bytes.Buffer
	if err := json.NewEncoder(&in).Encode(p); err != nil {
		t.Fatal(err)
	}

	code := Init(context.Background(), sys, &in, &out, Stdio{})

	res, ok := readResult(&out)
	if !ok {
		t.Fatalf("Init reported nothing")
	}
	return code, res
}

func TestInitExitCode(t *testing.T) {
	sys := newFakeSystem()
	code, res := runInitForTest(t, sys, payload{
		RootFS:   "/",
		Hostname: "cradle",
		Image:    shellConfig("exit 7"),
	})

	if code != 7 || res.Code != 7 {
		t.Fatalf("code = %d, reported %d, want 7", code, res.Code)
	}
	if err := res.err(); err != nil {
		t.Fatalf("reported error = %v", err)
	}
	if n := sys.Unmounts("/proc"); n != 1 {
		t.Fatalf("/proc unmounted %d times, want 1", n)
	}
}

func TestInitOverrides(t *testing.T) {
	code, _ := runInitForTest(t, newFakeSystem(), payload{
		RootFS: "/",
		Args:   []string{"/bin/sh", "-c", "exit 4"},
		Image:  shellConfig("exit 9"),
	})
	if code != 4 {
		t.Fatalf("code = %d, want 4", code)
	}
}

func TestInitFailures(t *testing.T) {
	tests := []struct {
		name        string
		sys         *fakeSystem
		image       ocispec.ImageConfig
		want        error
		wantUnmount int
	}{
		{"no command", newFakeSystem(), ocispec.ImageConfig{}, ErrCommandResolution, 1},
		{"malformed env", newFakeSystem(), ocispec.ImageConfig{Cmd: []string{"/bin/sh"}, Env: []string{"NOPE"}}, ErrCommandResolution, 1},
		{"spawn", newFakeSystem(), ocispec.ImageConfig{Cmd: []string{"/nonexistent/program"}}, ErrProcessSpawn, 1},
		{"not found in path", newFakeSystem(), ocispec.ImageConfig{Cmd: []string{"no-such-program-anywhere"}}, ErrProcessSpawn, 1},
		{"chroot", newFakeSystem("chroot"), shellConfig("true"), ErrNamespaceSetup, 0},
		{"signal", newFakeSystem(), shellConfig("kill -9 $$"), ErrWait, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, res := runInitForTest(t, tt.sys, payload{RootFS: "/", Image: tt.image})

			if code != ExitFailure || res.Code != ExitFailure {
				t.Fatalf("code = %d, reported %d, want %d", code, res.Code, ExitFailure)
			}
			if err := res.err(); !errors.Is(err, tt.want) {
				t.Fatalf("reported error = %v, want %v", err, tt.want)
			}
			if n := tt.sys.Unmounts("/proc"); n != tt.wantUnmount {
				t.Fatalf("/proc unmounted %d times, want %d", n, tt.wantUnmount)
			}
		})
	}
}

func TestInitBadPayload(t *testing.T) {
	var out bytes.Buffer
	sys := newFakeSystem()

	code := Init(context.Background(), sys, strings.NewReader("{not json"), &out, Stdio{})
	if code != ExitFailure {
		t.Fatalf("code = %d, want %d", code, ExitFailure)
	}
	res, ok := readResult(&out)
	if !ok || !errors.Is(res.err(), ErrNamespaceSetup) {
		t.Fatalf("reported %+v, want namespace setup failure", res)
	}
	if calls := sys.Calls(); len(calls) != 0 {
		t.Fatalf("system calls made on bad payload: %v", calls)
	}
}

func TestReadResultEmpty(t *testing.T) {
	if _, ok := readResult(strings.NewReader("")); ok {
		t.Fatal("readResult reported a result for empty input")
	}
}
