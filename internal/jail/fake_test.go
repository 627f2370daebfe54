package jail

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

var errInjected = errors.New("injected failure")

// Records system calls instead of making them.
type fakeSystem struct {
	mu       sync.Mutex
	calls    []string
	mounted  map[string]bool
	unmounts map[string]int
	fail     map[string]bool // call names that fail
}

var _ System = (*fakeSystem)(nil)

func newFakeSystem(failing ...string) *fakeSystem {
	f := &fakeSystem{
		mounted:  make(map[string]bool),
		unmounts: make(map[string]int),
		fail:     make(map[string]bool),
	}
	for _, name := range failing {
		f.fail[name] = true
	}
	return f
}

func (f *fakeSystem) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call)
	name, _, _ := strings.Cut(call, " ")
	if f.fail[name] {
		return fmt.Errorf("%s: %w", call, errInjected)
	}
	return nil
}

func (f *fakeSystem) Chroot(path string) error      { return f.record("chroot " + path) }
func (f *fakeSystem) Chdir(path string) error       { return f.record("chdir " + path) }
func (f *fakeSystem) Sethostname(name string) error { return f.record("sethostname " + name) }

func (f *fakeSystem) Mount(m specs.Mount) error {
	if err := f.record("mount " + m.Destination); err != nil {
		return err
	}
	f.mu.Lock()
	f.mounted[m.Destination] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSystem) Unmount(target string) error {
	if err := f.record("unmount " + target); err != nil {
		return err
	}
	f.mu.Lock()
	f.mounted[target] = false
	f.unmounts[target]++
	f.mu.Unlock()
	return nil
}

func (f *fakeSystem) Mounted(target string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mounted[target], nil
}

func (f *fakeSystem) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSystem) Unmounts(target string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unmounts[target]
}
