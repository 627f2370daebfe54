package jail

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// A mount made by a [MountTracker].
type MountRecord struct {
	Name   string // Mount target, as passed to mount(2).
	Source string // Mount source.
	Type   string // Filesystem type.
}

// Records mounts as they are made and releases all of them once.
//
// A tracker is owned by a single session and is not safe for concurrent use.
type MountTracker struct {
	sys      System
	records  []MountRecord
	released bool
	logger   *slog.Logger
}

// Creates an empty tracker that mounts and unmounts through sys.
func NewMountTracker(sys System, logger *slog.Logger) *MountTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MountTracker{sys: sys, logger: logger}
}

// Performs the mount and records it for release.
//
// A failed mount is not recorded.
func (t *MountTracker) Mount(m specs.Mount) error {
	if t.released {
		return fmt.Errorf("%w: mount %s after release", ErrNamespaceSetup, m.Destination)
	}
	if err := t.sys.Mount(m); err != nil {
		return fmt.Errorf("%w: mount %s on %s: %w", ErrNamespaceSetup, m.Type, m.Destination, err)
	}

	t.records = append(t.records, MountRecord{Name: m.Destination, Source: m.Source, Type: m.Type})
	t.logger.Debug("mounted", "target", m.Destination, "type", m.Type)
	return nil
}

// Returns the recorded mounts in creation order.
func (t *MountTracker) Records() []MountRecord {
	return slices.Clone(t.records)
}

// Unmounts every recorded mount, in creation order.
//
// Only the first call does anything. Targets that are no longer mounted are
// skipped. Every record is attempted even if an earlier unmount fails; the
// failures are joined into the returned error.
func (t *MountTracker) Release() error {
	if t.released {
		return nil
	}
	t.released = true

	var errs []error
	for _, r := range t.records {
		mounted, err := t.sys.Mounted(r.Name)
		if err == nil && !mounted {
			t.logger.Debug("already unmounted", "target", r.Name)
			continue
		}
		if err := t.sys.Unmount(r.Name); err != nil {
			errs = append(errs, fmt.Errorf("unmount %s: %w", r.Name, err))
			continue
		}
		t.logger.Debug("unmounted", "target", r.Name)
	}
	return errors.Join(errs...)
}
