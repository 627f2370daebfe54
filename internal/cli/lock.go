package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/cruciblehq/cradle/internal/paths"
)

// Takes the exclusive lock guarding root and returns a function releasing it.
//
// Fails with [ErrRootFSBusy] without waiting if another process holds the
// lock.
func lockRootFS(root string) (func(), error) {
	path := paths.LockFile(root)
	if err := os.MkdirAll(filepath.Dir(path), paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lock := flock.New(path, flock.SetPermissions(paths.DefaultFileMode))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrRootFSBusy, path)
	}

	slog.Debug("acquired root filesystem lock", "path", path)

	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("failed to release lock", "path", path, "error", err)
		}
	}, nil
}
