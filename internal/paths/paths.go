package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	appName = "cradle"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644

	// Suffix appended to a root directory to name its lock file.
	lockSuffix = ".lock"
)

// Path to the data directory holding image roots.
//
//	Linux:   $XDG_DATA_HOME/cradle or ~/.local/share/cradle
//	macOS:   ~/Library/Application Support/cradle
func Data() string {
	return filepath.Join(xdg.DataHome, appName)
}

// Default directory an image is extracted into and later used as the
// process root.
//
//	Linux:   $XDG_DATA_HOME/cradle/rootfs
func RootFS() string {
	return filepath.Join(Data(), "rootfs")
}

// Path of the lock file guarding the given root directory.
//
// The lock sits next to the directory rather than inside it, so it never
// becomes visible to the jailed process.
func LockFile(root string) string {
	return filepath.Clean(root) + lockSuffix
}
