package jail

import (
	"strings"

	"github.com/moby/sys/mountinfo"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"
)

// Mount options that map to mount(2) flags. Anything else is passed to the
// filesystem as data.
var mountOptionFlags = map[string]uintptr{
	"ro":          unix.MS_RDONLY,
	"nosuid":      unix.MS_NOSUID,
	"nodev":       unix.MS_NODEV,
	"noexec":      unix.MS_NOEXEC,
	"relatime":    unix.MS_RELATIME,
	"noatime":     unix.MS_NOATIME,
	"strictatime": unix.MS_STRICTATIME,
}

// [System] backed by the running kernel.
type HostSystem struct{}

var _ System = HostSystem{}

func (HostSystem) Chroot(path string) error {
	return unix.Chroot(path)
}

func (HostSystem) Chdir(path string) error {
	return unix.Chdir(path)
}

func (HostSystem) Sethostname(name string) error {
	return unix.Sethostname([]byte(name))
}

func (HostSystem) Mount(m specs.Mount) error {
	flags, data := parseMountOptions(m.Options)
	return unix.Mount(m.Source, m.Destination, m.Type, flags, data)
}

func (HostSystem) Unmount(target string) error {
	return unix.Unmount(target, 0)
}

func (HostSystem) Mounted(target string) (bool, error) {
	return mountinfo.Mounted(target)
}

// Splits runtime-spec mount options into mount(2) flags and filesystem data.
func parseMountOptions(options []string) (uintptr, string) {
	var flags uintptr
	var data []string
	for _, opt := range options {
		if f, ok := mountOptionFlags[opt]; ok {
			flags |= f
			continue
		}
		data = append(data, opt)
	}
	return flags, strings.Join(data, ",")
}
