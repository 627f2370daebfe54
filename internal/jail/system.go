package jail

import specs "github.com/opencontainers/runtime-spec/specs-go"

// Privileged host operations a session performs.
//
// [HostSystem] issues the real system calls. Tests substitute a recording
// implementation so session ordering can be checked without privileges.
type System interface {
	Chroot(path string) error
	Chdir(path string) error
	Sethostname(name string) error
	Mount(m specs.Mount) error
	Unmount(target string) error
	Mounted(target string) (bool, error)
}
