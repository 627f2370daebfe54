// Package jail runs a command from an extracted image inside a partially
// isolated environment.
//
// Isolation is limited to a fresh UTS namespace, so the hostname can be set
// without affecting the host, and a fresh PID namespace, so the jailed
// process tree has its own pid 1. The root filesystem is changed with
// chroot(2) and /proc is mounted inside it. Mount, network, IPC and cgroup
// namespaces are not created; the jail shares them with the host.
//
// Go cannot fork into new namespaces with a callback, so a [Launcher]
// re-executes the current binary as an init process with the namespace
// clone flags set. The init process receives its instructions over an
// inherited pipe, runs [Init], and reports the outcome back over a second
// pipe. Inside, a [Session] drives the jail through a fixed sequence of
// states and guarantees that every mount it made is released exactly once,
// on success and failure alike.
//
// Example usage:
//
//	launcher, err := jail.NewLauncher(jail.Config{
//	    RootFS:   "/var/lib/cradle/rootfs",
//	    Hostname: "cradle",
//	})
//	if err != nil {
//	    return err
//	}
//
//	code, err := launcher.Launch(ctx, img.Config.Config, []string{"/bin/sh"})
//	if err != nil {
//	    return err
//	}
//	os.Exit(code)
package jail
