// Parses flags, configures logging and runs cradle's subcommands.
//
// The following global flags are accepted by every subcommand:
//
//	-q, --quiet       Suppress informational output.
//	-v, --verbose     Enable verbose output.
//	-d, --debug       Enable debug output.
//	    --rootfs      Directory images are extracted into ($CRADLE_ROOTFS).
//	    --registry    Registry API endpoint ($CRADLE_REGISTRY).
//	    --auth-url    Token endpoint ($CRADLE_AUTH_URL).
//	    --service     Token service name.
//	-p, --platform    Platform selected from multi-platform images ($CRADLE_PLATFORM).
//	    --timeout     Bound on connecting and receiving response headers.
//	    --retries     Retries for transient registry failures.
//	    --hostname    Hostname inside the jail.
//
// Flags override build-time defaults set via linker flags. After parsing, the
// global logger is reconfigured to reflect the final level and verbosity
// before the subcommand runs.
//
// Subcommands return errors instead of exiting. A jailed process that exits
// with a non-zero code surfaces as an [ExitError] carrying that code, which
// the caller turns into the process exit status.
package cli
