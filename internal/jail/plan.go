package jail

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Search path used to find the executable when the image sets no PATH.
const DefaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// What to run inside the jail.
type LaunchPlan struct {
	Argv []string          // Program and arguments. Argv[0] is the program.
	Env  map[string]string // Environment, built only from the image.
	Dir  string            // Working directory inside the new root.
}

// Derives the launch plan from the image configuration and the user's
// command-line overrides.
//
// Non-empty overrides are used verbatim. Otherwise the first entrypoint
// element is followed by the image cmd. An image without an entrypoint runs
// its cmd. The environment comes exclusively from the image; every entry
// must have the form KEY=VALUE and later duplicates win.
func ResolvePlan(cfg ocispec.ImageConfig, overrides []string) (*LaunchPlan, error) {
	env, err := parseEnv(cfg.Env)
	if err != nil {
		return nil, err
	}

	var argv []string
	switch {
	case len(overrides) > 0:
		argv = slices.Clone(overrides)
	case len(cfg.Entrypoint) > 0:
		argv = append([]string{cfg.Entrypoint[0]}, cfg.Cmd...)
	case len(cfg.Cmd) > 0:
		argv = slices.Clone(cfg.Cmd)
	default:
		return nil, fmt.Errorf("%w: no command given and image has no entrypoint or cmd", ErrCommandResolution)
	}

	if argv[0] == "" {
		return nil, fmt.Errorf("%w: empty program name", ErrCommandResolution)
	}

	dir := cfg.WorkingDir
	if dir == "" {
		dir = "/"
	}

	return &LaunchPlan{Argv: argv, Env: env, Dir: dir}, nil
}

// Returns the environment as sorted KEY=VALUE entries.
func (p *LaunchPlan) Environ() []string {
	env := make([]string, 0, len(p.Env))
	for k, v := range p.Env {
		env = append(env, k+"="+v)
	}
	slices.Sort(env)
	return env
}

// Resolves Argv[0] to an executable path.
//
// Names containing a slash are used as given. Others are searched for in the
// plan's PATH, or [DefaultPath] when the image sets none.
func (p *LaunchPlan) Executable() (string, error) {
	path, ok := p.Env["PATH"]
	if !ok {
		path = DefaultPath
	}
	return lookPath(p.Argv[0], path)
}

func parseEnv(entries []string) (map[string]string, error) {
	env := make(map[string]string, len(entries))
	for _, entry := range entries {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("%w: malformed environment entry %q", ErrCommandResolution, entry)
		}
		env[k] = v
	}
	return env, nil
}

// Finds an executable named file in the colon-separated directory list.
func lookPath(file, path string) (string, error) {
	if strings.Contains(file, "/") {
		return file, nil
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q not found in %s", ErrProcessSpawn, file, path)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0111 != 0
}
