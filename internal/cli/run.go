package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/cruciblehq/cradle/internal/jail"
	"github.com/cruciblehq/cradle/internal/reference"
)

// Represents the 'cradle run' command.
type RunCmd struct {
	Image   string   `arg:"" help:"Image to run, as name[:tag]." placeholder:"IMAGE"`
	Command []string `arg:"" optional:"" passthrough:"" help:"Command to run instead of the image default." placeholder:"COMMAND"`
}

// Executes the run command.
//
// The image is pulled into the root filesystem and the command is run inside
// a jail rooted there. The root filesystem stays locked until the jailed
// process exits. A non-zero exit code is returned as an [ExitError].
func (c *RunCmd) Run(ctx context.Context, root *Root) error {
	ref, err := reference.Parse(c.Image)
	if err != nil {
		return err
	}

	unlock, err := lockRootFS(root.RootFS)
	if err != nil {
		return err
	}
	defer unlock()

	img, err := pull(ctx, root, ref)
	if err != nil {
		return err
	}

	launcher, err := jail.NewLauncher(jail.Config{
		RootFS:   root.RootFS,
		Hostname: root.Hostname,
		InitArgs: root.initArgs(),
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Logger:   slog.Default(),
	})
	if err != nil {
		return err
	}

	slog.Debug("launching", "reference", img.Reference.String(), "command", c.Command)

	code, err := launcher.Launch(ctx, img.Config.Config, c.Command)
	if err != nil {
		return &ExitError{Code: code, Err: err}
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
