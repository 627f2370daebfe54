package cli

import (
	"context"
	"os"

	"github.com/cruciblehq/cradle/internal/jail"
)

// Represents the hidden 'cradle init' command.
//
// Only the launcher runs it, as the first process inside the new namespaces.
type InitCmd struct{}

// Executes the init command.
func (c *InitCmd) Run(ctx context.Context) error {
	in, out := jail.InitPipes()
	defer in.Close()
	defer out.Close()

	code := jail.Init(ctx, jail.HostSystem{}, in, out, jail.Stdio{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
