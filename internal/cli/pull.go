package cli

import (
	"context"
	"log/slog"

	"github.com/cruciblehq/cradle/internal/reference"
	"github.com/cruciblehq/cradle/internal/registry"
)

// Represents the 'cradle pull' command.
type PullCmd struct {
	Image string `arg:"" help:"Image to pull, as name[:tag]." placeholder:"IMAGE"`
}

// Executes the pull command.
//
// The image is extracted into the root filesystem directory, which is locked
// for the duration of the pull.
func (c *PullCmd) Run(ctx context.Context, root *Root) error {
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

	slog.Info("image ready", "reference", img.Reference.String(), "rootfs", root.RootFS)
	return nil
}

// Resolves ref and extracts it into the root filesystem. The caller holds
// the root filesystem lock.
func pull(ctx context.Context, root *Root, ref reference.Reference) (*registry.Image, error) {
	client, err := registry.New(root.registryConfig())
	if err != nil {
		return nil, err
	}

	slog.Info("pulling image", "reference", ref.Normalize().String(), "platform", client.Platform())

	img, err := client.Resolve(ctx, ref, root.RootFS)
	if err != nil {
		return nil, err
	}

	slog.Debug("image config",
		"entrypoint", img.Config.Config.Entrypoint,
		"cmd", img.Config.Config.Cmd,
		"workdir", img.Config.Config.WorkingDir,
		"layers", len(img.Manifest.Layers),
	)
	return img, nil
}
