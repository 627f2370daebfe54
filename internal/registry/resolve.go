package registry

import (
	"context"
	_ "crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/containerd/containerd/v2/core/images"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/cruciblehq/cradle/internal/extract"
	"github.com/cruciblehq/cradle/internal/paths"
	"github.com/cruciblehq/cradle/internal/reference"
)

// A resolved image whose layers have been applied onto a root filesystem.
type Image struct {
	Reference reference.Reference // Normalized reference the image was pulled by.
	Manifest  ocispec.Manifest    // Platform-specific image manifest.
	Config    ocispec.Image       // Decoded image configuration.
}

// Pulls the image named by ref and applies its layers onto dest.
//
// The reference is normalized, a pull-scoped token is obtained, and the
// manifest is negotiated. Manifest lists and OCI indexes are narrowed to the
// client's platform. The image config is fetched and decoded, then every
// layer is streamed, applied in manifest order and checked against its
// digest. Any failure aborts the pull; layers already applied stay on disk.
func (c *Client) Resolve(ctx context.Context, ref reference.Reference, dest string) (*Image, error) {
	ref = ref.Normalize()

	token, err := c.authenticate(ctx, ref.Repository)
	if err != nil {
		return nil, err
	}

	manifest, family, err := c.fetchManifest(ctx, ref, token)
	if err != nil {
		return nil, err
	}

	config, err := c.fetchConfig(ctx, ref.Repository, token, manifest.Config, family)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dest, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", extract.ErrExtraction, err)
	}

	for i, layer := range manifest.Layers {
		c.logger.Info("applying layer", "index", i+1, "total", len(manifest.Layers), "digest", layer.Digest, "size", layer.Size)
		if err := c.fetchLayer(ctx, ref.Repository, token, layer, family, dest); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("image resolved", "reference", ref.String(), "layers", len(manifest.Layers), "dest", dest)

	return &Image{
		Reference: ref,
		Manifest:  manifest,
		Config:    config,
	}, nil
}

// Fetches the manifest for ref and narrows lists and indexes to one
// platform-specific manifest.
func (c *Client) fetchManifest(ctx context.Context, ref reference.Reference, token string) (ocispec.Manifest, mediaFamily, error) {
	url := c.manifestURL(ref.Repository, ref.Tag)

	resp, err := c.get(ctx, url, token, manifestAccept...)
	if err != nil {
		return ocispec.Manifest{}, mediaFamily{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := readDocument(resp.Body)
	if err != nil {
		return ocispec.Manifest{}, mediaFamily{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	mediaType := contentType(resp, body)
	c.logger.Debug("fetched manifest", "reference", ref.String(), "mediaType", mediaType)

	switch {
	case mediaType == images.MediaTypeDockerSchema2ManifestList:
		return c.fetchPlatformManifest(ctx, ref, token, body, dockerFamily)

	case mediaType == ocispec.MediaTypeImageIndex:
		return c.fetchPlatformManifest(ctx, ref, token, body, ociFamily)

	case isSchema1(mediaType):
		return ocispec.Manifest{}, mediaFamily{}, fmt.Errorf("%w: %s", ErrUnsupportedManifestType, mediaType)

	default:
		m, err := decodeManifest(body)
		if err != nil {
			return ocispec.Manifest{}, mediaFamily{}, err
		}
		return m, familyOf(mediaType, m), nil
	}
}

// Selects the platform entry from a manifest list or index and fetches the
// manifest it points to.
func (c *Client) fetchPlatformManifest(ctx context.Context, ref reference.Reference, token string, body []byte, family mediaFamily) (ocispec.Manifest, mediaFamily, error) {
	idx, err := decodeIndex(body)
	if err != nil {
		return ocispec.Manifest{}, mediaFamily{}, err
	}

	desc, err := c.selectManifest(idx)
	if err != nil {
		return ocispec.Manifest{}, mediaFamily{}, err
	}
	if err := desc.Digest.Validate(); err != nil {
		return ocispec.Manifest{}, mediaFamily{}, fmt.Errorf("%w: manifest digest: %w", ErrUnsupportedManifestType, err)
	}

	c.logger.Debug("selected platform manifest", "platform", c.Platform(), "digest", desc.Digest)

	resp, err := c.get(ctx, c.manifestURL(ref.Repository, desc.Digest.String()), token, family.manifest)
	if err != nil {
		return ocispec.Manifest{}, mediaFamily{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	manifestBody, err := readDocument(resp.Body)
	if err != nil {
		return ocispec.Manifest{}, mediaFamily{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if actual := desc.Digest.Algorithm().FromBytes(manifestBody); actual != desc.Digest {
		return ocispec.Manifest{}, mediaFamily{}, fmt.Errorf("%w: manifest digest mismatch: expected %s, got %s", ErrNetwork, desc.Digest, actual)
	}

	m, err := decodeManifest(manifestBody)
	if err != nil {
		return ocispec.Manifest{}, mediaFamily{}, err
	}
	return m, family, nil
}

// Fetches, verifies and decodes the image config blob.
func (c *Client) fetchConfig(ctx context.Context, repository, token string, desc ocispec.Descriptor, family mediaFamily) (ocispec.Image, error) {
	if err := desc.Digest.Validate(); err != nil {
		return ocispec.Image{}, fmt.Errorf("%w: config digest: %w", ErrConfigDecode, err)
	}

	resp, err := c.get(ctx, c.blobURL(repository, desc.Digest), token, family.config)
	if err != nil {
		return ocispec.Image{}, fmt.Errorf("%w: config %s: %w", ErrBlobFetch, desc.Digest, err)
	}
	defer resp.Body.Close()

	body, err := readDocument(resp.Body)
	if err != nil {
		return ocispec.Image{}, fmt.Errorf("%w: config %s: %w", ErrBlobFetch, desc.Digest, err)
	}
	if actual := desc.Digest.Algorithm().FromBytes(body); actual != desc.Digest {
		return ocispec.Image{}, fmt.Errorf("%w: config digest mismatch: expected %s, got %s", ErrBlobFetch, desc.Digest, actual)
	}

	var img ocispec.Image
	if err := json.Unmarshal(body, &img); err != nil {
		return ocispec.Image{}, fmt.Errorf("%w: %w", ErrConfigDecode, err)
	}

	c.logger.Debug("fetched image config", "digest", desc.Digest, "os", img.OS, "architecture", img.Architecture)
	return img, nil
}

// Streams one layer blob onto dest while computing its digest.
//
// The blob is fully drained before the digest is checked so trailing bytes
// the tar reader stops short of are still accounted for.
func (c *Client) fetchLayer(ctx context.Context, repository, token string, desc ocispec.Descriptor, family mediaFamily, dest string) error {
	if err := desc.Digest.Validate(); err != nil {
		return fmt.Errorf("%w: layer digest: %w", ErrBlobFetch, err)
	}

	resp, err := c.get(ctx, c.blobURL(repository, desc.Digest), token, family.layer)
	if err != nil {
		return fmt.Errorf("%w: layer %s: %w", ErrBlobFetch, desc.Digest, err)
	}
	defer resp.Body.Close()

	verifier := desc.Digest.Verifier()
	tee := io.TeeReader(resp.Body, verifier)

	if err := extract.Layer(ctx, tee, desc.MediaType, dest); err != nil {
		return fmt.Errorf("layer %s: %w", desc.Digest, err)
	}

	if _, err := io.Copy(io.Discard, tee); err != nil {
		return fmt.Errorf("%w: layer %s: %w", ErrBlobFetch, desc.Digest, err)
	}
	if !verifier.Verified() {
		return fmt.Errorf("%w: layer %s: digest mismatch", ErrBlobFetch, desc.Digest)
	}
	return nil
}

func (c *Client) manifestURL(repository, reference string) string {
	return fmt.Sprintf("%s/v2/%s/manifests/%s", c.registry, repository, reference)
}

func (c *Client) blobURL(repository string, dgst digest.Digest) string {
	return fmt.Sprintf("%s/v2/%s/blobs/%s", c.registry, repository, dgst)
}

// Picks the media family for a single-platform manifest from its content
// type, falling back to the family of its config descriptor.
func familyOf(mediaType string, m ocispec.Manifest) mediaFamily {
	switch mediaType {
	case ociFamily.manifest:
		return ociFamily
	case dockerFamily.manifest:
		return dockerFamily
	}
	if m.Config.MediaType == ociFamily.config {
		return ociFamily
	}
	return dockerFamily
}
