package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/platforms"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Media types of one manifest family. Config and layer requests carry the
// Accept header of the family the manifest came from.
type mediaFamily struct {
	manifest string
	config   string
	layer    string
}

var (
	dockerFamily = mediaFamily{
		manifest: images.MediaTypeDockerSchema2Manifest,
		config:   images.MediaTypeDockerSchema2Config,
		layer:    images.MediaTypeDockerSchema2LayerGzip,
	}
	ociFamily = mediaFamily{
		manifest: ocispec.MediaTypeImageManifest,
		config:   ocispec.MediaTypeImageConfig,
		layer:    ocispec.MediaTypeImageLayerGzip,
	}
)

// Docker schema 1 manifest types, signed and unsigned.
const (
	mediaTypeDockerSchema1Signed   = "application/vnd.docker.distribution.manifest.v1+prettyjws"
	mediaTypeDockerSchema1Unsigned = "application/vnd.docker.distribution.manifest.v1+json"
)

// Accept list of the initial manifest request.
var manifestAccept = []string{
	images.MediaTypeDockerSchema2Manifest,
	images.MediaTypeDockerSchema2ManifestList,
	ocispec.MediaTypeImageIndex,
	ocispec.MediaTypeImageManifest,
}

// Fields shared by every manifest and index document, read before the
// document is decoded into its concrete type.
type versioned struct {
	SchemaVersion int    `json:"schemaVersion"`
	MediaType     string `json:"mediaType,omitempty"`
}

// Determines the media type of a manifest response.
//
// The Content-Type header wins. When it is absent or generic JSON, the
// document's own mediaType field is used instead.
func contentType(resp *http.Response, body []byte) string {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err == nil && mediaType != "" && mediaType != "application/json" && mediaType != "text/plain" {
		return mediaType
	}

	var v versioned
	if json.Unmarshal(body, &v) == nil && v.MediaType != "" {
		return v.MediaType
	}
	return mediaType
}

// Reports whether the media type names a Docker schema 1 manifest.
func isSchema1(mediaType string) bool {
	switch mediaType {
	case mediaTypeDockerSchema1Signed, mediaTypeDockerSchema1Unsigned:
		return true
	}
	return false
}

// Decodes a single-platform image manifest.
//
// Lists, indexes and any document whose schemaVersion is not 2 are
// rejected with [ErrUnsupportedManifestType].
func decodeManifest(body []byte) (ocispec.Manifest, error) {
	var v versioned
	if err := json.Unmarshal(body, &v); err != nil {
		return ocispec.Manifest{}, fmt.Errorf("%w: %w", ErrUnsupportedManifestType, err)
	}
	if v.SchemaVersion != 2 {
		return ocispec.Manifest{}, fmt.Errorf("%w: schema version %d", ErrUnsupportedManifestType, v.SchemaVersion)
	}
	if images.IsIndexType(v.MediaType) {
		return ocispec.Manifest{}, fmt.Errorf("%w: expected image manifest, got %s", ErrUnsupportedManifestType, v.MediaType)
	}

	var m ocispec.Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return ocispec.Manifest{}, fmt.Errorf("%w: %w", ErrUnsupportedManifestType, err)
	}
	return m, nil
}

// Decodes a Docker manifest list or OCI image index.
func decodeIndex(body []byte) (ocispec.Index, error) {
	var idx ocispec.Index
	if err := json.Unmarshal(body, &idx); err != nil {
		return ocispec.Index{}, fmt.Errorf("%w: %w", ErrUnsupportedManifestType, err)
	}
	return idx, nil
}

// Returns the first index entry whose platform matches the client's target.
//
// Entries without a platform, such as attestation manifests, are skipped.
// The variant only counts when the target names one, so "linux/amd64" takes
// the first linux/amd64 entry whatever its microarchitecture level.
func (c *Client) selectManifest(idx ocispec.Index) (ocispec.Descriptor, error) {
	for _, desc := range idx.Manifests {
		if desc.Platform == nil {
			continue
		}
		if c.matches(*desc.Platform) {
			return desc, nil
		}
	}
	return ocispec.Descriptor{}, fmt.Errorf("%w: %s", ErrPlatformNotFound, c.Platform())
}

func (c *Client) matches(p ocispec.Platform) bool {
	p = platforms.Normalize(p)
	if p.OS != c.platform.OS || p.Architecture != c.platform.Architecture {
		return false
	}
	return !c.variant || p.Variant == c.platform.Variant
}

// Reads at most maxDocumentSize bytes of a manifest, index or config body.
func readDocument(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxDocumentSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxDocumentSize {
		return nil, fmt.Errorf("document exceeds %d bytes", maxDocumentSize)
	}
	return body, nil
}
