package reference

import (
	"fmt"
	"strings"
)

const (

	// Tag used when the reference names none.
	DefaultTag = "latest"

	// Namespace prepended to single-segment repository names.
	DefaultNamespace = "library"

	separator = ":"
)

// A repository and tag pair identifying one image.
type Reference struct {
	Repository string // Repository name, e.g. "alpine" or "library/alpine".
	Tag        string // Tag within the repository, e.g. "3.18".
}

// Parses a name[:tag] string.
//
// Input without a colon gets [DefaultTag]. Input with more than one colon, an
// empty repository, or an empty tag after the colon is rejected with
// [ErrReferenceFormat].
func Parse(s string) (Reference, error) {
	parts := strings.Split(s, separator)

	var ref Reference
	switch len(parts) {
	case 1:
		ref = Reference{Repository: parts[0], Tag: DefaultTag}
	case 2:
		ref = Reference{Repository: parts[0], Tag: parts[1]}
	default:
		return Reference{}, fmt.Errorf("%w: %q has %d separators, want image or image:tag", ErrReferenceFormat, s, len(parts)-1)
	}

	if ref.Repository == "" {
		return Reference{}, fmt.Errorf("%w: %q has an empty repository", ErrReferenceFormat, s)
	}
	if ref.Tag == "" {
		return Reference{}, fmt.Errorf("%w: %q has an empty tag", ErrReferenceFormat, s)
	}

	return ref, nil
}

// Returns the reference with [DefaultNamespace] prepended to repositories
// that have no "/" in them. Other references are returned unchanged.
func (r Reference) Normalize() Reference {
	if !strings.Contains(r.Repository, "/") {
		r.Repository = DefaultNamespace + "/" + r.Repository
	}
	return r
}

// Returns the reference as "repository:tag".
func (r Reference) String() string {
	return r.Repository + separator + r.Tag
}
