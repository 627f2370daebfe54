// Package reference parses image references of the form name[:tag].
//
// Only the short Docker Hub form is understood: a repository name, optionally
// followed by a single colon and a tag. Registry hosts with ports and digest
// references are not supported, so any input with more than one colon is
// rejected before a registry is ever contacted.
//
// Repositories without a namespace segment resolve to the "library"
// namespace, matching Docker Hub's official images:
//
//	ref, err := reference.Parse("alpine:3.18")
//	if err != nil {
//	    return err
//	}
//	ref = ref.Normalize() // library/alpine:3.18
package reference
