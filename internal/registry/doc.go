// Package registry pulls images from a Docker Registry HTTP API v2 endpoint.
//
// A [Client] resolves a [reference.Reference] to a single-platform manifest,
// fetches and decodes the image configuration, and extracts every layer, in
// manifest order, into a destination directory. The result is an [Image]
// holding the manifest and configuration; the filesystem itself lives only
// on disk.
//
// Resolution negotiates the manifest format. A Docker manifest list or an OCI
// image index is narrowed to the first entry matching the configured target
// platform, then the platform manifest is fetched by digest. Images reached
// through an OCI index are pulled with OCI media types throughout; everything
// else uses Docker schema 2 media types. Blobs are verified against their
// digests.
//
// Requests carry a pull-scoped bearer token obtained once per resolution.
// Every request is bounded by a response timeout and retried with
// exponential backoff on transport errors, 429, and 5xx responses. All other
// failures abort the resolution; there is no partial success.
//
// Example usage:
//
//	client, err := registry.New(registry.Config{Platform: "linux/amd64"})
//	if err != nil {
//	    return err
//	}
//
//	ref, err := reference.Parse("alpine:3.18")
//	if err != nil {
//	    return err
//	}
//
//	img, err := client.Resolve(ctx, ref, "/var/lib/cradle/rootfs")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(img.Config.Config.Cmd)
package registry
