// Package layertest builds in-memory image layers for tests.
//
// Layers are described as ordered lists of entries and rendered as tar
// streams, optionally gzip or zstd compressed. Nothing here touches the host
// filesystem.
package layertest
