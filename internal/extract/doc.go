// Package extract unpacks image layers onto a root directory.
//
// Each layer is a (usually compressed) tar stream. Layers are applied one at
// a time, in manifest order, onto the same directory: files from a later
// layer replace files from an earlier layer at the same path, and whiteout
// entries remove them. There is no copy-on-write; the directory simply holds
// the union of everything applied so far.
//
// Application is delegated to containerd's archive applier, which rejects
// entries that would escape the root and does not try to restore file
// ownership. A failed extraction leaves whatever was already written in
// place.
//
//	f, err := os.Open("layer.tar.gz")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	if err := extract.Extract(ctx, f, "/var/lib/cradle/rootfs"); err != nil {
//	    return err
//	}
package extract
