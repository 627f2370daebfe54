package paths

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestRootFS(t *testing.T) {
	root := RootFS()
	if !filepath.IsAbs(root) {
		t.Fatalf("RootFS() = %q, want absolute path", root)
	}
	if !strings.HasSuffix(root, filepath.Join(appName, "rootfs")) {
		t.Fatalf("RootFS() = %q, want suffix cradle/rootfs", root)
	}
	if filepath.Dir(root) != Data() {
		t.Fatalf("RootFS() parent = %q, want %q", filepath.Dir(root), Data())
	}
}

func TestLockFile(t *testing.T) {
	tests := []struct {
		root string
		want string
	}{
		{"/var/lib/cradle/rootfs", "/var/lib/cradle/rootfs.lock"},
		{"/var/lib/cradle/rootfs/", "/var/lib/cradle/rootfs.lock"},
		{"/tmp/../tmp/root", "/tmp/root.lock"},
	}

	for _, tt := range tests {
		if got := LockFile(tt.root); got != tt.want {
			t.Errorf("LockFile(%q) = %q, want %q", tt.root, got, tt.want)
		}
	}
}
