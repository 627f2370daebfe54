package internal

import "testing"

func TestVersionString(t *testing.T) {
	saved := [3]string{version, stage, gitCommit}
	t.Cleanup(func() { version, stage, gitCommit = saved[0], saved[1], saved[2] })

	tests := []struct {
		name                   string
		version, stage, commit string
		want                   string
	}{
		{"local", "", "", "", localBuild},
		{"partially set", "1.0.0", "", "abc", localBuild},
		{"main branch", "v1.2.3", "main", "abc123", "1.2.3 abc123 [" + Arch() + "]"},
		{"feature branch", "1.2.3", "Staging", "abc123", "1.2.3+staging abc123 [" + Arch() + "]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, stage, gitCommit = tt.version, tt.stage, tt.commit
			if got := VersionString(); got != tt.want {
				t.Fatalf("VersionString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVersionUndefined(t *testing.T) {
	saved := version
	t.Cleanup(func() { version = saved })

	version = "  "
	if got := Version(); got != undefined {
		t.Fatalf("Version() = %q, want %q", got, undefined)
	}
}
