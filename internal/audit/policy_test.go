package audit

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPolicySkipsIntrospectiveTools(t *testing.T) {
	p := DefaultPolicy()

	for _, op := range []string{"audit_recent", "audit_query", "audit_summary"} {
		if !p.Skips(op) {
			t.Fatalf("expected default policy to skip %q", op)
		}
	}
	if p.Skips("get_top_skills") {
		t.Fatal("expected default policy to record ordinary operations")
	}
}

func TestLoadPolicyEmptyPathUsesDefaults(t *testing.T) {
	p, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !p.Skips("audit_recent") {
		t.Fatal("expected default skip list")
	}
}

func TestLoadPolicyMissingFileUsesDefaults(t *testing.T) {
	p, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !p.Skips("audit_summary") {
		t.Fatal("expected default skip list")
	}
}

func TestLoadPolicyParsesSkipList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := "skip:\n  - healthcheck\n  - internal_*\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cases := []struct {
		op   string
		want bool
	}{
		{"healthcheck", true},
		{"healthcheck2", false},
		{"internal_probe", true},
		{"internal_", true},
		{"get_top_skills", false},
		{"audit_recent", false}, // explicit file replaces defaults
	}
	for _, tc := range cases {
		if got := p.Skips(tc.op); got != tc.want {
			t.Fatalf("Skips(%q) = %v, want %v", tc.op, got, tc.want)
		}
	}
}

func TestLoadPolicyRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("skip: [unclosed"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	if _, err := LoadPolicy(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestNilPolicySkipsNothing(t *testing.T) {
	var p *Policy
	if p.Skips("anything") {
		t.Fatal("nil policy must not skip")
	}
}
