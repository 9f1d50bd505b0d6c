package audit

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy controls which operations the Recorder skips. Introspective
// operations (the audit_* query tools) are skipped by default so reading
// the log does not write to it.
type Policy struct {
	Skip []string `yaml:"skip"`
}

// DefaultPolicy returns the built-in recording policy.
func DefaultPolicy() *Policy {
	return &Policy{Skip: []string{"audit_*"}}
}

// LoadPolicy reads a recording policy from a YAML file. An empty path or a
// missing file falls back to the default policy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPolicy(), nil
		}
		return nil, err
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Skips reports whether the named operation is excluded from recording.
// Patterns match exactly, or as a prefix when they end in "*".
func (p *Policy) Skips(operation string) bool {
	if p == nil {
		return false
	}
	for _, pattern := range p.Skip {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(operation, prefix) {
				return true
			}
			continue
		}
		if operation == pattern {
			return true
		}
	}
	return false
}
