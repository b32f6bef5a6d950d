// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/scfdata/internal/cli/output"
)

// Project is a temporary scfdata project.
type Project struct {
	Root   string
	Config string
}

// SetupTestProject creates a project whose resources hold n small C/H/O
// geometries for dataset, and a scfdata.yaml that selects a named basis and
// the given size for it. Extra YAML is appended to the config verbatim.
func SetupTestProject(t *testing.T, dataset string, n, size int, extra string) *Project {
	t.Helper()

	root := t.TempDir()
	xyzDir := filepath.Join(root, "resources", dataset, "xyz")
	if err := os.MkdirAll(xyzDir, 0o750); err != nil {
		t.Fatalf("failed to create directory %s: %v", xyzDir, err)
	}

	for i := range n {
		// H2O, H2CO, H3COH... atom counts vary with i
		hydrogens := 2 + i%3
		var b strings.Builder
		fmt.Fprintf(&b, "%d\nmolecule %d\nO 0.0 0.0 0.0\nC 1.2 0.0 0.0\n", hydrogens+2, i)
		for h := range hydrogens {
			fmt.Fprintf(&b, "H %.3f 1.0 0.0\n", float64(h))
		}
		path := filepath.Join(xyzDir, fmt.Sprintf("mol_%03d.xyz", i))
		if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}

	cfg := fmt.Sprintf(`data_dir: data
resources_dir: resources
state_path: state/journal.db
output: json
datasets:
  %s:
    size: %d
    basis: sto-3g
%s`, dataset, size, extra)
	cfgPath := filepath.Join(root, "scfdata.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	return &Project{Root: root, Config: cfgPath}
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a new test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
