// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapgrt/internal/cli/output"
)

// Project is a temporary project directory with a class descriptor and a
// script implementing one of its methods.
type Project struct {
	Root       string
	SchemaDir  string
	ScriptsDir string
	StatePath  string
}

const noteDescriptor = `classes:
  - name: app.Note
    parent: GrtNamedObject
    members:
      - name: text
        type: string
    methods:
      - name: shout
        returns: string
        script: note.star:shout
`

const noteScript = `def shout(note):
    return note.text.upper() + "!"
`

// SetupTestProject creates a temporary project declaring app.Note.
func SetupTestProject(t *testing.T) *Project {
	t.Helper()

	root := t.TempDir()
	p := &Project{
		Root:       root,
		SchemaDir:  filepath.Join(root, "schemas"),
		ScriptsDir: filepath.Join(root, "scripts"),
		StatePath:  filepath.Join(root, ".leapgrt", "state.db"),
	}
	for _, dir := range []string{p.SchemaDir, p.ScriptsDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}
	p.WriteFile(t, filepath.Join("schemas", "app.yaml"), noteDescriptor)
	p.WriteFile(t, filepath.Join("scripts", "note.star"), noteScript)
	return p
}

// WriteFile writes content to a path relative to the project root.
func (p *Project) WriteFile(t *testing.T, rel, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(p.Root, rel), []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
}

// Args returns the global flags selecting the project directories.
func (p *Project) Args(args ...string) []string {
	return append([]string{
		"--schema-dir", p.SchemaDir,
		"--scripts-dir", p.ScriptsDir,
		"--state", p.StatePath,
	}, args...)
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

// NewTestRendererText creates a new test renderer in text mode (simulated TTY).
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
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

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if fenceCount := strings.Count(md, "```"); fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
