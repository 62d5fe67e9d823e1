// pattern: Imperative Shell
package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"peniche/internal/cargo"
)

// harness drives BuildApp with a cargo adapter whose commands are recorded
// and whose `cargo new` writes a minimal package.
type harness struct {
	t      *testing.T
	env    *Env
	app    *App
	out    *bytes.Buffer
	errOut *bytes.Buffer
	calls  [][]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	base := t.TempDir()
	workDir := filepath.Join(base, "work")
	if err := os.MkdirAll(workDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	h := &harness{t: t, out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	adapter := cargo.NewCLI(nil)
	adapter.Exec = h.exec
	adapter.LookPath = func(string) (string, error) { return "/usr/bin/cargo", nil }

	h.env = &Env{
		ConfigDir: filepath.Join(base, "config"),
		WorkDir:   workDir,
		NoColor:   true,
		Stdout:    h.out,
		Stderr:    h.errOut,
		Context:   context.Background(),
		Adapter:   adapter,
		HostOS:    "linux",
	}
	h.app = BuildApp("test", h.env)
	t.Cleanup(func() { _ = h.env.Close() })
	return h
}

func (h *harness) exec(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	h.calls = append(h.calls, append([]string{name}, args...))
	if args[0] != "new" {
		return nil, nil
	}
	pkgName, path := args[len(args)-2], args[len(args)-1]
	if err := os.MkdirAll(filepath.Join(path, "src"), 0755); err != nil {
		return nil, err
	}
	content := "[package]\nname = \"" + pkgName + "\"\nversion = \"0.1.0\"\nedition = \"2021\"\n\n[dependencies]\n"
	return nil, os.WriteFile(filepath.Join(path, "Cargo.toml"), []byte(content), 0644)
}

func (h *harness) run(args ...string) int {
	h.t.Helper()
	h.out.Reset()
	h.errOut.Reset()
	return h.app.Execute(args)
}

func (h *harness) mustRun(args ...string) {
	h.t.Helper()
	if code := h.run(args...); code != 0 {
		h.t.Fatalf("%v exited %d\nstdout: %s\nstderr: %s", args, code, h.out, h.errOut)
	}
}

// initWorkspace creates workspace "demo" and moves WorkDir into it.
func (h *harness) initWorkspace() string {
	h.t.Helper()
	h.mustRun("init", "demo")
	root := filepath.Join(h.env.WorkDir, "demo")
	h.env.WorkDir = root
	return root
}

func (h *harness) called(args ...string) bool {
	for _, call := range h.calls {
		if slices.Equal(call[1:], args) {
			return true
		}
	}
	return false
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	return string(data)
}

func TestBuildApp_Version(t *testing.T) {
	h := newHarness(t)
	h.mustRun("version")
	if h.out.String() != "test\n" {
		t.Errorf("version output = %q, want %q", h.out.String(), "test\n")
	}
}

func TestInit(t *testing.T) {
	h := newHarness(t)
	h.mustRun("init", "demo")

	descriptor := filepath.Join(h.env.WorkDir, "demo", "Cargo.toml")
	content := readFile(t, descriptor)
	if !strings.Contains(content, `name = "demo"`) || !strings.Contains(content, "members = []") {
		t.Errorf("unexpected descriptor:\n%s", content)
	}
	if !strings.Contains(h.out.String(), "Initialized workspace demo") {
		t.Errorf("missing success message: %q", h.out.String())
	}

	h.mustRun("init", "other", "nested/dir")
	if _, err := os.Stat(filepath.Join(h.env.WorkDir, "nested", "dir", "Cargo.toml")); err != nil {
		t.Errorf("explicit path not used: %v", err)
	}
}

func TestNewListRemove(t *testing.T) {
	h := newHarness(t)
	root := h.initWorkspace()

	h.mustRun("new", "api", "core")
	h.mustRun("n", "--lib", "util")

	if !h.called("new", "--vcs", "none", "--lib", "--name", "util", filepath.Join(root, "util")) {
		t.Errorf("library scaffold not requested, calls = %v", h.calls)
	}
	content := readFile(t, filepath.Join(root, "Cargo.toml"))
	if !strings.Contains(content, `members = ["api", "core", "util"]`) {
		t.Errorf("members not registered:\n%s", content)
	}

	h.mustRun("ls")
	lines := strings.Split(strings.TrimSpace(h.out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("ls printed %d lines, want 3:\n%s", len(lines), h.out)
	}
	want := "api (0.1.0) - path+" + filepath.Join(root, "api")
	if lines[0] != want {
		t.Errorf("ls line = %q, want %q", lines[0], want)
	}

	h.mustRun("rm", "--rmdir", "util")
	if _, err := os.Stat(filepath.Join(root, "util")); !os.IsNotExist(err) {
		t.Errorf("util directory should be deleted, stat error = %v", err)
	}
	content = readFile(t, filepath.Join(root, "Cargo.toml"))
	if !strings.Contains(content, `members = ["api", "core"]`) {
		t.Errorf("util not removed from members:\n%s", content)
	}

	h.mustRun("delete", "core")
	if _, err := os.Stat(filepath.Join(root, "core", "Cargo.toml")); err != nil {
		t.Errorf("core files should be kept without --rmdir: %v", err)
	}

	h.mustRun("rm", "ghost")
	if !strings.Contains(h.errOut.String(), "ghost is not a listed member") {
		t.Errorf("missing warning for unknown member: %q", h.errOut.String())
	}
}

func TestLink(t *testing.T) {
	h := newHarness(t)
	root := h.initWorkspace()
	h.mustRun("new", "api", "core")

	h.mustRun("ln", "api", "core")
	content := readFile(t, filepath.Join(root, "api", "Cargo.toml"))
	if !strings.Contains(content, `core = { path = "../core" }`) {
		t.Errorf("dependency not written:\n%s", content)
	}

	if code := h.run("link", "api"); code != 2 {
		t.Errorf("link with one name exited %d, want 2", code)
	}
	if code := h.run("link", "api", "ghost"); code != 1 {
		t.Errorf("link to unknown member exited %d, want 1", code)
	}
}

func TestInstallUninstall(t *testing.T) {
	h := newHarness(t)
	root := h.initWorkspace()
	h.mustRun("new", "api")

	h.mustRun("i", "api")
	if !h.called("install", "--path", filepath.Join(root, "api")) {
		t.Errorf("install not requested, calls = %v", h.calls)
	}
	h.mustRun("uninstall", "api")
	if !h.called("uninstall", "api") {
		t.Errorf("uninstall not requested, calls = %v", h.calls)
	}

	if code := h.run("install", "ghost"); code != 1 {
		t.Errorf("install of unknown member exited %d, want 1", code)
	}
	if !strings.Contains(h.errOut.String(), `package "ghost" is not a member`) {
		t.Errorf("unexpected error output: %q", h.errOut.String())
	}
}

func TestInfo(t *testing.T) {
	h := newHarness(t)
	root := h.initWorkspace()
	h.mustRun("new", "api")

	h.mustRun("info")
	output := h.out.String()
	for _, want := range []string{"demo", root, "members", "1", "available"} {
		if !strings.Contains(output, want) {
			t.Errorf("info output missing %q:\n%s", want, output)
		}
	}
}

func TestCommands_OutsideWorkspace(t *testing.T) {
	h := newHarness(t)

	if code := h.run("ls"); code != 1 {
		t.Errorf("ls outside workspace exited %d, want 1", code)
	}
	if !strings.Contains(h.errOut.String(), "workspace not found") {
		t.Errorf("unexpected error output: %q", h.errOut.String())
	}
}

func TestCommands_UsageErrors(t *testing.T) {
	h := newHarness(t)
	h.initWorkspace()

	tests := [][]string{
		{"init"},
		{"new"},
		{"rm"},
		{"install"},
		{"new", "--bogus", "x"},
	}
	for _, args := range tests {
		if code := h.run(args...); code != 2 {
			t.Errorf("%v exited %d, want 2", args, code)
		}
		if !strings.Contains(h.errOut.String(), "Usage: peniche "+args[0]) {
			t.Errorf("%v did not print usage: %q", args, h.errOut.String())
		}
	}
}

func TestCommands_InvalidConfig(t *testing.T) {
	h := newHarness(t)
	if err := os.MkdirAll(h.env.ConfigDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(h.env.ConfigDir, "config.yaml"), []byte("theme: neon\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if code := h.run("ls"); code != 1 {
		t.Errorf("ls with invalid config exited %d, want 1", code)
	}
	if !strings.Contains(h.errOut.String(), "unknown theme") {
		t.Errorf("unexpected error output: %q", h.errOut.String())
	}
}
