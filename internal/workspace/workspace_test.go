package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"peniche/internal/cargo"
	"peniche/internal/crate"
	"peniche/internal/logging"
	"peniche/internal/manifest"
)

// fakeAdapter scaffolds by writing a minimal manifest and parses with the
// real in-process parser.
type fakeAdapter struct {
	*cargo.CLI
	scaffolded []string
	// autoRegister mimics cargo adding new packages to the enclosing workspace.
	autoRegister string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{CLI: cargo.NewCLI(nil)}
}

func (f *fakeAdapter) Scaffold(_ context.Context, kind cargo.Kind, name, path string) error {
	f.scaffolded = append(f.scaffolded, name)
	if err := os.MkdirAll(filepath.Join(path, "src"), 0755); err != nil {
		return err
	}
	content := "[package]\nname = \"" + name + "\"\nversion = \"0.1.0\"\nedition = \"2021\"\n\n[dependencies]\n"
	if err := os.WriteFile(filepath.Join(path, "Cargo.toml"), []byte(content), 0644); err != nil {
		return err
	}
	if f.autoRegister != "" {
		doc, err := manifest.Load(f.autoRegister)
		if err != nil {
			return err
		}
		entries, _, _ := doc.StringArray("workspace", "members")
		if err := doc.SetStringArray("workspace", "members", append(entries, name)); err != nil {
			return err
		}
		return doc.Save()
	}
	return nil
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	return string(data)
}

func members(t *testing.T, ws *Workspace) []string {
	t.Helper()
	doc, err := manifest.Load(ws.DescriptorPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	entries, _, err := doc.StringArray("workspace", "members")
	if err != nil {
		t.Fatalf("StringArray() error = %v", err)
	}
	return entries
}

func newWorkspace(t *testing.T) (*Workspace, *fakeAdapter) {
	t.Helper()
	adapter := newFakeAdapter()
	ws, err := Initialize(context.Background(), adapter, filepath.Join(t.TempDir(), "ws"), "demo", logging.NopLogger())
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return ws, adapter
}

func TestInitialize_FreshAndIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ws")
	adapter := newFakeAdapter()
	ctx := context.Background()

	ws, err := Initialize(ctx, adapter, dir, "demo", nil)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	want := "[workspace]\nresolver = \"2\"\nname = \"demo\"\nmembers = []\n"
	if got := readFile(t, filepath.Join(dir, "Cargo.toml")); got != want {
		t.Errorf("descriptor = %q, want %q", got, want)
	}
	if ws.Name != "demo" || ws.Root != dir || len(ws.Members) != 0 {
		t.Errorf("workspace = %+v", ws)
	}

	if _, err := Initialize(ctx, adapter, dir, "other", nil); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if got := readFile(t, filepath.Join(dir, "Cargo.toml")); got != want {
		t.Errorf("second Initialize() changed descriptor to %q", got)
	}
}

func TestInitialize_KeepsExistingDescriptor(t *testing.T) {
	dir := t.TempDir()
	existing := "# hand written\n[workspace]\nmembers = []\nresolver = \"2\"\n"
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(existing), 0644); err != nil {
		t.Fatal(err)
	}

	ws, err := Initialize(context.Background(), newFakeAdapter(), dir, "demo", nil)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if got := readFile(t, filepath.Join(dir, "Cargo.toml")); got != existing {
		t.Errorf("descriptor rewritten to %q", got)
	}
	if ws.Name != filepath.Base(dir) {
		t.Errorf("Name = %q, want directory name %q", ws.Name, filepath.Base(dir))
	}
}

func TestFromPath_FindsAncestor(t *testing.T) {
	ws, _ := newWorkspace(t)
	nested := filepath.Join(ws.Root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FromPath(context.Background(), newFakeAdapter(), nested, nil)
	if err != nil {
		t.Fatalf("FromPath() error = %v", err)
	}
	if got.Root != ws.Root || got.DescriptorPath != filepath.Join(ws.Root, "Cargo.toml") {
		t.Errorf("Root = %q, DescriptorPath = %q", got.Root, got.DescriptorPath)
	}
}

func TestFromPath_SkipsPackageManifests(t *testing.T) {
	ws, _ := newWorkspace(t)
	if _, err := ws.CreateMember(context.Background(), "app", "", cargo.Binary); err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}

	got, err := FromPath(context.Background(), newFakeAdapter(), filepath.Join(ws.Root, "app"), nil)
	if err != nil {
		t.Fatalf("FromPath() error = %v", err)
	}
	if got.Root != ws.Root {
		t.Errorf("Root = %q, want %q", got.Root, ws.Root)
	}
	if _, ok := got.Member("app"); !ok {
		t.Error("reloaded workspace should contain app")
	}
}

func TestFromPath_NotFound(t *testing.T) {
	_, err := FromPath(context.Background(), newFakeAdapter(), t.TempDir(), nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("FromPath() error = %v, want ErrNotFound", err)
	}
}

func TestCreateMember(t *testing.T) {
	ws, adapter := newWorkspace(t)
	ctx := context.Background()

	pkg, err := ws.CreateMember(ctx, "foo", "", cargo.Library)
	if err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}
	if pkg.Name != "foo" || pkg.Origin != crate.PathOrigin(filepath.Join(ws.Root, "foo")) {
		t.Errorf("package = %+v", pkg)
	}
	if !reflect.DeepEqual(adapter.scaffolded, []string{"foo"}) {
		t.Errorf("scaffolded = %v", adapter.scaffolded)
	}
	if got := members(t, ws); !reflect.DeepEqual(got, []string{"foo"}) {
		t.Errorf("members = %v, want [foo]", got)
	}

	if _, err := ws.CreateMember(ctx, "bar", "crates/bar", cargo.Binary); err != nil {
		t.Fatalf("CreateMember(bar) error = %v", err)
	}
	if got := members(t, ws); !reflect.DeepEqual(got, []string{"foo", "crates/bar"}) {
		t.Errorf("members = %v, want [foo crates/bar]", got)
	}
	if !reflect.DeepEqual(ws.Names(), []string{"bar", "foo"}) {
		t.Errorf("Names() = %v", ws.Names())
	}

	reloaded, err := FromPath(ctx, adapter, ws.Root, nil)
	if err != nil {
		t.Fatalf("FromPath() error = %v", err)
	}
	if !reflect.DeepEqual(reloaded.Names(), []string{"bar", "foo"}) {
		t.Errorf("reloaded Names() = %v", reloaded.Names())
	}
}

func TestCreateMember_AlreadyRegistered(t *testing.T) {
	ws, adapter := newWorkspace(t)
	adapter.autoRegister = ws.DescriptorPath

	if _, err := ws.CreateMember(context.Background(), "foo", "", cargo.Binary); err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}
	if got := members(t, ws); !reflect.DeepEqual(got, []string{"foo"}) {
		t.Errorf("members = %v, want a single foo entry", got)
	}
}

func TestCreateMember_Rejects(t *testing.T) {
	ws, adapter := newWorkspace(t)
	ctx := context.Background()
	if _, err := ws.CreateMember(ctx, "foo", "", cargo.Binary); err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}

	tests := []struct {
		name, pkg, path string
	}{
		{"duplicate", "foo", ""},
		{"invalid name", "9lives", ""},
		{"outside root", "far", filepath.Join(filepath.Dir(ws.Root), "far")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ws.CreateMember(ctx, tt.pkg, tt.path, cargo.Binary); err == nil {
				t.Error("CreateMember() should fail")
			}
		})
	}
	if len(adapter.scaffolded) != 1 {
		t.Errorf("rejected members should not be scaffolded, got %v", adapter.scaffolded)
	}
}

func TestRemoveMember_NotMember(t *testing.T) {
	ws, _ := newWorkspace(t)
	before := readFile(t, ws.DescriptorPath)

	removed, err := ws.RemoveMember(context.Background(), "ghost", true)
	if err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	if removed {
		t.Error("RemoveMember() = true for a non-member")
	}
	if after := readFile(t, ws.DescriptorPath); after != before {
		t.Errorf("descriptor changed:\n%s", after)
	}
}

func TestRemoveMember_CreateThenRemoveWithFiles(t *testing.T) {
	ws, adapter := newWorkspace(t)
	ctx := context.Background()

	if _, err := ws.CreateMember(ctx, "foo", "", cargo.Binary); err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}
	removed, err := ws.RemoveMember(ctx, "foo", true)
	if err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	if !removed {
		t.Fatal("RemoveMember() = false, want true")
	}

	if _, err := os.Stat(filepath.Join(ws.Root, "foo")); !os.IsNotExist(err) {
		t.Errorf("foo directory should be gone, stat error = %v", err)
	}
	if got := members(t, ws); len(got) != 0 {
		t.Errorf("members = %v, want empty", got)
	}
	if _, ok := ws.Member("foo"); ok {
		t.Error("foo should be dropped from Members")
	}

	reloaded, err := FromPath(ctx, adapter, ws.Root, nil)
	if err != nil {
		t.Fatalf("FromPath() error = %v", err)
	}
	if _, ok := reloaded.Member("foo"); ok {
		t.Error("reloaded workspace still lists foo")
	}
}

func TestRemoveMember_KeepsFilesAndLayout(t *testing.T) {
	dir := t.TempDir()
	descriptor := `# shared settings
[workspace]
resolver = "2"
members = [
    "crates/keep",
    "crates/drop",
]

[workspace.package]
edition = "2021" # pinned
`
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(descriptor), 0644); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"keep", "drop"} {
		pkgDir := filepath.Join(dir, "crates", name)
		if err := os.MkdirAll(pkgDir, 0755); err != nil {
			t.Fatal(err)
		}
		content := "[package]\nname = \"" + name + "\"\nversion = \"0.1.0\"\n"
		if err := os.WriteFile(filepath.Join(pkgDir, "Cargo.toml"), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	ws, err := FromPath(context.Background(), newFakeAdapter(), dir, nil)
	if err != nil {
		t.Fatalf("FromPath() error = %v", err)
	}
	removed, err := ws.RemoveMember(context.Background(), "drop", false)
	if err != nil || !removed {
		t.Fatalf("RemoveMember() = %v, %v", removed, err)
	}

	want := strings.Replace(descriptor, "    \"crates/drop\",\n", "", 1)
	if got := readFile(t, ws.DescriptorPath); got != want {
		t.Errorf("descriptor =\n%s\nwant\n%s", got, want)
	}
	if _, err := os.Stat(filepath.Join(dir, "crates", "drop")); err != nil {
		t.Errorf("files should be kept without deleteFiles: %v", err)
	}
}

// writePackage writes a minimal manifest for name under dir.
func writePackage(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "[package]\nname = \"" + name + "\"\nversion = \"0.1.0\"\n"
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRemoveMember_EntryNamedLikeMemberBelongsToOther(t *testing.T) {
	dir := t.TempDir()
	descriptor := "[workspace]\nmembers = [\"crates/foo\", \"foo\"]\n"
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(descriptor), 0644); err != nil {
		t.Fatal(err)
	}
	writePackage(t, filepath.Join(dir, "crates", "foo"), "foo")
	writePackage(t, filepath.Join(dir, "foo"), "bar")

	ctx := context.Background()
	adapter := newFakeAdapter()
	ws, err := FromPath(ctx, adapter, dir, nil)
	if err != nil {
		t.Fatalf("FromPath() error = %v", err)
	}

	removed, err := ws.RemoveMember(ctx, "foo", false)
	if err != nil || !removed {
		t.Fatalf("RemoveMember() = %v, %v", removed, err)
	}
	if got := members(t, ws); !reflect.DeepEqual(got, []string{"foo"}) {
		t.Errorf("members = %v, want [foo]", got)
	}

	reloaded, err := FromPath(ctx, adapter, dir, nil)
	if err != nil {
		t.Fatalf("FromPath() reload error = %v", err)
	}
	if !reflect.DeepEqual(reloaded.Names(), []string{"bar"}) {
		t.Errorf("reloaded members = %v, want [bar]", reloaded.Names())
	}
}

func TestRemoveMember_GlobOnlyLeavesDescriptor(t *testing.T) {
	dir := t.TempDir()
	descriptor := "[workspace]\nresolver = \"2\"\nmembers = [\"crates/*\"] # all crates\n"
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(descriptor), 0644); err != nil {
		t.Fatal(err)
	}
	writePackage(t, filepath.Join(dir, "crates", "a"), "a")
	writePackage(t, filepath.Join(dir, "crates", "b"), "b")

	lm := logging.NewTestLogManager(100)
	defer func() { _ = lm.Close() }()
	ctx := context.Background()
	ws, err := FromPath(ctx, newFakeAdapter(), dir, lm.For("workspace"))
	if err != nil {
		t.Fatalf("FromPath() error = %v", err)
	}

	removed, err := ws.RemoveMember(ctx, "a", true)
	if err != nil || removed {
		t.Fatalf("RemoveMember() = %v, %v; want false, nil", removed, err)
	}
	if got := readFile(t, ws.DescriptorPath); got != descriptor {
		t.Errorf("descriptor changed:\n%s", got)
	}
	if _, ok := ws.Member("a"); !ok {
		t.Error("a should still be a member")
	}
	if _, err := os.Stat(filepath.Join(dir, "crates", "a")); err != nil {
		t.Errorf("files should be kept: %v", err)
	}

	warned := false
	for _, e := range lm.Drain() {
		if e.Level == "WARN" && strings.Contains(e.Message, "glob") {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a warning about the glob entry")
	}
}

func TestRemoveMember_DeletionFailureKeepsDescriptor(t *testing.T) {
	ws, _ := newWorkspace(t)
	ctx := context.Background()
	if _, err := ws.CreateMember(ctx, "foo", "", cargo.Binary); err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}

	orig := removeAll
	removeAll = func(string) error { return errors.New("permission denied") }
	defer func() { removeAll = orig }()

	removed, err := ws.RemoveMember(ctx, "foo", true)
	if !errors.Is(err, ErrFilesystem) {
		t.Fatalf("RemoveMember() error = %v, want ErrFilesystem", err)
	}
	if !removed {
		t.Error("RemoveMember() should report the committed descriptor change")
	}
	if got := members(t, ws); len(got) != 0 {
		t.Errorf("members = %v, descriptor change should stay committed", got)
	}
}

func TestRemoveMember_InvalidDescriptor(t *testing.T) {
	ws, _ := newWorkspace(t)
	ctx := context.Background()
	if _, err := ws.CreateMember(ctx, "foo", "", cargo.Binary); err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}
	if err := os.WriteFile(ws.DescriptorPath, []byte("[workspace\n"), 0644); err != nil {
		t.Fatal(err)
	}

	removed, err := ws.RemoveMember(ctx, "foo", false)
	if !errors.Is(err, manifest.ErrManifestIO) {
		t.Errorf("RemoveMember() error = %v, want ErrManifestIO", err)
	}
	if removed {
		t.Error("RemoveMember() = true on failure")
	}
	if _, ok := ws.Member("foo"); !ok {
		t.Error("Members should be unchanged on failure")
	}
}

func TestLink(t *testing.T) {
	ws, _ := newWorkspace(t)
	ctx := context.Background()
	for _, name := range []string{"app", "core"} {
		if _, err := ws.CreateMember(ctx, name, "", cargo.Binary); err != nil {
			t.Fatalf("CreateMember(%s) error = %v", name, err)
		}
	}

	if err := ws.Link(ctx, "app", "core"); err != nil {
		t.Fatalf("Link() error = %v", err)
	}
	content := readFile(t, filepath.Join(ws.Root, "app", "Cargo.toml"))
	if !strings.Contains(content, `core = { path = "../core" }`) {
		t.Errorf("app manifest =\n%s", content)
	}

	if err := ws.Link(ctx, "app", "ghost"); err == nil {
		t.Error("Link() to a non-member should fail")
	}
	if err := ws.Link(ctx, "app", "app"); err == nil {
		t.Error("Link() to itself should fail")
	}
}
