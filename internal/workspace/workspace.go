// pattern: Imperative Shell

// Package workspace models a workspace root and its member packages, and
// keeps the on-disk descriptor in sync with membership changes.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"peniche/internal/cargo"
	"peniche/internal/crate"
	"peniche/internal/lock"
	"peniche/internal/logging"
	"peniche/internal/manifest"
	"peniche/internal/paths"
)

var (
	// ErrNotFound indicates no workspace descriptor exists at or above a path.
	ErrNotFound = errors.New("workspace not found")
	// ErrFilesystem indicates a member directory could not be deleted.
	ErrFilesystem = errors.New("filesystem error")
)

const (
	descriptorTable = "workspace"
	membersKey      = "members"
)

// removeAll is swapped in tests.
var removeAll = os.RemoveAll

// Workspace is a loaded workspace. Members is keyed by package name and
// mirrors the descriptor's member list after every mutation.
type Workspace struct {
	Root           string
	DescriptorPath string
	Name           string
	Members        map[string]*crate.Package

	adapter  cargo.Adapter
	logger   *logging.ScopedLogger
	lockWait time.Duration
}

// Initialize creates path if needed, writes a fresh descriptor when none
// exists and loads the workspace. An existing descriptor is never rewritten.
func Initialize(ctx context.Context, adapter cargo.Adapter, path, name string, logger *logging.ScopedLogger) (*Workspace, error) {
	abs, err := paths.EnsureDir(path)
	if err != nil {
		return nil, err
	}
	root, descriptor := paths.SplitManifest(abs)

	if _, err := os.Stat(descriptor); errors.Is(err, os.ErrNotExist) {
		if err := manifest.WriteAtomic(descriptor, freshDescriptor(name), 0644); err != nil {
			return nil, fmt.Errorf("%w: %v", manifest.ErrManifestIO, err)
		}
		if logger != nil {
			logger.Info("workspace descriptor created", "path", descriptor, "name", name)
		}
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", manifest.ErrManifestIO, err)
	}

	return FromPath(ctx, adapter, root, logger)
}

func freshDescriptor(name string) []byte {
	return []byte("[workspace]\nresolver = \"2\"\nname = " + manifest.Quote(name) + "\nmembers = []\n")
}

// FromPath loads the nearest workspace at or above path.
func FromPath(ctx context.Context, adapter cargo.Adapter, path string, logger *logging.ScopedLogger) (*Workspace, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	abs, err := paths.Resolve(path)
	if err != nil {
		return nil, err
	}
	start := abs
	if filepath.Base(abs) == paths.DescriptorFile {
		start = filepath.Dir(abs)
	}

	root, ok := paths.FindAncestor(start, paths.DescriptorFile, cargo.IsWorkspaceDescriptor)
	if !ok {
		return nil, fmt.Errorf("%w: no %s with a [workspace] table at or above %s", ErrNotFound, paths.DescriptorFile, start)
	}

	ws := &Workspace{
		Root:           root,
		DescriptorPath: filepath.Join(root, paths.DescriptorFile),
		Name:           filepath.Base(root),
		Members:        make(map[string]*crate.Package),
		adapter:        adapter,
		logger:         logger,
		lockWait:       lock.DefaultWait,
	}

	doc, err := manifest.Load(ws.DescriptorPath)
	if err != nil {
		return nil, err
	}
	var desc struct {
		Workspace struct {
			Name string `toml:"name"`
		} `toml:"workspace"`
	}
	if err := doc.Decode(&desc); err != nil {
		return nil, err
	}
	if desc.Workspace.Name != "" {
		ws.Name = desc.Workspace.Name
	}

	dirs, err := adapter.EnumerateMembers(root)
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pkg, err := crate.FromPath(adapter, dir)
		if err != nil {
			return nil, fmt.Errorf("loading member %s: %w", dir, err)
		}
		ws.Members[pkg.Name] = pkg
	}

	logger.Debug("workspace loaded", "root", root, "members", len(ws.Members))
	return ws, nil
}

// Member returns the member called name.
func (w *Workspace) Member(name string) (*crate.Package, bool) {
	pkg, ok := w.Members[name]
	return pkg, ok
}

// Names returns member names in sorted order.
func (w *Workspace) Names() []string {
	names := make([]string, 0, len(w.Members))
	for name := range w.Members {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CreateMember scaffolds a new package at path and registers it in the
// descriptor. An empty path means <root>/<name>; a relative path is taken
// relative to the workspace root.
func (w *Workspace) CreateMember(ctx context.Context, name, path string, kind cargo.Kind) (*crate.Package, error) {
	if err := cargo.ValidateName(name); err != nil {
		return nil, err
	}
	if _, exists := w.Members[name]; exists {
		return nil, fmt.Errorf("package %q is already a member of %s", name, w.Name)
	}

	target := w.memberPath(name, path)
	rel, err := filepath.Rel(w.Root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("member path %s is outside workspace root %s", target, w.Root)
	}

	if err := w.adapter.Scaffold(ctx, kind, name, target); err != nil {
		return nil, err
	}

	err = w.withLock(ctx, func() error {
		doc, entries, err := w.loadMembers(false)
		if err != nil {
			return err
		}
		if w.listed(entries, target) {
			w.logger.Debug("member already listed", "name", name)
			return nil
		}
		entries = append(entries, filepath.ToSlash(rel))
		if err := doc.SetStringArray(descriptorTable, membersKey, entries); err != nil {
			return err
		}
		return doc.Save()
	})
	if err != nil {
		return nil, err
	}

	pkg, err := crate.FromPath(w.adapter, target)
	if err != nil {
		return nil, err
	}
	w.Members[pkg.Name] = pkg
	w.logger.Info("member created", "name", pkg.Name, "kind", kind.String(), "path", target)
	return pkg, nil
}

// RemoveMember drops name from the descriptor's member list and from Members.
// Only entries resolving to the member's directory are dropped. It reports
// false, touching nothing, when name is not a member or no literal entry
// points at it. With deleteFiles, a local member's directory is deleted
// after the descriptor is written; if that fails the descriptor change stays.
func (w *Workspace) RemoveMember(ctx context.Context, name string, deleteFiles bool) (bool, error) {
	pkg, ok := w.Members[name]
	if !ok {
		return false, nil
	}
	memberRoot := pkg.Root()

	changed := false
	err := w.withLock(ctx, func() error {
		doc, entries, err := w.loadMembers(true)
		if err != nil {
			return err
		}
		kept := entries[:0:0]
		for _, entry := range entries {
			if memberRoot != "" && cargo.ResolveMember(w.Root, entry) == memberRoot {
				continue
			}
			if memberRoot == "" && entry == name {
				continue
			}
			kept = append(kept, entry)
		}
		if len(kept) == len(entries) {
			if w.listed(entries, memberRoot) {
				w.logger.Warn("member is matched by a glob entry and cannot be removed from the list", "name", name)
			}
			return nil
		}
		if err := doc.SetStringArray(descriptorTable, membersKey, kept); err != nil {
			return err
		}
		if err := doc.Save(); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil || !changed {
		return false, err
	}

	delete(w.Members, name)
	w.logger.Info("member removed", "name", name, "delete_files", deleteFiles)

	if deleteFiles && pkg.Origin.Kind == crate.LocalPath && memberRoot != "" {
		if err := removeAll(memberRoot); err != nil {
			return true, fmt.Errorf("%w: descriptor updated but deleting %s failed: %v", ErrFilesystem, memberRoot, err)
		}
	}
	return true, nil
}

// Link declares the member to as a dependency of the member from.
func (w *Workspace) Link(ctx context.Context, from, to string) error {
	src, ok := w.Members[from]
	if !ok {
		return fmt.Errorf("package %q is not a member of %s", from, w.Name)
	}
	dst, ok := w.Members[to]
	if !ok {
		return fmt.Errorf("package %q is not a member of %s", to, w.Name)
	}
	if from == to {
		return fmt.Errorf("package %q cannot depend on itself", from)
	}
	return w.withLock(ctx, func() error {
		if err := src.LinkTo(dst); err != nil {
			return err
		}
		w.logger.Info("members linked", "from", from, "to", to)
		return nil
	})
}

func (w *Workspace) memberPath(name, path string) string {
	switch {
	case path == "":
		return filepath.Join(w.Root, name)
	case filepath.IsAbs(path):
		return filepath.Clean(path)
	default:
		return filepath.Join(w.Root, path)
	}
}

// loadMembers re-reads the descriptor from disk and returns its member list.
func (w *Workspace) loadMembers(required bool) (*manifest.Document, []string, error) {
	doc, err := manifest.Load(w.DescriptorPath)
	if err != nil {
		return nil, nil, err
	}
	entries, ok, err := doc.StringArray(descriptorTable, membersKey)
	if err != nil {
		return nil, nil, err
	}
	if !ok && required {
		return nil, nil, fmt.Errorf("%w: %s has no workspace.members list", manifest.ErrManifestIO, w.DescriptorPath)
	}
	return doc, entries, nil
}

// listed reports whether any entry, literal or glob, covers dir.
func (w *Workspace) listed(entries []string, dir string) bool {
	if dir == "" {
		return false
	}
	for _, entry := range entries {
		resolved := cargo.ResolveMember(w.Root, entry)
		if resolved == dir {
			return true
		}
		if ok, err := filepath.Match(resolved, dir); err == nil && ok {
			return true
		}
	}
	return false
}

func (w *Workspace) withLock(ctx context.Context, fn func() error) error {
	l, err := lock.Acquire(ctx, w.Root, w.lockWait)
	if err != nil {
		return err
	}
	defer func() { _ = l.Release() }()
	return fn()
}
