// pattern: Imperative Shell

// Package crate models one package: its identity, where it comes from and
// the dependencies its manifest declares.
package crate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"peniche/internal/cargo"
	"peniche/internal/manifest"
	"peniche/internal/paths"
)

// ErrUnsupportedOrigin indicates an operation needs a package with a local
// manifest, or one that can be built from source.
var ErrUnsupportedOrigin = errors.New("unsupported origin")

// OriginKind identifies where a package comes from.
type OriginKind int

const (
	Registry        OriginKind = iota // Published to a package registry
	LocalPath                         // Source on the local filesystem
	RemoteGit                         // Source in a git repository
	WorkspaceMember                   // Inherited from the enclosing workspace
)

func (k OriginKind) String() string {
	switch k {
	case LocalPath:
		return "path"
	case RemoteGit:
		return "git"
	case WorkspaceMember:
		return "workspace"
	default:
		return "registry"
	}
}

// Origin is the provenance of a package. Location is the filesystem path for
// LocalPath, the repository URL for RemoteGit, and an optional path for
// WorkspaceMember.
type Origin struct {
	Kind     OriginKind
	Location string
}

// RegistryOrigin returns a registry origin.
func RegistryOrigin() Origin { return Origin{Kind: Registry} }

// PathOrigin returns a local path origin.
func PathOrigin(path string) Origin { return Origin{Kind: LocalPath, Location: path} }

// GitOrigin returns a remote git origin.
func GitOrigin(url string) Origin { return Origin{Kind: RemoteGit, Location: url} }

// WorkspaceOrigin returns a workspace-inherited origin.
func WorkspaceOrigin() Origin { return Origin{Kind: WorkspaceMember} }

func (o Origin) String() string {
	if o.Location == "" {
		return o.Kind.String()
	}
	return o.Kind.String() + "+" + o.Location
}

// Package is one versioned unit of source code. ManifestPath is set only for
// packages whose manifest is on the local filesystem. Dependencies is a
// snapshot taken when the package was loaded.
type Package struct {
	Name         string
	Version      string
	Origin       Origin
	ManifestPath string
	Dependencies map[string]*Package
}

// New builds a package and derives its manifest path from the origin.
func New(name, version string, origin Origin) *Package {
	p := &Package{
		Name:         name,
		Version:      version,
		Origin:       origin,
		Dependencies: make(map[string]*Package),
	}
	if origin.Location != "" && (origin.Kind == LocalPath || origin.Kind == WorkspaceMember) {
		_, p.ManifestPath = paths.SplitManifest(origin.Location)
	}
	return p
}

// Root returns the package root directory, or "" when the package has no
// local manifest.
func (p *Package) Root() string {
	if p.ManifestPath == "" {
		return ""
	}
	return filepath.Dir(p.ManifestPath)
}

// FromPath materializes the package at path, with one level of dependencies.
func FromPath(adapter cargo.Adapter, path string) (*Package, error) {
	abs, err := paths.Resolve(path)
	if err != nil {
		return nil, err
	}
	root, _ := paths.SplitManifest(abs)

	info, err := adapter.ParseManifest(root)
	if err != nil {
		return nil, err
	}

	p := New(info.Name, info.Version, PathOrigin(root))
	for _, dep := range info.Dependencies {
		p.Dependencies[dep.Name] = New(dep.Name, dep.Version, dependencyOrigin(dep))
	}
	return p, nil
}

func dependencyOrigin(dep cargo.DeclaredDependency) Origin {
	switch {
	case dep.Path != "":
		return PathOrigin(dep.Path)
	case dep.Git != "":
		return GitOrigin(dep.Git)
	case dep.Workspace:
		return WorkspaceOrigin()
	default:
		return RegistryOrigin()
	}
}

// DependencyDescriptor returns the manifest entry that declares p as a
// dependency. Local paths are written as given.
func (p *Package) DependencyDescriptor() manifest.Dependency {
	switch p.Origin.Kind {
	case LocalPath:
		return manifest.Dependency{Path: p.Origin.Location}
	case RemoteGit:
		return manifest.Dependency{Git: p.Origin.Location}
	case WorkspaceMember:
		return manifest.Dependency{Workspace: true}
	default:
		return manifest.Dependency{Version: p.Version}
	}
}

// LinkTo declares other as a dependency in p's manifest, replacing any
// previous declaration of the same name. Local paths are written relative to
// p's root.
func (p *Package) LinkTo(other *Package) error {
	if p.ManifestPath == "" {
		return fmt.Errorf("%w: %s has no local manifest to edit", ErrUnsupportedOrigin, p.Name)
	}

	dep := other.DependencyDescriptor()
	if dep.Path != "" {
		if rel, err := filepath.Rel(p.Root(), filepath.Clean(dep.Path)); err == nil {
			dep.Path = filepath.ToSlash(rel)
		}
	}

	doc, err := manifest.Load(p.ManifestPath)
	if err != nil {
		return err
	}
	if err := doc.SetDependency(other.Name, dep); err != nil {
		return err
	}
	if err := doc.Save(); err != nil {
		return err
	}

	p.Dependencies[other.Name] = New(other.Name, other.Version, other.Origin)
	return nil
}

// InstallGlobally builds p from source and installs its binaries.
func (p *Package) InstallGlobally(ctx context.Context, adapter cargo.Adapter) error {
	if p.Origin.Kind != LocalPath {
		return fmt.Errorf("%w: only local packages can be installed, %s is %s", ErrUnsupportedOrigin, p.Name, p.Origin.Kind)
	}
	return adapter.BuildAndInstall(ctx, p.Root())
}

// UninstallGlobally removes binaries previously installed for p.
func (p *Package) UninstallGlobally(ctx context.Context, adapter cargo.Adapter) error {
	if p.Origin.Kind != LocalPath {
		return fmt.Errorf("%w: only local packages can be uninstalled, %s is %s", ErrUnsupportedOrigin, p.Name, p.Origin.Kind)
	}
	return adapter.RemoveInstalled(ctx, p.Name)
}
