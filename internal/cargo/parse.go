// pattern: Imperative Shell

package cargo

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"peniche/internal/manifest"
	"peniche/internal/paths"
)

// defaultVersion is what cargo assumes when [package] omits a version.
const defaultVersion = "0.0.0"

type rawManifest struct {
	Package *struct {
		Name    string `toml:"name"`
		Version any    `toml:"version"`
	} `toml:"package"`
	Dependencies map[string]any `toml:"dependencies"`
	Workspace    *rawWorkspace  `toml:"workspace"`
}

type rawWorkspace struct {
	Members []string `toml:"members"`
	Exclude []string `toml:"exclude"`
	Package struct {
		Version string `toml:"version"`
	} `toml:"package"`
}

func decodeManifest(path string) (rawManifest, error) {
	var raw rawManifest
	doc, err := manifest.Load(path)
	if err != nil {
		return raw, err
	}
	if err := doc.Decode(&raw); err != nil {
		return raw, err
	}
	return raw, nil
}

// IsWorkspaceDescriptor reports whether the manifest at path declares a
// [workspace] table.
func IsWorkspaceDescriptor(path string) bool {
	raw, err := decodeManifest(path)
	return err == nil && raw.Workspace != nil
}

// ParseManifest reads the package manifest at path, which may name the
// manifest file or the package root.
func (c *CLI) ParseManifest(path string) (ManifestInfo, error) {
	root, manifestPath := paths.SplitManifest(path)
	raw, err := decodeManifest(manifestPath)
	if err != nil {
		return ManifestInfo{}, err
	}
	if raw.Package == nil || raw.Package.Name == "" {
		return ManifestInfo{}, fmt.Errorf("%w: %s has no [package] name", manifest.ErrManifestIO, manifestPath)
	}

	info := ManifestInfo{Name: raw.Package.Name}
	info.Version, err = packageVersion(root, raw.Package.Version)
	if err != nil {
		return ManifestInfo{}, fmt.Errorf("%w: %s: %v", manifest.ErrManifestIO, manifestPath, err)
	}

	for _, name := range slices.Sorted(maps.Keys(raw.Dependencies)) {
		dep, err := declaredDependency(root, name, raw.Dependencies[name])
		if err != nil {
			return ManifestInfo{}, fmt.Errorf("%w: %s: %v", manifest.ErrManifestIO, manifestPath, err)
		}
		info.Dependencies = append(info.Dependencies, dep)
	}
	return info, nil
}

func packageVersion(root string, v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return defaultVersion, nil
	case string:
		return val, nil
	case map[string]any:
		if inherit, _ := val["workspace"].(bool); !inherit {
			return "", fmt.Errorf("unsupported package.version table")
		}
		wsRoot, ok := paths.FindAncestor(root, paths.DescriptorFile, IsWorkspaceDescriptor)
		if !ok {
			return "", fmt.Errorf("package.version.workspace is set but no workspace root was found")
		}
		raw, err := decodeManifest(filepath.Join(wsRoot, paths.DescriptorFile))
		if err != nil {
			return "", err
		}
		if raw.Workspace.Package.Version == "" {
			return "", fmt.Errorf("workspace root %s has no [workspace.package] version", wsRoot)
		}
		return raw.Workspace.Package.Version, nil
	default:
		return "", fmt.Errorf("package.version has unsupported type %T", v)
	}
}

func declaredDependency(root, name string, v any) (DeclaredDependency, error) {
	dep := DeclaredDependency{Name: name}
	switch val := v.(type) {
	case string:
		dep.Version = val
	case map[string]any:
		dep.Version, _ = val["version"].(string)
		dep.Git, _ = val["git"].(string)
		dep.Workspace, _ = val["workspace"].(bool)
		if p, ok := val["path"].(string); ok {
			if !filepath.IsAbs(p) {
				p = filepath.Join(root, p)
			}
			dep.Path = filepath.Clean(p)
		}
	default:
		return dep, fmt.Errorf("dependency %q has unsupported type %T", name, v)
	}
	return dep, nil
}

// EnumerateMembers returns the package roots of every workspace member of the
// descriptor at root, sorted. Member entries may be glob patterns. The root
// itself is included when it is also a package.
func (c *CLI) EnumerateMembers(root string) ([]string, error) {
	root, manifestPath := paths.SplitManifest(root)
	raw, err := decodeManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	if raw.Workspace == nil {
		return nil, fmt.Errorf("%w: %s has no [workspace] table", manifest.ErrManifestIO, manifestPath)
	}

	excluded := make(map[string]bool, len(raw.Workspace.Exclude))
	for _, e := range raw.Workspace.Exclude {
		excluded[ResolveMember(root, e)] = true
	}

	seen := make(map[string]bool)
	var members []string
	add := func(dir string) {
		if seen[dir] || excluded[dir] {
			return
		}
		seen[dir] = true
		members = append(members, dir)
	}

	if raw.Package != nil {
		add(root)
	}
	for _, pattern := range raw.Workspace.Members {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid member pattern %q in %s: %v", manifest.ErrManifestIO, pattern, manifestPath, err)
		}
		if len(matches) == 0 {
			c.logger.Warn("workspace member not found", "member", pattern, "root", root)
			continue
		}
		for _, m := range matches {
			if isPackageDir(m) {
				add(filepath.Clean(m))
			}
		}
	}
	sort.Strings(members)
	return members, nil
}

// ResolveMember turns a member-list entry into an absolute path under root.
func ResolveMember(root, entry string) string {
	if filepath.IsAbs(entry) {
		return filepath.Clean(entry)
	}
	return filepath.Join(root, entry)
}

func isPackageDir(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	raw, err := decodeManifest(filepath.Join(dir, paths.DescriptorFile))
	return err == nil && raw.Package != nil
}
