// pattern: Functional Core

// Package paths normalizes filesystem paths and derives package-root and
// manifest locations.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DescriptorFile is the manifest file name used by packages and workspace roots.
const DescriptorFile = "Cargo.toml"

// ErrIO indicates the working directory or a directory could not be
// determined or created.
var ErrIO = errors.New("io error")

// getwd is swapped in tests.
var getwd = os.Getwd

// Resolve returns path unchanged if it is absolute, otherwise joins it with
// the process working directory.
func Resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	base, err := getwd()
	if err != nil {
		return "", fmt.Errorf("%w: failed to get current directory: %v", ErrIO, err)
	}
	return filepath.Join(base, path), nil
}

// EnsureDir resolves path and creates any missing directories. Idempotent.
func EnsureDir(path string) (string, error) {
	abs, err := Resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create directory at %s: %v", ErrIO, abs, err)
	}
	return abs, nil
}

// SplitManifest derives the package root and manifest path from path.
// If path names a manifest file, root is its parent; otherwise path is the
// root and the manifest lives directly inside it. No I/O is performed.
func SplitManifest(path string) (root, manifest string) {
	if filepath.Base(path) == DescriptorFile {
		return filepath.Dir(path), path
	}
	return path, filepath.Join(path, DescriptorFile)
}

// FindAncestor walks from start towards the filesystem root and returns the
// first directory containing name for which accept reports true. A nil accept
// matches any existing file.
func FindAncestor(start, name string, accept func(path string) bool) (string, bool) {
	dir := filepath.Clean(start)
	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			if accept == nil || accept(candidate) {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
