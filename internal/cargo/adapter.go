// pattern: Imperative Shell

// Package cargo is the boundary to the external dependency manager. Manifest
// parsing and member enumeration happen in-process; scaffolding, building and
// installing are delegated to the cargo binary.
package cargo

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"peniche/internal/logging"
)

// Kind selects the package template used when scaffolding.
type Kind int

const (
	Binary  Kind = iota // Executable package
	Library             // Library package
)

func (k Kind) String() string {
	if k == Library {
		return "lib"
	}
	return "bin"
}

// DeclaredDependency is one entry of a manifest's [dependencies] table.
// Path is absolute when set.
type DeclaredDependency struct {
	Name      string
	Version   string
	Path      string
	Git       string
	Workspace bool
}

// ManifestInfo is the subset of a package manifest the workspace model needs.
type ManifestInfo struct {
	Name         string
	Version      string
	Dependencies []DeclaredDependency
}

// Adapter is everything the workspace model asks of the dependency manager.
type Adapter interface {
	ParseManifest(path string) (ManifestInfo, error)
	EnumerateMembers(root string) ([]string, error)
	Scaffold(ctx context.Context, kind Kind, name, path string) error
	BuildAndInstall(ctx context.Context, root string) error
	RemoveInstalled(ctx context.Context, name string) error
}

// ExecFunc runs name with args in dir and returns its combined output.
type ExecFunc func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// LookPathFunc is the function signature for looking up executables.
type LookPathFunc func(name string) (string, error)

// CLI implements Adapter on top of the cargo command line.
type CLI struct {
	Binary   string
	Exec     ExecFunc
	LookPath LookPathFunc
	logger   *logging.ScopedLogger
}

// NewCLI returns an adapter that runs the cargo binary found on PATH.
func NewCLI(logger *logging.ScopedLogger) *CLI {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &CLI{
		Binary:   "cargo",
		Exec:     runCommand,
		LookPath: exec.LookPath,
		logger:   logger,
	}
}

// Available reports whether the cargo binary can be found.
func (c *CLI) Available() bool {
	_, err := c.LookPath(c.Binary)
	return err == nil
}

// Scaffold creates a new package of the given kind at path.
func (c *CLI) Scaffold(ctx context.Context, kind Kind, name, path string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return c.run(ctx, "", "new", "--vcs", "none", "--"+kind.String(), "--name", name, path)
}

// BuildAndInstall builds the package at root in release mode and installs its
// binaries into the user's cargo bin directory.
func (c *CLI) BuildAndInstall(ctx context.Context, root string) error {
	return c.run(ctx, root, "install", "--path", root)
}

// RemoveInstalled uninstalls the binaries previously installed for name.
func (c *CLI) RemoveInstalled(ctx context.Context, name string) error {
	return c.run(ctx, "", "uninstall", name)
}

func (c *CLI) run(ctx context.Context, dir string, args ...string) error {
	c.logger.Debug("running cargo", "args", strings.Join(args, " "), "dir", dir)
	output, err := c.Exec(ctx, dir, c.Binary, args...)
	if err != nil {
		c.logger.Warn("cargo failed", "subcommand", args[0], "error", err)
		return fmt.Errorf("cargo %s: %s: %w", args[0], strings.TrimSpace(string(output)), err)
	}
	return nil
}

func runCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// validNameRe matches package names cargo accepts without complaint.
var validNameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidateName checks that name is usable as a package name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("package name cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("package name too long (max 64 characters)")
	}
	if !validNameRe.MatchString(name) {
		return fmt.Errorf("invalid package name %q: must start with a letter, may contain a-z A-Z 0-9 _ -", name)
	}
	return nil
}
