// pattern: Imperative Shell
package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"peniche/internal/cargo"
	"peniche/internal/crate"
	"peniche/internal/workspace"
)

func (e *Env) runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 1 || len(rest) > 2 {
		return usageErrorf("init takes a name and an optional path")
	}

	name := rest[0]
	path := filepath.Join(e.WorkDir, name)
	if len(rest) == 2 {
		path = e.abs(rest[1])
	}

	ws, err := workspace.Initialize(e.Context, e.Adapter, path, name, e.logger("workspace"))
	if err != nil {
		return err
	}
	e.printer.Success("Initialized workspace %s at %s", ws.Name, ws.Root)
	return nil
}

func (e *Env) runNew(args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	fs.Bool("bin", true, "create a binary package (default)")
	lib := fs.Bool("lib", false, "create a library package")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	names := fs.Args()
	if len(names) == 0 {
		return usageErrorf("new needs at least one package name")
	}

	kind := cargo.Binary
	if *lib {
		kind = cargo.Library
	}

	ws, err := e.workspace()
	if err != nil {
		return err
	}
	for _, name := range names {
		pkg, err := ws.CreateMember(e.Context, name, "", kind)
		if err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
		e.printer.Success("Created %s package %s", kind, pkg.Name)
	}
	return nil
}

func (e *Env) runRemove(args []string) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	rmdir := fs.Bool("rmdir", false, "also delete the member directories")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	names := fs.Args()
	if len(names) == 0 {
		return usageErrorf("rm needs at least one package name")
	}

	ws, err := e.workspace()
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		removed, err := ws.RemoveMember(e.Context, name, *rmdir)
		if removed {
			e.printer.Success("Removed %s from %s", name, ws.Name)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("removing %s: %w", name, err))
			continue
		}
		if !removed {
			e.printer.Warn("%s is not a listed member of %s", name, ws.Name)
		}
	}
	return errors.Join(errs...)
}

func (e *Env) runList(args []string) error {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ws, err := e.workspace()
	if err != nil {
		return err
	}
	if len(ws.Members) == 0 {
		e.printer.Info("%s has no members", ws.Name)
		return nil
	}
	styles := e.printer.Styles()
	for _, name := range ws.Names() {
		pkg := ws.Members[name]
		e.printer.Plain("%s %s - %s",
			styles.Render(styles.AccentStyle(), pkg.Name),
			styles.Render(styles.MutedStyle(), "("+pkg.Version+")"),
			pkg.Origin)
	}
	return nil
}

func (e *Env) runLink(args []string) error {
	fs := flag.NewFlagSet("link", flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 2 {
		return usageErrorf("link takes exactly two package names")
	}

	ws, err := e.workspace()
	if err != nil {
		return err
	}
	if err := ws.Link(e.Context, rest[0], rest[1]); err != nil {
		return err
	}
	e.printer.Success("%s now depends on %s", rest[0], rest[1])
	return nil
}

func (e *Env) runInstall(args []string) error {
	return e.eachMember("install", args, func(pkg *crate.Package) error {
		if err := pkg.InstallGlobally(e.Context, e.Adapter); err != nil {
			return err
		}
		e.printer.Success("Installed %s", pkg.Name)
		return nil
	})
}

func (e *Env) runUninstall(args []string) error {
	return e.eachMember("uninstall", args, func(pkg *crate.Package) error {
		if err := pkg.UninstallGlobally(e.Context, e.Adapter); err != nil {
			return err
		}
		e.printer.Success("Uninstalled %s", pkg.Name)
		return nil
	})
}

// eachMember applies fn to every named member in order and stops at the
// first failure.
func (e *Env) eachMember(cmd string, args []string, fn func(*crate.Package) error) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	names := fs.Args()
	if len(names) == 0 {
		return usageErrorf("%s needs at least one package name", cmd)
	}

	ws, err := e.workspace()
	if err != nil {
		return err
	}
	for _, name := range names {
		pkg, ok := ws.Member(name)
		if !ok {
			return fmt.Errorf("package %q is not a member of %s", name, ws.Name)
		}
		if err := fn(pkg); err != nil {
			return fmt.Errorf("%s %s: %w", cmd, name, err)
		}
	}
	return nil
}

func (e *Env) runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ws, err := e.workspace()
	if err != nil {
		return err
	}
	styles := e.printer.Styles()
	label := func(s string) string { return styles.Render(styles.SubtitleStyle(), fmt.Sprintf("%-12s", s)) }

	e.printer.Plain("%s", styles.Render(styles.TitleStyle(), ws.Name))
	e.printer.Plain("%s %s", label("root"), ws.Root)
	e.printer.Plain("%s %s", label("descriptor"), ws.DescriptorPath)
	e.printer.Plain("%s %d", label("members"), len(ws.Members))
	e.printer.Plain("%s %s", label("commands"), e.commandsFile())
	if cargoCLI, ok := e.Adapter.(*cargo.CLI); ok {
		status := styles.Render(styles.SuccessStyle(), "available")
		if !cargoCLI.Available() {
			status = styles.Render(styles.WarnStyle(), "not found on PATH")
		}
		e.printer.Plain("%s %s", label("cargo"), status)
	}
	if e.logs != nil {
		e.printer.Plain("%s %s", label("log"), e.logs.Path())
	}
	return nil
}
