// pattern: Imperative Shell
package cli

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"time"

	flag "github.com/spf13/pflag"

	"peniche/internal/paths"
	"peniche/internal/process"
	"peniche/internal/tasks"
)

// commandsFile returns the command configuration to load. An explicit
// --config is taken relative to WorkDir; the configured name is looked up in
// WorkDir and its ancestors.
func (e *Env) commandsFile() string {
	if e.CommandsFile != "" {
		return e.abs(e.CommandsFile)
	}
	name := e.cfg.CommandsFile
	if name == "" {
		name = tasks.DefaultFile
	}
	if filepath.IsAbs(name) {
		return name
	}
	if dir, ok := paths.FindAncestor(e.WorkDir, name, nil); ok {
		return filepath.Join(dir, name)
	}
	return e.abs(name)
}

func (e *Env) runCommands(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	list := fs.BoolP("list", "l", false, "list available commands")
	timeout := fs.Duration("timeout", e.cfg.Timeout, "cancel all commands after this duration (0 disables)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *timeout < 0 {
		return usageErrorf("--timeout must not be negative")
	}

	registry, err := tasks.Load(e.commandsFile())
	if err != nil {
		return err
	}

	names := fs.Args()
	if *list || len(names) == 0 {
		e.listCommands(registry)
		return nil
	}

	ctx := e.Context
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	runner := process.NewRunner(registry, e.Stdout, e.Stderr, process.Config{
		HostOS: e.HostOS,
		Cwd:    e.WorkDir,
		Styles: e.printer.Styles(),
	}, e.logger("run"))

	start := time.Now()
	results := runner.ExecuteMany(ctx, names)
	e.summarize(results, time.Since(start))
	return nil
}

func (e *Env) listCommands(registry *tasks.Registry) {
	if registry.Len() == 0 {
		e.printer.Info("No commands defined in %s", registry.Path())
		return
	}
	styles := e.printer.Styles()
	e.printer.Info("Available commands in %s:", registry.Path())
	for _, name := range registry.Names() {
		cmd, _ := registry.Get(name)
		line := registry.Resolve(cmd, e.hostOS(), e.WorkDir).Line
		if line == "" {
			line = styles.Render(styles.MutedStyle(), "(nothing to run on "+e.hostOS()+")")
		}
		e.printer.Plain("  %s %s", styles.Tag(name), line)
	}
}

// summarize reports failed commands. Failures never change the exit code.
func (e *Env) summarize(results []process.Result, elapsed time.Duration) {
	failed := 0
	for _, res := range results {
		if res.OK() {
			continue
		}
		failed++
		var exitErr *process.ExitError
		switch {
		case res.Cancelled:
			e.printer.Warn("%s was cancelled", res.Name)
		case errors.As(res.Err, &exitErr):
			e.printer.Warn("%s exited with code %d", res.Name, exitErr.Code)
		default:
			e.printer.Warn("%s failed: %v", res.Name, res.Err)
		}
	}
	if failed == 0 {
		e.printer.Success("%d command(s) finished in %s", len(results), elapsed.Round(time.Millisecond))
		return
	}
	e.printer.Info("%d of %d command(s) failed", failed, len(results))
}

func (e *Env) hostOS() string {
	if e.HostOS != "" {
		return e.HostOS
	}
	return runtime.GOOS
}
