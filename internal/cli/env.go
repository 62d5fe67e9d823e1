// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"peniche/internal/cargo"
	"peniche/internal/config"
	"peniche/internal/logging"
	"peniche/internal/ui"
	"peniche/internal/workspace"
)

// Env is the shared state of one CLI invocation: where to read settings,
// where to write output and which cargo adapter to drive. Zero fields fall
// back to the process defaults.
type Env struct {
	// ConfigDir holds config.yaml and the log file. Defaults to
	// ~/.config/peniche.
	ConfigDir string

	// CommandsFile overrides the configured command configuration path.
	CommandsFile string

	NoColor bool
	Verbose bool

	// WorkDir anchors relative paths and workspace discovery. Defaults to
	// the current directory.
	WorkDir string

	Stdout io.Writer
	Stderr io.Writer

	// Context is cancelled on SIGINT/SIGTERM by main.
	Context context.Context

	// Adapter defaults to the cargo command line. Overridable for testing.
	Adapter cargo.Adapter

	// HostOS overrides runtime.GOOS for command resolution.
	HostOS string

	cfg     config.Config
	logs    *logging.Manager
	printer *ui.Printer
	ready   bool
}

// setup loads the config and opens the log file once per invocation.
func (e *Env) setup() error {
	if e.ready {
		return nil
	}
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	if e.Context == nil {
		e.Context = context.Background()
	}
	if e.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
		e.WorkDir = wd
	}

	dir := config.ResolveDir(e.ConfigDir)
	cfg, err := config.LoadFromDir(dir)
	if err != nil {
		e.printer = ui.NewPrinter(e.Stdout, e.Stderr, ui.NewStyles(ui.DefaultTheme, ui.ColorEnabled(e.Stderr, e.NoColor)))
		return fmt.Errorf("loading config: %w", err)
	}
	e.cfg = cfg

	color := ui.ColorEnabled(e.Stdout, e.NoColor || cfg.NoColor)
	e.printer = ui.NewPrinter(e.Stdout, e.Stderr, ui.NewStyles(cfg.Theme, color))

	consoleLevel := ""
	if e.Verbose {
		consoleLevel = "debug"
	}
	logs, err := logging.NewManager(logging.Config{
		FilePath:     config.LogPath(dir),
		MaxSizeMB:    10,
		MaxBackups:   3,
		MaxAgeDays:   7,
		Level:        cfg.LogLevel,
		ConsoleLevel: consoleLevel,
		Console:      e.Stderr,
	})
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	e.logs = logs

	if e.Adapter == nil {
		e.Adapter = cargo.NewCLI(logs.For("cargo"))
	}
	e.ready = true
	return nil
}

// Close flushes and closes the log file.
func (e *Env) Close() error {
	if e.logs == nil {
		return nil
	}
	_ = e.logs.Sync()
	return e.logs.Close()
}

// ReportError prints err in the error style, falling back to plain text
// before setup has run.
func (e *Env) ReportError(err error) {
	if e.printer != nil {
		e.printer.Error("%v", err)
		return
	}
	w := e.Stderr
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func (e *Env) logger(scope string) *logging.ScopedLogger {
	if e.logs == nil {
		return logging.NopLogger()
	}
	return e.logs.For(scope)
}

// abs resolves path against WorkDir.
func (e *Env) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(e.WorkDir, path)
}

// workspace loads the workspace enclosing WorkDir.
func (e *Env) workspace() (*workspace.Workspace, error) {
	return workspace.FromPath(e.Context, e.Adapter, e.WorkDir, e.logger("workspace"))
}
