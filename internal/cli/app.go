// pattern: Functional Core
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Command represents a single CLI command with its metadata and handler.
type Command struct {
	Name    string
	Aliases []string
	Summary string
	Usage   string
	Run     func(args []string) error
}

// UsageError reports bad arguments; the command's usage is printed with it.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}

func usageErrorf(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// App represents the top-level CLI application.
type App struct {
	commands map[string]*Command
	aliases  map[string]string
	order    []string
	version  string

	// Stderr receives help and usage text. Defaults to os.Stderr.
	Stderr io.Writer

	// ReportError prints a failed command's error. Defaults to a plain
	// "Error: ..." line on Stderr.
	ReportError func(error)
}

// NewApp creates a new CLI application with the given version.
func NewApp(version string) *App {
	return &App{
		commands: make(map[string]*Command),
		aliases:  make(map[string]string),
		version:  version,
	}
}

// AddCommand registers a command and its aliases. Help lists commands in
// registration order.
func (a *App) AddCommand(cmd *Command) {
	a.commands[cmd.Name] = cmd
	a.order = append(a.order, cmd.Name)
	for _, alias := range cmd.Aliases {
		a.aliases[alias] = cmd.Name
	}
}

// Lookup resolves a command by name or alias.
func (a *App) Lookup(name string) (*Command, bool) {
	if target, ok := a.aliases[name]; ok {
		name = target
	}
	cmd, ok := a.commands[name]
	return cmd, ok
}

// Execute dispatches the CLI arguments to the matching command and returns
// the process exit code.
func (a *App) Execute(args []string) int {
	stderr := a.stderr()

	if len(args) == 0 {
		a.PrintHelp(stderr)
		return 2
	}

	cmdName := args[0]
	if cmdName == "help" || cmdName == "--help" || cmdName == "-h" {
		if len(args) > 1 {
			if cmd, ok := a.Lookup(args[1]); ok {
				fmt.Fprintf(stderr, "%s\n", cmd.Usage)
				return 0
			}
		}
		a.PrintHelp(stderr)
		return 0
	}

	cmd, ok := a.Lookup(cmdName)
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmdName)
		a.PrintHelp(stderr)
		return 1
	}

	// Check for help flags
	for _, arg := range args[1:] {
		if arg == "--" {
			break
		}
		if arg == "--help" || arg == "-h" {
			fmt.Fprintf(stderr, "%s\n", cmd.Usage)
			return 0
		}
	}

	if err := cmd.Run(args[1:]); err != nil {
		a.report(err)
		var usageErr *UsageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "%s\n", cmd.Usage)
			return 2
		}
		return 1
	}
	return 0
}

func (a *App) stderr() io.Writer {
	if a.Stderr == nil {
		return os.Stderr
	}
	return a.Stderr
}

func (a *App) report(err error) {
	if a.ReportError != nil {
		a.ReportError(err)
		return
	}
	fmt.Fprintf(a.stderr(), "Error: %v\n", err)
}

// PrintHelp prints the top-level help text.
func (a *App) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "peniche %s: manage a Cargo workspace and run its commands\n\n", a.version)
	fmt.Fprintf(w, "Usage: peniche [options] <command> [args]\n\n")
	fmt.Fprintf(w, "Commands:\n")

	for _, name := range a.order {
		cmd := a.commands[name]
		label := cmd.Name
		if len(cmd.Aliases) > 0 {
			label += " (" + strings.Join(cmd.Aliases, ", ") + ")"
		}
		fmt.Fprintf(w, "  %-18s %s\n", label, cmd.Summary)
	}

	fmt.Fprintf(w, "\nUse \"peniche <command> --help\" for command details.\n\n")
	fmt.Fprintf(w, "Options:\n")
}
