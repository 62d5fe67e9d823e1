// pattern: Imperative Shell
package cli

import (
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
)

// BuildApp creates and configures the CLI application with all commands.
func BuildApp(version string, env *Env) *App {
	app := NewApp(version)
	app.Stderr = env.Stderr
	app.ReportError = env.ReportError

	app.AddCommand(&Command{
		Name:    "init",
		Summary: "Create a workspace descriptor",
		Usage:   "Usage: peniche init <name> [path]",
		Run:     env.withSetup(env.runInit),
	})

	app.AddCommand(&Command{
		Name:    "new",
		Aliases: []string{"n"},
		Summary: "Scaffold packages and register them as members",
		Usage:   "Usage: peniche new [--bin | --lib] <name>...",
		Run:     env.withSetup(env.runNew),
	})

	app.AddCommand(&Command{
		Name:    "rm",
		Aliases: []string{"delete"},
		Summary: "Remove members from the workspace",
		Usage:   "Usage: peniche rm [--rmdir] <name>...",
		Run:     env.withSetup(env.runRemove),
	})

	app.AddCommand(&Command{
		Name:    "ls",
		Aliases: []string{"list"},
		Summary: "List workspace members",
		Usage:   "Usage: peniche ls",
		Run:     env.withSetup(env.runList),
	})

	app.AddCommand(&Command{
		Name:    "link",
		Aliases: []string{"ln"},
		Summary: "Declare one member as a dependency of another",
		Usage:   "Usage: peniche link <from> <to>",
		Run:     env.withSetup(env.runLink),
	})

	app.AddCommand(&Command{
		Name:    "install",
		Aliases: []string{"i"},
		Summary: "Build members and install their binaries",
		Usage:   "Usage: peniche install <name>...",
		Run:     env.withSetup(env.runInstall),
	})

	app.AddCommand(&Command{
		Name:    "uninstall",
		Aliases: []string{"u"},
		Summary: "Remove installed binaries of members",
		Usage:   "Usage: peniche uninstall <name>...",
		Run:     env.withSetup(env.runUninstall),
	})

	app.AddCommand(&Command{
		Name:    "run",
		Aliases: []string{"r"},
		Summary: "Run configured commands concurrently",
		Usage:   "Usage: peniche run [--list] [--timeout <duration>] [name...]",
		Run:     env.withSetup(env.runCommands),
	})

	app.AddCommand(&Command{
		Name:    "info",
		Summary: "Describe the current workspace",
		Usage:   "Usage: peniche info",
		Run:     env.withSetup(env.runInfo),
	})

	app.AddCommand(&Command{
		Name:    "logs",
		Summary: "Print the peniche log file",
		Usage:   "Usage: peniche logs [-f] [--scope <prefix>] [--level <level>]",
		Run:     env.withSetup(env.runLogs),
	})

	app.AddCommand(&Command{
		Name:    "version",
		Summary: "Print version and exit",
		Usage:   "Usage: peniche version",
		Run: func(args []string) error {
			w := env.Stdout
			if w == nil {
				w = os.Stdout
			}
			fmt.Fprintln(w, version)
			return nil
		},
	})

	return app
}

func (e *Env) withSetup(run func(args []string) error) func(args []string) error {
	return func(args []string) error {
		if err := e.setup(); err != nil {
			return err
		}
		return run(args)
	}
}

// parseFlags parses args with fs and converts flag errors into usage errors.
func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return usageErrorf("%v", err)
	}
	return nil
}
