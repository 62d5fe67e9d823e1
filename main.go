// pattern: Imperative Shell
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"peniche/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses global flags and dispatches to the subcommand, returning the
// process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("peniche", flag.ContinueOnError)
	// Stop parsing flags after the first non-flag arg (the subcommand),
	// so that --help after a subcommand is handled by the subcommand.
	fs.SetInterspersed(false)
	fs.SetOutput(stderr)

	configDir := fs.String("config-dir", "", "config directory (default: ~/.config/peniche)")
	commandsFile := fs.StringP("config", "c", "", "command configuration file (default: Peniche.toml)")
	noColor := fs.Bool("no-color", false, "disable colored output")
	verbose := fs.BoolP("verbose", "v", false, "echo debug logs to stderr")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := &cli.Env{
		Stdout:  stdout,
		Stderr:  stderr,
		Context: ctx,
	}
	app := cli.BuildApp(version, env)

	// Override Usage before Parse so --help uses the CLI app's help
	fs.Usage = func() {
		app.PrintHelp(stderr)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	env.ConfigDir = *configDir
	env.CommandsFile = *commandsFile
	env.NoColor = *noColor
	env.Verbose = *verbose
	defer func() { _ = env.Close() }()

	return app.Execute(fs.Args())
}
