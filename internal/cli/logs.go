// pattern: Imperative Shell
package cli

import (
	"context"
	"errors"
	"os"

	flag "github.com/spf13/pflag"

	"peniche/internal/logging"
)

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

// logFilter selects entries by scope prefix and minimum level.
type logFilter struct {
	scope string
	level string
}

func (f logFilter) match(entry logging.LogEntry) bool {
	return entry.MatchesScope(f.scope) && levelRank[entry.Level] >= levelRank[f.level]
}

func (e *Env) runLogs(args []string) error {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	follow := fs.BoolP("follow", "f", false, "keep printing entries as they are written")
	scope := fs.String("scope", "", "only entries whose scope starts with this prefix")
	level := fs.String("level", "debug", "minimum level to print")
	lines := fs.IntP("lines", "n", 0, "only the last n matching entries (0 prints all)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *lines < 0 {
		return usageErrorf("--lines must not be negative")
	}

	filter := logFilter{scope: *scope, level: logging.ParseLevel(*level)}
	path := e.logs.Path()
	emit := func(entry logging.LogEntry) {
		if filter.match(entry) {
			e.printer.Plain("%s", entry.String())
		}
	}

	backlog := logging.NewRing(*lines)
	err := logging.ReadEntries(path, func(entry logging.LogEntry) {
		if filter.match(entry) {
			backlog.Add(entry)
		}
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	printed := backlog.Drain()
	for _, entry := range printed {
		emit(entry)
	}
	if !*follow {
		if len(printed) == 0 {
			e.printer.Info("No log entries in %s", path)
		}
		return nil
	}

	follower, err := logging.NewFollower(path, emit)
	if err != nil {
		return err
	}
	defer func() { _ = follower.Close() }()
	if err := follower.Start(e.Context, false); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
