// pattern: Imperative Shell

// Package process runs registry commands as child processes and streams
// their output as tagged lines.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"

	"peniche/internal/logging"
	"peniche/internal/tasks"
	"peniche/internal/ui"
)

var (
	// ErrProcessSpawn indicates the program could not be started.
	ErrProcessSpawn = errors.New("process spawn failed")
	// ErrProcessExit indicates the program ran but exited unsuccessfully.
	ErrProcessExit = errors.New("process exited unsuccessfully")
	// ErrUnknownCommand indicates a name that is not in the registry.
	ErrUnknownCommand = errors.New("unknown command")
)

// ExitError reports a non-zero exit. It matches ErrProcessExit.
type ExitError struct {
	Name string
	Code int
}

func (e *ExitError) Error() string {
	if e.Code < 0 {
		return fmt.Sprintf("%s was terminated by a signal", e.Name)
	}
	return fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
}

func (e *ExitError) Is(target error) bool {
	return target == ErrProcessExit
}

// DefaultGrace is how long a cancelled child gets between SIGTERM and kill.
const DefaultGrace = 5 * time.Second

// maxLineSize bounds a single output line; longer lines are cut at the limit
// and marked with truncatedMarker.
const maxLineSize = 1024 * 1024

const truncatedMarker = " [truncated]"

// Config controls how commands are resolved and spawned.
type Config struct {
	HostOS string        // Host OS used for resolution (default runtime.GOOS)
	Cwd    string        // Default working directory (default os.Getwd)
	Grace  time.Duration // SIGTERM to kill delay on cancellation
	Styles *ui.Styles    // Tag rendering; color off strips child escapes
}

// Result is the outcome of one command.
type Result struct {
	Name      string
	ExitCode  int
	Duration  time.Duration
	Skipped   bool // nothing to run on this host
	Cancelled bool
	Err       error
}

// OK reports whether the command ran to a zero exit or was a no-op.
func (r Result) OK() bool {
	return r.Err == nil
}

// Runner executes commands from one registry.
type Runner struct {
	registry *tasks.Registry
	cfg      Config
	stdout   lineSink
	stderr   lineSink
	logger   *logging.ScopedLogger
}

// NewRunner returns a runner writing child stdout lines to stdout and child
// stderr lines to stderr.
func NewRunner(registry *tasks.Registry, stdout, stderr io.Writer, cfg Config, logger *logging.ScopedLogger) *Runner {
	if cfg.HostOS == "" {
		cfg.HostOS = runtime.GOOS
	}
	if cfg.Cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.Cwd = wd
		}
	}
	if cfg.Grace == 0 {
		cfg.Grace = DefaultGrace
	}
	if cfg.Styles == nil {
		cfg.Styles = ui.NewStyles(ui.DefaultTheme, false)
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	mu := &sync.Mutex{}
	return &Runner{
		registry: registry,
		cfg:      cfg,
		stdout:   lineSink{mu: mu, w: stdout},
		stderr:   lineSink{mu: mu, w: stderr},
		logger:   logger,
	}
}

// ExecuteMany runs every named command concurrently and waits for all of
// them. Unknown names are reported and skipped. Results follow the order of
// names; repeated names run once.
func (r *Runner) ExecuteMany(ctx context.Context, names []string) []Result {
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)
	logger.Info("starting batch", "commands", strings.Join(names, ","))

	results := make([]Result, 0, len(names))
	slots := make(map[string]int, len(names))
	for _, name := range names {
		if _, dup := slots[name]; dup {
			continue
		}
		slots[name] = len(results)
		results = append(results, Result{Name: name})
	}

	var wg sync.WaitGroup
	for _, res := range results {
		name := res.Name
		cmd, ok := r.registry.Get(name)
		if !ok {
			msg := fmt.Sprintf("command %q not found in %s", name, r.configName())
			if s := r.registry.Suggest(name); len(s) > 0 {
				msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(s, ", "))
			}
			r.stderr.writeLine(r.cfg.Styles.Render(r.cfg.Styles.WarnStyle(), "!"), msg)
			logger.Warn("unknown command", "command", name)
			results[slots[name]].Err = fmt.Errorf("%w: %s", ErrUnknownCommand, name)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := r.execute(ctx, cmd, logger)
			results[slots[name]] = res
		}()
	}
	wg.Wait()

	failed := 0
	for _, res := range results {
		if !res.OK() {
			failed++
		}
	}
	logger.Info("batch finished", "commands", len(results), "failed", failed)
	return results
}

func (r *Runner) configName() string {
	if p := r.registry.Path(); p != "" {
		return p
	}
	return tasks.DefaultFile
}

// ExecuteOne runs cmd and waits for it to exit and for both of its output
// streams to drain.
func (r *Runner) ExecuteOne(ctx context.Context, cmd tasks.Command) (Result, error) {
	return r.execute(ctx, cmd, r.logger)
}

func (r *Runner) execute(ctx context.Context, cmd tasks.Command, logger *logging.ScopedLogger) (Result, error) {
	resolved := r.registry.Resolve(cmd, r.cfg.HostOS, r.cfg.Cwd)
	res := Result{Name: resolved.Name}
	logger = logger.With("command", resolved.Name)
	tag := r.cfg.Styles.Tag(resolved.Name)

	program, args := Tokenize(resolved.Line)
	if program == "" {
		res.Skipped = true
		r.stderr.writeLine(tag, fmt.Sprintf("nothing to run on %s", r.cfg.HostOS))
		logger.Warn("no command line for host", "os", r.cfg.HostOS)
		return res, nil
	}

	c := exec.CommandContext(ctx, program, args...)
	c.Dir = resolved.WorkingDir
	c.Env = mergeEnv(os.Environ(), resolved.Env)
	setProcessGroup(c)
	c.Cancel = func() error { return terminate(c.Process) }
	c.WaitDelay = r.cfg.Grace

	stdout, err := c.StdoutPipe()
	if err != nil {
		return r.spawnFailed(res, tag, logger, err)
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return r.spawnFailed(res, tag, logger, err)
	}

	logger.Info("starting process", "program", program, "args", fmt.Sprintf("%v", args), "dir", c.Dir)
	start := time.Now()
	if err := c.Start(); err != nil {
		return r.spawnFailed(res, tag, logger, err)
	}

	exited := make(chan struct{})
	go r.killAfterGrace(ctx, exited, c.Process, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go r.forward(&wg, stdout, r.stdout, tag, logger)
	go r.forward(&wg, stderr, r.stderr, tag, logger)
	wg.Wait()
	err = c.Wait()
	close(exited)
	res.Duration = time.Since(start)
	res.Cancelled = ctx.Err() != nil

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			res.Err = &ExitError{Name: resolved.Name, Code: res.ExitCode}
			logger.Warn("process exited", "exit_code", res.ExitCode, "duration", res.Duration, "cancelled", res.Cancelled)
			r.stderr.writeLine(tag, r.cfg.Styles.Render(r.cfg.Styles.WarnStyle(), res.Err.Error()))
			return res, res.Err
		}
		// I/O left open by a grandchild after exit, or similar
		res.ExitCode = -1
		res.Err = fmt.Errorf("%w: %s: %v", ErrProcessExit, resolved.Name, err)
		logger.Warn("process stopped", "error", err)
		return res, res.Err
	}

	logger.Info("process exited cleanly", "duration", res.Duration)
	return res, nil
}

func (r *Runner) spawnFailed(res Result, tag string, logger *logging.ScopedLogger, err error) (Result, error) {
	logger.Error("failed to start process", "error", err)
	res.ExitCode = -1
	res.Err = fmt.Errorf("%w: %s: %v", ErrProcessSpawn, res.Name, err)
	r.stderr.writeLine(tag, r.cfg.Styles.Render(r.cfg.Styles.ErrorStyle(), res.Err.Error()))
	return res, res.Err
}

// killAfterGrace kills the whole process tree when ctx is done and the tree
// has not finished within the grace period. Descendants still holding the
// output pipes would otherwise keep the forwarders blocked.
func (r *Runner) killAfterGrace(ctx context.Context, exited <-chan struct{}, p *os.Process, logger *logging.ScopedLogger) {
	select {
	case <-exited:
		return
	case <-ctx.Done():
	}
	timer := time.NewTimer(r.cfg.Grace)
	defer timer.Stop()
	select {
	case <-exited:
	case <-timer.C:
		logger.Warn("process tree ignored termination, killing", "pid", p.Pid, "grace", r.cfg.Grace)
		_ = kill(p)
	}
}

// forward copies lines from src to sink until EOF. Lines longer than
// maxLineSize are cut and marked; the lines after them are still forwarded.
func (r *Runner) forward(wg *sync.WaitGroup, src io.Reader, sink lineSink, tag string, logger *logging.ScopedLogger) {
	defer wg.Done()
	reader := bufio.NewReaderSize(src, 64*1024)
	line := make([]byte, 0, 64*1024)
	truncated := false
	pending := false
	for {
		chunk, more, err := reader.ReadLine()
		if err != nil {
			if pending {
				r.emit(sink, tag, line, truncated, logger)
			}
			return
		}
		pending = true
		if room := maxLineSize - len(line); len(chunk) > room {
			line = append(line, chunk[:room]...)
			truncated = true
		} else {
			line = append(line, chunk...)
		}
		if more {
			continue
		}
		r.emit(sink, tag, line, truncated, logger)
		line, truncated, pending = line[:0], false, false
	}
}

func (r *Runner) emit(sink lineSink, tag string, line []byte, truncated bool, logger *logging.ScopedLogger) {
	text := string(line)
	if !r.cfg.Styles.Color() {
		text = ansi.Strip(text)
	}
	if truncated {
		logger.Warn("output line truncated", "limit", maxLineSize)
		text += truncatedMarker
	}
	sink.writeLine(tag, text)
}
