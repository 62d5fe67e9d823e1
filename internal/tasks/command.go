// pattern: Functional Core

package tasks

import "path/filepath"

// Command is a named automation command. It is either Simple or
// PlatformSpecific.
type Command interface {
	Name() string
	line(hostOS string) string
	settings() (workingDir string, env map[string]string)
}

// Simple runs the same line on every host.
type Simple struct {
	Key        string
	Line       string
	WorkingDir string
	Env        map[string]string
}

func (c Simple) Name() string { return c.Key }

func (c Simple) line(string) string { return c.Line }

func (c Simple) settings() (string, map[string]string) { return c.WorkingDir, c.Env }

// PlatformSpecific picks a line by host OS. Fallback is used when the host
// has no line of its own.
type PlatformSpecific struct {
	Key        string
	Windows    string
	Linux      string
	Darwin     string
	Fallback   string
	WorkingDir string
	Env        map[string]string
}

func (c PlatformSpecific) Name() string { return c.Key }

func (c PlatformSpecific) line(hostOS string) string {
	var l string
	switch hostOS {
	case "windows":
		l = c.Windows
	case "linux":
		l = c.Linux
	case "darwin":
		l = c.Darwin
	}
	if l == "" {
		l = c.Fallback
	}
	return l
}

func (c PlatformSpecific) settings() (string, map[string]string) { return c.WorkingDir, c.Env }

// Resolved is a command ready to spawn. An empty Line means there is nothing
// to run on the host.
type Resolved struct {
	Name       string
	Line       string
	WorkingDir string
	Env        map[string]string
}

// Resolve selects the line for hostOS. The working directory defaults to cwd;
// a relative one is taken relative to cwd.
func Resolve(cmd Command, hostOS, cwd string) Resolved {
	return resolve(cmd, hostOS, cwd, cwd)
}

func resolve(cmd Command, hostOS, cwd, base string) Resolved {
	dir, env := cmd.settings()
	switch {
	case dir == "":
		dir = cwd
	case !filepath.IsAbs(dir):
		dir = filepath.Join(base, dir)
	}
	return Resolved{
		Name:       cmd.Name(),
		Line:       cmd.line(hostOS),
		WorkingDir: dir,
		Env:        env,
	}
}
