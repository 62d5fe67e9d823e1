// pattern: Imperative Shell

// Package tasks loads the named automation commands of a workspace.
package tasks

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the command configuration looked up in the working directory.
const DefaultFile = "Peniche.toml"

// ErrConfigFormat indicates the command configuration has the wrong shape.
var ErrConfigFormat = errors.New("invalid command configuration")

// Registry holds the commands of one configuration file. It is read-only
// once loaded.
type Registry struct {
	path     string
	dir      string
	commands map[string]Command
}

// Load reads the configuration at path. Files ending in .yaml or .yml are
// read as YAML, anything else as TOML. Either way the commands live under a
// top-level "cmd" table.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading command config: %w", err)
	}

	var raw struct {
		Cmd map[string]any `toml:"cmd" yaml:"cmd"`
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		_, err = toml.Decode(string(data), &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigFormat, path, err)
	}
	if raw.Cmd == nil {
		return nil, fmt.Errorf("%w: %s has no cmd table", ErrConfigFormat, path)
	}

	commands := make(map[string]Command, len(raw.Cmd))
	for name, value := range raw.Cmd {
		cmd, err := parseCommand(name, value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfigFormat, path, err)
		}
		commands[name] = cmd
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Registry{path: abs, dir: filepath.Dir(abs), commands: commands}, nil
}

// New builds a registry from already parsed commands. Relative working
// directories resolve against dir.
func New(dir string, commands ...Command) *Registry {
	r := &Registry{dir: dir, commands: make(map[string]Command, len(commands))}
	for _, c := range commands {
		r.commands[c.Name()] = c
	}
	return r
}

var tableKeys = []string{"windows", "linux", "darwin", "command", "working_dir", "env"}

func parseCommand(name string, value any) (Command, error) {
	switch v := value.(type) {
	case string:
		return Simple{Key: name, Line: v}, nil
	case map[string]any:
		cmd := PlatformSpecific{Key: name}
		for key, field := range v {
			if !slices.Contains(tableKeys, key) {
				return nil, fmt.Errorf("command %q: unknown key %q", name, key)
			}
			if key == "env" {
				env, err := parseEnv(name, field)
				if err != nil {
					return nil, err
				}
				cmd.Env = env
				continue
			}
			s, ok := field.(string)
			if !ok {
				return nil, fmt.Errorf("command %q: %s must be a string, got %T", name, key, field)
			}
			switch key {
			case "windows":
				cmd.Windows = s
			case "linux":
				cmd.Linux = s
			case "darwin":
				cmd.Darwin = s
			case "command":
				cmd.Fallback = s
			case "working_dir":
				cmd.WorkingDir = s
			}
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("command %q must be a string or a table, got %T", name, value)
	}
}

func parseEnv(name string, value any) (map[string]string, error) {
	table, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("command %q: env must be a table, got %T", name, value)
	}
	env := make(map[string]string, len(table))
	for k, v := range table {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("command %q: env.%s must be a string, got %T", name, k, v)
		}
		env[k] = s
	}
	return env, nil
}

// Path returns the absolute path the registry was loaded from.
func (r *Registry) Path() string {
	return r.path
}

// Get returns the command called name.
func (r *Registry) Get(name string) (Command, bool) {
	c, ok := r.commands[name]
	return c, ok
}

// Names returns all command names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of commands.
func (r *Registry) Len() int {
	return len(r.commands)
}

// Resolve is like the package-level Resolve, except relative working
// directories are taken relative to the configuration file.
func (r *Registry) Resolve(cmd Command, hostOS, cwd string) Resolved {
	return resolve(cmd, hostOS, cwd, r.dir)
}

// maxSuggestions caps the names returned by Suggest.
const maxSuggestions = 3

// Suggest returns the command names closest to name, nearest first.
func (r *Registry) Suggest(name string) []string {
	limit := max(2, len(name)/3)
	type candidate struct {
		name string
		dist int
	}
	var found []candidate
	for _, known := range r.Names() {
		d := levenshtein.ComputeDistance(name, known)
		if d <= limit || strings.HasPrefix(known, name) && name != "" {
			found = append(found, candidate{known, d})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].dist < found[j].dist })

	out := make([]string, 0, maxSuggestions)
	for _, c := range found {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, c.name)
	}
	return out
}
