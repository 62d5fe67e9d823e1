// pattern: Functional Core

package manifest

import (
	"fmt"
	"strings"
)

// Dependency is the value written for one entry of a [dependencies] table.
// Exactly one source is used, in the order Workspace, Path, Git, Version.
type Dependency struct {
	Version   string
	Path      string
	Git       string
	Workspace bool
}

// TOML renders the dependency as a TOML value.
func (d Dependency) TOML() string {
	switch {
	case d.Workspace:
		return "{ workspace = true }"
	case d.Path != "":
		return "{ path = " + Quote(d.Path) + " }"
	case d.Git != "":
		return "{ git = " + Quote(d.Git) + " }"
	case d.Version != "":
		return Quote(d.Version)
	default:
		return Quote("*")
	}
}

func formatStringArray(values []string, multiline bool) string {
	if len(values) == 0 {
		return "[]"
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Quote(v)
	}
	if !multiline {
		return "[" + strings.Join(quoted, ", ") + "]"
	}
	var sb strings.Builder
	sb.WriteString("[\n")
	for _, q := range quoted {
		sb.WriteString("    ")
		sb.WriteString(q)
		sb.WriteString(",\n")
	}
	sb.WriteString("]")
	return sb.String()
}

func formatKey(key string) string {
	if key != "" && strings.IndexFunc(key, func(r rune) bool { return r > 127 || !isBareKeyChar(byte(r)) }) < 0 {
		return key
	}
	return Quote(key)
}

func formatTableName(name string) string {
	parts := splitPath(name)
	for i, p := range parts {
		parts[i] = formatKey(p)
	}
	return strings.Join(parts, ".")
}

// Quote renders s as a TOML basic string.
func Quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&sb, `\u%04X`, r)
				continue
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
