// pattern: Functional Core

package manifest

import (
	"fmt"
	"strings"
)

// span is a half-open byte range [start, end) into the document source.
type span struct {
	start, end int
}

// keyValue locates one `key = value` statement.
type keyValue struct {
	path  string // fully qualified dotted path, e.g. "workspace.members"
	table string // enclosing header name, "" for the root table
	array bool   // enclosing header is an array of tables
	line  span   // whole statement including trailing comment and newline
	value span
}

// tableHeader locates one `[name]` or `[[name]]` line.
type tableHeader struct {
	name  string
	array bool
	line  span
}

// layout is the positional skeleton of a TOML document. Values are not
// interpreted; decoding is left to the toml package.
type layout struct {
	headers []tableHeader
	entries []keyValue
}

func joinPath(table, key string) string {
	if table == "" {
		return key
	}
	return table + "." + key
}

// sectionEnd returns the offset where the section opened by headers[idx] ends.
func (l *layout) sectionEnd(idx, size int) int {
	if idx+1 < len(l.headers) {
		return l.headers[idx+1].line.start
	}
	return size
}

// scan builds a layout for src. src is expected to be valid TOML.
func scan(src []byte) (*layout, error) {
	l := &layout{}
	table, inArray := "", false
	n := len(src)
	i := 0
	for i < n {
		lineStart := i
		i = skipBlank(src, i)
		if i >= n {
			break
		}
		switch src[i] {
		case '\n', '\r':
			i++
		case '#':
			i = lineEnd(src, i)
		case '[':
			array := i+1 < n && src[i+1] == '['
			j := i + 1
			if array {
				j++
			}
			end, name, err := parseKey(src, j)
			if err != nil {
				return nil, err
			}
			if end >= n || src[end] != ']' {
				return nil, fmt.Errorf("unterminated table header at offset %d", lineStart)
			}
			end++
			if array {
				if end >= n || src[end] != ']' {
					return nil, fmt.Errorf("unterminated array table header at offset %d", lineStart)
				}
				end++
			}
			table, inArray = name, array
			i = lineEnd(src, end)
			l.headers = append(l.headers, tableHeader{name: name, array: array, line: span{lineStart, i}})
		default:
			keyEnd, key, err := parseKey(src, i)
			if err != nil {
				return nil, err
			}
			j := skipBlank(src, keyEnd)
			if j >= n || src[j] != '=' {
				return nil, fmt.Errorf("expected '=' after key %q at offset %d", key, keyEnd)
			}
			j = skipBlank(src, j+1)
			valEnd, err := scanValue(src, j)
			if err != nil {
				return nil, err
			}
			i = lineEnd(src, valEnd)
			l.entries = append(l.entries, keyValue{
				path:  joinPath(table, key),
				table: table,
				array: inArray,
				line:  span{lineStart, i},
				value: span{j, valEnd},
			})
		}
	}
	return l, nil
}

func skipBlank(src []byte, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	return i
}

// skipFiller skips whitespace, newlines and comments inside arrays.
func skipFiller(src []byte, i int) int {
	for i < len(src) {
		switch src[i] {
		case ' ', '\t', '\n', '\r':
			i++
		case '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		default:
			return i
		}
	}
	return i
}

// lineEnd returns the offset just past the newline ending the line at i.
func lineEnd(src []byte, i int) int {
	for i < len(src) && src[i] != '\n' {
		i++
	}
	if i < len(src) {
		i++
	}
	return i
}

func isBareKeyChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
}

// parseKey reads a possibly dotted, possibly quoted key and returns the
// offset after it (and after trailing blanks) with the normalized name.
func parseKey(src []byte, i int) (int, string, error) {
	var parts []string
	n := len(src)
	for {
		i = skipBlank(src, i)
		if i >= n {
			return i, "", fmt.Errorf("unexpected end of document in key")
		}
		switch src[i] {
		case '"', '\'':
			quote := src[i]
			j := i + 1
			var sb strings.Builder
			for j < n && src[j] != quote {
				if quote == '"' && src[j] == '\\' && j+1 < n {
					sb.WriteByte(src[j+1])
					j += 2
					continue
				}
				sb.WriteByte(src[j])
				j++
			}
			if j >= n {
				return j, "", fmt.Errorf("unterminated quoted key at offset %d", i)
			}
			parts = append(parts, sb.String())
			i = j + 1
		default:
			j := i
			for j < n && isBareKeyChar(src[j]) {
				j++
			}
			if j == i {
				return i, "", fmt.Errorf("invalid key character %q at offset %d", src[i], i)
			}
			parts = append(parts, string(src[i:j]))
			i = j
		}
		i = skipBlank(src, i)
		if i < n && src[i] == '.' {
			i++
			continue
		}
		return i, strings.Join(parts, "."), nil
	}
}

// scanValue returns the offset just past the value starting at i.
func scanValue(src []byte, i int) (int, error) {
	n := len(src)
	if i >= n {
		return i, fmt.Errorf("missing value at end of document")
	}
	switch {
	case strings.HasPrefix(string(src[i:min(i+3, n)]), `"""`):
		return scanMultiline(src, i, '"')
	case strings.HasPrefix(string(src[i:min(i+3, n)]), `'''`):
		return scanMultiline(src, i, '\'')
	case src[i] == '"':
		j := i + 1
		for j < n && src[j] != '"' && src[j] != '\n' {
			if src[j] == '\\' {
				j++
			}
			j++
		}
		if j >= n || src[j] != '"' {
			return j, fmt.Errorf("unterminated string at offset %d", i)
		}
		return j + 1, nil
	case src[i] == '\'':
		j := i + 1
		for j < n && src[j] != '\'' && src[j] != '\n' {
			j++
		}
		if j >= n || src[j] != '\'' {
			return j, fmt.Errorf("unterminated literal string at offset %d", i)
		}
		return j + 1, nil
	case src[i] == '[':
		j := i + 1
		for {
			j = skipFiller(src, j)
			if j >= n {
				return j, fmt.Errorf("unterminated array at offset %d", i)
			}
			if src[j] == ']' {
				return j + 1, nil
			}
			end, err := scanValue(src, j)
			if err != nil {
				return end, err
			}
			j = skipFiller(src, end)
			if j < n && src[j] == ',' {
				j++
			}
		}
	case src[i] == '{':
		j := i + 1
		for {
			j = skipBlank(src, j)
			if j >= n {
				return j, fmt.Errorf("unterminated inline table at offset %d", i)
			}
			if src[j] == '}' {
				return j + 1, nil
			}
			keyEnd, _, err := parseKey(src, j)
			if err != nil {
				return keyEnd, err
			}
			j = skipBlank(src, keyEnd)
			if j >= n || src[j] != '=' {
				return j, fmt.Errorf("expected '=' in inline table at offset %d", j)
			}
			end, err := scanValue(src, skipBlank(src, j+1))
			if err != nil {
				return end, err
			}
			j = skipBlank(src, end)
			if j < n && src[j] == ',' {
				j++
			}
		}
	default:
		j := i
		for j < n && !strings.ContainsRune(",]}#\r\n", rune(src[j])) {
			j++
		}
		for j > i && (src[j-1] == ' ' || src[j-1] == '\t') {
			j--
		}
		if j == i {
			return j, fmt.Errorf("empty value at offset %d", i)
		}
		return j, nil
	}
}

func scanMultiline(src []byte, i int, quote byte) (int, error) {
	n := len(src)
	j := i + 3
	for j+2 < n {
		if quote == '"' && src[j] == '\\' {
			j += 2
			continue
		}
		if src[j] == quote && src[j+1] == quote && src[j+2] == quote {
			j += 3
			// up to two quotes may directly precede the closing delimiter
			for k := 0; k < 2 && j < n && src[j] == quote; k++ {
				j++
			}
			return j, nil
		}
		j++
	}
	return n, fmt.Errorf("unterminated multi-line string at offset %d", i)
}
