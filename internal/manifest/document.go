// pattern: Imperative Shell

// Package manifest edits Cargo-style TOML manifests in place.
//
// Edits are applied to the original text: only the bytes of the touched
// statement change, so comments, ordering and unrelated tables survive a
// rewrite. Every edited document is re-parsed before it is written, and
// writes go through a temp file + rename so a crash never leaves a torn file.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrManifestIO indicates a manifest could not be read, parsed or written.
var ErrManifestIO = errors.New("manifest io error")

// DependenciesTable is the table link operations write into.
const DependenciesTable = "dependencies"

// Document is an editable TOML manifest bound to a path on disk.
type Document struct {
	path string
	src  []byte
	perm os.FileMode
}

// Load reads and parses the manifest at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrManifestIO, path, err)
	}
	doc, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(path); err == nil {
		doc.perm = info.Mode().Perm()
	}
	return doc, nil
}

// Parse wraps data as a document that will be saved to path.
func Parse(path string, data []byte) (*Document, error) {
	if err := validate(data); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrManifestIO, path, err)
	}
	return &Document{path: path, src: bytes.Clone(data), perm: 0644}, nil
}

// Path returns the file the document is bound to.
func (d *Document) Path() string {
	return d.path
}

// Bytes returns the current document text.
func (d *Document) Bytes() []byte {
	return bytes.Clone(d.src)
}

// Decode decodes the current text into v.
func (d *Document) Decode(v any) error {
	if _, err := toml.Decode(string(d.src), v); err != nil {
		return fmt.Errorf("%w: failed to decode %s: %v", ErrManifestIO, d.path, err)
	}
	return nil
}

// HasTable reports whether the dotted table name is defined.
func (d *Document) HasTable(name string) bool {
	_, ok := d.lookup(name)
	return ok
}

// StringArray returns the string array at table.key. A missing key yields
// (nil, false, nil).
func (d *Document) StringArray(table, key string) ([]string, bool, error) {
	v, ok := d.lookup(joinPath(table, key))
	if !ok {
		return nil, false, nil
	}
	items, isArray := v.([]any)
	if !isArray {
		return nil, true, fmt.Errorf("%w: %s.%s in %s is not an array", ErrManifestIO, table, key, d.path)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, isString := item.(string)
		if !isString {
			return nil, true, fmt.Errorf("%w: %s.%s in %s contains a non-string element", ErrManifestIO, table, key, d.path)
		}
		out = append(out, s)
	}
	return out, true, nil
}

// SetStringArray replaces (or creates) table.key with values. A multi-line
// original array keeps its multi-line shape.
func (d *Document) SetStringArray(table, key string, values []string) error {
	multiline := false
	if l, err := scan(d.src); err == nil {
		if e, ok := l.find(joinPath(table, key)); ok {
			multiline = bytes.ContainsRune(d.src[e.value.start:e.value.end], '\n')
		}
	}
	return d.setRaw(table, key, formatStringArray(values, multiline))
}

// SetDependency inserts or overwrites the dependency called name in the
// [dependencies] table. Any previous declaration of name, whether inline,
// as dotted keys or as a [dependencies.name] table, is replaced so exactly
// one entry remains.
func (d *Document) SetDependency(name string, dep Dependency) error {
	l, err := scan(d.src)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrManifestIO, d.path, err)
	}
	full := joinPath(DependenciesTable, name)
	if e, ok := l.find(full); ok && !e.array {
		return d.replace(e.value, dep.TOML())
	}

	var cuts []span
	for _, e := range l.entries {
		if e.array || e.table == full || strings.HasPrefix(e.table, full+".") {
			continue
		}
		if strings.HasPrefix(e.path, full+".") {
			cuts = append(cuts, e.line)
		}
	}
	for idx, h := range l.headers {
		if !h.array && (h.name == full || strings.HasPrefix(h.name, full+".")) {
			cuts = append(cuts, span{h.line.start, l.sectionEnd(idx, len(d.src))})
		}
	}
	if len(cuts) > 0 {
		next := cutSpans(d.src, cuts)
		if err := validate(next); err != nil {
			return fmt.Errorf("%w: removing previous declaration of %q in %s: %v", ErrManifestIO, name, d.path, err)
		}
		d.src = next
	}
	return d.setRaw(DependenciesTable, name, dep.TOML())
}

// Save writes the document back to its path atomically.
func (d *Document) Save() error {
	if err := validate(d.src); err != nil {
		return fmt.Errorf("%w: refusing to write invalid %s: %v", ErrManifestIO, d.path, err)
	}
	if err := WriteAtomic(d.path, d.src, d.perm); err != nil {
		return fmt.Errorf("%w: %v", ErrManifestIO, err)
	}
	return nil
}

func (d *Document) lookup(path string) (any, bool) {
	var root map[string]any
	if _, err := toml.Decode(string(d.src), &root); err != nil {
		return nil, false
	}
	var cur any = root
	for _, part := range splitPath(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// setRaw sets table.key to the raw TOML value text.
func (d *Document) setRaw(table, key, raw string) error {
	l, err := scan(d.src)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrManifestIO, d.path, err)
	}
	if e, ok := l.find(joinPath(table, key)); ok && !e.array {
		return d.replace(e.value, raw)
	}

	stmt := formatKey(key) + " = " + raw + "\n"
	at, found := l.insertionPoint(table, len(d.src))
	var next []byte
	if found {
		next = insertAt(d.src, at, stmt)
	} else {
		next = bytes.Clone(d.src)
		if len(next) > 0 && next[len(next)-1] != '\n' {
			next = append(next, '\n')
		}
		if len(next) > 0 {
			next = append(next, '\n')
		}
		next = append(next, "["+formatTableName(table)+"]\n"+stmt...)
	}
	if err := validate(next); err != nil {
		return fmt.Errorf("%w: setting %s in %s: %v", ErrManifestIO, joinPath(table, key), d.path, err)
	}
	d.src = next
	return nil
}

func (d *Document) replace(s span, raw string) error {
	next := make([]byte, 0, len(d.src)+len(raw))
	next = append(next, d.src[:s.start]...)
	next = append(next, raw...)
	next = append(next, d.src[s.end:]...)
	if err := validate(next); err != nil {
		return fmt.Errorf("%w: editing %s: %v", ErrManifestIO, d.path, err)
	}
	d.src = next
	return nil
}

func (l *layout) find(path string) (keyValue, bool) {
	for _, e := range l.entries {
		if e.path == path {
			return e, true
		}
	}
	return keyValue{}, false
}

// insertionPoint returns where a new statement for table belongs: after the
// last statement of the table's section, or right after its header.
func (l *layout) insertionPoint(table string, size int) (int, bool) {
	if table == "" {
		at := 0
		for _, e := range l.entries {
			if e.table == "" {
				at = e.line.end
			}
		}
		return at, true
	}
	for idx, h := range l.headers {
		if h.array || h.name != table {
			continue
		}
		at := h.line.end
		end := l.sectionEnd(idx, size)
		for _, e := range l.entries {
			if e.line.start >= h.line.end && e.line.end <= end {
				at = e.line.end
			}
		}
		return at, true
	}
	return 0, false
}

func insertAt(src []byte, at int, stmt string) []byte {
	next := make([]byte, 0, len(src)+len(stmt)+1)
	next = append(next, src[:at]...)
	if at > 0 && src[at-1] != '\n' {
		next = append(next, '\n')
	}
	next = append(next, stmt...)
	return append(next, src[at:]...)
}

func cutSpans(src []byte, cuts []span) []byte {
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].start > cuts[j].start })
	next := bytes.Clone(src)
	for _, c := range cuts {
		next = append(next[:c.start], next[c.end:]...)
	}
	return next
}

func validate(data []byte) error {
	var v map[string]any
	_, err := toml.Decode(string(data), &v)
	return err
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}
