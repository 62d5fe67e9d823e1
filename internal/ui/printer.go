// pattern: Imperative Shell

package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Printer writes styled status messages. Success and info go to out, warnings
// and errors to errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	styles *Styles
}

// NewPrinter returns a printer using styles.
func NewPrinter(out, errOut io.Writer, styles *Styles) *Printer {
	return &Printer{out: out, errOut: errOut, styles: styles}
}

// Styles returns the printer's styles.
func (p *Printer) Styles() *Styles {
	return p.styles
}

// Out returns the writer for regular output.
func (p *Printer) Out() io.Writer {
	return p.out
}

// Err returns the writer for diagnostics.
func (p *Printer) Err() io.Writer {
	return p.errOut
}

func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.out, p.styles.Render(p.styles.SuccessStyle(), "✓ "+fmt.Sprintf(format, args...)))
}

func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.out, p.styles.Render(p.styles.InfoStyle(), "• "+fmt.Sprintf(format, args...)))
}

func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.errOut, p.styles.Render(p.styles.WarnStyle(), "! "+fmt.Sprintf(format, args...)))
}

func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.errOut, p.styles.Render(p.styles.ErrorStyle(), "Error: ")+fmt.Sprintf(format, args...))
}

// Plain writes an unstyled line to out.
func (p *Printer) Plain(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// ColorEnabled decides whether output to w should carry escape sequences:
// never when disabled or NO_COLOR is set, otherwise only for terminals.
func ColorEnabled(w io.Writer, disabled bool) bool {
	if disabled || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return IsTerminal(w)
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}
