// pattern: Functional Core

// Package ui renders terminal output in the configured catppuccin flavor.
package ui

import (
	"hash/fnv"

	catppuccin "github.com/catppuccin/go"
	"github.com/charmbracelet/lipgloss"
)

// DefaultTheme is the flavor used when none is configured.
const DefaultTheme = "mocha"

// Styles renders text in one flavor. With color disabled every Render call
// returns its input unchanged.
type Styles struct {
	flavor catppuccin.Flavor
	color  bool
}

// NewStyles returns styles for the named flavor.
func NewStyles(themeName string, color bool) *Styles {
	return &Styles{flavor: flavorFromName(themeName), color: color}
}

func flavorFromName(name string) catppuccin.Flavor {
	switch name {
	case "latte":
		return catppuccin.Latte
	case "frappe":
		return catppuccin.Frappe
	case "macchiato":
		return catppuccin.Macchiato
	case "mocha":
		return catppuccin.Mocha
	default:
		return catppuccin.Mocha
	}
}

// ValidTheme reports whether name is a known flavor.
func ValidTheme(name string) bool {
	switch name {
	case "latte", "frappe", "macchiato", "mocha":
		return true
	}
	return false
}

// Color reports whether styles emit escape sequences.
func (s *Styles) Color() bool {
	return s.color
}

// Render applies style to text when color is enabled.
func (s *Styles) Render(style lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return style.Render(text)
}

func (s *Styles) TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(s.flavor.Mauve().Hex))
}

func (s *Styles) SubtitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.flavor.Subtext0().Hex))
}

func (s *Styles) MutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.flavor.Overlay0().Hex))
}

func (s *Styles) InfoStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.flavor.Blue().Hex))
}

func (s *Styles) AccentStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.flavor.Teal().Hex))
}

func (s *Styles) SuccessStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.flavor.Green().Hex))
}

func (s *Styles) WarnStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.flavor.Yellow().Hex))
}

func (s *Styles) ErrorStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.flavor.Red().Hex)).
		Bold(true)
}

// Accents returns the flavor's accent colors in palette order.
func (s *Styles) Accents() []catppuccin.Color {
	f := s.flavor
	return []catppuccin.Color{
		f.Rosewater(), f.Flamingo(), f.Pink(), f.Mauve(), f.Red(), f.Maroon(), f.Peach(),
		f.Yellow(), f.Green(), f.Teal(), f.Sky(), f.Sapphire(), f.Blue(), f.Lavender(),
	}
}

// TagColor maps name onto an accent color. The same name always gets the
// same color.
func (s *Styles) TagColor(name string) catppuccin.Color {
	accents := s.Accents()
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return accents[h.Sum32()%uint32(len(accents))]
}

// Tag renders the "[name]" prefix used on command output lines.
func (s *Styles) Tag(name string) string {
	if !s.color {
		return "[" + name + "]"
	}
	bracket := s.MutedStyle()
	label := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(s.TagColor(name).Hex))
	return bracket.Render("[") + label.Render(name) + bracket.Render("]")
}
