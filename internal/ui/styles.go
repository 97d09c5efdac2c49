// Package ui renders search results and index summaries for the terminal.
package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

const (
	ColorAccent = "154"
	ColorWhite  = "255"
	ColorGray   = "245"
	ColorDim    = "238"
	ColorRed    = "196"
)

// Styles holds the styles used by the renderers.
type Styles struct {
	Header    lipgloss.Style
	Rank      lipgloss.Style
	Score     lipgloss.Style
	DocID     lipgloss.Style
	Match     lipgloss.Style
	Label     lipgloss.Style
	Separator lipgloss.Style
	Error     lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Rank:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Score:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		DocID:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Match:     lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color(ColorAccent)),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDim)),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
	}
}

// NoColorStyles returns styles that leave text untouched.
func NoColorStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle(),
		Rank:      lipgloss.NewStyle(),
		Score:     lipgloss.NewStyle(),
		DocID:     lipgloss.NewStyle(),
		Match:     lipgloss.NewStyle(),
		Label:     lipgloss.NewStyle(),
		Separator: lipgloss.NewStyle(),
		Error:     lipgloss.NewStyle(),
	}
}

// StylesFor picks colored styles when w is a terminal and NO_COLOR is unset.
func StylesFor(w io.Writer) Styles {
	if IsTTY(w) && !DetectNoColor() {
		return DefaultStyles()
	}
	return NoColorStyles()
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor follows https://no-color.org: any value disables color.
func DetectNoColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}
