// Package styles defines the visual styling for the applet.
package styles

import "github.com/charmbracelet/lipgloss"

// Color definitions for the applet theme.
var (
	// Primary is the Claude brand orange.
	Primary = lipgloss.Color("208")
	Subtle  = lipgloss.Color("240")

	// Status colors
	Success = lipgloss.Color("42")
	Error   = lipgloss.Color("196")
	Warning = lipgloss.Color("220")

	// Background colors
	BgDark  = lipgloss.Color("235")
	BgLight = lipgloss.Color("237")

	// Text colors
	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")
	TextMuted     = lipgloss.Color("240")
)

// PanelStyle renders the always-visible panel strip.
var PanelStyle = lipgloss.NewStyle().
	Background(BgDark).
	Foreground(TextPrimary).
	Padding(0, 1)

// PanelLabelStyle renders the compact usage readout in the strip.
var PanelLabelStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary)

// PanelAttentionStyle replaces PanelLabelStyle when the readout needs
// attention.
var PanelAttentionStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Error)

// PopupStyle frames the popup window.
var PopupStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Primary).
	Padding(1, 2).
	Background(BgDark)

// TitleStyle is used for the popup heading.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// SectionTitleStyle is used for popup section headings.
var SectionTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(TextSecondary)

// GaugeLabelStyle styles usage gauge labels.
var GaugeLabelStyle = lipgloss.NewStyle().
	Foreground(TextSecondary).
	Width(14)

// StaleStyle marks cached readings shown after a failed fetch.
var StaleStyle = lipgloss.NewStyle().
	Foreground(Warning).
	Italic(true)

// ErrorTextStyle for error messages.
var ErrorTextStyle = lipgloss.NewStyle().
	Foreground(Error)

// HelpStyle is the base style for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// HelpKeyStyle styles keyboard shortcut keys.
var HelpKeyStyle = lipgloss.NewStyle().
	Foreground(Primary).
	Bold(true)

// PromptStyle styles the logged-out call to action.
var PromptStyle = lipgloss.NewStyle().
	Foreground(TextPrimary).
	MarginBottom(1)

// GetUsageStyle returns the style for a consumption percentage: green while
// plenty of quota remains, yellow near the limit, red above it.
func GetUsageStyle(percent float64) lipgloss.Style {
	switch {
	case percent >= 90:
		return lipgloss.NewStyle().Foreground(Error)
	case percent >= 70:
		return lipgloss.NewStyle().Foreground(Warning)
	default:
		return lipgloss.NewStyle().Foreground(Success)
	}
}

// CenterHorizontal centers content horizontally within a given width.
func CenterHorizontal(content string, width int) string {
	return lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Render(content)
}
