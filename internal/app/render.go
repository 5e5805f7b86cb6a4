package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/jrdx0/claude-applet/internal/ui/components"
	"github.com/jrdx0/claude-applet/internal/ui/styles"
)

const popupContentWidth = 44

// renderFrame composes the full terminal frame: the panel strip on top, a
// blank body, and the popup overlaid centered when visible.
func renderFrame(desc ViewDescription, spinnerView string, history []float64, width, height int) string {
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}

	var b strings.Builder
	b.WriteString(renderPanel(desc.Panel, spinnerView, history, width))
	b.WriteString("\n")

	body := height - 2
	for i := 0; i < body; i++ {
		b.WriteString("\n")
	}
	b.WriteString(renderHelp(desc, width))

	frame := b.String()
	if desc.Popup.Visible {
		popup := renderPopup(desc.Popup, spinnerView, history)
		frame = overlayCentered(frame, popup, width, height)
	}
	return frame
}

func renderPanel(p PanelView, spinnerView string, history []float64, width int) string {
	labelStyle := styles.PanelLabelStyle
	if p.Attention {
		labelStyle = styles.PanelAttentionStyle
	}

	parts := []string{"Claude", labelStyle.Render(p.Label)}
	if p.Spinner {
		parts = append(parts, spinnerView)
	}
	if p.LoggedIn && len(history) >= 2 {
		parts = append(parts, components.RenderSparkline(history, 12))
	}
	if !p.LoggedIn {
		parts = append(parts, styles.HelpStyle.Render("(logged out)"))
	}

	return styles.PanelStyle.Width(width).Render(strings.Join(parts, " "))
}

func renderHelp(desc ViewDescription, width int) string {
	key := styles.HelpKeyStyle.Render
	items := []string{
		key("space") + " popup",
		key("r") + " refresh",
		key("+/-") + " interval",
		key("w") + " weekly",
		key("q") + " quit",
	}
	if !desc.Panel.LoggedIn {
		items = append([]string{key("l") + " login"}, items...)
	}
	return styles.HelpStyle.Width(width).Render(strings.Join(items, "  "))
}

func renderPopup(p PopupView, spinnerView string, history []float64) string {
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Claude Usage"))
	b.WriteString("\n")

	switch {
	case p.Prompt != "":
		b.WriteString(styles.PromptStyle.Render(p.Prompt))
		if p.LoginPending {
			b.WriteString("\n")
			b.WriteString(styles.HelpStyle.Render(spinnerView + " waiting for browser..."))
		}

	case len(p.Rows) == 0:
		if p.Fetching {
			b.WriteString(styles.HelpStyle.Render(spinnerView + " fetching usage..."))
		} else if p.Stale {
			b.WriteString(styles.StaleStyle.Render("No data: " + p.StaleReason))
		} else {
			b.WriteString(styles.HelpStyle.Render("No usage data yet"))
		}

	default:
		for _, row := range p.Rows {
			b.WriteString(components.UsageGauge(row.Percent, row.Label, popupContentWidth))
			b.WriteString("\n")
			if !row.ResetsAt.IsZero() {
				b.WriteString(styles.HelpStyle.Render("  resets " + formatReset(row.ResetsAt)))
				b.WriteString("\n")
			}
		}
		if p.Extra != nil {
			b.WriteString("\n")
			b.WriteString(styles.SectionTitleStyle.Render("Extra usage"))
			b.WriteString("\n")
			b.WriteString(components.UsageGauge(p.Extra.Percent, "Credits", popupContentWidth))
			b.WriteString("\n")
			b.WriteString(styles.HelpStyle.Render(
				fmt.Sprintf("  $%.2f of $%.2f", p.Extra.UsedDollars, p.Extra.LimitDollars)))
			b.WriteString("\n")
		}
		if len(history) >= 2 {
			b.WriteString("\n")
			b.WriteString(styles.SectionTitleStyle.Render("Trend"))
			b.WriteString("\n")
			b.WriteString(components.RenderUsageChart(history, popupContentWidth-8, 4, "recent sessions"))
			b.WriteString("\n")
		}

		b.WriteString("\n")
		switch {
		case p.Stale:
			b.WriteString(styles.StaleStyle.Render("stale: " + p.StaleReason))
		case p.Fetching:
			b.WriteString(styles.HelpStyle.Render(spinnerView + " refreshing..."))
		case !p.FetchedAt.IsZero():
			b.WriteString(styles.HelpStyle.Render("updated " + formatAge(p.FetchedAt)))
		}
	}

	if p.ErrorLine != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorTextStyle.Render(p.ErrorLine))
	}

	return styles.PopupStyle.Render(b.String())
}

func formatReset(t time.Time) string {
	d := time.Until(t)
	if d <= 0 {
		return "soon"
	}
	if d < time.Hour {
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	}
	return fmt.Sprintf("in %dh %02dm", int(d.Hours()), int(d.Minutes())%60)
}

func formatAge(t time.Time) string {
	d := time.Since(t)
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh ago", int(d.Hours()))
}

// overlayCentered splices the popup into the main view at the screen
// center, preserving escape sequences on either side of the cut.
func overlayCentered(mainView, overlay string, width, height int) string {
	mainLines := strings.Split(mainView, "\n")
	overlayLines := strings.Split(overlay, "\n")

	overlayHeight := len(overlayLines)
	overlayWidth := lipgloss.Width(overlay)

	y := (height - overlayHeight) / 2
	x := (width - overlayWidth) / 2

	if y < 0 {
		y = 0
	}
	if x < 0 {
		x = 0
	}

	for i, overlayLine := range overlayLines {
		mainY := y + i
		if mainY >= len(mainLines) {
			break
		}

		mainLine := mainLines[mainY]

		left := ansi.Truncate(mainLine, x, "")
		right := ansi.TruncateLeft(mainLine, x+overlayWidth, "")

		if lipgloss.Width(left) < x {
			left += strings.Repeat(" ", x-lipgloss.Width(left))
		}

		mainLines[mainY] = left + overlayLine + right
	}

	return strings.Join(mainLines, "\n")
}
