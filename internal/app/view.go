package app

import (
	"fmt"
	"time"

	"github.com/jrdx0/claude-applet/internal/claude"
)

// ViewDescription is the declarative render target: a pure function of
// State, with no widget handles or renderer state inside. The ui package
// turns it into terminal output.
type ViewDescription struct {
	Panel PanelView
	Popup PopupView
}

// PanelView describes the always-visible panel strip.
type PanelView struct {
	// Label is the compact usage readout, e.g. "42%".
	Label string

	// Spinner indicates a fetch is in flight.
	Spinner bool

	// Attention marks the label for warning styling: usage above the
	// configured threshold or a failed fetch.
	Attention bool

	// LoggedIn drives the logged-out hint in the strip.
	LoggedIn bool
}

// UsageRow is one quota gauge in the popup.
type UsageRow struct {
	Label    string
	Percent  float64
	ResetsAt time.Time
}

// ExtraRow describes the overage credits section. Amounts are dollars,
// converted from the wire's cents.
type ExtraRow struct {
	Percent      float64
	UsedDollars  float64
	LimitDollars float64
}

// PopupView describes the popup contents. Zero value means not visible.
type PopupView struct {
	Visible bool

	// Prompt is the logged-out call to action; empty when logged in.
	Prompt string

	// LoginPending indicates the OAuth flow is waiting on the browser.
	LoginPending bool

	Rows  []UsageRow
	Extra *ExtraRow

	// Stale is set when Rows come from an older snapshot than the current
	// fetch cycle, with StaleReason naming why no fresh data exists.
	Stale       bool
	StaleReason string

	// FetchedAt is the timestamp of the displayed snapshot, zero if none.
	FetchedAt time.Time

	// Fetching indicates a fetch is in flight.
	Fetching bool

	// ErrorLine is a transient non-fetch failure (login, config write).
	ErrorLine string
}

// Project derives the complete view description from state. Pure: the same
// state always yields the same description.
func Project(s State) ViewDescription {
	return ViewDescription{
		Panel: projectPanel(s),
		Popup: projectPopup(s),
	}
}

func projectPanel(s State) PanelView {
	p := PanelView{
		Spinner:  s.FetchInFlight(),
		LoggedIn: s.LoggedIn(),
	}

	if !s.LoggedIn() {
		p.Label = "--"
		return p
	}

	data := displayedUsage(s)
	switch {
	case data != nil:
		p.Label = fmt.Sprintf("%.0f%%", data.FiveHour.Utilization)
		p.Attention = data.FiveHour.Utilization >= s.Config.WarnThreshold
	case s.Usage.Phase == UsageFailed:
		p.Label = "!"
	default:
		p.Label = "--"
	}

	if s.Usage.Phase == UsageFailed {
		p.Attention = true
	}
	return p
}

func projectPopup(s State) PopupView {
	v := PopupView{
		Visible:  s.PopupVisible(),
		Fetching: s.FetchInFlight(),
	}
	if !v.Visible {
		return PopupView{}
	}

	v.ErrorLine = s.LastError

	if !s.LoggedIn() {
		v.Prompt = "Not logged in. Press l to connect your Claude account."
		v.LoginPending = s.LoginInFlight
		return v
	}

	data := displayedUsage(s)
	if data == nil {
		if s.Usage.Phase == UsageFailed {
			v.Stale = true
			v.StaleReason = failureText(s.Usage.Fail)
		}
		return v
	}

	v.FetchedAt = data.FetchedAt
	v.Rows = append(v.Rows, UsageRow{
		Label:    "Session (5h)",
		Percent:  data.FiveHour.Utilization,
		ResetsAt: data.FiveHour.ResetsAt,
	})
	if s.Config.ShowWeekly {
		v.Rows = append(v.Rows, UsageRow{
			Label:    "Week (7d)",
			Percent:  data.SevenDay.Utilization,
			ResetsAt: data.SevenDay.ResetsAt,
		})
	}
	if data.Extra.Enabled {
		v.Extra = &ExtraRow{
			Percent:      data.Extra.Percent(),
			UsedDollars:  float64(data.Extra.UsedCredits) / 100,
			LimitDollars: float64(data.Extra.MonthlyLimit) / 100,
		}
	}

	// Failed with cached rows: show them, labeled stale.
	if s.Usage.Phase == UsageFailed {
		v.Stale = true
		v.StaleReason = failureText(s.Usage.Fail)
	}
	return v
}

// displayedUsage picks the snapshot the UI should show: fresh data when the
// last fetch succeeded, the cached snapshot otherwise.
func displayedUsage(s State) *claude.UsageData {
	if s.Usage.Phase == UsageAvailable {
		return s.Usage.Data
	}
	return s.LastUsage
}

func failureText(kind claude.ErrorKind) string {
	switch kind {
	case claude.ErrNetwork:
		return "network unreachable"
	case claude.ErrUnauthorized:
		return "session expired"
	case claude.ErrRateLimited:
		return "rate limited"
	case claude.ErrMalformed:
		return "unexpected server response"
	default:
		return "fetch failed"
	}
}
