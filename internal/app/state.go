// Package app implements the applet core: the state model, the pure update
// engine, subscription reconciliation, and the Bubble Tea runtime that ties
// them to the terminal.
package app

import (
	"github.com/jrdx0/claude-applet/internal/claude"
	"github.com/jrdx0/claude-applet/internal/config"
)

// PopupHandle identifies one popup window instance. Handles are allocated by
// the update engine and never reused within a process.
type PopupHandle uint64

// PopupPhase is the popup lifecycle state.
type PopupPhase int

const (
	// PopupClosed means no popup exists.
	PopupClosed PopupPhase = iota
	// PopupOpening means creation was requested but not yet acknowledged.
	PopupOpening
	// PopupOpen means the popup is visible.
	PopupOpen
)

// String returns the phase label.
func (p PopupPhase) String() string {
	switch p {
	case PopupClosed:
		return "closed"
	case PopupOpening:
		return "opening"
	case PopupOpen:
		return "open"
	default:
		return "unknown"
	}
}

// UsagePhase tags the usage status variant.
type UsagePhase int

const (
	// UsageUnknown means no fetch has completed yet.
	UsageUnknown UsagePhase = iota
	// UsageLoading means exactly one fetch is outstanding.
	UsageLoading
	// UsageAvailable means the last fetch succeeded.
	UsageAvailable
	// UsageFailed means the last fetch failed.
	UsageFailed
)

// String returns the phase label.
func (p UsagePhase) String() string {
	switch p {
	case UsageUnknown:
		return "unknown"
	case UsageLoading:
		return "loading"
	case UsageAvailable:
		return "available"
	case UsageFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// UsageStatus is the tagged usage variant. Data is set only when the phase
// is UsageAvailable, Fail only when the phase is UsageFailed.
type UsageStatus struct {
	Phase UsagePhase
	Data  *claude.UsageData
	Fail  claude.ErrorKind
}

func usageUnknown() UsageStatus { return UsageStatus{Phase: UsageUnknown} }
func usageLoading() UsageStatus { return UsageStatus{Phase: UsageLoading} }

func usageAvailable(data *claude.UsageData) UsageStatus {
	return UsageStatus{Phase: UsageAvailable, Data: data}
}

func usageFailed(kind claude.ErrorKind) UsageStatus {
	return UsageStatus{Phase: UsageFailed, Fail: kind}
}

// State is the single in-memory source of truth. It is a value type: the
// update engine replaces it wholesale per event and nothing else writes it.
// "Fetch in flight" is not a separate flag; it is Usage.Phase == UsageLoading
// by definition, so the two can never disagree.
type State struct {
	// Popup lifecycle. PopupID is meaningful outside PopupClosed.
	Popup   PopupPhase
	PopupID PopupHandle

	// NextPopupID is the next handle to allocate, kept in state so the
	// engine stays pure.
	NextPopupID PopupHandle

	// Config is the snapshot copied from the store on every change
	// notification. Never locally mutated: edits are persisted and come
	// back through the subscription echo.
	Config config.Snapshot

	// Usage is the fetch lifecycle variant.
	Usage UsageStatus

	// LastUsage caches the most recent good snapshot so the popup can show
	// stale-but-labeled data while Usage is Failed or Loading.
	LastUsage *claude.UsageData

	// Creds is the account reference handed to the fetcher.
	Creds claude.Credentials

	// LoginInFlight guards against overlapping login flows.
	LoginInFlight bool

	// LastError is a transient user-facing message (config write or login
	// failures). Fetch failures live in Usage instead.
	LastError string

	// TimerGen tags the polling timer generation. A reschedule bumps it so
	// ticks from a cancelled timer are recognizably stale.
	TimerGen uint64

	// FetchGen tags the outstanding fetch so results from a superseded
	// fetch are recognizably stale.
	FetchGen uint64

	// ShuttingDown is terminal: the engine stops producing commands and
	// discards late fetch results.
	ShuttingDown bool
}

// NewState builds the startup state from the initial config read.
func NewState(cfg config.Snapshot) State {
	return State{
		Popup:       PopupClosed,
		NextPopupID: 1,
		Config:      cfg,
		Usage:       usageUnknown(),
	}
}

// PopupVisible reports whether the popup should be rendered.
func (s State) PopupVisible() bool {
	return s.Popup == PopupOpening || s.Popup == PopupOpen
}

// FetchInFlight reports whether a usage fetch is outstanding.
func (s State) FetchInFlight() bool {
	return s.Usage.Phase == UsageLoading
}

// LoggedIn reports whether the applet has a usable account reference.
func (s State) LoggedIn() bool {
	return s.Creds.LoggedIn()
}
