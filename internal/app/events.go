package app

import (
	"github.com/jrdx0/claude-applet/internal/claude"
	"github.com/jrdx0/claude-applet/internal/config"
)

// Event is one serialized input to the update engine. Events arrive from the
// UI, the config store subscription, the polling timer, and completed
// commands; the runtime feeds them to the engine strictly one at a time in
// arrival order.
type Event interface {
	isEvent()
}

// TogglePopup flips the popup open or closed. One flip per event, no matter
// how quickly toggles arrive.
type TogglePopup struct{}

// PopupOpened acknowledges that the popup window identified by ID exists.
type PopupOpened struct {
	ID PopupHandle
}

// PopupDismissed reports that the popup was closed externally (focus loss,
// escape, window manager).
type PopupDismissed struct {
	ID PopupHandle
}

// ConfigChanged carries a fresh snapshot from the config store. Fires for
// external edits and for the applet's own writes alike.
type ConfigChanged struct {
	Snapshot config.Snapshot
}

// ConfigWriteFailed reports a failed settings persist. Surfaced to the UI;
// never touches usage state.
type ConfigWriteFailed struct {
	Err error
}

// PollTick is one polling timer fire, tagged with the timer generation that
// produced it so fires from a cancelled timer can be dropped.
type PollTick struct {
	Gen uint64
}

// FetchCompleted delivers the result of one usage fetch. Exactly one of
// Data and Err is set.
type FetchCompleted struct {
	Gen  uint64
	Data *claude.UsageData
	Err  error
}

// CredentialsLoaded delivers tokens found on disk at startup.
type CredentialsLoaded struct {
	Creds claude.Credentials
}

// LoginRequested starts the interactive OAuth flow.
type LoginRequested struct{}

// LoginCompleted delivers tokens from a finished OAuth flow.
type LoginCompleted struct {
	Creds claude.Credentials
}

// LoginFailed reports an aborted or failed OAuth flow.
type LoginFailed struct {
	Err error
}

// TokenRefreshed delivers tokens from a refresh-token grant.
type TokenRefreshed struct {
	Creds claude.Credentials
}

// TokenRefreshFailed reports a failed refresh-token grant. The stored
// credentials are no longer usable; the user has to log in again.
type TokenRefreshFailed struct {
	Err error
}

// AdjustPollInterval asks for the polling interval to be changed by Delta.
// The engine persists the new snapshot and waits for the store echo; it
// never updates its config copy optimistically.
type AdjustPollInterval struct {
	Delta int // steps, positive or negative
}

// ToggleWeekly asks for the seven-day popup section to be toggled.
type ToggleWeekly struct{}

// Shutdown is terminal. The engine ceases producing commands and late fetch
// results are discarded.
type Shutdown struct{}

func (TogglePopup) isEvent()        {}
func (PopupOpened) isEvent()        {}
func (PopupDismissed) isEvent()     {}
func (ConfigChanged) isEvent()      {}
func (ConfigWriteFailed) isEvent()  {}
func (PollTick) isEvent()           {}
func (FetchCompleted) isEvent()     {}
func (CredentialsLoaded) isEvent()  {}
func (LoginRequested) isEvent()     {}
func (LoginCompleted) isEvent()     {}
func (LoginFailed) isEvent()        {}
func (TokenRefreshed) isEvent()     {}
func (TokenRefreshFailed) isEvent() {}
func (AdjustPollInterval) isEvent() {}
func (ToggleWeekly) isEvent()       {}
func (Shutdown) isEvent()           {}
