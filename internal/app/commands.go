package app

import (
	"time"

	"github.com/jrdx0/claude-applet/internal/claude"
	"github.com/jrdx0/claude-applet/internal/config"
)

// Command is a side effect requested by the update engine. The engine never
// performs I/O itself: the runtime executes commands off the event loop and
// feeds their results back in as ordinary events.
type Command interface {
	isCommand()
}

// OpenPopupCmd asks the window layer to create the popup.
type OpenPopupCmd struct {
	ID PopupHandle
}

// ClosePopupCmd asks the window layer to destroy the popup.
type ClosePopupCmd struct {
	ID PopupHandle
}

// StartFetchCmd runs one usage fetch. Gen tags the result so a superseded
// fetch completion is recognizably stale.
type StartFetchCmd struct {
	Gen   uint64
	Creds claude.Credentials
}

// ReschedulePollingCmd cancels the running polling timer and starts a new
// one at Interval under generation Gen. Emitted whenever the declared timer
// changes: interval edits, login, logout.
type ReschedulePollingCmd struct {
	Interval time.Duration
	Gen      uint64
}

// PersistConfigCmd writes a snapshot to the config store. The resulting
// change notification returns as a ConfigChanged event.
type PersistConfigCmd struct {
	Snapshot config.Snapshot
}

// StartLoginCmd runs the interactive OAuth flow.
type StartLoginCmd struct{}

// RefreshTokenCmd exchanges the refresh token for fresh credentials.
type RefreshTokenCmd struct {
	Creds claude.Credentials
}

// SaveCredentialsCmd persists tokens to disk.
type SaveCredentialsCmd struct {
	Creds claude.Credentials
}

// RecordSnapshotCmd appends a successful fetch to the usage history.
type RecordSnapshotCmd struct {
	Data claude.UsageData
}

// NotifyCmd sends a desktop notification.
type NotifyCmd struct {
	Title string
	Body  string
}

// QuitCmd terminates the program.
type QuitCmd struct{}

func (OpenPopupCmd) isCommand()         {}
func (ClosePopupCmd) isCommand()        {}
func (StartFetchCmd) isCommand()        {}
func (ReschedulePollingCmd) isCommand() {}
func (PersistConfigCmd) isCommand()     {}
func (StartLoginCmd) isCommand()        {}
func (RefreshTokenCmd) isCommand()      {}
func (SaveCredentialsCmd) isCommand()   {}
func (RecordSnapshotCmd) isCommand()    {}
func (NotifyCmd) isCommand()            {}
func (QuitCmd) isCommand()              {}
