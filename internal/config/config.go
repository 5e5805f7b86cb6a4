// Package config contains everything related to configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Default values
const (
	defaultPollInterval  = 5 * time.Minute
	minPollInterval      = 10 * time.Second
	defaultWarnThreshold = 90.0
)

// ErrInitialRead marks a failure to obtain the startup configuration.
// The applet cannot start without it.
var ErrInitialRead = errors.New("initial config read failed")

// Snapshot is an immutable copy of the applet settings at a point in time.
// The update engine replaces its copy wholesale whenever the store notifies
// a change; nothing mutates a Snapshot after Load or Read returns it.
type Snapshot struct {
	// PollInterval is the cadence of the background usage fetch.
	PollInterval time.Duration

	// WarnThreshold is the utilization percentage above which a desktop
	// notification fires.
	WarnThreshold float64

	// ShowWeekly toggles the seven-day usage section in the popup.
	ShowWeekly bool

	// CredentialsPath locates the OAuth credentials JSON file.
	CredentialsPath string

	// HistoryPath locates the SQLite usage history database.
	HistoryPath string
}

// fileFormat is the on-disk TOML shape of the user-adjustable settings.
// Paths are environment-driven and never round-trip through the file.
type fileFormat struct {
	PollInterval  string  `toml:"poll_interval"`
	WarnThreshold float64 `toml:"warn_threshold"`
	ShowWeekly    bool    `toml:"show_weekly"`
}

// DefaultSnapshot returns the settings used on first run.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		PollInterval:    defaultPollInterval,
		WarnThreshold:   defaultWarnThreshold,
		ShowWeekly:      true,
		CredentialsPath: defaultCredentialsPath(),
		HistoryPath:     defaultHistoryPath(),
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	if p := os.Getenv("CLAUDE_APPLET_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(configDir(), "config.toml")
}

// configDir returns the applet's configuration directory. The layout matches
// the desktop tray predecessor so existing installs keep working.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude-tray"
	}
	return filepath.Join(home, ".config", "claude-tray")
}

func defaultCredentialsPath() string {
	if p := os.Getenv("CLAUDE_APPLET_CREDENTIALS"); p != "" {
		return p
	}
	return filepath.Join(configDir(), "credentials.json")
}

func defaultHistoryPath() string {
	if p := os.Getenv("CLAUDE_APPLET_HISTORY_DB"); p != "" {
		return p
	}
	return filepath.Join(configDir(), "history.db")
}

// loadEnv loads the first .env file found among the known locations.
func loadEnv() {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "claude-tray", ".env"))
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

// decodeSnapshot parses TOML file contents into a Snapshot, filling in
// defaults for absent or out-of-range values.
func decodeSnapshot(data []byte) (Snapshot, error) {
	var ff fileFormat
	if err := toml.Unmarshal(data, &ff); err != nil {
		return Snapshot{}, fmt.Errorf("parse config: %w", err)
	}

	snap := DefaultSnapshot()
	if ff.PollInterval != "" {
		d, err := time.ParseDuration(ff.PollInterval)
		if err != nil {
			return Snapshot{}, fmt.Errorf("parse poll_interval %q: %w", ff.PollInterval, err)
		}
		snap.PollInterval = d
	}
	if snap.PollInterval < minPollInterval {
		snap.PollInterval = minPollInterval
	}
	if ff.WarnThreshold > 0 {
		snap.WarnThreshold = ff.WarnThreshold
	}
	snap.ShowWeekly = ff.ShowWeekly
	return snap, nil
}

// encodeSnapshot renders a Snapshot as TOML file contents.
func encodeSnapshot(snap Snapshot) ([]byte, error) {
	ff := fileFormat{
		PollInterval:  snap.PollInterval.String(),
		WarnThreshold: snap.WarnThreshold,
		ShowWeekly:    snap.ShowWeekly,
	}
	data, err := toml.Marshal(ff)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
