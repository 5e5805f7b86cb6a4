// Package main is the entry point for the Claude usage applet. It opens the
// config store and history database, then runs the Bubble Tea program.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jrdx0/claude-applet/internal/app"
	"github.com/jrdx0/claude-applet/internal/config"
	"github.com/jrdx0/claude-applet/internal/history"
	"github.com/jrdx0/claude-applet/internal/logger"
	"github.com/jrdx0/claude-applet/internal/version"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-v" || os.Args[1] == "--version") {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		printUsage()
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run contains the main application logic, separated for cleaner error handling.
func run() error {
	// The TUI owns the terminal, so log lines go to a file instead.
	if f, err := os.OpenFile(logPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600); err == nil {
		logger.SetOutput(f)
		defer func() { _ = f.Close() }()
	} else {
		logger.SetOutput(io.Discard)
	}

	// The initial config read is the one failure the applet cannot survive.
	store, err := config.NewStore("")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing config store: %v\n", closeErr)
		}
	}()

	snap := store.Read()

	// History is optional: the applet degrades to no trend display.
	var hist *history.DB
	if db, err := history.New(snap.HistoryPath); err != nil {
		logger.Warn("usage history unavailable", "error", err)
	} else {
		hist = db
		defer func() {
			if closeErr := hist.Close(); closeErr != nil {
				logger.Error("error closing history database", "error", closeErr)
			}
		}()
	}

	model := app.NewModel(store, hist)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)

	go func() {
		<-sigChan
		p.Send(app.EventMsg{Event: app.Shutdown{}})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

func logPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "claude-applet.log"
	}
	return home + "/.config/claude-tray/applet.log"
}

// printUsage prints the command-line usage information.
func printUsage() {
	fmt.Println(`Claude Applet - panel applet for Claude account usage

Usage:
  claude-applet [flags]

Flags:
  -h, --help      Show this help message
  -v, --version   Show version information

Keyboard Shortcuts:
  Space/Enter     Toggle the usage popup
  Esc             Dismiss the popup
  l               Log in with your Claude account
  r               Refresh usage now
  +/-             Adjust the polling interval
  w               Toggle the weekly usage section
  q, Ctrl+C       Quit

Environment Variables:
  CLAUDE_APPLET_CONFIG       Config file path (default ~/.config/claude-tray/config.toml)
  CLAUDE_APPLET_CREDENTIALS  Credentials JSON path
  CLAUDE_APPLET_HISTORY_DB   SQLite usage history path

Configuration:
  Settings live in a TOML file and are watched for changes; edits made
  while the applet runs are picked up automatically.`)
}
