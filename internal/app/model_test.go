package app

import (
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jrdx0/claude-applet/internal/config"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	store, err := config.NewStore(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	m := NewModel(store, nil)
	t.Cleanup(m.subs.Close)
	return m
}

// runCmd executes a tea.Cmd tree and collects the EventMsg leaves.
func runCmd(cmd tea.Cmd) []EventMsg {
	if cmd == nil {
		return nil
	}
	var out []EventMsg
	switch msg := cmd().(type) {
	case EventMsg:
		out = append(out, msg)
	case tea.BatchMsg:
		for _, c := range msg {
			out = append(out, runCmd(c)...)
		}
	}
	return out
}

func TestModel_ToggleKeyOpensPopup(t *testing.T) {
	m := newTestModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace})

	if m.state.Popup != PopupOpening {
		t.Fatalf("Popup = %v, want opening", m.state.Popup)
	}

	// The open command synthesizes the acknowledgment.
	acks := runCmd(cmd)
	found := false
	for _, msg := range acks {
		if opened, ok := msg.Event.(PopupOpened); ok && opened.ID == m.state.PopupID {
			found = true
		}
	}
	if !found {
		t.Fatalf("open command should produce the PopupOpened ack, got %#v", acks)
	}

	// Feed the ack back in; the popup completes its lifecycle.
	_, _ = m.Update(EventMsg{Event: PopupOpened{ID: m.state.PopupID}})
	if m.state.Popup != PopupOpen {
		t.Errorf("Popup = %v, want open after ack", m.state.Popup)
	}
}

func TestModel_EscapeDismisses(t *testing.T) {
	m := newTestModel(t)
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace})
	_, _ = m.Update(EventMsg{Event: PopupOpened{ID: m.state.PopupID}})

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyEscape})

	if m.state.Popup != PopupClosed {
		t.Errorf("Popup = %v, want closed after escape", m.state.Popup)
	}
}

func TestModel_QuitKeyShutsDown(t *testing.T) {
	m := newTestModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	if !m.state.ShuttingDown {
		t.Error("q should enter shutdown")
	}
	if cmd == nil {
		t.Fatal("quit should produce a command")
	}
}

func TestModel_ReconcilesAfterEachEvent(t *testing.T) {
	m := newTestModel(t)

	if keys := m.subs.RunningKeys(); len(keys) != 0 {
		t.Fatalf("no listeners expected before Init, got %v", keys)
	}

	m.subs.Reconcile(m.state)
	if keys := m.subs.RunningKeys(); len(keys) != 1 {
		t.Fatalf("logged-out model should run only the config watcher, got %v", keys)
	}

	_, _ = m.Update(EventMsg{Event: CredentialsLoaded{Creds: loggedInState().Creds}})
	if keys := m.subs.RunningKeys(); len(keys) != 2 {
		t.Errorf("login should start the poll timer, got %v", keys)
	}

	_, _ = m.Update(EventMsg{Event: Shutdown{}})
	if keys := m.subs.RunningKeys(); len(keys) != 0 {
		t.Errorf("shutdown should stop all listeners, got %v", keys)
	}
}

func TestModel_ViewRendersWithoutSize(t *testing.T) {
	m := newTestModel(t)

	// Before the first WindowSizeMsg the view must still render.
	if out := m.View(); out == "" {
		t.Error("View() should render a frame before sizing")
	}
}
