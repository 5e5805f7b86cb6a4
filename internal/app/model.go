package app

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jrdx0/claude-applet/internal/claude"
	"github.com/jrdx0/claude-applet/internal/config"
	"github.com/jrdx0/claude-applet/internal/history"
	"github.com/jrdx0/claude-applet/internal/logger"
	"github.com/jrdx0/claude-applet/internal/notify"
	"github.com/jrdx0/claude-applet/internal/ui/components"
)

// EventMsg carries one engine event through the Bubble Tea message loop.
// Exported so main can inject events (signal-driven shutdown) via Send.
type EventMsg struct {
	Event Event
}

// seriesMsg refreshes the cached history series shown in the popup.
type seriesMsg struct {
	series []float64
}

// Model is the Bubble Tea runtime around the pure engine. It owns the only
// State value; every input is funneled into Update one event at a time, and
// every side effect the engine requests runs as a tea.Cmd off the loop.
type Model struct {
	state State

	store *config.Store
	subs  *SubscriptionManager
	hist  *history.DB

	spinner components.LoadingSpinner
	series  []float64

	events chan Event

	width  int
	height int

	ctx    context.Context
	cancel context.CancelFunc
}

// NewModel wires the runtime to its stores. hist may be nil when the history
// database failed to open; the applet runs without trend display then.
func NewModel(store *config.Store, hist *history.DB) *Model {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Model{
		state:   NewState(store.Read()),
		store:   store,
		hist:    hist,
		spinner: components.NewSpinner("loading"),
		events:  make(chan Event, 64),
		ctx:     ctx,
		cancel:  cancel,
	}
	m.subs = NewSubscriptionManager(store, m.enqueue)
	return m
}

// enqueue is the sink handed to background listeners. Dropping on overflow
// is safe: config changes re-fire on the next edit and poll ticks repeat.
func (m *Model) enqueue(ev Event) {
	select {
	case m.events <- ev:
	default:
		logger.Warn("event queue full, dropping", "event", ev)
	}
}

// Init loads persisted credentials, starts the declared listeners and arms
// the event pump.
func (m *Model) Init() tea.Cmd {
	m.subs.Reconcile(m.state)

	return tea.Batch(
		m.spinner.Tick(),
		m.waitForEvent(),
		m.loadCredentials(),
		m.loadSeries(),
	)
}

// waitForEvent pumps one background event into the message loop. Re-armed
// after every delivery so events stay strictly serialized.
func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return nil
		}
		return EventMsg{Event: ev}
	}
}

func (m *Model) loadCredentials() tea.Cmd {
	path := m.state.Config.CredentialsPath
	return func() tea.Msg {
		creds, err := claude.LoadCredentials(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Warn("stored credentials unreadable", "error", err)
			}
			return nil
		}
		return EventMsg{Event: CredentialsLoaded{Creds: creds}}
	}
}

func (m *Model) loadSeries() tea.Cmd {
	if m.hist == nil {
		return nil
	}
	hist := m.hist
	return func() tea.Msg {
		series, err := hist.RecentSessionSeries(48)
		if err != nil {
			logger.Warn("history series unavailable", "error", err)
			return nil
		}
		return seriesMsg{series: series}
	}
}

// Update is the Bubble Tea entry point. Terminal concerns (keys, resize,
// spinner frames) are handled here; everything semantic becomes an engine
// event.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		cmd := m.apply(msg.Event)
		return m, tea.Batch(cmd, m.waitForEvent())

	case seriesMsg:
		m.series = msg.series
		return m, nil

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, m.apply(Shutdown{})
	case " ", "enter":
		return m, m.apply(TogglePopup{})
	case "esc":
		if m.state.PopupVisible() {
			return m, m.apply(PopupDismissed{ID: m.state.PopupID})
		}
		return m, nil
	case "l":
		return m, m.apply(LoginRequested{})
	case "r":
		// Manual refresh reuses the tick path, so the single-fetch rule
		// holds for keyboard refreshes too.
		return m, m.apply(PollTick{Gen: m.state.TimerGen})
	case "+", "=":
		return m, m.apply(AdjustPollInterval{Delta: 1})
	case "-":
		return m, m.apply(AdjustPollInterval{Delta: -1})
	case "w":
		return m, m.apply(ToggleWeekly{})
	default:
		return m, nil
	}
}

// apply runs one event through the engine, reconciles listeners against the
// new state and turns the requested commands into tea.Cmds.
func (m *Model) apply(ev Event) tea.Cmd {
	next, cmds := Update(m.state, ev)
	m.state = next
	m.subs.Reconcile(next)

	var teaCmds []tea.Cmd
	for _, cmd := range cmds {
		if tc := m.execute(cmd); tc != nil {
			teaCmds = append(teaCmds, tc)
		}
	}
	if len(teaCmds) == 0 {
		return nil
	}
	return tea.Batch(teaCmds...)
}

func (m *Model) execute(cmd Command) tea.Cmd {
	switch cmd := cmd.(type) {
	case OpenPopupCmd:
		// The popup is drawn inline, so creation is immediate; the ack
		// closes the Opening phase on the next loop iteration.
		id := cmd.ID
		return tea.Batch(
			func() tea.Msg { return EventMsg{Event: PopupOpened{ID: id}} },
			m.loadSeries(),
		)

	case ClosePopupCmd:
		return nil

	case StartFetchCmd:
		gen, token := cmd.Gen, cmd.Creds.AccessToken
		ctx := m.ctx
		return func() tea.Msg {
			data, err := claude.FetchUsage(ctx, token)
			return EventMsg{Event: FetchCompleted{Gen: gen, Data: data, Err: err}}
		}

	case ReschedulePollingCmd:
		// The timer itself is reconciled from state; the command is the
		// engine's explicit record that the schedule changed.
		logger.Debug("polling rescheduled", "interval", cmd.Interval, "gen", cmd.Gen)
		return nil

	case PersistConfigCmd:
		snap := cmd.Snapshot
		store := m.store
		return func() tea.Msg {
			if err := store.Write(snap); err != nil {
				return EventMsg{Event: ConfigWriteFailed{Err: err}}
			}
			return nil
		}

	case StartLoginCmd:
		ctx := m.ctx
		return func() tea.Msg {
			tok, err := claude.Login(ctx)
			if err != nil {
				return EventMsg{Event: LoginFailed{Err: err}}
			}
			return EventMsg{Event: LoginCompleted{Creds: tok.Credentials()}}
		}

	case RefreshTokenCmd:
		refresh := cmd.Creds.RefreshToken
		ctx := m.ctx
		return func() tea.Msg {
			tok, err := claude.RefreshCredentials(ctx, refresh)
			if err != nil {
				return EventMsg{Event: TokenRefreshFailed{Err: err}}
			}
			return EventMsg{Event: TokenRefreshed{Creds: tok.Credentials()}}
		}

	case SaveCredentialsCmd:
		path := m.state.Config.CredentialsPath
		creds := cmd.Creds
		return func() tea.Msg {
			if err := claude.SaveCredentials(path, creds); err != nil {
				logger.Error("failed to save credentials", "error", err)
			}
			return nil
		}

	case RecordSnapshotCmd:
		if m.hist == nil {
			return nil
		}
		hist := m.hist
		data := cmd.Data
		return tea.Sequence(
			func() tea.Msg {
				if err := hist.Record(data); err != nil {
					logger.Error("failed to record usage snapshot", "error", err)
				}
				return nil
			},
			m.loadSeries(),
		)

	case NotifyCmd:
		title, body := cmd.Title, cmd.Body
		return func() tea.Msg {
			notify.Send(title, body)
			return nil
		}

	case QuitCmd:
		m.cancel()
		m.subs.Close()
		return tea.Quit

	default:
		return nil
	}
}

// View renders the current frame from the pure projection.
func (m *Model) View() string {
	return renderFrame(Project(m.state), m.spinner.View(), m.series, m.width, m.height)
}
