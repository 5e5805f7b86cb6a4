package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/jrdx0/claude-applet/internal/config"
	"github.com/jrdx0/claude-applet/internal/logger"
)

const configListenerKey = "config-watch"

// ConfigSource is the slice of the config store the subscription manager
// needs: a change feed.
type ConfigSource interface {
	Subscribe() <-chan config.Snapshot
}

// SubscriptionManager reconciles the set of running background listeners
// against the set the current state declares. Listeners push their output
// into the event loop through send; they never touch state directly.
//
// Reconciliation is keyed: a listener keeps running across reconciles as
// long as its key stays in the declared set, and reconciling twice against
// the same state is a no-op. The poll timer's key embeds both the interval
// and the timer generation, so a changed cadence or an explicit reschedule
// replaces the timer while an unrelated state change leaves it alone.
type SubscriptionManager struct {
	mu      sync.Mutex
	send    func(Event)
	source  ConfigSource
	running map[string]chan struct{}
	closed  bool
}

// NewSubscriptionManager wires a manager to the config change feed and an
// event sink.
func NewSubscriptionManager(source ConfigSource, send func(Event)) *SubscriptionManager {
	return &SubscriptionManager{
		send:    send,
		source:  source,
		running: make(map[string]chan struct{}),
	}
}

func pollKey(interval time.Duration, gen uint64) string {
	return fmt.Sprintf("poll:%s#%d", interval, gen)
}

// Reconcile brings the running listeners in line with what the state
// declares: the config watcher while the applet is alive, and one polling
// timer while an account is present. Idempotent by construction.
func (m *SubscriptionManager) Reconcile(s State) {
	declared := make(map[string]func(stop chan struct{}))

	if !s.ShuttingDown {
		declared[configListenerKey] = m.runConfigListener
		if s.LoggedIn() {
			interval := s.Config.PollInterval
			gen := s.TimerGen
			declared[pollKey(interval, gen)] = func(stop chan struct{}) {
				m.runPollTimer(interval, gen, stop)
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	for key, stop := range m.running {
		if _, want := declared[key]; !want {
			close(stop)
			delete(m.running, key)
			logger.Debug("listener stopped", "key", key)
		}
	}

	for key, run := range declared {
		if _, have := m.running[key]; have {
			continue
		}
		stop := make(chan struct{})
		m.running[key] = stop
		go run(stop)
		logger.Debug("listener started", "key", key)
	}
}

// RunningKeys returns the keys of the currently running listeners, for
// inspection in tests.
func (m *SubscriptionManager) RunningKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.running))
	for key := range m.running {
		keys = append(keys, key)
	}
	return keys
}

// Close stops every running listener.
func (m *SubscriptionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for key, stop := range m.running {
		close(stop)
		delete(m.running, key)
	}
}

// runConfigListener forwards store change notifications as events.
func (m *SubscriptionManager) runConfigListener(stop chan struct{}) {
	changes := m.source.Subscribe()
	for {
		select {
		case snap, ok := <-changes:
			if !ok {
				return
			}
			m.send(ConfigChanged{Snapshot: snap})
		case <-stop:
			return
		}
	}
}

// runPollTimer fires one immediate tick, then ticks at interval until
// stopped. Every tick carries the generation it was scheduled under; the
// engine drops ticks whose generation has been superseded.
func (m *SubscriptionManager) runPollTimer(interval time.Duration, gen uint64, stop chan struct{}) {
	select {
	case <-stop:
		return
	default:
	}
	m.send(PollTick{Gen: gen})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.send(PollTick{Gen: gen})
		case <-stop:
			return
		}
	}
}
