package app

import (
	"fmt"
	"time"

	"github.com/jrdx0/claude-applet/internal/claude"
)

// Poll interval bounds for interactive adjustment.
const (
	pollIntervalStep = 30 * time.Second
	pollIntervalMin  = 30 * time.Second
	pollIntervalMax  = time.Hour
)

// Update is the engine: a pure transition from (state, event) to (next
// state, commands). No I/O happens here; every side effect is returned as a
// Command for the runtime to execute. The runtime guarantees events are
// applied one at a time in arrival order, which is what makes the in-flight
// and generation bookkeeping below race-free by construction.
func Update(s State, ev Event) (State, []Command) {
	if s.ShuttingDown {
		// Terminal: late fetch results, ticks and acks are all discarded.
		return s, nil
	}

	switch ev := ev.(type) {
	case TogglePopup:
		return updateTogglePopup(s)
	case PopupOpened:
		return updatePopupOpened(s, ev)
	case PopupDismissed:
		return updatePopupDismissed(s, ev)
	case ConfigChanged:
		return updateConfigChanged(s, ev)
	case ConfigWriteFailed:
		s.LastError = fmt.Sprintf("saving settings failed: %v", ev.Err)
		return s, nil
	case PollTick:
		return updatePollTick(s, ev)
	case FetchCompleted:
		return updateFetchCompleted(s, ev)
	case CredentialsLoaded:
		return updateNewCredentials(s, ev.Creds, false)
	case LoginRequested:
		if s.LoggedIn() || s.LoginInFlight {
			return s, nil
		}
		s.LoginInFlight = true
		s.LastError = ""
		return s, []Command{StartLoginCmd{}}
	case LoginCompleted:
		s.LoginInFlight = false
		return updateNewCredentials(s, ev.Creds, true)
	case LoginFailed:
		s.LoginInFlight = false
		s.LastError = fmt.Sprintf("login failed: %v", ev.Err)
		return s, nil
	case TokenRefreshed:
		s.Creds = ev.Creds
		return s, []Command{SaveCredentialsCmd{Creds: ev.Creds}}
	case TokenRefreshFailed:
		// Credentials are unusable; stop polling and ask for a re-login.
		s.Creds = claude.Credentials{}
		s.LastError = fmt.Sprintf("session expired, log in again: %v", ev.Err)
		s.TimerGen++
		return s, []Command{ReschedulePollingCmd{Interval: s.Config.PollInterval, Gen: s.TimerGen}}
	case AdjustPollInterval:
		return updateAdjustPollInterval(s, ev)
	case ToggleWeekly:
		snap := s.Config
		snap.ShowWeekly = !snap.ShowWeekly
		return s, []Command{PersistConfigCmd{Snapshot: snap}}
	case Shutdown:
		s.ShuttingDown = true
		var cmds []Command
		if s.Popup != PopupClosed {
			cmds = append(cmds, ClosePopupCmd{ID: s.PopupID})
			s.Popup = PopupClosed
		}
		cmds = append(cmds, QuitCmd{})
		return s, cmds
	default:
		return s, nil
	}
}

// updateTogglePopup flips the popup exactly once per event. Toggling while
// the open acknowledgment is still pending closes the window anyway, so a
// rapid double toggle always lands back where it started.
func updateTogglePopup(s State) (State, []Command) {
	if s.Popup == PopupClosed {
		id := s.NextPopupID
		s.NextPopupID++
		s.Popup = PopupOpening
		s.PopupID = id
		return s, []Command{OpenPopupCmd{ID: id}}
	}

	id := s.PopupID
	s.Popup = PopupClosed
	return s, []Command{ClosePopupCmd{ID: id}}
}

// updatePopupOpened handles the window creation acknowledgment. A duplicate
// ack while already open, or an ack for a superseded handle, is ignored.
func updatePopupOpened(s State, ev PopupOpened) (State, []Command) {
	if s.Popup != PopupOpening || ev.ID != s.PopupID {
		return s, nil
	}
	s.Popup = PopupOpen
	return s, nil
}

// updatePopupDismissed handles an externally closed popup. The window is
// already gone, so no destroy command is emitted. A dismiss for a handle
// that is no longer current is ignored.
func updatePopupDismissed(s State, ev PopupDismissed) (State, []Command) {
	if s.Popup == PopupClosed || ev.ID != s.PopupID {
		return s, nil
	}
	s.Popup = PopupClosed
	return s, nil
}

// updateConfigChanged replaces the config snapshot unconditionally. The
// polling timer is rescheduled only when the interval actually changed: a
// stale timer would poll at the wrong cadence, but an unchanged interval
// must not churn the timer.
func updateConfigChanged(s State, ev ConfigChanged) (State, []Command) {
	prev := s.Config.PollInterval
	s.Config = ev.Snapshot

	if ev.Snapshot.PollInterval == prev {
		return s, nil
	}

	s.TimerGen++
	return s, []Command{ReschedulePollingCmd{Interval: ev.Snapshot.PollInterval, Gen: s.TimerGen}}
}

// updatePollTick starts a fetch unless one is already outstanding. A tick
// from a cancelled timer generation is dropped, and a tick that lands while
// a fetch is in flight is a no-op rather than a queued second fetch.
func updatePollTick(s State, ev PollTick) (State, []Command) {
	if ev.Gen != s.TimerGen {
		return s, nil
	}
	if !s.LoggedIn() {
		return s, nil
	}
	if s.FetchInFlight() {
		return s, nil
	}

	s.FetchGen++
	s.Usage = usageLoading()
	return s, []Command{StartFetchCmd{Gen: s.FetchGen, Creds: s.Creds}}
}

// updateFetchCompleted applies one fetch result. Results from a superseded
// fetch generation are dropped. On success the snapshot is recorded to
// history and a threshold-crossing notification may fire; on failure the
// kind is recorded and the next regular tick is the sole retry.
func updateFetchCompleted(s State, ev FetchCompleted) (State, []Command) {
	if ev.Gen != s.FetchGen || !s.FetchInFlight() {
		return s, nil
	}

	if ev.Err != nil {
		s.Usage = usageFailed(claude.KindOf(ev.Err))

		if claude.AuthExpired(ev.Err) && s.Creds.RefreshToken != "" {
			return s, []Command{RefreshTokenCmd{Creds: s.Creds}}
		}
		return s, nil
	}

	prev := s.LastUsage
	s.Usage = usageAvailable(ev.Data)
	s.LastUsage = ev.Data

	cmds := []Command{RecordSnapshotCmd{Data: *ev.Data}}
	if cmd, ok := thresholdNotification(prev, ev.Data, s.Config.WarnThreshold); ok {
		cmds = append(cmds, cmd)
	}
	return s, cmds
}

// thresholdNotification fires only on an upward crossing of the warning
// threshold, never repeatedly while usage stays above it.
func thresholdNotification(prev, next *claude.UsageData, threshold float64) (Command, bool) {
	if threshold <= 0 || next == nil || prev == nil {
		return nil, false
	}
	if prev.FiveHour.Utilization >= threshold || next.FiveHour.Utilization < threshold {
		return nil, false
	}
	return NotifyCmd{
		Title: "Claude usage high",
		Body:  fmt.Sprintf("Session usage reached %.0f%% of quota", next.FiveHour.Utilization),
	}, true
}

// updateNewCredentials installs a fresh account reference and (re)starts
// polling. Login results additionally persist the tokens.
func updateNewCredentials(s State, creds claude.Credentials, persist bool) (State, []Command) {
	s.Creds = creds
	s.LastError = ""

	var cmds []Command
	if persist {
		cmds = append(cmds, SaveCredentialsCmd{Creds: creds})
	}
	if creds.LoggedIn() {
		s.TimerGen++
		cmds = append(cmds, ReschedulePollingCmd{Interval: s.Config.PollInterval, Gen: s.TimerGen})
	}
	return s, cmds
}

// updateAdjustPollInterval persists the edited snapshot and waits for the
// store echo. The local config copy is deliberately left untouched: the
// subscription delivers the authoritative ConfigChanged.
func updateAdjustPollInterval(s State, ev AdjustPollInterval) (State, []Command) {
	next := s.Config.PollInterval + time.Duration(ev.Delta)*pollIntervalStep
	if next < pollIntervalMin {
		next = pollIntervalMin
	}
	if next > pollIntervalMax {
		next = pollIntervalMax
	}
	if next == s.Config.PollInterval {
		return s, nil
	}

	snap := s.Config
	snap.PollInterval = next
	return s, []Command{PersistConfigCmd{Snapshot: snap}}
}
