package app

import (
	"errors"
	"testing"
	"time"

	"github.com/jrdx0/claude-applet/internal/claude"
	"github.com/jrdx0/claude-applet/internal/config"
)

func testConfig() config.Snapshot {
	snap := config.DefaultSnapshot()
	snap.PollInterval = 5 * time.Minute
	snap.WarnThreshold = 90
	snap.ShowWeekly = true
	return snap
}

func loggedInState() State {
	s := NewState(testConfig())
	s.Creds = claude.Credentials{AccessToken: "token", RefreshToken: "refresh"}
	return s
}

func usageSnapshot(fiveHour float64) *claude.UsageData {
	return &claude.UsageData{
		FiveHour:  claude.UsagePeriod{Utilization: fiveHour, ResetsAt: time.Now().Add(2 * time.Hour)},
		SevenDay:  claude.UsagePeriod{Utilization: fiveHour / 2},
		FetchedAt: time.Now(),
	}
}

func commandsOfType[T Command](cmds []Command) []T {
	var out []T
	for _, c := range cmds {
		if t, ok := c.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

func TestPollTick_StartsFetch(t *testing.T) {
	s := loggedInState()

	next, cmds := Update(s, PollTick{Gen: s.TimerGen})

	if next.Usage.Phase != UsageLoading {
		t.Errorf("Usage.Phase = %v, want loading", next.Usage.Phase)
	}
	fetches := commandsOfType[StartFetchCmd](cmds)
	if len(fetches) != 1 {
		t.Fatalf("got %d StartFetchCmd, want 1", len(fetches))
	}
	if fetches[0].Gen != next.FetchGen {
		t.Errorf("fetch gen = %d, want %d", fetches[0].Gen, next.FetchGen)
	}
}

func TestPollTick_NoSecondFetchWhileLoading(t *testing.T) {
	s := loggedInState()
	s, _ = Update(s, PollTick{Gen: s.TimerGen})

	next, cmds := Update(s, PollTick{Gen: s.TimerGen})

	if len(cmds) != 0 {
		t.Errorf("got %d commands, want 0", len(cmds))
	}
	if next.FetchGen != s.FetchGen {
		t.Errorf("FetchGen advanced from %d to %d on a dropped tick", s.FetchGen, next.FetchGen)
	}
}

func TestPollTick_StaleGenerationDropped(t *testing.T) {
	s := loggedInState()
	s.TimerGen = 5

	next, cmds := Update(s, PollTick{Gen: 4})

	if len(cmds) != 0 {
		t.Errorf("got %d commands, want 0", len(cmds))
	}
	if next.Usage.Phase != UsageUnknown {
		t.Errorf("Usage.Phase = %v, want unknown", next.Usage.Phase)
	}
}

func TestPollTick_IgnoredWhenLoggedOut(t *testing.T) {
	s := NewState(testConfig())

	_, cmds := Update(s, PollTick{Gen: s.TimerGen})

	if len(cmds) != 0 {
		t.Errorf("got %d commands, want 0", len(cmds))
	}
}

func TestFetchLifecycle(t *testing.T) {
	s := loggedInState()

	// Unknown -> Loading
	s, cmds := Update(s, PollTick{Gen: s.TimerGen})
	if s.Usage.Phase != UsageLoading {
		t.Fatalf("Usage.Phase = %v, want loading", s.Usage.Phase)
	}
	fetch := commandsOfType[StartFetchCmd](cmds)[0]

	// Loading -> Available(40%)
	s, cmds = Update(s, FetchCompleted{Gen: fetch.Gen, Data: usageSnapshot(40)})
	if s.Usage.Phase != UsageAvailable {
		t.Fatalf("Usage.Phase = %v, want available", s.Usage.Phase)
	}
	if s.Usage.Data.FiveHour.Utilization != 40 {
		t.Errorf("utilization = %v, want 40", s.Usage.Data.FiveHour.Utilization)
	}
	if len(commandsOfType[RecordSnapshotCmd](cmds)) != 1 {
		t.Error("successful fetch should record a history snapshot")
	}

	// Available -> Loading
	s, cmds = Update(s, PollTick{Gen: s.TimerGen})
	if s.Usage.Phase != UsageLoading {
		t.Fatalf("Usage.Phase = %v, want loading", s.Usage.Phase)
	}
	fetch = commandsOfType[StartFetchCmd](cmds)[0]

	// Loading -> Failed(rate limited)
	rateLimited := &claude.FetchError{Kind: claude.ErrRateLimited, Msg: "too many requests"}
	s, _ = Update(s, FetchCompleted{Gen: fetch.Gen, Err: rateLimited})
	if s.Usage.Phase != UsageFailed {
		t.Fatalf("Usage.Phase = %v, want failed", s.Usage.Phase)
	}
	if s.Usage.Fail != claude.ErrRateLimited {
		t.Errorf("Usage.Fail = %v, want rate limited", s.Usage.Fail)
	}

	// The last good snapshot stays available for display.
	if s.LastUsage == nil || s.LastUsage.FiveHour.Utilization != 40 {
		t.Error("LastUsage should retain the last successful snapshot")
	}
}

func TestFetchCompleted_StaleGenerationDropped(t *testing.T) {
	s := loggedInState()
	s, _ = Update(s, PollTick{Gen: s.TimerGen})

	next, cmds := Update(s, FetchCompleted{Gen: s.FetchGen - 1, Data: usageSnapshot(10)})

	if len(cmds) != 0 {
		t.Errorf("got %d commands, want 0", len(cmds))
	}
	if next.Usage.Phase != UsageLoading {
		t.Errorf("Usage.Phase = %v, want still loading", next.Usage.Phase)
	}
}

func TestFetchCompleted_AuthExpiredTriggersRefresh(t *testing.T) {
	s := loggedInState()
	s, cmds := Update(s, PollTick{Gen: s.TimerGen})
	fetch := commandsOfType[StartFetchCmd](cmds)[0]

	expired := &claude.FetchError{Kind: claude.ErrUnauthorized, Msg: "OAuth token has expired"}
	s, cmds = Update(s, FetchCompleted{Gen: fetch.Gen, Err: expired})

	refreshes := commandsOfType[RefreshTokenCmd](cmds)
	if len(refreshes) != 1 {
		t.Fatalf("got %d RefreshTokenCmd, want 1", len(refreshes))
	}
	if refreshes[0].Creds.RefreshToken != "refresh" {
		t.Errorf("refresh uses token %q, want %q", refreshes[0].Creds.RefreshToken, "refresh")
	}
	if s.Usage.Fail != claude.ErrUnauthorized {
		t.Errorf("Usage.Fail = %v, want unauthorized", s.Usage.Fail)
	}
}

func TestFetchCompleted_ThresholdCrossingNotifies(t *testing.T) {
	s := loggedInState()

	// First result below threshold: no notification.
	s, cmds := Update(s, PollTick{Gen: s.TimerGen})
	fetch := commandsOfType[StartFetchCmd](cmds)[0]
	s, cmds = Update(s, FetchCompleted{Gen: fetch.Gen, Data: usageSnapshot(85)})
	if len(commandsOfType[NotifyCmd](cmds)) != 0 {
		t.Error("no notification expected below threshold")
	}

	// Crossing upward: one notification.
	s, cmds = Update(s, PollTick{Gen: s.TimerGen})
	fetch = commandsOfType[StartFetchCmd](cmds)[0]
	s, cmds = Update(s, FetchCompleted{Gen: fetch.Gen, Data: usageSnapshot(95)})
	if len(commandsOfType[NotifyCmd](cmds)) != 1 {
		t.Error("expected one notification on upward crossing")
	}

	// Staying above: no repeat.
	s, cmds = Update(s, PollTick{Gen: s.TimerGen})
	fetch = commandsOfType[StartFetchCmd](cmds)[0]
	_, cmds = Update(s, FetchCompleted{Gen: fetch.Gen, Data: usageSnapshot(97)})
	if len(commandsOfType[NotifyCmd](cmds)) != 0 {
		t.Error("no repeat notification while staying above threshold")
	}
}

func TestTogglePopup_OpensAndCloses(t *testing.T) {
	s := NewState(testConfig())

	s, cmds := Update(s, TogglePopup{})
	if s.Popup != PopupOpening {
		t.Fatalf("Popup = %v, want opening", s.Popup)
	}
	opens := commandsOfType[OpenPopupCmd](cmds)
	if len(opens) != 1 {
		t.Fatalf("got %d OpenPopupCmd, want 1", len(opens))
	}

	s, _ = Update(s, PopupOpened{ID: s.PopupID})
	if s.Popup != PopupOpen {
		t.Fatalf("Popup = %v, want open", s.Popup)
	}

	s, cmds = Update(s, TogglePopup{})
	if s.Popup != PopupClosed {
		t.Fatalf("Popup = %v, want closed", s.Popup)
	}
	if len(commandsOfType[ClosePopupCmd](cmds)) != 1 {
		t.Error("expected one ClosePopupCmd")
	}
}

func TestTogglePopup_RapidToggleLandsClosed(t *testing.T) {
	s := NewState(testConfig())

	s, first := Update(s, TogglePopup{})
	s, second := Update(s, TogglePopup{})

	if s.Popup != PopupClosed {
		t.Errorf("Popup = %v, want closed after double toggle", s.Popup)
	}
	if len(commandsOfType[OpenPopupCmd](first)) != 1 {
		t.Error("first toggle should emit one open command")
	}
	if len(commandsOfType[ClosePopupCmd](second)) != 1 {
		t.Error("second toggle should emit one close command")
	}
}

func TestPopupOpened_DuplicateAckIgnored(t *testing.T) {
	s := NewState(testConfig())
	s, _ = Update(s, TogglePopup{})
	s, _ = Update(s, PopupOpened{ID: s.PopupID})

	next, cmds := Update(s, PopupOpened{ID: s.PopupID})

	if len(cmds) != 0 {
		t.Errorf("got %d commands, want 0", len(cmds))
	}
	if next.Popup != PopupOpen {
		t.Errorf("Popup = %v, want open", next.Popup)
	}
}

func TestPopupOpened_StaleHandleIgnored(t *testing.T) {
	s := NewState(testConfig())
	s, _ = Update(s, TogglePopup{}) // opening, handle 1
	s, _ = Update(s, TogglePopup{}) // closed
	s, _ = Update(s, TogglePopup{}) // opening, handle 2

	// Late ack for the superseded window.
	next, _ := Update(s, PopupOpened{ID: 1})
	if next.Popup != PopupOpening {
		t.Errorf("Popup = %v, want still opening", next.Popup)
	}
}

func TestPopupDismissed(t *testing.T) {
	s := NewState(testConfig())
	s, _ = Update(s, TogglePopup{})
	s, _ = Update(s, PopupOpened{ID: s.PopupID})

	next, cmds := Update(s, PopupDismissed{ID: s.PopupID})
	if next.Popup != PopupClosed {
		t.Errorf("Popup = %v, want closed", next.Popup)
	}
	// Window already gone, nothing to destroy.
	if len(cmds) != 0 {
		t.Errorf("got %d commands, want 0", len(cmds))
	}
}

func TestConfigChanged_RescheduleOnlyOnIntervalChange(t *testing.T) {
	s := loggedInState()

	// Unchanged interval: no commands.
	same := testConfig()
	next, cmds := Update(s, ConfigChanged{Snapshot: same})
	if len(cmds) != 0 {
		t.Errorf("got %d commands for unchanged interval, want 0", len(cmds))
	}
	if next.TimerGen != s.TimerGen {
		t.Error("TimerGen should not advance on unchanged interval")
	}

	// Changed interval: exactly one reschedule carrying the fresh gen.
	changed := testConfig()
	changed.PollInterval = time.Minute
	next, cmds = Update(s, ConfigChanged{Snapshot: changed})
	resched := commandsOfType[ReschedulePollingCmd](cmds)
	if len(resched) != 1 {
		t.Fatalf("got %d ReschedulePollingCmd, want 1", len(resched))
	}
	if resched[0].Interval != time.Minute {
		t.Errorf("reschedule interval = %v, want 1m", resched[0].Interval)
	}
	if resched[0].Gen != next.TimerGen || next.TimerGen != s.TimerGen+1 {
		t.Errorf("reschedule gen = %d, TimerGen %d -> %d", resched[0].Gen, s.TimerGen, next.TimerGen)
	}
	if next.Config.PollInterval != time.Minute {
		t.Errorf("Config.PollInterval = %v, want 1m", next.Config.PollInterval)
	}

	// Other settings changing never touches the timer.
	weekly := testConfig()
	weekly.ShowWeekly = false
	_, cmds = Update(s, ConfigChanged{Snapshot: weekly})
	if len(cmds) != 0 {
		t.Errorf("got %d commands for non-interval change, want 0", len(cmds))
	}
}

func TestAdjustPollInterval_PersistsWithoutLocalMutation(t *testing.T) {
	s := loggedInState()

	next, cmds := Update(s, AdjustPollInterval{Delta: 1})

	persists := commandsOfType[PersistConfigCmd](cmds)
	if len(persists) != 1 {
		t.Fatalf("got %d PersistConfigCmd, want 1", len(persists))
	}
	want := s.Config.PollInterval + pollIntervalStep
	if persists[0].Snapshot.PollInterval != want {
		t.Errorf("persisted interval = %v, want %v", persists[0].Snapshot.PollInterval, want)
	}
	// Write-then-echo: local config is untouched until the store notifies.
	if next.Config.PollInterval != s.Config.PollInterval {
		t.Error("Config.PollInterval mutated optimistically")
	}
}

func TestAdjustPollInterval_Clamped(t *testing.T) {
	s := loggedInState()
	s.Config.PollInterval = pollIntervalMin

	_, cmds := Update(s, AdjustPollInterval{Delta: -1})
	if len(cmds) != 0 {
		t.Errorf("got %d commands at minimum interval, want 0", len(cmds))
	}

	s.Config.PollInterval = pollIntervalMax
	_, cmds = Update(s, AdjustPollInterval{Delta: 1})
	if len(cmds) != 0 {
		t.Errorf("got %d commands at maximum interval, want 0", len(cmds))
	}
}

func TestToggleWeekly_Persists(t *testing.T) {
	s := loggedInState()

	next, cmds := Update(s, ToggleWeekly{})

	persists := commandsOfType[PersistConfigCmd](cmds)
	if len(persists) != 1 {
		t.Fatalf("got %d PersistConfigCmd, want 1", len(persists))
	}
	if persists[0].Snapshot.ShowWeekly == s.Config.ShowWeekly {
		t.Error("persisted snapshot should flip ShowWeekly")
	}
	if next.Config.ShowWeekly != s.Config.ShowWeekly {
		t.Error("Config.ShowWeekly mutated optimistically")
	}
}

func TestLoginFlow(t *testing.T) {
	s := NewState(testConfig())

	s, cmds := Update(s, LoginRequested{})
	if !s.LoginInFlight {
		t.Error("LoginInFlight should be set")
	}
	if len(commandsOfType[StartLoginCmd](cmds)) != 1 {
		t.Fatal("expected one StartLoginCmd")
	}

	// A second request while one is running is ignored.
	_, cmds = Update(s, LoginRequested{})
	if len(cmds) != 0 {
		t.Errorf("got %d commands for duplicate login request, want 0", len(cmds))
	}

	creds := claude.Credentials{AccessToken: "new", RefreshToken: "new-refresh"}
	s, cmds = Update(s, LoginCompleted{Creds: creds})
	if s.LoginInFlight {
		t.Error("LoginInFlight should clear")
	}
	if !s.LoggedIn() {
		t.Error("state should be logged in")
	}
	if len(commandsOfType[SaveCredentialsCmd](cmds)) != 1 {
		t.Error("login completion should persist credentials")
	}
	resched := commandsOfType[ReschedulePollingCmd](cmds)
	if len(resched) != 1 || resched[0].Gen != s.TimerGen {
		t.Error("login completion should start polling under the new generation")
	}
}

func TestLoginFailed(t *testing.T) {
	s := NewState(testConfig())
	s, _ = Update(s, LoginRequested{})

	s, cmds := Update(s, LoginFailed{Err: errors.New("user closed browser")})
	if s.LoginInFlight {
		t.Error("LoginInFlight should clear")
	}
	if s.LastError == "" {
		t.Error("LastError should surface the failure")
	}
	if len(cmds) != 0 {
		t.Errorf("got %d commands, want 0", len(cmds))
	}
}

func TestCredentialsLoaded_StartsPolling(t *testing.T) {
	s := NewState(testConfig())

	next, cmds := Update(s, CredentialsLoaded{Creds: claude.Credentials{AccessToken: "tok"}})

	if !next.LoggedIn() {
		t.Error("state should be logged in")
	}
	if len(commandsOfType[SaveCredentialsCmd](cmds)) != 0 {
		t.Error("loading stored credentials should not rewrite them")
	}
	if len(commandsOfType[ReschedulePollingCmd](cmds)) != 1 {
		t.Error("loaded credentials should start polling")
	}
}

func TestTokenRefreshed_Persists(t *testing.T) {
	s := loggedInState()
	fresh := claude.Credentials{AccessToken: "fresh", RefreshToken: "fresh-refresh"}

	next, cmds := Update(s, TokenRefreshed{Creds: fresh})

	if next.Creds != fresh {
		t.Error("credentials should be replaced")
	}
	if len(commandsOfType[SaveCredentialsCmd](cmds)) != 1 {
		t.Error("refreshed tokens should be persisted")
	}
}

func TestTokenRefreshFailed_LogsOut(t *testing.T) {
	s := loggedInState()

	next, cmds := Update(s, TokenRefreshFailed{Err: errors.New("invalid_grant")})

	if next.LoggedIn() {
		t.Error("state should be logged out")
	}
	if next.LastError == "" {
		t.Error("LastError should prompt a re-login")
	}
	// The reschedule carries the new generation; with no credentials the
	// timer simply stops.
	resched := commandsOfType[ReschedulePollingCmd](cmds)
	if len(resched) != 1 || resched[0].Gen != next.TimerGen {
		t.Error("expected one reschedule under the new generation")
	}
}

func TestShutdown(t *testing.T) {
	s := loggedInState()
	s, _ = Update(s, TogglePopup{})
	s, _ = Update(s, PopupOpened{ID: s.PopupID})
	s, fetchCmds := Update(s, PollTick{Gen: s.TimerGen})
	fetch := commandsOfType[StartFetchCmd](fetchCmds)[0]

	s, cmds := Update(s, Shutdown{})
	if !s.ShuttingDown {
		t.Fatal("ShuttingDown should be set")
	}
	if len(commandsOfType[ClosePopupCmd](cmds)) != 1 {
		t.Error("shutdown with open popup should close it")
	}
	if len(commandsOfType[QuitCmd](cmds)) != 1 {
		t.Error("shutdown should quit")
	}

	// A late fetch result after shutdown is discarded without state change.
	next, cmds := Update(s, FetchCompleted{Gen: fetch.Gen, Data: usageSnapshot(50)})
	if len(cmds) != 0 {
		t.Errorf("got %d commands after shutdown, want 0", len(cmds))
	}
	if next.Usage.Phase == UsageAvailable {
		t.Error("late fetch result should not be applied after shutdown")
	}

	// So is any other event.
	_, cmds = Update(s, TogglePopup{})
	if len(cmds) != 0 {
		t.Errorf("got %d commands for toggle after shutdown, want 0", len(cmds))
	}
}
