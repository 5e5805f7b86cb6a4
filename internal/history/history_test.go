package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jrdx0/claude-applet/internal/claude"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func snapshotAt(fetchedAt time.Time, fiveHour float64) claude.UsageData {
	return claude.UsageData{
		FiveHour:  claude.UsagePeriod{Utilization: fiveHour},
		SevenDay:  claude.UsagePeriod{Utilization: fiveHour / 2},
		FetchedAt: fetchedAt,
	}
}

func TestRecordAndSeries(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().Add(-time.Hour)

	for i, pct := range []float64{10, 20, 30} {
		data := snapshotAt(base.Add(time.Duration(i)*time.Minute), pct)
		if err := db.Record(data); err != nil {
			t.Fatalf("Record() failed: %v", err)
		}
	}

	series, err := db.RecentSessionSeries(10)
	if err != nil {
		t.Fatalf("RecentSessionSeries() failed: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("got %d readings, want 3", len(series))
	}
	// Chronological order, oldest first.
	want := []float64{10, 20, 30}
	for i, v := range want {
		if series[i] != v {
			t.Errorf("series[%d] = %v, want %v", i, series[i], v)
		}
	}
}

func TestRecentSessionSeries_Limit(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		data := snapshotAt(base.Add(time.Duration(i)*time.Minute), float64(i*10))
		if err := db.Record(data); err != nil {
			t.Fatalf("Record() failed: %v", err)
		}
	}

	series, err := db.RecentSessionSeries(2)
	if err != nil {
		t.Fatalf("RecentSessionSeries() failed: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("got %d readings, want 2", len(series))
	}
	// The newest two, still oldest first.
	if series[0] != 30 || series[1] != 40 {
		t.Errorf("series = %v, want [30 40]", series)
	}
}

func TestRecentSessionSeries_Empty(t *testing.T) {
	db := newTestDB(t)

	series, err := db.RecentSessionSeries(10)
	if err != nil {
		t.Fatalf("RecentSessionSeries() failed: %v", err)
	}
	if len(series) != 0 {
		t.Errorf("got %d readings, want 0", len(series))
	}
}

func TestNew_PrunesOldSnapshots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := New(path)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	expired := snapshotAt(time.Now().Add(-45*24*time.Hour), 50)
	recent := snapshotAt(time.Now().Add(-time.Minute), 60)
	if err := db.Record(expired); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if err := db.Record(recent); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("New() failed on reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	series, err := reopened.RecentSessionSeries(10)
	if err != nil {
		t.Fatalf("RecentSessionSeries() failed: %v", err)
	}
	if len(series) != 1 || series[0] != 60 {
		t.Errorf("series = %v, want only the recent reading after reopen", series)
	}
}

func TestPrune(t *testing.T) {
	db := newTestDB(t)

	old := snapshotAt(time.Now().Add(-48*time.Hour), 50)
	recent := snapshotAt(time.Now().Add(-time.Minute), 60)
	if err := db.Record(old); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if err := db.Record(recent); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	if err := db.Prune(24 * time.Hour); err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}

	series, err := db.RecentSessionSeries(10)
	if err != nil {
		t.Fatalf("RecentSessionSeries() failed: %v", err)
	}
	if len(series) != 1 || series[0] != 60 {
		t.Errorf("series = %v, want only the recent reading", series)
	}
}
