package snapshot

import (
	"errors"
	"testing"
	"time"

	"teammetrics/internal/metrics"
)

func teamWithRecords(name string, prs int) metrics.TeamMetrics {
	tm := metrics.TeamMetrics{Team: name}
	tm.GitHub.PRs.PRCount = prs
	return tm
}

func validSnapshot() *Snapshot {
	return &Snapshot{
		Environment: "prod",
		Range:       metrics.RangeInfo{Label: "90d", Start: time.Now().AddDate(0, 0, -90), End: time.Now()},
		Teams:       []metrics.TeamMetrics{teamWithRecords("platform", 12)},
		Persons:     map[string]metrics.PersonMetrics{"alice-gh": {Name: "Alice", SCLogin: "alice-gh"}},
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Write(validSnapshot()); err != nil {
		t.Fatalf("write: %v", err)
	}

	snap, err := store.Read("90d", "prod")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(snap.Teams) != 1 || snap.Teams[0].Team != "platform" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.Persons["alice-gh"].Name != "Alice" {
		t.Errorf("persons = %+v", snap.Persons)
	}
	if snap.Timestamp.IsZero() {
		t.Error("timestamp not stamped on write")
	}
}

func TestRead_Missing(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.Read("90d", "prod"); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestWrite_ValidationPreservesPrevious(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Write(validSnapshot()); err != nil {
		t.Fatalf("first write: %v", err)
	}

	empty := validSnapshot()
	empty.Teams = []metrics.TeamMetrics{{Team: "platform"}}
	err := store.Write(empty)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	snap, err := store.Read("90d", "prod")
	if err != nil {
		t.Fatalf("read after rejected write: %v", err)
	}
	if snap.Teams[0].GitHub.PRs.PRCount != 12 {
		t.Error("previous snapshot was clobbered by invalid write")
	}
}

func TestWrite_NoTeamsRejected(t *testing.T) {
	store := NewStore(t.TempDir())
	snap := validSnapshot()
	snap.Teams = nil
	if err := store.Write(snap); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestFileKey_SanitizesLabels(t *testing.T) {
	tests := []struct{ in, want string }{
		{"90d", "90d"},
		{"Q1-2025", "Q1-2025"},
		{"2025-01-01:2025-03-31", "2025-01-01_2025-03-31"},
	}
	for _, tt := range tests {
		if got := fileKey(tt.in); got != tt.want {
			t.Errorf("fileKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
