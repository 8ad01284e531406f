package daterange

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2026, 1, 26, 12, 0, 0, 0, time.UTC)

func TestParseRelative(t *testing.T) {
	r, err := ParseAt("90d", testNow)
	if err != nil {
		t.Fatalf("ParseAt(90d): %v", err)
	}
	if r.Label != "90d" {
		t.Errorf("label = %q, want 90d", r.Label)
	}
	if !r.End.Equal(testNow) {
		t.Errorf("end = %v, want %v", r.End, testNow)
	}
	if got := r.Days(); got != 90 {
		t.Errorf("Days() = %d, want 90", got)
	}
}

func TestParseRelative_CaseInsensitive(t *testing.T) {
	r, err := ParseAt("30D", testNow)
	if err != nil {
		t.Fatalf("ParseAt(30D): %v", err)
	}
	if r.Label != "30d" {
		t.Errorf("label = %q, want normalized 30d", r.Label)
	}
}

func TestParseRelative_Rejected(t *testing.T) {
	for _, spec := range []string{"0d", "-5d", "d", ""} {
		if _, err := ParseAt(spec, testNow); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("ParseAt(%q): got %v, want ErrInvalidRange", spec, err)
		}
	}
}

func TestParseYear(t *testing.T) {
	r, err := ParseAt("2025", testNow)
	if err != nil {
		t.Fatalf("ParseAt(2025): %v", err)
	}
	if r.Start.Month() != time.January || r.Start.Day() != 1 || r.Start.Year() != 2025 {
		t.Errorf("start = %v, want 2025-01-01", r.Start)
	}
	if r.End.Month() != time.December || r.End.Day() != 31 {
		t.Errorf("end = %v, want 2025-12-31", r.End)
	}
}

func TestParseQuarter(t *testing.T) {
	tests := []struct {
		spec       string
		wantLabel  string
		startMonth time.Month
		endMonth   time.Month
	}{
		{"Q1-2025", "Q1-2025", time.January, time.March},
		{"q2-2025", "Q2-2025", time.April, time.June},
		{"Q4-2024", "Q4-2024", time.October, time.December},
	}
	for _, tt := range tests {
		r, err := ParseAt(tt.spec, testNow)
		if err != nil {
			t.Fatalf("ParseAt(%s): %v", tt.spec, err)
		}
		if r.Label != tt.wantLabel {
			t.Errorf("%s: label = %q, want %q", tt.spec, r.Label, tt.wantLabel)
		}
		if r.Start.Month() != tt.startMonth {
			t.Errorf("%s: start month = %v, want %v", tt.spec, r.Start.Month(), tt.startMonth)
		}
		if r.End.Month() != tt.endMonth {
			t.Errorf("%s: end month = %v, want %v", tt.spec, r.End.Month(), tt.endMonth)
		}
	}
}

func TestParseCustom(t *testing.T) {
	r, err := ParseAt("2025-01-01:2025-03-31", testNow)
	if err != nil {
		t.Fatalf("ParseAt custom: %v", err)
	}
	if r.Label != "2025-01-01:2025-03-31" {
		t.Errorf("label = %q", r.Label)
	}
	if !r.Contains(time.Date(2025, 3, 31, 18, 0, 0, 0, time.UTC)) {
		t.Error("end day should be inclusive")
	}
}

func TestParseCustom_Inverted(t *testing.T) {
	if _, err := ParseAt("2025-03-31:2025-01-01", testNow); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("inverted window: got %v, want ErrInvalidRange", err)
	}
}

// Parsing the canonical label must reproduce the same range.
func TestParseRoundTrip(t *testing.T) {
	for _, spec := range []string{"90d", "7D", "2025", "q3-2025", "Q1-2024", "2025-01-01:2025-06-30"} {
		first, err := ParseAt(spec, testNow)
		if err != nil {
			t.Fatalf("ParseAt(%s): %v", spec, err)
		}
		second, err := ParseAt(first.Label, testNow)
		if err != nil {
			t.Fatalf("round-trip ParseAt(%s): %v", first.Label, err)
		}
		if !first.Start.Equal(second.Start) || !first.End.Equal(second.End) || first.Label != second.Label {
			t.Errorf("%s: round trip mismatch: %v vs %v", spec, first, second)
		}
	}
}

func TestOffset(t *testing.T) {
	r, _ := ParseAt("90d", testNow)
	shifted := r.Offset(180)

	if got := r.Start.Sub(shifted.Start); got != 180*24*time.Hour {
		t.Errorf("start shift = %v, want 180 days", got)
	}
	if got := r.End.Sub(shifted.End); got != 180*24*time.Hour {
		t.Errorf("end shift = %v, want 180 days", got)
	}
	if shifted.Label != r.Label {
		t.Errorf("offset changed label: %q", shifted.Label)
	}
	if shifted.Days() != r.Days() {
		t.Errorf("offset changed length: %d vs %d", shifted.Days(), r.Days())
	}
}

// Scenario from the uat environment: offset 180 days from 2026-01-26.
func TestOffset_UATWindow(t *testing.T) {
	r, _ := ParseAt("90d", testNow)
	shifted := r.Offset(180)

	if got := shifted.End.Format("2006-01-02"); got != "2025-07-30" {
		t.Errorf("shifted end = %s", got)
	}
	if got := shifted.Start.Format("2006-01-02"); got != "2025-05-01" {
		t.Errorf("shifted start = %s", got)
	}
}

func TestWeeks(t *testing.T) {
	r, _ := ParseAt("70d", testNow)
	if got := r.Weeks(); got != 10.0 {
		t.Errorf("Weeks() = %v, want 10", got)
	}
}
