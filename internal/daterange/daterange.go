package daterange

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidRange is returned for unparseable specs or inverted windows.
var ErrInvalidRange = errors.New("invalid date range")

// Range is an inclusive collection window with a canonical label. The label
// is the primary key component of snapshots and must round-trip through
// Parse unchanged.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

var (
	relativeRe = regexp.MustCompile(`^(\d+)d$`)
	yearRe     = regexp.MustCompile(`^(\d{4})$`)
	quarterRe  = regexp.MustCompile(`^q([1-4])-(\d{4})$`)
	customRe   = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}):(\d{4}-\d{2}-\d{2})$`)
)

// Parse resolves a range spec against the current clock.
//
// Accepted forms (letters are case-insensitive):
//
//	<N>d                     last N days, N > 0
//	YYYY                     full calendar year, UTC
//	Q{1..4}-YYYY             calendar quarter, UTC
//	YYYY-MM-DD:YYYY-MM-DD    inclusive custom window
func Parse(spec string) (Range, error) {
	return ParseAt(spec, time.Now().UTC())
}

// ParseAt is Parse with an explicit "now", used for offset environments and
// deterministic tests.
func ParseAt(spec string, now time.Time) (Range, error) {
	norm := strings.ToLower(strings.TrimSpace(spec))
	if norm == "" {
		return Range{}, fmt.Errorf("%w: empty spec", ErrInvalidRange)
	}

	if m := relativeRe.FindStringSubmatch(norm); m != nil {
		days, err := strconv.Atoi(m[1])
		if err != nil || days <= 0 {
			return Range{}, fmt.Errorf("%w: %q must be a positive day count", ErrInvalidRange, spec)
		}
		return Range{
			Start: now.AddDate(0, 0, -days),
			End:   now,
			Label: fmt.Sprintf("%dd", days),
		}, nil
	}

	if m := yearRe.FindStringSubmatch(norm); m != nil {
		year, _ := strconv.Atoi(m[1])
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)
		return Range{Start: start, End: end, Label: m[1]}, nil
	}

	if m := quarterRe.FindStringSubmatch(norm); m != nil {
		quarter, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		startMonth := time.Month((quarter-1)*3 + 1)
		start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 3, 0).Add(-time.Second)
		return Range{
			Start: start,
			End:   end,
			Label: fmt.Sprintf("Q%d-%d", quarter, year),
		}, nil
	}

	if m := customRe.FindStringSubmatch(norm); m != nil {
		start, err := time.ParseInLocation("2006-01-02", m[1], time.UTC)
		if err != nil {
			return Range{}, fmt.Errorf("%w: bad start date %q", ErrInvalidRange, m[1])
		}
		end, err := time.ParseInLocation("2006-01-02", m[2], time.UTC)
		if err != nil {
			return Range{}, fmt.Errorf("%w: bad end date %q", ErrInvalidRange, m[2])
		}
		// Inclusive end-of-day on the right edge.
		end = end.Add(24*time.Hour - time.Second)
		if end.Before(start) {
			return Range{}, fmt.Errorf("%w: start %s after end %s", ErrInvalidRange, m[1], m[2])
		}
		return Range{Start: start, End: end, Label: m[1] + ":" + m[2]}, nil
	}

	return Range{}, fmt.Errorf("%w: unrecognized spec %q", ErrInvalidRange, spec)
}

// Offset shifts both edges of the window back by days. Environments that lag
// production (time_offset_days) query a correspondingly older window; the
// label is unchanged because the snapshot key is environment-qualified.
func (r Range) Offset(days int) Range {
	if days == 0 {
		return r
	}
	return Range{
		Start: r.Start.AddDate(0, 0, -days),
		End:   r.End.AddDate(0, 0, -days),
		Label: r.Label,
	}
}

// Days returns the window length in calendar days, never less than 1.
func (r Range) Days() int {
	days := int(r.End.Sub(r.Start).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

// Weeks returns the window length in (possibly fractional) weeks.
func (r Range) Weeks() float64 {
	return float64(r.Days()) / 7.0
}

// Contains reports whether t falls inside the window, edges included.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

func (r Range) String() string {
	return fmt.Sprintf("%s [%s .. %s]",
		r.Label, r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
}
