package jira

import (
	"time"

	"teammetrics/internal/release"
)

// Issue is the tracker-side work item reduced to what the metrics engine
// consumes. Status-residency hours are zero when the changelog was not
// fetched (history-less pagination); consumers treat zero as "unknown",
// never as an error.
type Issue struct {
	Key            string     `json:"key"`
	Project        string     `json:"project"`
	Type           string     `json:"type"`
	Priority       string     `json:"priority"`
	Status         string     `json:"status"`
	StatusCategory string     `json:"status_category"`
	Assignee       string     `json:"assignee"`
	Reporter       string     `json:"reporter"`
	Summary        string     `json:"summary"`
	Description    string     `json:"description,omitempty"`
	Created        time.Time  `json:"created"`
	Resolved       *time.Time `json:"resolved,omitempty"`
	Labels         []string   `json:"labels,omitempty"`
	FixVersions    []string   `json:"fix_versions,omitempty"`

	TimeInTodoHours     float64 `json:"time_in_todo_hours"`
	TimeInProgressHours float64 `json:"time_in_progress_hours"`
	TimeInReviewHours   float64 `json:"time_in_review_hours"`
}

// CycleTimeDays is resolved minus created; zero while the issue is open.
func (i Issue) CycleTimeDays() float64 {
	if i.Resolved == nil {
		return 0
	}
	return i.Resolved.Sub(i.Created).Hours() / 24.0
}

// ResolutionTimeHours is the incident-restore duration.
func (i Issue) ResolutionTimeHours() float64 {
	if i.Resolved == nil {
		return 0
	}
	return i.Resolved.Sub(i.Created).Hours()
}

// Done reports whether the issue sits in a Done status category.
func (i Issue) Done() bool {
	return i.StatusCategory == "done"
}

// FixVersion is a named release on the tracker side. Issues holds the keys
// of team-assigned issues shipped in the version; issues assigned outside
// the team are filtered out at collection.
type FixVersion struct {
	Project     string              `json:"project"`
	Name        string              `json:"name"`
	ReleaseDate time.Time           `json:"release_date"`
	Released    bool                `json:"released"`
	Environment release.Environment `json:"environment"`
	Issues      []string            `json:"issues,omitempty"`
}

// PersonResult carries a person query outcome with its degradation marker.
// Degraded results come from the 30-day fallback window after repeated
// upstream timeouts.
type PersonResult struct {
	Login    string  `json:"login"`
	Issues   []Issue `json:"issues"`
	Degraded bool    `json:"degraded,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// SearchResult is a (possibly partial) windowed search outcome.
type SearchResult struct {
	Issues []Issue `json:"issues"`
	Total  int     `json:"total"`
	// HistoryOmitted marks history-less pagination: residency hours on the
	// returned issues are zero.
	HistoryOmitted bool `json:"history_omitted,omitempty"`
	// Partial marks that retries exhausted mid-pagination and the caller
	// received only what was fetched.
	Partial bool `json:"partial,omitempty"`
}

// Config holds the authentication and connection settings for one tracker
// environment.
type Config struct {
	Server         string
	Username       string
	APIToken       string
	TimeOffsetDays int
	Timeout        time.Duration
	IncidentTypes  []string
}

// Pagination tunes the adaptive search batching.
type Pagination struct {
	BatchSize            int
	HugeDatasetThreshold int // 0 forces history-less batches regardless of size
	MaxRetries           int
	RetryDelay           time.Duration
}
