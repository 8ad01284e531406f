package metrics

import (
	"time"

	"teammetrics/internal/daterange"
	"teammetrics/internal/jira"
)

// RangeInfo records the window a snapshot was computed over, after any
// environment time offset was applied.
type RangeInfo struct {
	Label      string    `json:"label"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	OffsetDays int       `json:"offset_days,omitempty"`
}

// NewRangeInfo captures an effective collection window.
func NewRangeInfo(r daterange.Range, offsetDays int) RangeInfo {
	return RangeInfo{Label: r.Label, Start: r.Start, End: r.End, OffsetDays: offsetDays}
}

// PersonMetrics is one member's slice of the snapshot.
type PersonMetrics struct {
	Name           string        `json:"name"`
	SCLogin        string        `json:"sc_login"`
	TrackerLogin   string        `json:"tracker_login"`
	GitHub         GitHubMetrics `json:"github"`
	Jira           JiraMetrics   `json:"jira"`
	JiraCompleted  int           `json:"jira_completed"`
	Score          float64       `json:"score"`
	Degraded       bool          `json:"degraded,omitempty"`
	DegradedReason string        `json:"degraded_reason,omitempty"`
}

// ReleaseInfo is the snapshot-side view of a shipped fix version.
type ReleaseInfo struct {
	Name        string    `json:"name"`
	Project     string    `json:"project"`
	Environment string    `json:"environment"`
	ReleaseDate time.Time `json:"release_date"`
	IssueCount  int       `json:"issue_count"`
}

// NewReleaseInfo flattens a collected fix version for storage.
func NewReleaseInfo(v jira.FixVersion) ReleaseInfo {
	return ReleaseInfo{
		Name:        v.Name,
		Project:     v.Project,
		Environment: string(v.Environment),
		ReleaseDate: v.ReleaseDate,
		IssueCount:  len(v.Issues),
	}
}

// TagRelease is a source-control release tag collected from the team's
// repositories, kept alongside the tracker releases as a corroborating
// deployment signal.
type TagRelease struct {
	Name        string    `json:"name"`
	Repo        string    `json:"repo"`
	Environment string    `json:"environment"`
	PublishedAt time.Time `json:"published_at"`
}

// TeamMetrics is one team's slice of the snapshot.
type TeamMetrics struct {
	Team       string                 `json:"team"`
	Size       int                    `json:"size"`
	Range      RangeInfo              `json:"date_range_info"`
	GitHub     GitHubMetrics          `json:"github"`
	Jira       map[string]JiraMetrics `json:"jira"`
	DORA       DORAMetrics            `json:"dora"`
	Releases   []ReleaseInfo          `json:"releases,omitempty"`
	SCReleases []TagRelease           `json:"sc_releases,omitempty"`
	Persons    []PersonMetrics        `json:"persons"`
	Score      float64                `json:"score"`
	Errors     []string               `json:"errors,omitempty"`
}

// SourceRecords counts source-control records backing this team's metrics.
// The snapshot validation gate uses it to reject empty collection runs.
func (t TeamMetrics) SourceRecords() int {
	return t.GitHub.PRs.PRCount + t.GitHub.Reviews.ReviewCount + t.GitHub.Commits.CommitCount
}

// TeamSummary is the cross-team comparison row.
type TeamSummary struct {
	Team        string  `json:"team"`
	Score       float64 `json:"score"`
	DORAOverall Level   `json:"dora_overall"`
	PRCount     int     `json:"pr_count"`
	Throughput  int     `json:"throughput"`
}
