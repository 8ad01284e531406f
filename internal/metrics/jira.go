package metrics

import (
	"cmp"
	"slices"
	"time"

	"teammetrics/internal/daterange"
	"teammetrics/internal/jira"
)

// ScopePoint is one week of the scope trend: positive delta means work is
// being added faster than it is resolved.
type ScopePoint struct {
	WeekStart string `json:"week_start"`
	Created   int    `json:"created"`
	Resolved  int    `json:"resolved"`
	Delta     int    `json:"delta"`
}

// JiraMetrics aggregates tracker-side flow for a filter or project.
type JiraMetrics struct {
	Throughput          int          `json:"throughput"`
	WIP                 int          `json:"wip"`
	BugsCreated         int          `json:"bugs_created"`
	BugsResolved        int          `json:"bugs_resolved"`
	CycleTimeMedianDays float64      `json:"cycle_time_median_days"`
	TimeInTodoHours     float64      `json:"time_in_todo_hours"`
	TimeInProgressHours float64      `json:"time_in_progress_hours"`
	TimeInReviewHours   float64      `json:"time_in_review_hours"`
	ScopeTrend          []ScopePoint `json:"scope_trend,omitempty"`
}

// weekStart snaps a time to the Monday 00:00 UTC of its ISO week.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	days := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -days)
}

// ComputeJiraMetrics aggregates an issue set against a reporting window.
// Residency averages cover resolved issues with history only; issues fetched
// without changelog contribute nothing to them.
func ComputeJiraMetrics(issues []jira.Issue, window daterange.Range) JiraMetrics {
	m := JiraMetrics{}

	weekly := make(map[time.Time]*ScopePoint)
	week := func(t time.Time) *ScopePoint {
		ws := weekStart(t)
		p, ok := weekly[ws]
		if !ok {
			p = &ScopePoint{WeekStart: ws.Format("2006-01-02")}
			weekly[ws] = p
		}
		return p
	}

	var cycleTimes []float64
	var residency int
	for _, issue := range issues {
		isBug := issue.Type == "Bug"
		resolvedIn := issue.Resolved != nil && window.Contains(*issue.Resolved)

		if resolvedIn {
			m.Throughput++
			cycleTimes = append(cycleTimes, issue.CycleTimeDays())
			week(*issue.Resolved).Resolved++
			if isBug {
				m.BugsResolved++
			}
			if issue.TimeInTodoHours > 0 || issue.TimeInProgressHours > 0 || issue.TimeInReviewHours > 0 {
				residency++
				m.TimeInTodoHours += issue.TimeInTodoHours
				m.TimeInProgressHours += issue.TimeInProgressHours
				m.TimeInReviewHours += issue.TimeInReviewHours
			}
		}
		if !issue.Done() {
			m.WIP++
		}
		if window.Contains(issue.Created) {
			week(issue.Created).Created++
			if isBug {
				m.BugsCreated++
			}
		}
	}

	m.CycleTimeMedianDays = Median(cycleTimes)
	if residency > 0 {
		m.TimeInTodoHours /= float64(residency)
		m.TimeInProgressHours /= float64(residency)
		m.TimeInReviewHours /= float64(residency)
	}

	for _, p := range weekly {
		p.Delta = p.Created - p.Resolved
		m.ScopeTrend = append(m.ScopeTrend, *p)
	}
	slices.SortFunc(m.ScopeTrend, func(a, b ScopePoint) int {
		return cmp.Compare(a.WeekStart, b.WeekStart)
	})

	return m
}
