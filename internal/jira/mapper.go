package jira

import (
	"strings"
	"time"
)

// mapIssue transforms a tracker DTO into a domain Issue. Residency hours are
// only computed when the changelog was expanded; otherwise they stay zero
// and downstream consumers treat them as unknown.
func mapIssue(dto IssueDTO, withHistory bool) Issue {
	issue := Issue{
		Key:            dto.Key,
		Type:           dto.Fields.IssueType.Name,
		Priority:       dto.Fields.Priority.Name,
		Status:         dto.Fields.Status.Name,
		StatusCategory: dto.Fields.Status.StatusCategory.Key,
		Summary:        dto.Fields.Summary,
		Description:    dto.Fields.Description,
		Labels:         dto.Fields.Labels,
	}

	if idx := strings.IndexByte(issue.Key, '-'); idx > 0 {
		issue.Project = issue.Key[:idx]
	}
	if dto.Fields.Assignee != nil {
		issue.Assignee = dto.Fields.Assignee.Name
	}
	if dto.Fields.Reporter != nil {
		issue.Reporter = dto.Fields.Reporter.Name
	}
	for _, v := range dto.Fields.FixVersions {
		issue.FixVersions = append(issue.FixVersions, v.Name)
	}

	if t, err := ParseTime(dto.Fields.Created); err == nil {
		issue.Created = t
	}
	if dto.Fields.ResolutionDate != "" {
		if t, err := ParseTime(dto.Fields.ResolutionDate); err == nil {
			issue.Resolved = &t
		}
	}

	if withHistory && dto.Changelog != nil {
		todo, progress, review := statusResidency(dto.Changelog, issue.Created, issue.Resolved, issue.Status)
		issue.TimeInTodoHours = todo
		issue.TimeInProgressHours = progress
		issue.TimeInReviewHours = review
	}

	return issue
}

type statusTransition struct {
	From string
	To   string
	Date time.Time
}

// statusResidency folds the changelog into hours spent in the three
// canonical workflow buckets.
func statusResidency(changelog *ChangelogDTO, created time.Time, resolved *time.Time, currentStatus string) (todo, progress, review float64) {
	var transitions []statusTransition
	for _, h := range changelog.Histories {
		hDate, err := ParseTime(h.Created)
		if err != nil {
			continue
		}
		for _, item := range h.Items {
			if item.Field == "status" {
				transitions = append(transitions, statusTransition{
					From: item.FromString,
					To:   item.ToString,
					Date: hDate,
				})
			}
		}
	}

	// Changelog histories arrive oldest first; keep them that way but guard
	// against upstream quirks.
	for i := 1; i < len(transitions); i++ {
		if transitions[i].Date.Before(transitions[i-1].Date) {
			transitions[i-1], transitions[i] = transitions[i], transitions[i-1]
		}
	}

	end := time.Now()
	if resolved != nil {
		end = *resolved
	}

	accumulate := func(status string, from, to time.Time) {
		hours := to.Sub(from).Hours()
		if hours <= 0 {
			return
		}
		switch statusBucket(status) {
		case bucketTodo:
			todo += hours
		case bucketProgress:
			progress += hours
		case bucketReview:
			review += hours
		}
	}

	if len(transitions) == 0 {
		accumulate(currentStatus, created, end)
		return todo, progress, review
	}

	accumulate(transitions[0].From, created, transitions[0].Date)
	for i := 0; i < len(transitions)-1; i++ {
		accumulate(transitions[i].To, transitions[i].Date, transitions[i+1].Date)
	}
	last := transitions[len(transitions)-1]
	accumulate(last.To, last.Date, end)

	return todo, progress, review
}

type bucket int

const (
	bucketOther bucket = iota
	bucketTodo
	bucketProgress
	bucketReview
)

// statusBucket maps a status name onto a workflow bucket. Workflows vary per
// project, so this is keyword-based rather than an exact list.
func statusBucket(status string) bucket {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, "review"), strings.Contains(s, "verification"):
		return bucketReview
	case strings.Contains(s, "progress"), strings.Contains(s, "develop"),
		strings.Contains(s, "doing"), strings.Contains(s, "implement"):
		return bucketProgress
	case strings.Contains(s, "to do"), strings.Contains(s, "todo"),
		strings.Contains(s, "open"), strings.Contains(s, "backlog"),
		strings.Contains(s, "selected"), s == "new":
		return bucketTodo
	}
	return bucketOther
}
