package jira

import (
	"testing"
)

func TestMapIssue_Fields(t *testing.T) {
	dto := IssueDTO{Key: "PLT-42"}
	dto.Fields.Summary = "Fix checkout flow"
	dto.Fields.IssueType.Name = "Bug"
	dto.Fields.Priority.Name = "High"
	dto.Fields.Status.Name = "Done"
	dto.Fields.Status.StatusCategory.Key = "done"
	dto.Fields.Assignee = &struct {
		Name         string `json:"name"`
		EmailAddress string `json:"emailAddress"`
	}{Name: "alice-j"}
	dto.Fields.Labels = []string{"checkout"}
	dto.Fields.FixVersions = []struct {
		Name string `json:"name"`
	}{{Name: "Live - 6/Oct/2025"}}
	dto.Fields.Created = "2025-09-01T10:00:00.000+0000"
	dto.Fields.ResolutionDate = "2025-09-05T10:00:00.000+0000"

	issue := mapIssue(dto, false)

	if issue.Project != "PLT" {
		t.Errorf("project = %q, want PLT", issue.Project)
	}
	if issue.Assignee != "alice-j" || issue.Type != "Bug" {
		t.Errorf("unexpected issue: %+v", issue)
	}
	if len(issue.FixVersions) != 1 || issue.FixVersions[0] != "Live - 6/Oct/2025" {
		t.Errorf("fix versions = %v", issue.FixVersions)
	}
	if got := issue.CycleTimeDays(); got != 4 {
		t.Errorf("cycle time = %v, want 4", got)
	}
	if !issue.Done() {
		t.Error("done category not detected")
	}
}

func TestMapIssue_Residency(t *testing.T) {
	dto := IssueDTO{Key: "PLT-1"}
	dto.Fields.Status.Name = "Done"
	dto.Fields.Status.StatusCategory.Key = "done"
	dto.Fields.Created = "2025-09-01T00:00:00.000+0000"
	dto.Fields.ResolutionDate = "2025-09-04T00:00:00.000+0000"
	dto.Changelog = &ChangelogDTO{Histories: []HistoryDTO{
		{Created: "2025-09-02T00:00:00.000+0000", Items: []ItemDTO{
			{Field: "status", FromString: "To Do", ToString: "In Progress"},
		}},
		{Created: "2025-09-03T00:00:00.000+0000", Items: []ItemDTO{
			{Field: "status", FromString: "In Progress", ToString: "In Review"},
		}},
		{Created: "2025-09-04T00:00:00.000+0000", Items: []ItemDTO{
			{Field: "status", FromString: "In Review", ToString: "Done"},
		}},
	}}

	issue := mapIssue(dto, true)

	if got := issue.TimeInTodoHours; got != 24 {
		t.Errorf("todo hours = %v, want 24", got)
	}
	if got := issue.TimeInProgressHours; got != 24 {
		t.Errorf("progress hours = %v, want 24", got)
	}
	if got := issue.TimeInReviewHours; got != 24 {
		t.Errorf("review hours = %v, want 24", got)
	}
}

func TestMapIssue_NoHistoryZeroResidency(t *testing.T) {
	dto := IssueDTO{Key: "PLT-2"}
	dto.Fields.Created = "2025-09-01T00:00:00.000+0000"
	dto.Fields.ResolutionDate = "2025-09-04T00:00:00.000+0000"
	dto.Changelog = &ChangelogDTO{Histories: []HistoryDTO{
		{Created: "2025-09-02T00:00:00.000+0000", Items: []ItemDTO{
			{Field: "status", FromString: "To Do", ToString: "In Progress"},
		}},
	}}

	// withHistory=false: the changelog is ignored even if present.
	issue := mapIssue(dto, false)
	if issue.TimeInTodoHours != 0 || issue.TimeInProgressHours != 0 || issue.TimeInReviewHours != 0 {
		t.Errorf("residency should be zero without history: %+v", issue)
	}
	if issue.CycleTimeDays() != 3 {
		t.Errorf("cycle time = %v, want 3", issue.CycleTimeDays())
	}
}

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		status string
		want   bucket
	}{
		{"To Do", bucketTodo},
		{"Backlog", bucketTodo},
		{"Open", bucketTodo},
		{"In Progress", bucketProgress},
		{"Development", bucketProgress},
		{"In Review", bucketReview},
		{"Code Review", bucketReview},
		{"Waiting for Verification", bucketReview},
		{"Done", bucketOther},
		{"Blocked", bucketOther},
	}
	for _, tt := range tests {
		if got := statusBucket(tt.status); got != tt.want {
			t.Errorf("statusBucket(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
