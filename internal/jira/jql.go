package jira

import (
	"fmt"
	"strings"

	"teammetrics/internal/daterange"
)

// windowClause builds the anti-noise restriction: an item belongs to the
// window when it was created or resolved inside it, or is still open and was
// genuinely touched inside it. Bulk admin edits to long-closed items match
// none of the three arms and stay out of the result set.
func windowClause(window daterange.Range) string {
	start := window.Start.Format("2006-01-02")
	return fmt.Sprintf(
		`(created >= "%s" OR resolved >= "%s" OR (statusCategory != Done AND updated >= "%s"))`,
		start, start, start)
}

// augmentWithWindow wraps a stored query with the anti-noise clause.
func augmentWithWindow(jql string, window daterange.Range) string {
	jql = strings.TrimSpace(jql)
	if jql == "" {
		return windowClause(window)
	}
	return fmt.Sprintf("(%s) AND %s", jql, windowClause(window))
}

// personJQL is the per-person activity query.
func personJQL(login string, window daterange.Range) string {
	return fmt.Sprintf(`assignee = "%s" AND %s`, login, windowClause(window))
}

// versionIssuesJQL selects the issues shipped in a fix version.
func versionIssuesJQL(projectKey, versionName string) string {
	escaped := strings.ReplaceAll(versionName, `"`, `\"`)
	return fmt.Sprintf(`project = "%s" AND fixVersion = "%s"`, projectKey, escaped)
}
