package metrics

import (
	"regexp"
	"time"

	"teammetrics/internal/github"
	"teammetrics/internal/jira"
	"teammetrics/internal/release"
)

var issueKeyRe = regexp.MustCompile(`[A-Z]+-\d+`)

// extractIssueKeys pulls tracker keys from the PR title and branch name.
func extractIssueKeys(pr github.PullRequest) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, text := range []string{pr.Title, pr.Branch} {
		for _, key := range issueKeyRe.FindAllString(text, -1) {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// ReleaseIndex joins merged PRs to the production fix version that shipped
// them. Versions with no team-assigned issue are excluded up front so a PR
// can never be attributed to another team's release.
type ReleaseIndex struct {
	byIssue  map[string][]jira.FixVersion
	versions []jira.FixVersion
}

// NewReleaseIndex builds the issue-key lookup from collected fix versions.
// Only production versions participate; each is expected to carry at least
// one team-assigned issue (the collector's three-tier filter guarantees it).
func NewReleaseIndex(versions []jira.FixVersion) *ReleaseIndex {
	idx := &ReleaseIndex{byIssue: make(map[string][]jira.FixVersion)}
	for _, v := range versions {
		if v.Environment != release.Production || len(v.Issues) == 0 {
			continue
		}
		idx.versions = append(idx.versions, v)
		for _, key := range v.Issues {
			idx.byIssue[key] = append(idx.byIssue[key], v)
		}
	}
	return idx
}

// MapPR resolves a merged PR to its first production deployment.
//
// Tracker mapping is preferred: every key extracted from the PR is looked up
// in the issue→version index and the earliest release on or after the merge
// wins. Only when no key maps does the time-based fallback run, taking the
// earliest team release strictly after the merge.
func (idx *ReleaseIndex) MapPR(pr github.PullRequest) (time.Time, string, bool) {
	if !pr.Merged() {
		return time.Time{}, "", false
	}
	merged := *pr.MergedAt

	var best *jira.FixVersion
	for _, key := range extractIssueKeys(pr) {
		for i := range idx.byIssue[key] {
			v := &idx.byIssue[key][i]
			if v.ReleaseDate.Before(merged) {
				continue
			}
			if best == nil || v.ReleaseDate.Before(best.ReleaseDate) {
				best = v
			}
		}
	}
	if best != nil {
		return best.ReleaseDate, best.Name, true
	}

	for i := range idx.versions {
		v := &idx.versions[i]
		if !v.ReleaseDate.After(merged) {
			continue
		}
		if best == nil || v.ReleaseDate.Before(best.ReleaseDate) {
			best = v
		}
	}
	if best != nil {
		return best.ReleaseDate, best.Name, true
	}
	return time.Time{}, "", false
}

// MappingResult carries per-PR deployment assignments plus the coverage
// diagnostic.
type MappingResult struct {
	LeadTimesHours []float64
	MappedFraction float64
	MergedCount    int
	MappedCount    int
}

// MapPRs runs the mapper over a PR set and collects lead times. Unmapped PRs
// stay out of the lead-time series but count in the denominator.
func (idx *ReleaseIndex) MapPRs(prs []github.PullRequest) MappingResult {
	var res MappingResult
	for _, pr := range prs {
		if !pr.Merged() {
			continue
		}
		res.MergedCount++
		deployed, _, ok := idx.MapPR(pr)
		if !ok {
			continue
		}
		res.MappedCount++
		res.LeadTimesHours = append(res.LeadTimesHours, deployed.Sub(*pr.MergedAt).Hours())
	}
	if res.MergedCount > 0 {
		res.MappedFraction = float64(res.MappedCount) / float64(res.MergedCount)
	}
	return res
}
