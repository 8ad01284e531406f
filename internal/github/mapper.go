package github

import (
	"time"

	"teammetrics/internal/daterange"
	"teammetrics/internal/release"
)

// parseTime handles the host's ISO-8601 timestamps.
func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func mapPullRequest(dto pullRequestDTO, repo string) PullRequest {
	pr := PullRequest{
		Number:    dto.Number,
		Repo:      repo,
		Title:     dto.Title,
		Branch:    dto.HeadRefName,
		Additions: dto.Additions,
		Deletions: dto.Deletions,
	}
	if dto.Author != nil {
		pr.Author = dto.Author.Login
	}
	if t, ok := parseTime(dto.CreatedAt); ok {
		pr.CreatedAt = t
	}
	if t, ok := parseTime(dto.MergedAt); ok {
		pr.MergedAt = &t
	}
	if t, ok := parseTime(dto.ClosedAt); ok {
		pr.ClosedAt = &t
	}

	for _, r := range dto.Reviews.Nodes {
		review := Review{PRNumber: pr.Number, Repo: repo, State: r.State}
		if r.Author != nil {
			review.Author = r.Author.Login
		}
		if t, ok := parseTime(r.CreatedAt); ok {
			review.CreatedAt = t
		}
		pr.Reviews = append(pr.Reviews, review)
	}

	for _, c := range dto.Commits.Nodes {
		commit := Commit{
			SHA:       c.Commit.Oid,
			Additions: c.Commit.Additions,
			Deletions: c.Commit.Deletions,
		}
		if c.Commit.Author.User != nil {
			commit.Author = c.Commit.Author.User.Login
		}
		if t, ok := parseTime(c.Commit.AuthoredDate); ok {
			commit.AuthoredAt = t
		}
		pr.Commits = append(pr.Commits, commit)
	}

	return pr
}

// mapPullRequests converts one page of PR nodes, keeping only those created
// inside the window. The second return reports whether the page has fallen
// out of the window entirely (nodes are ordered newest first, so once the
// oldest node predates the window start there is nothing further to fetch).
func mapPullRequests(nodes []pullRequestDTO, repo string, window daterange.Range) ([]PullRequest, bool) {
	var out []PullRequest
	exhausted := false
	for _, dto := range nodes {
		pr := mapPullRequest(dto, repo)
		if pr.CreatedAt.Before(window.Start) {
			exhausted = true
			continue
		}
		if pr.CreatedAt.After(window.End) {
			continue
		}
		out = append(out, pr)
	}
	return out, exhausted
}

// mapReleases converts one page of release nodes, classifying each by its
// name pattern; unrecognized names are dropped. The tag name is preferred
// for classification, with the display name as fallback.
func mapReleases(nodes []releaseDTO, repo string, window daterange.Range) ([]ReleaseTag, bool) {
	var out []ReleaseTag
	exhausted := false
	for _, dto := range nodes {
		published, ok := parseTime(dto.PublishedAt)
		if !ok {
			continue
		}
		if published.Before(window.Start) {
			exhausted = true
			continue
		}
		if published.After(window.End) {
			continue
		}

		name := dto.TagName
		env, _, matched := release.Classify(name)
		if !matched {
			name = dto.Name
			env, _, matched = release.Classify(name)
		}
		if !matched {
			continue
		}

		out = append(out, ReleaseTag{
			Name:        name,
			Repo:        repo,
			PublishedAt: published,
			Environment: env,
		})
	}
	return out, exhausted
}
