package metrics

import (
	"cmp"
	"slices"
	"strconv"

	"teammetrics/internal/github"
)

// PRMetrics aggregates pull-request flow for a team or person.
type PRMetrics struct {
	PRCount                int            `json:"pr_count"`
	MergedCount            int            `json:"merged_count"`
	MergeRate              float64        `json:"merge_rate"`
	CycleTimeMedianHours   float64        `json:"cycle_time_median_hours"`
	CycleTimeAvgHours      float64        `json:"cycle_time_avg_hours"`
	FirstReviewMedianHours float64        `json:"time_to_first_review_hours"`
	SizeDistribution       map[string]int `json:"size_distribution"`
}

// ReviewerStat is one row of the review leaderboard.
type ReviewerStat struct {
	Login string `json:"login"`
	Count int    `json:"count"`
}

// ReviewMetrics aggregates review activity.
type ReviewMetrics struct {
	ReviewCount     int            `json:"review_count"`
	UniqueReviewers int            `json:"unique_reviewers"`
	AvgReviewsPerPR float64        `json:"avg_reviews_per_pr"`
	Leaderboard     []ReviewerStat `json:"leaderboard,omitempty"`
}

// AuthorStat summarizes one contributor's commits.
type AuthorStat struct {
	Login     string `json:"login"`
	Commits   int    `json:"commits"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// CommitMetrics aggregates commit activity.
type CommitMetrics struct {
	CommitCount    int            `json:"commit_count"`
	UniqueAuthors  int            `json:"unique_authors"`
	ByAuthor       []AuthorStat   `json:"by_author,omitempty"`
	DailyHistogram map[string]int `json:"daily_histogram,omitempty"`
}

// GitHubMetrics is the source-control side of a team or person snapshot.
type GitHubMetrics struct {
	PRs     PRMetrics     `json:"prs"`
	Reviews ReviewMetrics `json:"reviews"`
	Commits CommitMetrics `json:"commits"`
}

// ComputeGitHubMetrics aggregates a deduplicated PR set.
func ComputeGitHubMetrics(prs []github.PullRequest) GitHubMetrics {
	return GitHubMetrics{
		PRs:     ComputePRMetrics(prs),
		Reviews: ComputeReviewMetrics(prs),
		Commits: ComputeCommitMetrics(prs),
	}
}

// DedupPRs collapses a multi-source PR list to unique (repo, number) pairs.
// Team-level counts are the set cardinality of the members' union, so
// co-authored or re-fetched PRs only count once.
func DedupPRs(prs []github.PullRequest) []github.PullRequest {
	seen := make(map[string]bool, len(prs))
	out := make([]github.PullRequest, 0, len(prs))
	for _, pr := range prs {
		key := pr.Repo + "#" + strconv.Itoa(pr.Number)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, pr)
	}
	return out
}

func sizeBucket(linesChanged int) string {
	switch {
	case linesChanged < 10:
		return "xs"
	case linesChanged < 100:
		return "s"
	case linesChanged < 500:
		return "m"
	case linesChanged < 1000:
		return "l"
	default:
		return "xl"
	}
}

// ComputePRMetrics computes count, merge rate, cycle time and size
// distribution over a PR set.
func ComputePRMetrics(prs []github.PullRequest) PRMetrics {
	m := PRMetrics{
		SizeDistribution: map[string]int{"xs": 0, "s": 0, "m": 0, "l": 0, "xl": 0},
	}

	var cycleTimes []float64
	var firstReviews []float64
	for _, pr := range prs {
		m.PRCount++
		m.SizeDistribution[sizeBucket(pr.Additions+pr.Deletions)]++

		if pr.Merged() {
			m.MergedCount++
			cycleTimes = append(cycleTimes, pr.MergedAt.Sub(pr.CreatedAt).Hours())
		}

		if len(pr.Reviews) > 0 {
			first := pr.Reviews[0].CreatedAt
			for _, r := range pr.Reviews[1:] {
				if r.CreatedAt.Before(first) {
					first = r.CreatedAt
				}
			}
			firstReviews = append(firstReviews, first.Sub(pr.CreatedAt).Hours())
		}
	}

	if m.PRCount > 0 {
		m.MergeRate = float64(m.MergedCount) / float64(m.PRCount)
	}
	m.CycleTimeMedianHours = Median(cycleTimes)
	m.CycleTimeAvgHours = Average(cycleTimes)
	m.FirstReviewMedianHours = Median(firstReviews)
	return m
}

// ComputeReviewMetrics computes review volume and the reviewer leaderboard.
func ComputeReviewMetrics(prs []github.PullRequest) ReviewMetrics {
	m := ReviewMetrics{}
	byReviewer := make(map[string]int)

	for _, pr := range prs {
		for _, r := range pr.Reviews {
			m.ReviewCount++
			if r.Author != "" {
				byReviewer[r.Author]++
			}
		}
	}

	m.UniqueReviewers = len(byReviewer)
	if len(prs) > 0 {
		m.AvgReviewsPerPR = float64(m.ReviewCount) / float64(len(prs))
	}

	for login, count := range byReviewer {
		m.Leaderboard = append(m.Leaderboard, ReviewerStat{Login: login, Count: count})
	}
	slices.SortFunc(m.Leaderboard, func(a, b ReviewerStat) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return cmp.Compare(a.Login, b.Login)
	})

	return m
}

// ComputeCommitMetrics computes per-author commit stats and the daily
// histogram (keyed YYYY-MM-DD).
func ComputeCommitMetrics(prs []github.PullRequest) CommitMetrics {
	m := CommitMetrics{DailyHistogram: make(map[string]int)}
	byAuthor := make(map[string]*AuthorStat)
	seen := make(map[string]bool)

	for _, pr := range prs {
		for _, c := range pr.Commits {
			if seen[c.SHA] {
				continue
			}
			seen[c.SHA] = true

			m.CommitCount++
			m.DailyHistogram[c.AuthoredAt.Format("2006-01-02")]++

			if c.Author == "" {
				continue
			}
			stat, ok := byAuthor[c.Author]
			if !ok {
				stat = &AuthorStat{Login: c.Author}
				byAuthor[c.Author] = stat
			}
			stat.Commits++
			stat.Additions += c.Additions
			stat.Deletions += c.Deletions
		}
	}

	m.UniqueAuthors = len(byAuthor)
	for _, stat := range byAuthor {
		m.ByAuthor = append(m.ByAuthor, *stat)
	}
	slices.SortFunc(m.ByAuthor, func(a, b AuthorStat) int {
		if a.Commits != b.Commits {
			return cmp.Compare(b.Commits, a.Commits)
		}
		return cmp.Compare(a.Login, b.Login)
	})

	return m
}
