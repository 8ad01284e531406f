package github

import (
	"time"

	"teammetrics/internal/release"
)

// Repository identifies one repository discovered for a team.
type Repository struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
	Team  string `json:"team"`
}

// FullName returns "owner/name".
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// PullRequest is the source-control side unit of change. A non-nil MergedAt
// means the PR is terminal; ClosedAt without MergedAt means rejected.
type PullRequest struct {
	Number    int        `json:"number"`
	Repo      string     `json:"repo"`
	Author    string     `json:"author"`
	Title     string     `json:"title"`
	Branch    string     `json:"branch"`
	CreatedAt time.Time  `json:"created_at"`
	MergedAt  *time.Time `json:"merged_at,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
	Reviews   []Review   `json:"reviews,omitempty"`
	Commits   []Commit   `json:"commits,omitempty"`
}

// Merged reports whether the PR reached its terminal merged state.
func (pr PullRequest) Merged() bool {
	return pr.MergedAt != nil
}

// Review is one review event on a pull request.
type Review struct {
	PRNumber  int       `json:"pr_number"`
	Repo      string    `json:"repo"`
	Author    string    `json:"author"`
	State     string    `json:"state"` // APPROVED, CHANGES_REQUESTED, COMMENTED, DISMISSED
	CreatedAt time.Time `json:"created_at"`
}

// Commit is one commit attached to a pull request.
type Commit struct {
	SHA        string    `json:"sha"`
	Author     string    `json:"author"`
	AuthoredAt time.Time `json:"authored_at"`
	Additions  int       `json:"additions"`
	Deletions  int       `json:"deletions"`
}

// ReleaseTag is a published release classified by its name pattern.
// Tags whose names match no recognized pattern are dropped at collection.
type ReleaseTag struct {
	Name        string              `json:"name"`
	Repo        string              `json:"repo"`
	PublishedAt time.Time           `json:"published_at"`
	Environment release.Environment `json:"environment"`
}

// RepoData is everything collected for one repository in one window.
type RepoData struct {
	Repo         Repository   `json:"repo"`
	PullRequests []PullRequest `json:"pull_requests"`
	Releases     []ReleaseTag `json:"releases"`
}

// PersonActivity is the authored/reviewed subset for a single login.
type PersonActivity struct {
	Login        string        `json:"login"`
	PullRequests []PullRequest `json:"pull_requests"`
	Reviews      []Review      `json:"reviews"`
}

// Config holds the connection settings for the source-control host.
type Config struct {
	Token        string
	Organization string
	Endpoint     string // defaults to the public GraphQL endpoint
	Timeout      time.Duration
	MaxRetries   int
}
