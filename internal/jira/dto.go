package jira

import "time"

// SearchResponse is the top-level container for tracker search results.
type SearchResponse struct {
	Total  int        `json:"total"`
	Issues []IssueDTO `json:"issues"`
}

// IssueDTO represents a single issue in the search response.
type IssueDTO struct {
	Key       string        `json:"key"`
	Fields    FieldsDTO     `json:"fields"`
	Changelog *ChangelogDTO `json:"changelog,omitempty"`
}

// FieldsDTO contains the specific fields we care about.
type FieldsDTO struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	IssueType   struct {
		Name string `json:"name"`
	} `json:"issuetype"`
	Priority struct {
		Name string `json:"name"`
	} `json:"priority"`
	Status struct {
		Name           string `json:"name"`
		StatusCategory struct {
			Key string `json:"key"`
		} `json:"statusCategory"`
	} `json:"status"`
	Assignee *struct {
		Name         string `json:"name"`
		EmailAddress string `json:"emailAddress"`
	} `json:"assignee"`
	Reporter *struct {
		Name string `json:"name"`
	} `json:"reporter"`
	Labels      []string `json:"labels"`
	FixVersions []struct {
		Name string `json:"name"`
	} `json:"fixVersions"`
	Created        string `json:"created"`
	ResolutionDate string `json:"resolutiondate"`
	Updated        string `json:"updated"`
}

// ChangelogDTO contains historical transitions.
type ChangelogDTO struct {
	Histories []HistoryDTO `json:"histories"`
}

// HistoryDTO is a single entry in the changelog.
type HistoryDTO struct {
	Created string    `json:"created"`
	Items   []ItemDTO `json:"items"`
}

// ItemDTO is a single field change within a history entry.
type ItemDTO struct {
	Field      string `json:"field"`
	ToString   string `json:"toString"`
	FromString string `json:"fromString"`
}

// FilterDTO is a stored filter with its query.
type FilterDTO struct {
	ID  string `json:"id"`
	JQL string `json:"jql"`
}

// VersionDTO is a project version (release) object.
type VersionDTO struct {
	Name        string `json:"name"`
	Released    bool   `json:"released"`
	ReleaseDate string `json:"releaseDate"` // YYYY-MM-DD
}

// ParseTime is a helper for the strict tracker time format.
func ParseTime(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05.000-0700", s)
}
