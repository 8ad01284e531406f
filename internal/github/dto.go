package github

// GraphQL wire shapes. Only the fields the collector consumes are declared;
// the host ignores unknown selections anyway.

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

type pageInfoDTO struct {
	EndCursor   string `json:"endCursor"`
	HasNextPage bool   `json:"hasNextPage"`
}

type actorDTO struct {
	Login string `json:"login"`
}

type discoverResponse struct {
	Errors []graphQLError `json:"errors,omitempty"`
	Data   struct {
		Organization struct {
			Teams struct {
				Nodes []struct {
					Slug         string `json:"slug"`
					Repositories struct {
						Nodes []struct {
							Name  string   `json:"name"`
							Owner actorDTO `json:"owner"`
						} `json:"nodes"`
						PageInfo pageInfoDTO `json:"pageInfo"`
					} `json:"repositories"`
				} `json:"nodes"`
			} `json:"teams"`
		} `json:"organization"`
	} `json:"data"`
}

type reviewDTO struct {
	Author    *actorDTO `json:"author"`
	State     string    `json:"state"`
	CreatedAt string    `json:"createdAt"`
}

type commitDTO struct {
	Commit struct {
		Oid          string `json:"oid"`
		AuthoredDate string `json:"authoredDate"`
		Additions    int    `json:"additions"`
		Deletions    int    `json:"deletions"`
		Author       struct {
			User *actorDTO `json:"user"`
		} `json:"author"`
	} `json:"commit"`
}

type pullRequestDTO struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	HeadRefName string    `json:"headRefName"`
	CreatedAt   string    `json:"createdAt"`
	MergedAt    string    `json:"mergedAt"`
	ClosedAt    string    `json:"closedAt"`
	Additions   int       `json:"additions"`
	Deletions   int       `json:"deletions"`
	Author      *actorDTO `json:"author"`
	Reviews     struct {
		Nodes []reviewDTO `json:"nodes"`
	} `json:"reviews"`
	Commits struct {
		Nodes []commitDTO `json:"nodes"`
	} `json:"commits"`
}

type releaseDTO struct {
	TagName     string `json:"tagName"`
	Name        string `json:"name"`
	PublishedAt string `json:"publishedAt"`
}

type repoDataResponse struct {
	Errors []graphQLError `json:"errors,omitempty"`
	Data   struct {
		Repository struct {
			PullRequests *struct {
				Nodes    []pullRequestDTO `json:"nodes"`
				PageInfo pageInfoDTO      `json:"pageInfo"`
			} `json:"pullRequests"`
			Releases *struct {
				Nodes    []releaseDTO `json:"nodes"`
				PageInfo pageInfoDTO  `json:"pageInfo"`
			} `json:"releases"`
		} `json:"repository"`
	} `json:"data"`
}

type personSearchResponse struct {
	Errors []graphQLError `json:"errors,omitempty"`
	Data   struct {
		Search struct {
			Nodes []struct {
				pullRequestDTO
				Repository struct {
					NameWithOwner string `json:"nameWithOwner"`
				} `json:"repository"`
			} `json:"nodes"`
			PageInfo pageInfoDTO `json:"pageInfo"`
		} `json:"search"`
	} `json:"data"`
}
