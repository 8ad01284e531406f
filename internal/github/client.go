package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"teammetrics/internal/daterange"
)

const defaultEndpoint = "https://api.github.com/graphql"

// APIError carries the upstream status so retry logic can classify it.
type APIError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("source-control API returned status %d: %s", e.Status, e.Message)
}

// Transient reports whether the error is worth retrying: 5xx, and the host's
// primary/secondary rate limits (429, or 403 carrying Retry-After).
func (e *APIError) Transient() bool {
	if e.Status >= 500 {
		return true
	}
	if e.Status == http.StatusTooManyRequests {
		return true
	}
	return e.Status == http.StatusForbidden && e.RetryAfter > 0
}

// Transient classifies any error from this client. Plain transport failures
// are retriable; typed API errors decide for themselves.
func Transient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return err != nil
}

// Client talks to the source-control host's GraphQL API. One instance is
// shared by all workers of a run; its pooled transport keeps connections
// alive across the fan-out.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a collector client with a keep-alive connection pool.
func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 4
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// post executes one GraphQL request with bounded retries. Cancellation is
// observed before every attempt and during backoff sleeps.
func (c *Client) post(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode query: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 0 {
			delay := backoffDelay(attempt, lastErr)
			log.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("Retrying source-control request")
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = c.doOnce(ctx, body, out)
		if lastErr == nil {
			return nil
		}
		if !Transient(lastErr) {
			return lastErr
		}
		log.Warn().Err(lastErr).Int("attempt", attempt).Msg("Transient source-control failure")
	}
	return fmt.Errorf("retries exhausted: %w", lastErr)
}

func (c *Client) doOnce(ctx context.Context, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		apiErr := &APIError{Status: resp.StatusCode, Message: string(msg)}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				apiErr.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode source-control response: %w", err)
	}
	return nil
}

func backoffDelay(attempt int, lastErr error) time.Duration {
	var apiErr *APIError
	if errors.As(lastErr, &apiErr) {
		if apiErr.RetryAfter > 0 {
			return apiErr.RetryAfter
		}
		// Rate-limited without a hint: back off harder than a plain 5xx.
		if apiErr.Status == http.StatusTooManyRequests || apiErr.Status == http.StatusForbidden {
			return 30 * time.Second
		}
	}
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func graphQLErr(errs []graphQLError) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("source-control query failed: %s", errs[0].Message)
}

// DiscoverTeamRepositories resolves the repositories of each named team in
// the configured organization, paginating by opaque cursor.
func (c *Client) DiscoverTeamRepositories(ctx context.Context, teams []string) ([]Repository, error) {
	var repos []Repository
	for _, team := range teams {
		cursor := ""
		for {
			variables := map[string]any{"org": c.cfg.Organization, "team": team}
			if cursor != "" {
				variables["cursor"] = cursor
			}

			var resp discoverResponse
			if err := c.post(ctx, discoverReposQuery, variables, &resp); err != nil {
				return repos, fmt.Errorf("discovery for team %s: %w", team, err)
			}
			if err := graphQLErr(resp.Errors); err != nil {
				return repos, err
			}

			nodes := resp.Data.Organization.Teams.Nodes
			if len(nodes) == 0 {
				log.Warn().Str("team", team).Msg("Team not found on source-control host")
				break
			}

			teamRepos := nodes[0].Repositories
			for _, r := range teamRepos.Nodes {
				repos = append(repos, Repository{Owner: r.Owner.Login, Name: r.Name, Team: team})
			}
			if !teamRepos.PageInfo.HasNextPage {
				break
			}
			cursor = teamRepos.PageInfo.EndCursor
		}
	}

	log.Info().Int("count", len(repos)).Int("teams", len(teams)).Msg("Discovered team repositories")
	return repos, nil
}

// CollectRepositoryData fetches the windowed pull requests (with nested
// reviews and commits) and release tags of one repository. PRs arrive newest
// first; each cursor stops as soon as its stream falls out of the window.
// On failure the data fetched so far is returned alongside the error.
func (c *Client) CollectRepositoryData(ctx context.Context, repo Repository, window daterange.Range) (RepoData, error) {
	data := RepoData{Repo: repo}

	prCursor, relCursor := "", ""
	morePRs, moreReleases := true, true

	for morePRs || moreReleases {
		variables := map[string]any{
			"owner":           repo.Owner,
			"name":            repo.Name,
			"includePRs":      morePRs,
			"includeReleases": moreReleases,
		}
		if prCursor != "" {
			variables["prCursor"] = prCursor
		}
		if relCursor != "" {
			variables["relCursor"] = relCursor
		}

		var resp repoDataResponse
		if err := c.post(ctx, repoDataQuery, variables, &resp); err != nil {
			return data, fmt.Errorf("repository %s: %w", repo.FullName(), err)
		}
		if err := graphQLErr(resp.Errors); err != nil {
			return data, fmt.Errorf("repository %s: %w", repo.FullName(), err)
		}

		if morePRs {
			prs := resp.Data.Repository.PullRequests
			if prs == nil {
				morePRs = false
			} else {
				inWindow, exhausted := mapPullRequests(prs.Nodes, repo.FullName(), window)
				data.PullRequests = append(data.PullRequests, inWindow...)
				morePRs = prs.PageInfo.HasNextPage && !exhausted
				prCursor = prs.PageInfo.EndCursor
			}
		}

		if moreReleases {
			rels := resp.Data.Repository.Releases
			if rels == nil {
				moreReleases = false
			} else {
				inWindow, exhausted := mapReleases(rels.Nodes, repo.FullName(), window)
				data.Releases = append(data.Releases, inWindow...)
				moreReleases = rels.PageInfo.HasNextPage && !exhausted
				relCursor = rels.PageInfo.EndCursor
			}
		}
	}

	log.Debug().
		Str("repo", repo.FullName()).
		Int("prs", len(data.PullRequests)).
		Int("releases", len(data.Releases)).
		Msg("Collected repository data")
	return data, nil
}

// CollectPersonActivity fetches pull requests authored by a login in the
// window, plus reviews the login wrote on other PRs.
func (c *Client) CollectPersonActivity(ctx context.Context, login string, window daterange.Range) (PersonActivity, error) {
	activity := PersonActivity{Login: login}

	dates := window.Start.Format("2006-01-02") + ".." + window.End.Format("2006-01-02")
	authored := fmt.Sprintf("org:%s is:pr author:%s created:%s", c.cfg.Organization, login, dates)
	reviewed := fmt.Sprintf("org:%s is:pr reviewed-by:%s -author:%s updated:%s", c.cfg.Organization, login, login, dates)

	prs, err := c.searchPullRequests(ctx, authored)
	if err != nil {
		return activity, fmt.Errorf("person %s: %w", login, err)
	}
	activity.PullRequests = prs

	reviewedPRs, err := c.searchPullRequests(ctx, reviewed)
	if err != nil {
		return activity, fmt.Errorf("person %s: %w", login, err)
	}
	for _, pr := range reviewedPRs {
		for _, review := range pr.Reviews {
			if review.Author == login && window.Contains(review.CreatedAt) {
				activity.Reviews = append(activity.Reviews, review)
			}
		}
	}

	return activity, nil
}

func (c *Client) searchPullRequests(ctx context.Context, query string) ([]PullRequest, error) {
	var out []PullRequest
	cursor := ""
	for {
		variables := map[string]any{"query": query}
		if cursor != "" {
			variables["cursor"] = cursor
		}

		var resp personSearchResponse
		if err := c.post(ctx, personActivityQuery, variables, &resp); err != nil {
			return out, err
		}
		if err := graphQLErr(resp.Errors); err != nil {
			return out, err
		}

		for _, node := range resp.Data.Search.Nodes {
			if node.Number == 0 {
				continue // non-PR search hit
			}
			out = append(out, mapPullRequest(node.pullRequestDTO, node.Repository.NameWithOwner))
		}
		if !resp.Data.Search.PageInfo.HasNextPage {
			break
		}
		cursor = resp.Data.Search.PageInfo.EndCursor
	}
	return out, nil
}
