package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"teammetrics/internal/daterange"
	"teammetrics/internal/release"
)

const defaultFields = "summary,description,issuetype,priority,status,assignee,reporter,labels,fixVersions,created,resolutiondate,updated"

// StatusError carries the upstream HTTP status for retry classification.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tracker API returned status %d: %s", e.Status, e.Message)
}

// Transient reports whether the status is worth retrying: gateway failures
// and rate limits. Everything else (auth, bad request) is permanent.
func (e *StatusError) Transient() bool {
	switch e.Status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
		return true
	}
	return false
}

// Transient classifies any error from this client.
func Transient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return err != nil
}

// Client talks to one tracker environment over its REST API. A single
// instance is shared by all workers of a run.
type Client struct {
	cfg        Config
	pagination Pagination
	httpClient *http.Client
}

// NewClient creates a tracker client with pooled keep-alive connections.
func NewClient(cfg Config, pagination Pagination) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	if len(cfg.IncidentTypes) == 0 {
		cfg.IncidentTypes = []string{"Incident", "GCS Escalation"}
	}
	if pagination.BatchSize == 0 {
		pagination.BatchSize = 500
	}
	if pagination.MaxRetries == 0 {
		pagination.MaxRetries = 5
	}
	if pagination.RetryDelay == 0 {
		pagination.RetryDelay = 5 * time.Second
	}
	return &Client{
		cfg:        cfg,
		pagination: pagination,
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

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := c.cfg.Server + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.APIToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &StatusError{Status: resp.StatusCode, Message: "authentication failed, check tracker credentials"}
		default:
			return &StatusError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode tracker response: %w", err)
	}
	return nil
}

// getRetry wraps get with the fixed-delay retry policy used for search
// batches. Cancellation is observed during every retry sleep.
func (c *Client) getRetry(ctx context.Context, path string, params url.Values, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.pagination.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 0 {
			log.Debug().Int("attempt", attempt).Dur("delay", c.pagination.RetryDelay).Msg("Retrying tracker request")
			timer := time.NewTimer(c.pagination.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = c.get(ctx, path, params, out)
		if lastErr == nil {
			return nil
		}
		if !Transient(lastErr) {
			return lastErr
		}
		log.Warn().Err(lastErr).Int("attempt", attempt).Msg("Transient tracker failure")
	}
	return fmt.Errorf("retries exhausted: %w", lastErr)
}

// CountIssues returns the result size of a query without fetching any issue.
func (c *Client) CountIssues(ctx context.Context, jql string) (int, error) {
	params := url.Values{}
	params.Set("jql", jql)
	params.Set("maxResults", "0")

	var resp SearchResponse
	if err := c.getRetry(ctx, "/rest/api/2/search", params, &resp); err != nil {
		return 0, err
	}
	return resp.Total, nil
}

func (c *Client) searchBatch(ctx context.Context, jql string, startAt, maxResults int, fields string, withHistory bool) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("jql", jql)
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(maxResults))
	if fields != "" {
		params.Set("fields", fields)
	}
	if withHistory {
		params.Set("expand", "changelog")
	}

	var resp SearchResponse
	if err := c.getRetry(ctx, "/rest/api/2/search", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// planBatches picks batch size and history expansion by total result size.
// Large datasets drop the changelog expansion because the upstream times out
// assembling histories for thousands of issues. A huge-dataset threshold of
// zero forces history off for every size.
func (c *Client) planBatches(total int) (batchSize int, withHistory bool) {
	huge := 5000
	if c.pagination.HugeDatasetThreshold > 0 {
		huge = c.pagination.HugeDatasetThreshold
	}

	switch {
	case total <= 2000:
		batchSize = c.pagination.BatchSize
		withHistory = true
	case total <= huge:
		batchSize = 1000
		withHistory = true
	default:
		batchSize = 1000
		withHistory = false
	}

	if c.pagination.HugeDatasetThreshold == 0 {
		withHistory = false
	}
	return batchSize, withHistory
}

// Search runs a windowless adaptive search: count first, then batches sized
// to the total. When a batch exhausts its retries the issues fetched so far
// are returned with the Partial marker set; the pipeline proceeds on partial
// data rather than aborting.
func (c *Client) Search(ctx context.Context, jql string) (SearchResult, error) {
	return c.search(ctx, jql, defaultFields)
}

func (c *Client) search(ctx context.Context, jql string, fields string) (SearchResult, error) {
	total, err := c.CountIssues(ctx, jql)
	if err != nil {
		return SearchResult{}, fmt.Errorf("count for %q: %w", jql, err)
	}

	result := SearchResult{Total: total}
	if total == 0 {
		return result, nil
	}

	batchSize, withHistory := c.planBatches(total)
	result.HistoryOmitted = !withHistory

	log.Debug().
		Int("total", total).
		Int("batchSize", batchSize).
		Bool("history", withHistory).
		Msg("Planned tracker search batches")

	for startAt := 0; startAt < total; startAt += batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		resp, err := c.searchBatch(ctx, jql, startAt, batchSize, fields, withHistory)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			log.Warn().Err(err).Int("startAt", startAt).Msg("Batch failed after retries, proceeding with partial data")
			result.Partial = true
			return result, nil
		}

		for _, dto := range resp.Issues {
			result.Issues = append(result.Issues, mapIssue(dto, withHistory))
		}
		if len(resp.Issues) == 0 {
			break
		}
	}

	return result, nil
}

func (c *Client) getFilter(ctx context.Context, id int) (*FilterDTO, error) {
	var filter FilterDTO
	if err := c.getRetry(ctx, fmt.Sprintf("/rest/api/2/filter/%d", id), nil, &filter); err != nil {
		return nil, fmt.Errorf("filter %d: %w", id, err)
	}
	return &filter, nil
}

// Filter runs a stored filter restricted by the anti-noise window clause.
func (c *Client) Filter(ctx context.Context, id int, window daterange.Range) (SearchResult, error) {
	filter, err := c.getFilter(ctx, id)
	if err != nil {
		return SearchResult{}, err
	}
	return c.Search(ctx, augmentWithWindow(filter.JQL, window))
}

// Releases returns the shipped fix versions of a project. Three filters
// apply: the version must be released with a release date in the past, its
// name must match a recognized deployment pattern, and only issues assigned
// to team members are attached (assignee, not reporter).
func (c *Client) Releases(ctx context.Context, projectKey string, teamMembers []string) ([]FixVersion, error) {
	var dtos []VersionDTO
	path := fmt.Sprintf("/rest/api/2/project/%s/versions", url.PathEscape(projectKey))
	if err := c.getRetry(ctx, path, nil, &dtos); err != nil {
		return nil, fmt.Errorf("versions for %s: %w", projectKey, err)
	}

	now := time.Now()
	members := make(map[string]bool, len(teamMembers))
	for _, m := range teamMembers {
		members[strings.ToLower(m)] = true
	}

	var versions []FixVersion
	for _, dto := range dtos {
		if !dto.Released {
			continue
		}
		releaseDate, err := time.Parse("2006-01-02", dto.ReleaseDate)
		if err != nil || releaseDate.After(now) {
			continue
		}
		env, _, matched := release.Classify(dto.Name)
		if !matched {
			continue
		}

		version := FixVersion{
			Project:     projectKey,
			Name:        dto.Name,
			ReleaseDate: releaseDate,
			Released:    true,
			Environment: env,
		}

		// Fetch the version's issues with the full field set. Requesting
		// only "key" corrupts the response on this endpoint; fetching all
		// fields is the documented workaround.
		result, err := c.search(ctx, versionIssuesJQL(projectKey, dto.Name), "")
		if err != nil {
			log.Warn().Err(err).Str("version", dto.Name).Msg("Failed to fetch version issues")
		}
		for _, issue := range result.Issues {
			if members[strings.ToLower(issue.Assignee)] {
				version.Issues = append(version.Issues, issue.Key)
			}
		}

		versions = append(versions, version)
	}

	slices.SortFunc(versions, func(a, b FixVersion) int {
		return a.ReleaseDate.Compare(b.ReleaseDate)
	})

	log.Debug().Str("project", projectKey).Int("versions", len(versions)).Msg("Collected fix versions")
	return versions, nil
}

// Incidents runs the incidents filter and keeps only issues whose type is in
// the configured incident set. Priority and labels never qualify an issue.
func (c *Client) Incidents(ctx context.Context, filterID int, window daterange.Range) ([]Issue, error) {
	result, err := c.Filter(ctx, filterID, window)
	if err != nil {
		return nil, err
	}

	types := make(map[string]bool, len(c.cfg.IncidentTypes))
	for _, t := range c.cfg.IncidentTypes {
		types[strings.ToLower(t)] = true
	}

	var incidents []Issue
	for _, issue := range result.Issues {
		if types[strings.ToLower(issue.Type)] {
			incidents = append(incidents, issue)
		}
	}
	return incidents, nil
}

const personFallbackDays = 30

// PersonQuery fetches a person's windowed activity. Repeated upstream
// timeouts trigger a fallback to a 30-day window; the result then carries a
// degraded marker instead of failing the run.
func (c *Client) PersonQuery(ctx context.Context, login string, window daterange.Range) (PersonResult, error) {
	result, err := c.Search(ctx, personJQL(login, window))
	if err == nil && !result.Partial {
		return PersonResult{Login: login, Issues: result.Issues}, nil
	}
	if err != nil && !Transient(err) {
		return PersonResult{Login: login}, err
	}

	log.Warn().Str("login", login).Msg("Person query degraded, falling back to 30-day window")
	fallback := daterange.Range{
		Start: window.End.AddDate(0, 0, -personFallbackDays),
		End:   window.End,
		Label: window.Label,
	}
	fbResult, fbErr := c.Search(ctx, personJQL(login, fallback))
	if fbErr != nil {
		return PersonResult{Login: login}, fbErr
	}
	return PersonResult{
		Login:    login,
		Issues:   fbResult.Issues,
		Degraded: true,
		Reason:   fmt.Sprintf("fallback:%dd", personFallbackDays),
	}, nil
}
