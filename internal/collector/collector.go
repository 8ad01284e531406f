package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"teammetrics/internal/config"
	"teammetrics/internal/daterange"
	"teammetrics/internal/events"
	"teammetrics/internal/github"
	"teammetrics/internal/jira"
	"teammetrics/internal/metrics"
	"teammetrics/internal/snapshot"
)

// incidentsFilterKey is the filter_ids entry that designates the incident
// filter; its presence decides CFR/MTTR availability.
const incidentsFilterKey = "incidents"

// Collector runs one collection pipeline: discovery, layered fan-out over
// teams, metric aggregation and snapshot sealing.
type Collector struct {
	cfg        *config.AppConfig
	env        string
	offsetDays int
	gh         *github.Client
	tracker    *jira.Client
	cache      *RepoCache
	store      *snapshot.Store
	bus        *events.Bus
}

// New wires a collector for one tracker environment.
func New(cfg *config.AppConfig, env string, bus *events.Bus) (*Collector, error) {
	trackerEnv, ok := cfg.Tracker.Environments[env]
	if !ok {
		return nil, fmt.Errorf("tracker environment %q is not configured", env)
	}

	gh := github.NewClient(github.Config{
		Token:        cfg.SourceControl.Token,
		Organization: cfg.SourceControl.Organization,
		Endpoint:     cfg.SourceControl.Endpoint,
		Timeout:      time.Duration(cfg.Collection.GithubTimeoutSeconds) * time.Second,
	})
	tracker := jira.NewClient(jira.Config{
		Server:         trackerEnv.Server,
		Username:       trackerEnv.Username,
		APIToken:       trackerEnv.APIToken,
		TimeOffsetDays: trackerEnv.TimeOffsetDays,
		Timeout:        time.Duration(cfg.Collection.JiraTimeoutSeconds) * time.Second,
		IncidentTypes:  cfg.Collection.IncidentTypes,
	}, jira.Pagination{
		BatchSize:            cfg.Tracker.Pagination.BatchSize,
		HugeDatasetThreshold: cfg.Tracker.Pagination.HugeDatasetThreshold,
		MaxRetries:           cfg.Tracker.Pagination.MaxRetries,
		RetryDelay:           cfg.Tracker.Pagination.RetryDelay(),
	})

	return &Collector{
		cfg:        cfg,
		env:        env,
		offsetDays: trackerEnv.TimeOffsetDays,
		gh:         gh,
		tracker:    tracker,
		cache:      NewRepoCache(cfg.CacheDir),
		store:      snapshot.NewStore(cfg.DataPath),
		bus:        bus,
	}, nil
}

// Store exposes the snapshot store backing this collector.
func (c *Collector) Store() *snapshot.Store {
	return c.store
}

// workers returns the effective pool size for a layer; the degradation
// switch collapses every layer to sequential execution.
func (c *Collector) workers(n int) int {
	if !c.cfg.Parallel.Enabled {
		return 1
	}
	return n
}

// Refresh runs the full pipeline for one date range and returns the sealed
// snapshot. It returns only after the snapshot write (or its rejection).
func (c *Collector) Refresh(ctx context.Context, rangeSpec string) (*snapshot.Snapshot, error) {
	window, err := daterange.Parse(rangeSpec)
	if err != nil {
		return nil, err
	}
	effective := window.Offset(c.offsetDays)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Collection.Deadline())
	defer cancel()

	log.Info().
		Str("range", window.Label).
		Str("env", c.env).
		Time("start", effective.Start).
		Time("end", effective.End).
		Bool("parallel", c.cfg.Parallel.Enabled).
		Msg("Collection started")

	repos, err := c.discoverRepositories(ctx)
	if err != nil {
		return nil, err
	}
	byTeam := make(map[string][]github.Repository)
	for _, repo := range repos {
		byTeam[repo.Team] = append(byTeam[repo.Team], repo)
	}

	teams := make([]metrics.TeamMetrics, len(c.cfg.Teams))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers(c.cfg.Parallel.TeamWorkers))
	for i, team := range c.cfg.Teams {
		i, team := i, team
		g.Go(func() error {
			tm, err := c.collectTeam(gctx, team, byTeam[team.Name], effective)
			if err != nil {
				return err
			}
			teams[i] = tm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.scoreTeams(teams)

	snap := &snapshot.Snapshot{
		Environment: c.env,
		Range:       metrics.NewRangeInfo(effective, c.offsetDays),
		Teams:       teams,
		Persons:     flattenPersons(teams),
		Summary:     summarize(teams),
	}
	// The run fails rather than replace a good snapshot with an empty one.
	if err := c.store.Write(snap); err != nil {
		return nil, err
	}

	c.bus.Publish(events.Event{
		Kind:        events.DataCollected,
		Range:       window.Label,
		Environment: c.env,
	})
	return snap, nil
}

// discoverRepositories serves the team→repository list from the 24h cache,
// falling back to one discovery query per run.
func (c *Collector) discoverRepositories(ctx context.Context) ([]github.Repository, error) {
	org := c.cfg.SourceControl.Organization
	names := make([]string, 0, len(c.cfg.Teams))
	for _, t := range c.cfg.Teams {
		names = append(names, t.Name)
	}

	if repos, ageHours, ok := c.cache.Get(org, names); ok {
		log.Info().Int("repos", len(repos)).Float64("age_hours", ageHours).Msg("Repository list served from cache")
		return repos, nil
	}

	repos, err := c.gh.DiscoverTeamRepositories(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("repository discovery: %w", err)
	}
	c.cache.Put(org, names, repos)
	return repos, nil
}

// teamAccumulator gathers the per-layer results of one team under a single
// lock; final aggregation is serial.
type teamAccumulator struct {
	mu       sync.Mutex
	prs      []github.PullRequest
	tags     []github.ReleaseTag
	persons  []metrics.PersonMetrics
	filters  map[string]jira.SearchResult
	releases []jira.FixVersion
	errors   []string
}

func (a *teamAccumulator) fail(format string, args ...any) {
	a.mu.Lock()
	a.errors = append(a.errors, fmt.Sprintf(format, args...))
	a.mu.Unlock()
}

// collectTeam runs the repository, person and filter layers for one team and
// folds the results into TeamMetrics. Task errors are recorded, not fatal;
// only context cancellation aborts the team.
func (c *Collector) collectTeam(ctx context.Context, team config.Team, repos []github.Repository, window daterange.Range) (metrics.TeamMetrics, error) {
	acc := &teamAccumulator{filters: make(map[string]jira.SearchResult)}

	if err := c.collectRepos(ctx, team, repos, window, acc); err != nil {
		return metrics.TeamMetrics{}, err
	}
	if err := c.collectPersons(ctx, team, window, acc); err != nil {
		return metrics.TeamMetrics{}, err
	}
	if err := c.collectFilters(ctx, team, window, acc); err != nil {
		return metrics.TeamMetrics{}, err
	}
	for _, project := range team.ProjectKeys {
		versions, err := c.tracker.Releases(ctx, project, team.TrackerLogins())
		if err != nil {
			if ctx.Err() != nil {
				return metrics.TeamMetrics{}, ctx.Err()
			}
			acc.fail("releases %s: %v", project, err)
			continue
		}
		acc.releases = append(acc.releases, versions...)
	}

	return c.assembleTeam(team, window, acc), nil
}

// collectRepos fans out over the team's repositories. Partial repository
// data still counts; the error is recorded next to it.
func (c *Collector) collectRepos(ctx context.Context, team config.Team, repos []github.Repository, window daterange.Range, acc *teamAccumulator) error {
	sem := semaphore.NewWeighted(int64(c.workers(c.cfg.Parallel.RepoWorkers)))
	g, gctx := errgroup.WithContext(ctx)

	members := make(map[string]bool)
	for _, login := range team.SCLogins() {
		members[login] = true
	}

	for _, repo := range repos {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		repo := repo
		g.Go(func() error {
			defer sem.Release(1)

			data, err := c.gh.CollectRepositoryData(gctx, repo, window)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				acc.fail("repo %s: %v", repo.FullName(), err)
			}

			acc.mu.Lock()
			for _, pr := range data.PullRequests {
				if members[pr.Author] {
					acc.prs = append(acc.prs, pr)
				}
			}
			acc.tags = append(acc.tags, data.Releases...)
			acc.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// collectPersons fans out over members, merging source-control activity with
// the tracker person query into one PersonMetrics each.
func (c *Collector) collectPersons(ctx context.Context, team config.Team, window daterange.Range, acc *teamAccumulator) error {
	sem := semaphore.NewWeighted(int64(c.workers(c.cfg.Parallel.PersonWorkers)))
	g, gctx := errgroup.WithContext(ctx)

	for _, member := range team.Members {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		member := member
		g.Go(func() error {
			defer sem.Release(1)

			pm := metrics.PersonMetrics{
				Name:         member.Name,
				SCLogin:      member.SCLogin,
				TrackerLogin: member.TrackerLogin,
			}

			activity, err := c.gh.CollectPersonActivity(gctx, member.SCLogin, window)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				acc.fail("person %s: %v", member.SCLogin, err)
			}
			pm.GitHub = metrics.ComputeGitHubMetrics(activity.PullRequests)
			// Authored PRs carry reviews received; replace with reviews given.
			pm.GitHub.Reviews = metrics.ReviewMetrics{ReviewCount: len(activity.Reviews)}

			result, err := c.tracker.PersonQuery(gctx, member.TrackerLogin, window)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				acc.fail("person %s: %v", member.TrackerLogin, err)
			}
			pm.Jira = metrics.ComputeJiraMetrics(result.Issues, window)
			pm.JiraCompleted = pm.Jira.Throughput
			pm.Degraded = result.Degraded
			pm.DegradedReason = result.Reason

			acc.mu.Lock()
			acc.persons = append(acc.persons, pm)
			// Person-authored PRs fill gaps the repository crawl missed
			// (forks, repos outside the team mapping); the union dedups.
			acc.prs = append(acc.prs, activity.PullRequests...)
			acc.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// collectFilters fans out over the team's tracker filters. The incidents
// filter is fetched through the type-restricted incident path.
func (c *Collector) collectFilters(ctx context.Context, team config.Team, window daterange.Range, acc *teamAccumulator) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers(c.cfg.Parallel.FilterWorkers))

	for name, id := range team.FilterIDs {
		name, id := name, id
		g.Go(func() error {
			if name == incidentsFilterKey {
				incidents, err := c.tracker.Incidents(gctx, id, window)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					acc.fail("filter %s(%d): %v", name, id, err)
					return nil
				}
				acc.mu.Lock()
				acc.filters[name] = jira.SearchResult{Issues: incidents, Total: len(incidents)}
				acc.mu.Unlock()
				return nil
			}

			result, err := c.tracker.Filter(gctx, id, window)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				acc.fail("filter %s(%d): %v", name, id, err)
				return nil
			}
			acc.mu.Lock()
			acc.filters[name] = result
			acc.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// assembleTeam folds the accumulated layer results into the team's slice of
// the snapshot. Runs serially after the fan-out.
func (c *Collector) assembleTeam(team config.Team, window daterange.Range, acc *teamAccumulator) metrics.TeamMetrics {
	prs := metrics.DedupPRs(acc.prs)

	tm := metrics.TeamMetrics{
		Team:   team.Name,
		Size:   len(team.Members),
		Range:  metrics.NewRangeInfo(window, c.offsetDays),
		GitHub: metrics.ComputeGitHubMetrics(prs),
		Jira:   make(map[string]metrics.JiraMetrics, len(acc.filters)),
		Errors: acc.errors,
	}

	var incidents []jira.Issue
	for name, result := range acc.filters {
		tm.Jira[name] = metrics.ComputeJiraMetrics(result.Issues, window)
		if name == incidentsFilterKey {
			incidents = result.Issues
		}
	}

	idx := metrics.NewReleaseIndex(acc.releases)
	mapping := idx.MapPRs(prs)
	_, incidentsConfigured := team.FilterIDs[incidentsFilterKey]
	tm.DORA = metrics.ComputeDORA(acc.releases, mapping, incidents, window, incidentsConfigured)

	for _, v := range acc.releases {
		tm.Releases = append(tm.Releases, metrics.NewReleaseInfo(v))
	}
	for _, tag := range acc.tags {
		tm.SCReleases = append(tm.SCReleases, metrics.TagRelease{
			Name:        tag.Name,
			Repo:        tag.Repo,
			Environment: string(tag.Environment),
			PublishedAt: tag.PublishedAt,
		})
	}
	sort.Slice(tm.SCReleases, func(i, j int) bool { return tm.SCReleases[i].PublishedAt.Before(tm.SCReleases[j].PublishedAt) })

	sort.Slice(acc.persons, func(i, j int) bool { return acc.persons[i].Name < acc.persons[j].Name })
	tm.Persons = c.scorePersons(acc.persons, tm.DORA)

	log.Info().
		Str("team", team.Name).
		Int("prs", tm.GitHub.PRs.PRCount).
		Int("releases", len(acc.releases)).
		Int("errors", len(acc.errors)).
		Str("dora", string(tm.DORA.Overall)).
		Msg("Team collection finished")
	return tm
}

// scorePersons computes the composite score across the team's members. The
// DORA inputs are team-level, identical for every member, so they normalize
// to the neutral 50 and differentiate nothing within a team.
func (c *Collector) scorePersons(persons []metrics.PersonMetrics, dora metrics.DORAMetrics) []metrics.PersonMetrics {
	inputs := make(map[string]metrics.ScoreInputs, len(persons))
	sizes := make(map[string]int, len(persons))
	for _, p := range persons {
		inputs[p.Name] = metrics.ScoreInputs{
			"prs":                  float64(p.GitHub.PRs.PRCount),
			"reviews":              float64(p.GitHub.Reviews.ReviewCount),
			"commits":              float64(p.GitHub.Commits.CommitCount),
			"cycle_time":           p.GitHub.PRs.CycleTimeMedianHours,
			"merge_rate":           p.GitHub.PRs.MergeRate,
			"jira_completed":       float64(p.JiraCompleted),
			"deployment_frequency": dora.DeploymentFrequency.PerWeek,
			"lead_time":            dora.LeadTime.MedianHours,
			"change_failure_rate":  dora.ChangeFailureRate.Rate,
			"mttr":                 dora.MTTR.MedianHours,
		}
		sizes[p.Name] = 1
	}

	scores := metrics.ComputeScores(inputs, sizes, c.cfg.PerformanceWeights)
	for i := range persons {
		persons[i].Score = scores[persons[i].Name]
	}
	return persons
}

// scoreTeams computes the cross-team composite score, volume inputs divided
// by team size.
func (c *Collector) scoreTeams(teams []metrics.TeamMetrics) {
	inputs := make(map[string]metrics.ScoreInputs, len(teams))
	sizes := make(map[string]int, len(teams))
	for i, tm := range teams {
		inputs[tm.Team] = metrics.ScoreInputs{
			"prs":                  float64(tm.GitHub.PRs.PRCount),
			"reviews":              float64(tm.GitHub.Reviews.ReviewCount),
			"commits":              float64(tm.GitHub.Commits.CommitCount),
			"cycle_time":           tm.GitHub.PRs.CycleTimeMedianHours,
			"merge_rate":           tm.GitHub.PRs.MergeRate,
			"jira_completed":       float64(teamThroughput(tm)),
			"deployment_frequency": tm.DORA.DeploymentFrequency.PerWeek,
			"lead_time":            tm.DORA.LeadTime.MedianHours,
			"change_failure_rate":  tm.DORA.ChangeFailureRate.Rate,
			"mttr":                 tm.DORA.MTTR.MedianHours,
		}
		sizes[tm.Team] = teams[i].Size
	}

	scores := metrics.ComputeScores(inputs, sizes, c.cfg.PerformanceWeights)
	for i := range teams {
		teams[i].Score = scores[teams[i].Team]
	}
}

// teamThroughput prefers the dedicated completed filter and falls back to
// the widest throughput any filter observed.
func teamThroughput(tm metrics.TeamMetrics) int {
	if m, ok := tm.Jira["completed"]; ok {
		return m.Throughput
	}
	widest := 0
	for _, m := range tm.Jira {
		if m.Throughput > widest {
			widest = m.Throughput
		}
	}
	return widest
}

// flattenPersons builds the login-keyed view of every team's members for
// direct lookup without walking the teams.
func flattenPersons(teams []metrics.TeamMetrics) map[string]metrics.PersonMetrics {
	out := make(map[string]metrics.PersonMetrics)
	for _, tm := range teams {
		for _, p := range tm.Persons {
			out[p.SCLogin] = p
		}
	}
	return out
}

func summarize(teams []metrics.TeamMetrics) []metrics.TeamSummary {
	out := make([]metrics.TeamSummary, 0, len(teams))
	for _, tm := range teams {
		out = append(out, metrics.TeamSummary{
			Team:        tm.Team,
			Score:       tm.Score,
			DORAOverall: tm.DORA.Overall,
			PRCount:     tm.GitHub.PRs.PRCount,
			Throughput:  teamThroughput(tm),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
