package engine

import (
	"fmt"
	"math/rand"
	"time"

	"teammetrics/internal/daterange"
	"teammetrics/internal/github"
	"teammetrics/internal/jira"
	"teammetrics/internal/metrics"
	"teammetrics/internal/release"
	"teammetrics/internal/snapshot"
)

type GeneratorConfig struct {
	Scenario string // "steady" or "chaos"
	Teams    int
	Persons  int // per team
	Window   daterange.Range
	Env      string
	Now      time.Time
}

// Generate builds a synthetic snapshot by producing raw PRs, issues and
// releases and running them through the real metrics engine, so the output
// shape always matches what a live collection would seal.
func Generate(cfg GeneratorConfig) *snapshot.Snapshot {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	rng := rand.New(rand.NewSource(cfg.Now.UnixNano()))

	teams := make([]metrics.TeamMetrics, 0, cfg.Teams)
	persons := make(map[string]metrics.PersonMetrics)
	for t := 0; t < cfg.Teams; t++ {
		tm := generateTeam(cfg, rng, t)
		for _, p := range tm.Persons {
			persons[p.SCLogin] = p
		}
		teams = append(teams, tm)
	}

	return &snapshot.Snapshot{
		Environment: cfg.Env,
		Range:       metrics.NewRangeInfo(cfg.Window, 0),
		Teams:       teams,
		Persons:     persons,
	}
}

func generateTeam(cfg GeneratorConfig, rng *rand.Rand, idx int) metrics.TeamMetrics {
	teamName := fmt.Sprintf("team-%d", idx+1)
	project := fmt.Sprintf("DEMO%d", idx+1)
	days := cfg.Window.Days()

	// Cycle times: steady teams merge within a day or two, chaotic teams
	// grow a fat tail.
	cycleHours := func() float64 {
		base := 4 + rng.Float64()*40
		if cfg.Scenario == "chaos" && rng.Float64() < 0.2 {
			base += 100 + rng.Float64()*400
		}
		return base
	}

	var prs []github.PullRequest
	var persons []metrics.PersonMetrics
	var issues []jira.Issue
	prNumber := 0

	for p := 0; p < cfg.Persons; p++ {
		login := fmt.Sprintf("%s-dev%d", teamName, p+1)
		var personPRs []github.PullRequest

		for n := 0; n < 3+rng.Intn(8); n++ {
			prNumber++
			created := cfg.Window.Start.Add(time.Duration(rng.Intn(days*24)) * time.Hour)
			merged := created.Add(time.Duration(cycleHours() * float64(time.Hour)))
			pr := github.PullRequest{
				Number:    prNumber,
				Repo:      "demo/" + teamName,
				Author:    login,
				Title:     fmt.Sprintf("%s-%d change %d", project, prNumber, prNumber),
				Branch:    fmt.Sprintf("feature/%s-%d", project, prNumber),
				CreatedAt: created,
				Additions: rng.Intn(900),
				Deletions: rng.Intn(200),
				Reviews: []github.Review{{
					Author:    fmt.Sprintf("%s-dev%d", teamName, (p+1)%cfg.Persons+1),
					State:     "APPROVED",
					CreatedAt: created.Add(3 * time.Hour),
				}},
				Commits: []github.Commit{{
					SHA:        fmt.Sprintf("%s-%d", teamName, prNumber),
					Author:     login,
					AuthoredAt: created,
					Additions:  rng.Intn(900),
				}},
			}
			if merged.Before(cfg.Window.End) {
				pr.MergedAt = &merged
			}
			personPRs = append(personPRs, pr)

			resolved := merged
			issues = append(issues, jira.Issue{
				Key:            fmt.Sprintf("%s-%d", project, prNumber),
				Project:        project,
				Type:           "Story",
				Status:         "Done",
				StatusCategory: "done",
				Assignee:       login,
				Created:        created,
				Resolved:       &resolved,
			})
		}

		pm := metrics.PersonMetrics{
			Name:    login,
			SCLogin: login,
			GitHub:  metrics.ComputeGitHubMetrics(personPRs),
		}
		pm.Jira = metrics.ComputeJiraMetrics(issuesFor(issues, login), cfg.Window)
		pm.JiraCompleted = pm.Jira.Throughput
		persons = append(persons, pm)
		prs = append(prs, personPRs...)
	}

	versions := generateReleases(cfg, project, issues)
	var incidents []jira.Issue
	if cfg.Scenario == "chaos" {
		for _, v := range versions {
			if rng.Float64() < 0.4 {
				created := v.ReleaseDate.Add(6 * time.Hour)
				resolved := created.Add(time.Duration(1+rng.Intn(48)) * time.Hour)
				incidents = append(incidents, jira.Issue{
					Key:      fmt.Sprintf("OPS-%d", len(incidents)+1),
					Type:     "Incident",
					Summary:  "Degradation after " + v.Name,
					Created:  created,
					Resolved: &resolved,
				})
			}
		}
	}

	index := metrics.NewReleaseIndex(versions)
	tm := metrics.TeamMetrics{
		Team:    teamName,
		Size:    cfg.Persons,
		Range:   metrics.NewRangeInfo(cfg.Window, 0),
		GitHub:  metrics.ComputeGitHubMetrics(prs),
		Jira:    map[string]metrics.JiraMetrics{"completed": metrics.ComputeJiraMetrics(issues, cfg.Window)},
		DORA:    metrics.ComputeDORA(versions, index.MapPRs(prs), incidents, cfg.Window, cfg.Scenario == "chaos"),
		Persons: persons,
	}
	for _, v := range versions {
		tm.Releases = append(tm.Releases, metrics.NewReleaseInfo(v))
	}
	return tm
}

func issuesFor(issues []jira.Issue, assignee string) []jira.Issue {
	var out []jira.Issue
	for _, issue := range issues {
		if issue.Assignee == assignee {
			out = append(out, issue)
		}
	}
	return out
}

func generateReleases(cfg GeneratorConfig, project string, issues []jira.Issue) []jira.FixVersion {
	cadenceDays := 7
	if cfg.Scenario == "chaos" {
		cadenceDays = 14
	}

	var versions []jira.FixVersion
	for d := cadenceDays; d < cfg.Window.Days(); d += cadenceDays {
		date := cfg.Window.Start.AddDate(0, 0, d)
		v := jira.FixVersion{
			Project:     project,
			Name:        fmt.Sprintf("Live - %d/%s/%d", date.Day(), date.Format("Jan"), date.Year()),
			ReleaseDate: date,
			Released:    true,
			Environment: release.Production,
		}
		for _, issue := range issues {
			if issue.Resolved != nil && issue.Resolved.Before(date) && date.Sub(*issue.Resolved) < time.Duration(cadenceDays)*24*time.Hour {
				v.Issues = append(v.Issues, issue.Key)
			}
		}
		if len(v.Issues) > 0 {
			versions = append(versions, v)
		}
	}
	return versions
}
