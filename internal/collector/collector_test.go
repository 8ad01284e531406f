package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"teammetrics/internal/config"
	"teammetrics/internal/events"
	"teammetrics/internal/metrics"
)

// fakeGitHub serves the three GraphQL shapes the collector issues, keyed on
// the query text.
func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()

	prNode := map[string]any{
		"number":      2,
		"title":       "PLT-2 fix checkout",
		"headRefName": "feature/PLT-2",
		"createdAt":   "2025-11-10T10:00:00Z",
		"mergedAt":    "2025-11-12T10:00:00Z",
		"additions":   40,
		"deletions":   5,
		"author":      map[string]any{"login": "alice-gh"},
		"reviews": map[string]any{"nodes": []any{
			map[string]any{"author": map[string]any{"login": "bob-gh"}, "state": "APPROVED", "createdAt": "2025-11-11T09:00:00Z"},
		}},
		"commits": map[string]any{"nodes": []any{
			map[string]any{"commit": map[string]any{
				"oid": "abc123", "authoredDate": "2025-11-10T09:00:00Z",
				"additions": 40, "deletions": 5,
				"author": map[string]any{"user": map[string]any{"login": "alice-gh"}},
			}},
		}},
	}
	noMore := map[string]any{"endCursor": "", "hasNextPage": false}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad GraphQL request: %v", err)
		}

		switch {
		case strings.Contains(req.Query, "teams("):
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
				"organization": map[string]any{"teams": map[string]any{"nodes": []any{
					map[string]any{
						"slug": "Platform",
						"repositories": map[string]any{
							"nodes":    []any{map[string]any{"name": "api", "owner": map[string]any{"login": "acme"}}},
							"pageInfo": noMore,
						},
					},
				}}},
			}})
		case strings.Contains(req.Query, "repository("):
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
				"repository": map[string]any{
					"pullRequests": map[string]any{"nodes": []any{prNode}, "pageInfo": noMore},
					"releases": map[string]any{"nodes": []any{
						// Tag name matches no pattern; the display name does.
						map[string]any{"tagName": "v2.4.1", "name": "Live - 12/Nov/2025", "publishedAt": "2025-11-12T11:00:00Z"},
					}, "pageInfo": noMore},
				},
			}})
		case strings.Contains(req.Query, "search("):
			nodes := []any{}
			if q, _ := req.Variables["query"].(string); strings.Contains(q, "author:") {
				authored := map[string]any{"repository": map[string]any{"nameWithOwner": "acme/api"}}
				for k, v := range prNode {
					authored[k] = v
				}
				nodes = append(nodes, authored)
			}
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
				"search": map[string]any{"nodes": nodes, "pageInfo": noMore},
			}})
		default:
			t.Errorf("unexpected GraphQL query: %s", req.Query)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func trackerIssue(key, typ, created, resolved, assignee string) map[string]any {
	fields := map[string]any{
		"summary":   key + " work",
		"issuetype": map[string]any{"name": typ},
		"status": map[string]any{
			"name":           "Done",
			"statusCategory": map[string]any{"key": "done"},
		},
		"created": created,
	}
	if resolved != "" {
		fields["resolutiondate"] = resolved
	}
	if assignee != "" {
		fields["assignee"] = map[string]any{"name": assignee}
	}
	return map[string]any{"key": key, "fields": fields}
}

// fakeTracker serves stored filters, project versions and JQL searches. The
// bugs filter (7) always fails so error aggregation is observable.
func fakeTracker(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/filter/5", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "5", "jql": "project = PLT AND statusCategory = Done"})
	})
	mux.HandleFunc("/rest/api/2/filter/9", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "9", "jql": "project = OPS"})
	})
	mux.HandleFunc("/rest/api/2/filter/7", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/rest/api/2/project/PLT/versions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"name": "Live - 20/Nov/2025", "released": true, "releaseDate": "2025-11-20"},
		})
	})
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		jql := r.URL.Query().Get("jql")
		var issues []map[string]any
		switch {
		case strings.Contains(jql, "fixVersion"):
			issues = []map[string]any{
				trackerIssue("PLT-2", "Story", "2025-11-01T10:00:00.000+0000", "2025-11-12T12:00:00.000+0000", "alice-j"),
			}
		case strings.Contains(jql, "OPS"):
			issues = []map[string]any{
				trackerIssue("OPS-1", "Incident", "2025-11-20T10:00:00.000+0000", "2025-11-20T13:00:00.000+0000", "alice-j"),
				// Wrong type: never an incident, whatever its content says.
				trackerIssue("OPS-2", "Bug", "2025-11-20T11:00:00.000+0000", "", "alice-j"),
			}
		case strings.Contains(jql, `assignee = "alice-j"`):
			issues = []map[string]any{
				trackerIssue("PLT-2", "Story", "2025-11-01T10:00:00.000+0000", "2025-11-12T12:00:00.000+0000", "alice-j"),
			}
		case strings.Contains(jql, "statusCategory = Done"):
			issues = []map[string]any{
				trackerIssue("PLT-2", "Story", "2025-11-01T10:00:00.000+0000", "2025-11-12T12:00:00.000+0000", "alice-j"),
				trackerIssue("PLT-3", "Bug", "2025-11-03T10:00:00.000+0000", "2025-11-14T12:00:00.000+0000", "alice-j"),
			}
		default:
			t.Errorf("unexpected jql: %s", jql)
		}
		json.NewEncoder(w).Encode(map[string]any{"total": len(issues), "issues": issues})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, ghURL, trackerURL string) *config.AppConfig {
	t.Helper()
	weights := make(map[string]float64, len(config.ScoreWeightKeys))
	for _, k := range config.ScoreWeightKeys {
		weights[k] = 0.1
	}
	dataPath := t.TempDir()
	return &config.AppConfig{
		SourceControl: config.SourceControl{Token: "tok", Organization: "acme", Endpoint: ghURL},
		Tracker: config.Tracker{
			Environments: map[string]config.TrackerEnv{
				"prod": {Server: trackerURL, Username: "svc", APIToken: "secret"},
			},
			Pagination: config.Pagination{Enabled: true, BatchSize: 500, MaxRetries: 1, RetryDelaySeconds: 1},
		},
		Teams: []config.Team{{
			Name:        "Platform",
			Members:     []config.Member{{Name: "Alice", SCLogin: "alice-gh", TrackerLogin: "alice-j"}},
			FilterIDs:   map[string]int{"completed": 5, "bugs": 7, "incidents": 9},
			ProjectKeys: []string{"PLT"},
		}},
		Parallel: config.Parallel{Enabled: true, TeamWorkers: 2, RepoWorkers: 2, PersonWorkers: 2, FilterWorkers: 2},
		Collection: config.Collection{
			MaxCollectionMinutes: 1,
			JiraTimeoutSeconds:   5,
			GithubTimeoutSeconds: 5,
			IncidentTypes:        []string{"Incident", "GCS Escalation"},
		},
		PerformanceWeights: weights,
		DataPath:           dataPath,
		CacheDir:           dataPath,
	}
}

func TestRefresh_FullPipeline(t *testing.T) {
	cfg := testConfig(t, fakeGitHub(t).URL, fakeTracker(t).URL)
	bus := events.NewBus()

	var published []events.Event
	bus.Subscribe(events.DataCollected, func(e events.Event) { published = append(published, e) })

	c, err := New(cfg, "prod", bus)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snap, err := c.Refresh(context.Background(), "2025-10-01:2025-12-31")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if len(snap.Teams) != 1 {
		t.Fatalf("teams = %d", len(snap.Teams))
	}
	team := snap.Teams[0]

	// The PR arrives via the repository crawl AND the person search; the
	// union must count it once.
	if team.GitHub.PRs.PRCount != 1 {
		t.Errorf("pr_count = %d, want 1", team.GitHub.PRs.PRCount)
	}
	if team.Jira["completed"].Throughput != 2 {
		t.Errorf("completed throughput = %d, want 2", team.Jira["completed"].Throughput)
	}

	// One release on Nov 20; the incident opened 10h later fails it.
	if df := team.DORA.DeploymentFrequency; df.Deployments != 1 {
		t.Errorf("deployments = %d, want 1", df.Deployments)
	}
	if cfr := team.DORA.ChangeFailureRate; cfr.FailedDeployments != 1 || cfr.TotalDeployments != 1 {
		t.Errorf("cfr = %+v", cfr)
	}
	if mttr := team.DORA.MTTR; mttr.MedianHours != 3 || mttr.Level != metrics.LevelHigh {
		t.Errorf("mttr = %+v", mttr)
	}
	if lt := team.DORA.LeadTime; lt.Level != metrics.LevelMedium || lt.MappedFraction != 1 {
		t.Errorf("lead time = %+v", lt)
	}

	// The repository crawl's release tag lands next to the tracker releases.
	if len(team.SCReleases) != 1 {
		t.Fatalf("sc_releases = %+v", team.SCReleases)
	}
	if tag := team.SCReleases[0]; tag.Name != "Live - 12/Nov/2025" || tag.Repo != "acme/api" || tag.Environment != "production" {
		t.Errorf("sc_release = %+v", tag)
	}

	if team.Range.Label != "2025-10-01:2025-12-31" || team.Range.Start.IsZero() {
		t.Errorf("team range = %+v", team.Range)
	}

	// The bugs filter 500s: recorded, not fatal.
	if len(team.Errors) != 1 || !strings.Contains(team.Errors[0], "bugs") {
		t.Errorf("errors = %v", team.Errors)
	}

	if len(team.Persons) != 1 {
		t.Fatalf("persons = %d", len(team.Persons))
	}
	person := team.Persons[0]
	if person.JiraCompleted != 1 || person.GitHub.PRs.PRCount != 1 {
		t.Errorf("person = %+v", person)
	}
	// A peer set of one normalizes every input to neutral.
	if person.Score != 50 {
		t.Errorf("person score = %v, want 50", person.Score)
	}

	// The flattened person view mirrors the team entry.
	if flat, ok := snap.Persons["alice-gh"]; !ok || flat.Name != "Alice" || flat.JiraCompleted != 1 {
		t.Errorf("snap.Persons[alice-gh] = %+v (present %v)", flat, ok)
	}

	if len(published) != 1 || published[0].Range != "2025-10-01:2025-12-31" || published[0].Environment != "prod" {
		t.Errorf("published = %+v", published)
	}

	// Refresh returns only after the snapshot is sealed and readable.
	stored, err := c.Store().Read("2025-10-01:2025-12-31", "prod")
	if err != nil {
		t.Fatalf("Read after Refresh: %v", err)
	}
	if stored.Teams[0].Team != "Platform" {
		t.Errorf("stored team = %q", stored.Teams[0].Team)
	}
}

func TestRefresh_SequentialDegradation(t *testing.T) {
	cfg := testConfig(t, fakeGitHub(t).URL, fakeTracker(t).URL)
	cfg.Parallel.Enabled = false

	c, err := New(cfg, "prod", events.NewBus())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snap, err := c.Refresh(context.Background(), "2025-10-01:2025-12-31")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snap.Teams[0].GitHub.PRs.PRCount != 1 {
		t.Error("sequential run must produce identical results")
	}
}

func TestNew_UnknownEnvironment(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	if _, err := New(cfg, "uat", events.NewBus()); err == nil {
		t.Fatal("expected error for unconfigured environment")
	}
}
