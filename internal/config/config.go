package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ScoreWeightKeys enumerates the ten inputs of the composite performance
// score, in reporting order.
var ScoreWeightKeys = []string{
	"prs", "reviews", "commits", "cycle_time", "merge_rate",
	"jira_completed", "deployment_frequency", "lead_time",
	"change_failure_rate", "mttr",
}

// AppConfig is the single source of truth for a collection run. It is loaded
// once at startup and treated as read-only afterwards.
type AppConfig struct {
	SourceControl      SourceControl      `yaml:"source_control"`
	Tracker            Tracker            `yaml:"tracker"`
	Teams              []Team             `yaml:"teams"`
	Parallel           Parallel           `yaml:"parallel_collection"`
	PerformanceWeights map[string]float64 `yaml:"performance_weights"`
	Collection         Collection         `yaml:"collection"`

	// Resolved at load time, not part of the YAML surface.
	DataPath string `yaml:"-"`
	CacheDir string `yaml:"-"`
}

// SourceControl holds the source-control host credential set. Endpoint is
// only set for enterprise hosts; empty means the public API.
type SourceControl struct {
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Endpoint     string `yaml:"endpoint"`
}

// TrackerEnv is one issue-tracker environment (prod, uat, ...).
type TrackerEnv struct {
	Server         string `yaml:"server"`
	Username       string `yaml:"username"`
	APIToken       string `yaml:"api_token"`
	TimeOffsetDays int    `yaml:"time_offset_days"`
}

// Pagination tunes the adaptive search batching of the tracker client.
type Pagination struct {
	Enabled              bool `yaml:"enabled"`
	BatchSize            int  `yaml:"batch_size"`
	HugeDatasetThreshold int  `yaml:"huge_dataset_threshold"` // 0 forces history-less batches for all sizes
	MaxRetries           int  `yaml:"max_retries"`
	RetryDelaySeconds    int  `yaml:"retry_delay_seconds"`
}

// RetryDelay returns the per-batch retry delay as a duration.
func (p Pagination) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelaySeconds) * time.Second
}

// Tracker groups the issue-tracker environments and shared pagination knobs.
type Tracker struct {
	Environments map[string]TrackerEnv `yaml:"environments"`
	Pagination   Pagination            `yaml:"pagination"`
}

// Member links a display name to the two upstream identities.
type Member struct {
	Name         string `yaml:"name"`
	SCLogin      string `yaml:"sc_login"`
	TrackerLogin string `yaml:"tracker_login"`
}

// Team is one configured team with its tracker filters and project keys.
type Team struct {
	Name        string         `yaml:"name"`
	Members     []Member       `yaml:"members"`
	FilterIDs   map[string]int `yaml:"filter_ids"`
	ProjectKeys []string       `yaml:"project_keys"`
}

// SCLogins returns the source-control logins of the team.
func (t Team) SCLogins() []string {
	logins := make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		logins = append(logins, m.SCLogin)
	}
	return logins
}

// TrackerLogins returns the tracker logins of the team.
func (t Team) TrackerLogins() []string {
	logins := make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		logins = append(logins, m.TrackerLogin)
	}
	return logins
}

// Parallel bounds the fan-out scheduler. Enabled=false degrades every layer
// to sequential execution with identical semantics.
type Parallel struct {
	Enabled       bool `yaml:"enabled"`
	TeamWorkers   int  `yaml:"team_workers"`
	RepoWorkers   int  `yaml:"repo_workers"`
	PersonWorkers int  `yaml:"person_workers"`
	FilterWorkers int  `yaml:"filter_workers"`
}

// Collection holds run-level operational settings.
type Collection struct {
	MaxCollectionMinutes int      `yaml:"max_collection_minutes"`
	JiraTimeoutSeconds   int      `yaml:"jira_timeout_seconds"`
	GithubTimeoutSeconds int      `yaml:"github_timeout_seconds"`
	IncidentTypes        []string `yaml:"incident_types"`
}

// Deadline returns the top-level collection deadline.
func (c Collection) Deadline() time.Duration {
	return time.Duration(c.MaxCollectionMinutes) * time.Minute
}

const maxWorkers = 32

// Load reads the YAML configuration and layers .env credentials over it.
// Resolution order for the config file: explicit path, CONFIG_PATH env,
// ./teammetrics.yaml.
func Load(path string) (*AppConfig, error) {
	// .env from the binary directory first, then the working directory.
	if exePath, err := os.Executable(); err == nil {
		envPath := filepath.Join(filepath.Dir(exePath), ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded environment from binary directory")
		}
	}
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file in working directory")
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "teammetrics.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := &AppConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Credentials from the environment win over the file.
	if v := os.Getenv("SC_TOKEN"); v != "" {
		cfg.SourceControl.Token = v
	}
	if v := os.Getenv("TRACKER_API_TOKEN"); v != "" {
		for name, env := range cfg.Tracker.Environments {
			env.APIToken = v
			cfg.Tracker.Environments[name] = env
		}
	}

	cfg.applyDefaults()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = "data"
	}
	cfg.DataPath = dataPath
	cfg.CacheDir = filepath.Join(dataPath, "cache")

	for _, dir := range []string{cfg.DataPath, cfg.CacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn().Err(err).Str("path", dir).Msg("Failed to create data directory")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Parallel.TeamWorkers == 0 {
		c.Parallel.TeamWorkers = 3
	}
	if c.Parallel.RepoWorkers == 0 {
		c.Parallel.RepoWorkers = 5
	}
	if c.Parallel.PersonWorkers == 0 {
		c.Parallel.PersonWorkers = 8
	}
	if c.Parallel.FilterWorkers == 0 {
		c.Parallel.FilterWorkers = 4
	}
	if c.Tracker.Pagination.BatchSize == 0 {
		c.Tracker.Pagination.BatchSize = 500
	}
	if c.Tracker.Pagination.MaxRetries == 0 {
		c.Tracker.Pagination.MaxRetries = 5
	}
	if c.Tracker.Pagination.RetryDelaySeconds == 0 {
		c.Tracker.Pagination.RetryDelaySeconds = 5
	}
	if c.Collection.MaxCollectionMinutes == 0 {
		c.Collection.MaxCollectionMinutes = 30
	}
	if c.Collection.JiraTimeoutSeconds == 0 {
		c.Collection.JiraTimeoutSeconds = 90
	}
	if c.Collection.GithubTimeoutSeconds == 0 {
		c.Collection.GithubTimeoutSeconds = 60
	}
	if len(c.Collection.IncidentTypes) == 0 {
		c.Collection.IncidentTypes = []string{"Incident", "GCS Escalation"}
	}
	if len(c.PerformanceWeights) == 0 {
		c.PerformanceWeights = make(map[string]float64, len(ScoreWeightKeys))
		for _, k := range ScoreWeightKeys {
			c.PerformanceWeights[k] = 0.1
		}
	}
}

// Validate fails fast with an explicit message on the first problem found.
func (c *AppConfig) Validate() error {
	if c.SourceControl.Token == "" {
		return fmt.Errorf("source_control.token is required")
	}
	if c.SourceControl.Organization == "" {
		return fmt.Errorf("source_control.organization is required")
	}
	if len(c.Tracker.Environments) == 0 {
		return fmt.Errorf("at least one tracker environment is required")
	}
	for name, env := range c.Tracker.Environments {
		if env.Server == "" {
			return fmt.Errorf("tracker environment %q: server is required", name)
		}
		if env.TimeOffsetDays < 0 {
			return fmt.Errorf("tracker environment %q: time_offset_days must be >= 0", name)
		}
	}

	if len(c.Teams) == 0 {
		return fmt.Errorf("at least one team is required")
	}
	seenTeams := make(map[string]bool)
	for _, team := range c.Teams {
		if team.Name == "" {
			return fmt.Errorf("every team needs a name")
		}
		if seenTeams[team.Name] {
			return fmt.Errorf("duplicate team name %q", team.Name)
		}
		seenTeams[team.Name] = true

		if len(team.Members) == 0 {
			return fmt.Errorf("team %q has no members", team.Name)
		}
		seenSC := make(map[string]bool)
		seenTracker := make(map[string]bool)
		for _, m := range team.Members {
			if m.SCLogin == "" || m.TrackerLogin == "" {
				return fmt.Errorf("team %q: member %q needs both sc_login and tracker_login", team.Name, m.Name)
			}
			if seenSC[m.SCLogin] {
				return fmt.Errorf("team %q: duplicate sc_login %q", team.Name, m.SCLogin)
			}
			if seenTracker[m.TrackerLogin] {
				return fmt.Errorf("team %q: duplicate tracker_login %q", team.Name, m.TrackerLogin)
			}
			seenSC[m.SCLogin] = true
			seenTracker[m.TrackerLogin] = true
		}
	}

	workers := []struct {
		name  string
		value int
	}{
		{"team_workers", c.Parallel.TeamWorkers},
		{"repo_workers", c.Parallel.RepoWorkers},
		{"person_workers", c.Parallel.PersonWorkers},
		{"filter_workers", c.Parallel.FilterWorkers},
	}
	for _, w := range workers {
		if w.value < 1 || w.value > maxWorkers {
			return fmt.Errorf("parallel_collection.%s must be between 1 and %d, got %d", w.name, maxWorkers, w.value)
		}
	}

	if c.Tracker.Pagination.BatchSize < 1 {
		return fmt.Errorf("tracker.pagination.batch_size must be positive")
	}
	if c.Tracker.Pagination.HugeDatasetThreshold < 0 {
		return fmt.Errorf("tracker.pagination.huge_dataset_threshold must be >= 0")
	}

	return c.validateWeights()
}

func (c *AppConfig) validateWeights() error {
	sum := 0.0
	for key, w := range c.PerformanceWeights {
		known := false
		for _, k := range ScoreWeightKeys {
			if k == key {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("performance_weights: unknown key %q", key)
		}
		if w < 0 {
			return fmt.Errorf("performance_weights.%s must be non-negative, got %v", key, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("performance_weights must sum to 1.0 (±0.01), got %.4f", sum)
	}
	return nil
}
