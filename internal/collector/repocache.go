package collector

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"teammetrics/internal/github"
)

const repoCacheTTL = 24 * time.Hour

// repoCacheEntry is the dated JSON blob on disk.
type repoCacheEntry struct {
	FetchedAt    time.Time           `json:"fetched_at"`
	Organization string              `json:"organization"`
	Teams        []string            `json:"teams"`
	Repositories []github.Repository `json:"repositories"`
}

// RepoCache is the 24-hour disk cache of team→repository discovery. All
// failures are non-fatal: a broken cache degrades to a network discovery.
type RepoCache struct {
	dir string
}

// NewRepoCache creates a cache rooted at dir.
func NewRepoCache(dir string) *RepoCache {
	return &RepoCache{dir: dir}
}

// cacheKey hashes (organization, sorted team list) so any membership change
// invalidates the entry.
func cacheKey(org string, teams []string) string {
	sorted := slices.Clone(teams)
	slices.Sort(sorted)
	sum := sha256.Sum256([]byte(org + "|" + strings.Join(sorted, "|")))
	return hex.EncodeToString(sum[:8])
}

func (c *RepoCache) path(org string, teams []string) string {
	return filepath.Join(c.dir, fmt.Sprintf("repos_%s.json", cacheKey(org, teams)))
}

// Get returns the cached repository list and its age in hours. ok is false
// on miss, decode failure, or a stale entry.
func (c *RepoCache) Get(org string, teams []string) (repos []github.Repository, ageHours float64, ok bool) {
	path := c.path(org, teams)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to read repository cache")
		}
		return nil, 0, false
	}

	var entry repoCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Corrupt repository cache, ignoring")
		return nil, 0, false
	}

	age := time.Since(entry.FetchedAt)
	if age > repoCacheTTL {
		log.Debug().Float64("age_hours", age.Hours()).Msg("Repository cache stale")
		return nil, 0, false
	}
	return entry.Repositories, age.Hours(), true
}

// Put writes the discovery result. Errors are logged and swallowed.
func (c *RepoCache) Put(org string, teams []string, repos []github.Repository) {
	entry := repoCacheEntry{
		FetchedAt:    time.Now(),
		Organization: org,
		Teams:        teams,
		Repositories: repos,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode repository cache")
		return
	}

	path := c.path(org, teams)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		log.Warn().Err(err).Str("path", tmpPath).Msg("Failed to write repository cache")
		return
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		log.Warn().Err(err).Str("path", path).Msg("Failed to replace repository cache")
	}
}
