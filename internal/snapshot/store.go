package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"teammetrics/internal/metrics"
)

var (
	// ErrNoSnapshot means no snapshot exists for the requested key.
	ErrNoSnapshot = errors.New("snapshot: not found")
	// ErrValidation means a snapshot failed the write-side sanity check and
	// any existing file was left untouched.
	ErrValidation = errors.New("snapshot: validation failed")
)

// Snapshot is the sealed artifact of one collection run. Persons is the
// flattened login-keyed view of every team's members, so the presentation
// layer can look a person up without walking the teams.
type Snapshot struct {
	Timestamp   time.Time                        `json:"timestamp"`
	Environment string                           `json:"environment"`
	Range       metrics.RangeInfo                `json:"range"`
	Teams       []metrics.TeamMetrics            `json:"teams"`
	Persons     map[string]metrics.PersonMetrics `json:"persons,omitempty"`
	Summary     []metrics.TeamSummary            `json:"summary,omitempty"`
}

// Store reads and writes range-and-environment-keyed snapshot files.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates a store rooted at dir. The directory must already exist.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// fileKey sanitizes a range label for use in a file name; custom windows
// carry a colon ("2025-01-01:2025-03-31") that some filesystems reject.
func fileKey(label string) string {
	r := strings.NewReplacer(":", "_", "/", "-", " ", "_")
	return r.Replace(label)
}

func (s *Store) path(rangeLabel, env string) string {
	return filepath.Join(s.dir, fmt.Sprintf("metrics_cache_%s_%s.json", fileKey(rangeLabel), env))
}

// validate rejects snapshots that are structurally empty: a run that
// configured at least one team but collected zero source-control records
// across all of them indicates upstream failure, not a quiet period.
func validate(snap *Snapshot) error {
	if len(snap.Teams) == 0 {
		return fmt.Errorf("%w: no teams in snapshot", ErrValidation)
	}
	total := 0
	var empty []string
	for _, team := range snap.Teams {
		records := team.SourceRecords()
		total += records
		if records == 0 {
			empty = append(empty, fmt.Sprintf("%s: 0 source-control records", team.Team))
		}
	}
	if total == 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(empty, ", "))
	}
	return nil
}

// Write seals a snapshot to disk. The write is atomic (temp file + rename)
// and gated on validation, so a bad run never clobbers a previous good file.
func (s *Store) Write(snap *Snapshot) error {
	if err := validate(snap); err != nil {
		log.Error().Err(err).
			Str("range", snap.Range.Label).
			Str("env", snap.Environment).
			Msg("Refusing to replace snapshot")
		return err
	}
	snap.Timestamp = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(snap.Range.Label, snap.Environment)
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}

	log.Info().
		Str("range", snap.Range.Label).
		Str("env", snap.Environment).
		Int("teams", len(snap.Teams)).
		Msg("Snapshot sealed")
	return nil
}

// Read loads the snapshot for (rangeLabel, env). Returns ErrNoSnapshot when
// none has been written yet.
func (s *Store) Read(rangeLabel, env string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(rangeLabel, env))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// Age returns how old the stored snapshot is, or ErrNoSnapshot.
func (s *Store) Age(rangeLabel, env string) (time.Duration, error) {
	snap, err := s.Read(rangeLabel, env)
	if err != nil {
		return 0, err
	}
	return time.Since(snap.Timestamp), nil
}
