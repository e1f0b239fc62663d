// Package calibration persists per-detector baseline parameters (noise
// floors, adaptive thresholds) learned by a `calibrate` run, so the next
// process start resumes from where the last one left off instead of
// re-learning cold. Grounded on SPEC_FULL.md §6's calibration file and
// §11's optional Postgres history mirror
// (owl-common/database/postgres.go's sql.Open("postgres", dsn) pattern).
package calibration

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"

	"github.com/buzzwordmojo/nightwatch/internal/config"
)

// Baseline is one detector's learned calibration parameters at a point in
// time.
type Baseline struct {
	Detector   string             `json:"detector"`
	Params     map[string]float64 `json:"params"`
	ComputedAt time.Time          `json:"computed_at"`
}

// Store is the file-backed default calibration persistence layer, with an
// optional Postgres mirror for longitudinal history.
type Store struct {
	dir string
	db  *sql.DB // nil unless PostgresConfig.Enabled
}

// Open builds a Store rooted at dataDir (SystemConfig.DataDir), attaching a
// Postgres mirror when cfg.Enabled.
func Open(dataDir string, cfg config.PostgresConfig) (*Store, error) {
	dir := filepath.Join(dataDir, "calibration")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("calibration: create dir: %w", err)
	}

	s := &Store{dir: dir}
	if cfg.Enabled {
		db, err := sql.Open("postgres", cfg.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("calibration: open postgres: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("calibration: ping postgres: %w", err)
		}
		s.db = db
	}
	return s, nil
}

// Close releases the Postgres connection, if any.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) path(detector string) string {
	return filepath.Join(s.dir, detector+".json")
}

// Save writes b as the current baseline for its detector, both to the local
// file (the value read back on next startup) and, if configured, appends a
// history row to Postgres.
func (s *Store) Save(b Baseline) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path(b.Detector), data, 0o644); err != nil {
		return fmt.Errorf("calibration: write %s: %w", b.Detector, err)
	}

	if s.db != nil {
		_, err := s.db.Exec(
			`INSERT INTO calibration_history (detector, params, computed_at) VALUES ($1, $2, $3)`,
			b.Detector, string(data), b.ComputedAt,
		)
		if err != nil {
			return fmt.Errorf("calibration: postgres insert: %w", err)
		}
	}
	return nil
}

// Load reads the current baseline for detector, returning ok=false if none
// has been saved yet.
func (s *Store) Load(detector string) (Baseline, bool) {
	data, err := os.ReadFile(s.path(detector))
	if err != nil {
		return Baseline{}, false
	}
	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return Baseline{}, false
	}
	return b, true
}
