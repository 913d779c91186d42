package speaker

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Sample class labels in the profile store.
const (
	LabelEnrolled   = 1
	LabelBackground = 0
)

// BoundaryModel is the trained discriminative boundary plus the feature
// scaler fitted with it. The verification threshold deliberately lives in
// configuration, not here, so it can be tuned without retraining.
type BoundaryModel struct {
	Dim         int       `json:"dim"`
	Weights     []float64 `json:"weights"`
	Bias        float64   `json:"bias"`
	ScalerMean  []float64 `json:"scaler_mean"`
	ScalerStd   []float64 `json:"scaler_std"`
	SampleCount int       `json:"sample_count"`
}

// ProfileStore persists the enrolled speaker profile in SQLite: the
// accumulated feature vectors and the current model snapshot. Samples are
// append-only; an enrollment that fails mid-way leaves the prior state
// intact because samples and model are written in one transaction.
type ProfileStore struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS samples (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	label      INTEGER NOT NULL,
	features   TEXT    NOT NULL,
	created_at TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS profile (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	model      TEXT    NOT NULL,
	updated_at TEXT    NOT NULL
);
`

// OpenStore opens (creating if needed) the profile database at path.
func OpenStore(path string) (*ProfileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("speaker: create profile directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("speaker: open profile store: %w", err)
	}
	// One writer at a time; the verifier serializes enrollments anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("speaker: initialize profile schema: %w", err)
	}

	return &ProfileStore{db: db}, nil
}

// Close releases the database handle.
func (s *ProfileStore) Close() error {
	return s.db.Close()
}

// Samples returns all accumulated feature vectors and their labels, in
// insertion order.
func (s *ProfileStore) Samples() ([][]float64, []int, error) {
	rows, err := s.db.Query(`SELECT label, features FROM samples ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("speaker: query samples: %w", err)
	}
	defer rows.Close()

	var features [][]float64
	var labels []int
	for rows.Next() {
		var label int
		var raw string
		if err := rows.Scan(&label, &raw); err != nil {
			return nil, nil, fmt.Errorf("speaker: scan sample: %w", err)
		}
		var vec []float64
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			return nil, nil, fmt.Errorf("speaker: corrupt sample row: %w", err)
		}
		features = append(features, vec)
		labels = append(labels, label)
	}
	return features, labels, rows.Err()
}

// SampleCount returns how many samples carry the given label.
func (s *ProfileStore) SampleCount(label int) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM samples WHERE label = ?`, label).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("speaker: count samples: %w", err)
	}
	return n, nil
}

// Model returns the current model snapshot, or (nil, nil) when no profile
// has ever been trained.
func (s *ProfileStore) Model() (*BoundaryModel, error) {
	var raw string
	err := s.db.QueryRow(`SELECT model FROM profile WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("speaker: load model: %w", err)
	}
	var m BoundaryModel
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("speaker: corrupt model snapshot: %w", err)
	}
	return &m, nil
}

// Commit appends new feature vectors and replaces the model snapshot in a
// single transaction: either the full updated state lands or the prior
// state remains.
func (s *ProfileStore) Commit(newSamples [][]float64, labels []int, m *BoundaryModel) error {
	if len(newSamples) != len(labels) {
		return fmt.Errorf("speaker: %d samples with %d labels", len(newSamples), len(labels))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("speaker: begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for i, vec := range newSamples {
		raw, err := json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("speaker: marshal sample: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO samples (label, features, created_at) VALUES (?, ?, ?)`,
			labels[i], string(raw), now,
		); err != nil {
			return fmt.Errorf("speaker: insert sample: %w", err)
		}
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("speaker: marshal model: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO profile (id, model, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET model = excluded.model, updated_at = excluded.updated_at`,
		string(raw), now,
	); err != nil {
		return fmt.Errorf("speaker: save model: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("speaker: commit profile update: %w", err)
	}
	return nil
}
