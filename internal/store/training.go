package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run kinds.
const (
	KindPrepare = "prepare"
	KindTrain   = "train"
)

// TrainingRun is one recorded dataset preparation or training run.
type TrainingRun struct {
	ID           string          `json:"id"`
	Tag          string          `json:"tag"`
	Kind         string          `json:"kind"`
	Train        int             `json:"train"`
	Test         int             `json:"test"`
	NumLandmarks int             `json:"num_landmarks"`
	TrainError   *float64        `json:"train_error,omitempty"`
	TestError    *float64        `json:"test_error,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// RecordTrainingRun appends r, assigning its ID and CreatedAt.
func (s *Store) RecordTrainingRun(ctx context.Context, r *TrainingRun) error {
	r.ID = uuid.New().String()
	r.CreatedAt = s.now().UTC()
	details := string(r.Details)
	if details == "" {
		details = "{}"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO training_runs (id, tag, kind, train_count, test_count, num_landmarks,
			train_error, test_error, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Tag, r.Kind, r.Train, r.Test, r.NumLandmarks,
		r.TrainError, r.TestError, details, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record training run: %w", err)
	}
	return nil
}

// TrainingRuns returns the runs recorded for tag, oldest first. An empty tag
// matches every tag.
func (s *Store) TrainingRuns(ctx context.Context, tag string) ([]TrainingRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tag, kind, train_count, test_count, num_landmarks,
			train_error, test_error, details, created_at
		 FROM training_runs
		 WHERE ? = '' OR tag = ?
		 ORDER BY rowid`,
		tag, tag,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query training runs: %w", err)
	}
	defer rows.Close()

	var out []TrainingRun
	for rows.Next() {
		var r TrainingRun
		var trainErr, testErr sql.NullFloat64
		var details string
		if err := rows.Scan(&r.ID, &r.Tag, &r.Kind, &r.Train, &r.Test, &r.NumLandmarks,
			&trainErr, &testErr, &details, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan training run: %w", err)
		}
		if trainErr.Valid {
			r.TrainError = &trainErr.Float64
		}
		if testErr.Valid {
			r.TestError = &testErr.Float64
		}
		r.Details = json.RawMessage(details)
		out = append(out, r)
	}
	return out, rows.Err()
}
