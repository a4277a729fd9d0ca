package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ironsheep/specimen-tools-mcp/internal/detection"
)

// Prediction is one recorded landmarks prediction.
type Prediction struct {
	ID           string          `json:"id"`
	Tag          string          `json:"tag"`
	ImagePath    string          `json:"image_path"`
	ImageHash    string          `json:"image_hash"`
	Box          detection.Box   `json:"box"`
	Method       string          `json:"method"`
	Fallback     bool            `json:"fallback"`
	NumLandmarks int             `json:"num_landmarks"`
	Landmarks    json.RawMessage `json:"landmarks"`
	CreatedAt    time.Time       `json:"created_at"`
}

// RecordPrediction appends p, assigning its ID and CreatedAt.
func (s *Store) RecordPrediction(ctx context.Context, p *Prediction) error {
	p.CreatedAt = s.now().UTC()
	id, err := s.newULID(p.CreatedAt)
	if err != nil {
		return err
	}
	p.ID = id
	landmarks := string(p.Landmarks)
	if landmarks == "" {
		landmarks = "[]"
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO predictions (id, tag, image_path, image_hash, box_left, box_top, box_right, box_bottom,
			method, fallback, num_landmarks, landmarks, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Tag, p.ImagePath, p.ImageHash, p.Box.Left, p.Box.Top, p.Box.Right, p.Box.Bottom,
		p.Method, p.Fallback, p.NumLandmarks, landmarks, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record prediction: %w", err)
	}
	return nil
}

// RecentPredictions returns up to limit predictions, newest first. An empty
// tag matches every tag.
func (s *Store) RecentPredictions(ctx context.Context, tag string, limit int) ([]Prediction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tag, image_path, image_hash, box_left, box_top, box_right, box_bottom,
			method, fallback, num_landmarks, landmarks, created_at
		 FROM predictions
		 WHERE ? = '' OR tag = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		tag, tag, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var out []Prediction
	for rows.Next() {
		var p Prediction
		var landmarks string
		if err := rows.Scan(&p.ID, &p.Tag, &p.ImagePath, &p.ImageHash,
			&p.Box.Left, &p.Box.Top, &p.Box.Right, &p.Box.Bottom,
			&p.Method, &p.Fallback, &p.NumLandmarks, &landmarks, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		p.Landmarks = json.RawMessage(landmarks)
		out = append(out, p)
	}
	return out, rows.Err()
}
