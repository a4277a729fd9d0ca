package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per landmarks prediction
		`CREATE TABLE IF NOT EXISTS predictions (
			id TEXT PRIMARY KEY,
			tag TEXT NOT NULL,
			image_path TEXT NOT NULL,
			image_hash TEXT NOT NULL DEFAULT '',
			box_left INTEGER NOT NULL,
			box_top INTEGER NOT NULL,
			box_right INTEGER NOT NULL,
			box_bottom INTEGER NOT NULL,
			method TEXT NOT NULL,
			fallback INTEGER NOT NULL DEFAULT 0,
			num_landmarks INTEGER NOT NULL DEFAULT 0,
			landmarks TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL
		)`,

		// One row per dataset preparation or training run
		`CREATE TABLE IF NOT EXISTS training_runs (
			id TEXT PRIMARY KEY,
			tag TEXT NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('prepare', 'train')),
			train_count INTEGER NOT NULL DEFAULT 0,
			test_count INTEGER NOT NULL DEFAULT 0,
			num_landmarks INTEGER NOT NULL DEFAULT 0,
			train_error REAL,
			test_error REAL,
			details TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_predictions_tag ON predictions(tag)`,
		`CREATE INDEX IF NOT EXISTS idx_training_runs_tag ON training_runs(tag)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}
