package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Labels table - class index to display string
		`CREATE TABLE IF NOT EXISTS labels (
			class_index INTEGER PRIMARY KEY,
			label TEXT NOT NULL
		)`,

		// Sessions table - one row per Idle to Running transition
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			stopped_at DATETIME,
			admitted INTEGER NOT NULL DEFAULT 0
		)`,

		// Detections table - every result stored by a session
		`CREATE TABLE IF NOT EXISTS detections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			label TEXT NOT NULL,
			class_index INTEGER NOT NULL,
			confidence REAL NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_detections_session_id ON detections(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_created_at ON detections(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
