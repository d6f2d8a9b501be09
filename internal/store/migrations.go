package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per sit-to-stand test
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			end_reason TEXT NOT NULL DEFAULT '',
			reps INTEGER NOT NULL DEFAULT 0,
			full_reps INTEGER NOT NULL DEFAULT 0,
			partial_reps INTEGER NOT NULL DEFAULT 0,
			rejected_reps INTEGER NOT NULL DEFAULT 0,
			overall REAL NOT NULL DEFAULT 0,
			summary TEXT NOT NULL DEFAULT '{}'
		)`,

		// Repetitions table - scored and rejected attempts of a session
		`CREATE TABLE IF NOT EXISTS repetitions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			class TEXT NOT NULL CHECK(class IN ('full', 'partial', 'rejected')),
			knee_score REAL NOT NULL DEFAULT 0,
			back_score REAL NOT NULL DEFAULT 0,
			symmetry_score REAL NOT NULL DEFAULT 0,
			depth_score REAL NOT NULL DEFAULT 0,
			total INTEGER NOT NULL DEFAULT 0,
			down_ms INTEGER NOT NULL DEFAULT 0,
			up_ms INTEGER NOT NULL DEFAULT 0,
			knee_angle REAL,
			min_backward_lean REAL NOT NULL DEFAULT 0,
			max_forward_lean REAL NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_repetitions_session_id ON repetitions(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
