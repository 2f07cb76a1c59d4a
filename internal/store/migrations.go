package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Profiles table - one row per saved calibration profile
		`CREATE TABLE IF NOT EXISTS profiles (
			name TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			rms_error REAL NOT NULL,
			aoi_vertices INTEGER NOT NULL,
			path TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Sessions table - one row per recorded session
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL UNIQUE,
			mode TEXT NOT NULL,
			profile_name TEXT NOT NULL,
			calibration_hash TEXT NOT NULL,
			dir TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			total_duration_s REAL NOT NULL DEFAULT 0,
			n_out_glances INTEGER NOT NULL DEFAULT 0,
			debrief TEXT
		)`,

		// Settings table - application state as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_profile_name ON sessions(profile_name)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
