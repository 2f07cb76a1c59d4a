package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is the catalog entry for a recorded session.
type Session struct {
	ID              string          `json:"id"`
	RunID           string          `json:"run_id"`
	Mode            string          `json:"mode"`
	ProfileName     string          `json:"profile_name"`
	CalibrationHash string          `json:"calibration_hash"`
	Dir             string          `json:"dir"`
	StartedAt       time.Time       `json:"started_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
	TotalDurationS  float64         `json:"total_duration_s"`
	OutGlances      int             `json:"n_out_glances"`
	Debrief         json.RawMessage `json:"debrief,omitempty"`
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new, still open session. An empty RunID is assigned a UUID.
func (r *SessionRepository) Create(s *Session) error {
	if s.RunID == "" {
		s.RunID = uuid.NewString()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, run_id, mode, profile_name, calibration_hash, dir, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.RunID, s.Mode, s.ProfileName, s.CalibrationHash, s.Dir, s.StartedAt.UTC(),
	)
	return err
}

// Finish records the end of a session and its debrief.
func (r *SessionRepository) Finish(id string, endedAt time.Time, totalS float64, glances int, debrief json.RawMessage) error {
	var payload any
	if debrief != nil {
		payload = string(debrief)
	}

	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, total_duration_s = ?, n_out_glances = ?, debrief = ?
		 WHERE id = ?`,
		endedAt.UTC(), totalS, glances, payload, id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

const sessionColumns = `id, run_id, mode, profile_name, calibration_hash, dir, started_at,
	ended_at, total_duration_s, n_out_glances, debrief`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	s := &Session{}
	var ended sql.NullTime
	var debrief sql.NullString

	err := row.Scan(&s.ID, &s.RunID, &s.Mode, &s.ProfileName, &s.CalibrationHash, &s.Dir, &s.StartedAt,
		&ended, &s.TotalDurationS, &s.OutGlances, &debrief)
	if err != nil {
		return nil, err
	}

	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	if debrief.Valid {
		s.Debrief = json.RawMessage(debrief.String)
	}
	return s, nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	s, err := scanSession(r.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List retrieves sessions newest first. limit <= 0 returns all.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Delete removes a session from the catalog. Files on disk are left alone.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
