package store

import (
	"database/sql"
	"errors"
	"time"
)

// Profile is the catalog entry for a saved calibration.
type Profile struct {
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint"`
	RMSError    float64   `json:"rms_error"`
	AOIVertices int       `json:"aoi_vertices"`
	Path        string    `json:"path"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileRepository provides CRUD operations for profiles.
type ProfileRepository struct {
	db *sql.DB
}

// Profiles returns the profile repository for this store.
func (s *Store) Profiles() *ProfileRepository {
	return &ProfileRepository{db: s.db}
}

// Upsert inserts p or updates the row with the same name.
func (r *ProfileRepository) Upsert(p *Profile) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO profiles (name, fingerprint, rms_error, aoi_vertices, path, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			rms_error = excluded.rms_error,
			aoi_vertices = excluded.aoi_vertices,
			path = excluded.path,
			updated_at = excluded.updated_at`,
		p.Name, p.Fingerprint, p.RMSError, p.AOIVertices, p.Path, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetByName retrieves a profile by its name.
func (r *ProfileRepository) GetByName(name string) (*Profile, error) {
	p := &Profile{}
	err := r.db.QueryRow(
		`SELECT name, fingerprint, rms_error, aoi_vertices, path, created_at, updated_at
		 FROM profiles WHERE name = ?`,
		name,
	).Scan(&p.Name, &p.Fingerprint, &p.RMSError, &p.AOIVertices, &p.Path, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// List retrieves all profiles ordered by name.
func (r *ProfileRepository) List() ([]*Profile, error) {
	rows, err := r.db.Query(
		`SELECT name, fingerprint, rms_error, aoi_vertices, path, created_at, updated_at
		 FROM profiles ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []*Profile{}
	for rows.Next() {
		p := &Profile{}
		if err := rows.Scan(&p.Name, &p.Fingerprint, &p.RMSError, &p.AOIVertices, &p.Path, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}

// Delete removes a profile from the catalog.
func (r *ProfileRepository) Delete(name string) error {
	result, err := r.db.Exec(`DELETE FROM profiles WHERE name = ?`, name)
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
