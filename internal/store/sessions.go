package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Session is a stored detection session.
type Session struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	Admitted  int        `json:"admitted"`
}

// SessionRepository records detection sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new running session. A zero StartedAt is set to now.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, started_at, admitted) VALUES (?, ?, ?)`,
		sess.ID, sess.StartedAt, sess.Admitted,
	)
	return err
}

// Stop marks the session stopped and records how many frames it admitted.
func (r *SessionRepository) Stop(id string, admitted int) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET stopped_at = ?, admitted = ? WHERE id = ?`,
		time.Now(), admitted, id,
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

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess := &Session{}
	var stopped sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, started_at, stopped_at, admitted FROM sessions WHERE id = ?`,
		id,
	).Scan(&sess.ID, &sess.StartedAt, &stopped, &sess.Admitted)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if stopped.Valid {
		sess.StoppedAt = &stopped.Time
	}
	return sess, nil
}

// List returns up to limit sessions, newest first. A limit of 0 or less
// returns all of them.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, started_at, stopped_at, admitted
		 FROM sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess := &Session{}
		var stopped sql.NullTime

		if err := rows.Scan(&sess.ID, &sess.StartedAt, &stopped, &sess.Admitted); err != nil {
			return nil, err
		}
		if stopped.Valid {
			sess.StoppedAt = &stopped.Time
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}
