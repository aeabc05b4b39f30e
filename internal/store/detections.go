package store

import (
	"database/sql"
	"time"
)

// Detection is one stored recognition result.
type Detection struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Label      string    `json:"label"`
	ClassIndex int       `json:"class_index"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// DetectionRepository records detection results.
type DetectionRepository struct {
	db *sql.DB
}

// Detections returns the detection repository for this store.
func (s *Store) Detections() *DetectionRepository {
	return &DetectionRepository{db: s.db}
}

// Create inserts d and sets its ID. A zero CreatedAt is set to now.
func (r *DetectionRepository) Create(d *Detection) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO detections (session_id, label, class_index, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		d.SessionID, d.Label, d.ClassIndex, d.Confidence, d.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}

// ListBySession returns the detections of one session in the order they
// were made.
func (r *DetectionRepository) ListBySession(sessionID string) ([]*Detection, error) {
	return r.query(
		`SELECT id, session_id, label, class_index, confidence, created_at
		 FROM detections WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
}

// Recent returns up to limit detections across all sessions, newest first.
func (r *DetectionRepository) Recent(limit int) ([]*Detection, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.query(
		`SELECT id, session_id, label, class_index, confidence, created_at
		 FROM detections ORDER BY id DESC LIMIT ?`,
		limit,
	)
}

func (r *DetectionRepository) query(q string, args ...any) ([]*Detection, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Detection
	for rows.Next() {
		d := &Detection{}
		if err := rows.Scan(&d.ID, &d.SessionID, &d.Label, &d.ClassIndex, &d.Confidence, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
