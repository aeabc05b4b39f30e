package store

import (
	"database/sql"
	"fmt"

	"github.com/ayusman/signify/internal/labels"
)

// Label is one row of the label table.
type Label struct {
	ClassIndex int    `json:"class_index"`
	Label      string `json:"label"`
}

// LabelRepository stores the class index to label mapping.
type LabelRepository struct {
	db *sql.DB
}

// Labels returns the label repository for this store.
func (s *Store) Labels() *LabelRepository {
	return &LabelRepository{db: s.db}
}

// Replace swaps the whole table for t in one transaction.
func (r *LabelRepository) Replace(t labels.Table) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM labels`); err != nil {
		return fmt.Errorf("clear labels: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO labels (class_index, label) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, idx := range t.Indices() {
		if _, err := stmt.Exec(idx, t[idx]); err != nil {
			return fmt.Errorf("insert label %d: %w", idx, err)
		}
	}

	return tx.Commit()
}

// List returns all labels ordered by class index.
func (r *LabelRepository) List() ([]Label, error) {
	rows, err := r.db.Query(`SELECT class_index, label FROM labels ORDER BY class_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Label
	for rows.Next() {
		var l Label
		if err := rows.Scan(&l.ClassIndex, &l.Label); err != nil {
			return nil, err
		}
		out = append(out, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// Table returns the stored labels as a lookup table. It returns ErrNotFound
// when no labels have been stored.
func (r *LabelRepository) Table() (labels.Table, error) {
	list, err := r.List()
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}

	t := make(labels.Table, len(list))
	for _, l := range list {
		t[l.ClassIndex] = l.Label
	}
	return t, nil
}
