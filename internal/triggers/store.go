package triggers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store persists triggers with keywords as a text[] column.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("triggers: sql db required")
	}
	return &Store{db: db}
}

// List returns the owner's triggers in the order they were saved.
func (s *Store) List(ctx context.Context, ownerID string) ([]Trigger, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, keywords, response
		FROM reply_triggers
		WHERE owner_id = $1
		ORDER BY position, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("triggers: list: %w", err)
	}
	defer rows.Close()

	var out []Trigger
	for rows.Next() {
		tr := Trigger{OwnerID: ownerID}
		if err := rows.Scan(&tr.ID, pq.Array(&tr.Keywords), &tr.Response); err != nil {
			return nil, fmt.Errorf("triggers: scan: %w", err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("triggers: iterate: %w", err)
	}
	return out, nil
}

// Replace swaps the owner's whole trigger set atomically, keeping submission
// order. Callers validate first.
func (s *Store) Replace(ctx context.Context, ownerID string, set []Trigger) ([]Trigger, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("triggers: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reply_triggers WHERE owner_id = $1`, ownerID); err != nil {
		return nil, fmt.Errorf("triggers: clear: %w", err)
	}
	saved := make([]Trigger, 0, len(set))
	for i, tr := range set {
		tr.ID = uuid.NewString()
		tr.OwnerID = ownerID
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reply_triggers (id, owner_id, keywords, response, position)
			VALUES ($1, $2, $3, $4, $5)`, tr.ID, ownerID, pq.Array(tr.Keywords), tr.Response, i); err != nil {
			return nil, fmt.Errorf("triggers: insert: %w", err)
		}
		saved = append(saved, tr)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("triggers: commit: %w", err)
	}
	return saved, nil
}
