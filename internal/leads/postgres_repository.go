package leads

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository initializes a repo backed by a pool or transaction.
func NewPostgresRepository(db Querier) *PostgresRepository {
	if db == nil {
		panic("leads: pgx querier required")
	}
	return &PostgresRepository{db: db}
}

// WithQuerier returns a repository bound to q, typically an open transaction.
func (r *PostgresRepository) WithQuerier(q Querier) *PostgresRepository {
	if q == nil {
		return r
	}
	return &PostgresRepository{db: q}
}

// Create inserts a new lead. A lead already open for the same phone is kept.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	source := req.Source
	if source == "" {
		source = "whatsapp"
	}
	query := `
		INSERT INTO leads (owner_id, customer_id, name, phone, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id, phone) DO UPDATE SET name = leads.name
		RETURNING id, status, created_at
	`
	lead := &Lead{
		OwnerID:    req.OwnerID,
		CustomerID: req.CustomerID,
		Name:       req.Name,
		Phone:      req.Phone,
		Source:     source,
	}
	var createdAt time.Time
	if err := r.db.QueryRow(ctx, query, req.OwnerID, req.CustomerID, req.Name, req.Phone, source).Scan(&lead.ID, &lead.Status, &createdAt); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}
	lead.CreatedAt = createdAt
	return lead, nil
}
