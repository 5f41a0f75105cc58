package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/chatcommerce/internal/events"
)

type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool is satisfied by pgxpool.Pool and pgxmock pools.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Querier
}

// Direction of a stored message relative to the business.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Status is the delivery state of a message.
type Status string

const (
	StatusReceived  Status = "received"
	StatusQueued    Status = "queued"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// MessageRecord is one inbound or outbound message row.
type MessageRecord struct {
	ID                uuid.UUID
	OwnerID           string
	CustomerID        *uuid.UUID
	CampaignID        *uuid.UUID
	Direction         Direction
	Kind              string
	From              string
	To                string
	Body              string
	ProviderMessageID string
	Status            Status
	ErrorCode         string
	ErrorMessage      string
	OccurredAt        time.Time
}

// Store persists message history in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		panic("messaging: pgx pool required")
	}
	return &Store{pool: pool}
}

func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

// RecordInbound stores an inbound message and its message.received outbox event
// in one transaction. Redelivered provider ids return the existing row id with
// created=false.
func (s *Store) RecordInbound(ctx context.Context, rec MessageRecord) (uuid.UUID, bool, error) {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("messaging: begin inbound tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO messages (owner_id, customer_id, direction, kind, from_phone, to_phone, body, provider_message_id, status, received_at)
		VALUES ($1, $2, 'inbound', $3, $4, $5, $6, $7, 'received', $8)
		ON CONFLICT (provider_message_id) DO NOTHING
		RETURNING id
	`
	var id uuid.UUID
	err = tx.QueryRow(ctx, query, rec.OwnerID, rec.CustomerID, rec.Kind, rec.From, rec.To, rec.Body, nullIfEmpty(rec.ProviderMessageID), rec.OccurredAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := tx.QueryRow(ctx, `SELECT id FROM messages WHERE provider_message_id = $1`, rec.ProviderMessageID).Scan(&id); err != nil {
			return uuid.Nil, false, fmt.Errorf("messaging: load existing inbound: %w", err)
		}
		return id, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("messaging: insert inbound: %w", err)
	}

	if _, err := events.AppendCanonicalEvent(ctx, tx, "message:"+id.String(), rec.ProviderMessageID, events.MessageReceivedV1{
		MessageID:         id.String(),
		OwnerID:           rec.OwnerID,
		ProviderMessageID: rec.ProviderMessageID,
		FromPhone:         rec.From,
		Kind:              rec.Kind,
		Body:              rec.Body,
		ReceivedAt:        rec.OccurredAt,
	}); err != nil {
		return uuid.Nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, false, fmt.Errorf("messaging: commit inbound: %w", err)
	}
	return id, true, nil
}

// AttachCustomer links a stored message to the customer created after it.
func (s *Store) AttachCustomer(ctx context.Context, messageID, customerID uuid.UUID) error {
	query := `UPDATE messages SET customer_id = $2 WHERE id = $1 AND customer_id IS NULL`
	if _, err := s.pool.Exec(ctx, query, messageID, customerID); err != nil {
		return fmt.Errorf("messaging: attach customer: %w", err)
	}
	return nil
}

// InsertOutbound appends a message this system sent (or tried to send).
func (s *Store) InsertOutbound(ctx context.Context, q Querier, rec MessageRecord) (uuid.UUID, error) {
	if q == nil {
		q = s.pool
	}
	if rec.Status == "" {
		rec.Status = StatusQueued
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	query := `
		INSERT INTO messages (owner_id, customer_id, campaign_id, direction, kind, from_phone, to_phone, body, provider_message_id, status, error_message, failed_at, created_at)
		VALUES ($1, $2, $3, 'outbound', $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	var failedAt *time.Time
	if rec.Status == StatusFailed {
		failedAt = &rec.OccurredAt
	}
	var id uuid.UUID
	if err := q.QueryRow(ctx, query,
		rec.OwnerID, rec.CustomerID, rec.CampaignID, rec.Kind, rec.From, rec.To, rec.Body,
		nullIfEmpty(rec.ProviderMessageID), string(rec.Status), nullIfEmpty(rec.ErrorMessage), failedAt, rec.OccurredAt,
	).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("messaging: insert outbound: %w", err)
	}
	return id, nil
}

func nullIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
