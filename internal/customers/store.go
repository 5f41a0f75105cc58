// Package customers is the conversation store: one row per (business, phone)
// holding the current conversation state and its typed context.
package customers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/chatcommerce/internal/leads"
)

// PgxPool is satisfied by pgxpool.Pool and pgxmock pools.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Execer is satisfied by pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Customer is a shopper talking to a business over WhatsApp.
type Customer struct {
	ID            uuid.UUID
	OwnerID       string
	Phone         string
	DisplayName   string
	Status        string
	Context       ConversationContext
	LastMessageAt time.Time
}

// State is the conversation state carried by the context.
func (c Customer) State() ConversationState {
	if c.Context == nil {
		return StateBrowsing
	}
	return c.Context.State()
}

// Store is the sole writer of conversation_state and conversation_context.
type Store struct {
	pool  PgxPool
	leads *leads.PostgresRepository
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		panic("customers: pgx pool required")
	}
	return &Store{pool: pool, leads: leads.NewPostgresRepository(pool)}
}

// Touch loads the customer for (owner, phone), creating it together with a lead
// on first contact, and records the message time. created reports a new row.
func (s *Store) Touch(ctx context.Context, ownerID, phone, displayName string, at time.Time) (Customer, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Customer{}, false, fmt.Errorf("customers: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO customers (owner_id, phone, display_name, last_message_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, phone) DO UPDATE
		SET last_message_at = EXCLUDED.last_message_at,
		    display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), customers.display_name),
		    updated_at = now()
		RETURNING id, display_name, status, conversation_state, conversation_context, (xmax = 0) AS inserted
	`
	c := Customer{OwnerID: ownerID, Phone: phone, LastMessageAt: at}
	var state string
	var raw []byte
	var inserted bool
	if err := tx.QueryRow(ctx, query, ownerID, phone, displayName, at).Scan(&c.ID, &c.DisplayName, &c.Status, &state, &raw, &inserted); err != nil {
		return Customer{}, false, fmt.Errorf("customers: upsert: %w", err)
	}
	c.Context, err = DecodeContext(ConversationState(state), raw)
	if err != nil {
		return Customer{}, false, err
	}

	if inserted {
		if _, err := s.leads.WithQuerier(tx).Create(ctx, &leads.CreateLeadRequest{
			OwnerID:    ownerID,
			CustomerID: c.ID.String(),
			Name:       displayName,
			Phone:      phone,
			Source:     "whatsapp",
		}); err != nil {
			return Customer{}, false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Customer{}, false, fmt.Errorf("customers: commit: %w", err)
	}
	return c, inserted, nil
}

// SaveConversation persists a state transition. Pass a transaction as q to
// commit the transition with other writes.
func (s *Store) SaveConversation(ctx context.Context, q Execer, customerID uuid.UUID, next ConversationContext) error {
	if q == nil {
		q = s.pool
	}
	state, raw, err := EncodeContext(next)
	if err != nil {
		return err
	}
	query := `
		UPDATE customers
		SET conversation_state = $2, conversation_context = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := q.Exec(ctx, query, customerID, string(state), raw); err != nil {
		return fmt.Errorf("customers: save conversation: %w", err)
	}
	return nil
}
