package events

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// FallbackEventIDPrefix marks event ids generated locally when a payload carries
// no provider id. Provider message ids never start with it.
const FallbackEventIDPrefix = "local-"

// Outcome reports what Begin decided for an event id.
type Outcome int

const (
	// OutcomeFresh means a new log entry was written and the event must be processed.
	OutcomeFresh Outcome = iota
	// OutcomeReplay means an earlier attempt logged the event but never finished.
	OutcomeReplay
	// OutcomeDuplicate means the event was already fully processed.
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFresh:
		return "fresh"
	case OutcomeReplay:
		return "replay"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// WebhookLogEntry is the deduplication anchor for one provider event.
type WebhookLogEntry struct {
	EventID     string
	Source      string
	RawPayload  []byte
	Processed   bool
	ProcessedAt *time.Time
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WebhookLogStore records webhook events and whether processing completed.
type WebhookLogStore struct {
	db rowQuerier
}

func NewWebhookLogStore(pool *pgxpool.Pool) *WebhookLogStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &WebhookLogStore{db: pool}
}

func newWebhookLogStoreWithExec(exec rowQuerier) *WebhookLogStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &WebhookLogStore{db: exec}
}

// NewFallbackEventID returns a locally generated id that is never deduplicated.
func NewFallbackEventID(now time.Time) string {
	return FallbackEventIDPrefix + ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

// IsFallbackEventID reports whether id was produced by NewFallbackEventID.
func IsFallbackEventID(id string) bool {
	return strings.HasPrefix(id, FallbackEventIDPrefix)
}

// Begin writes the log entry with processed=false unless one already exists.
// Existing entries resolve to OutcomeDuplicate when processed and OutcomeReplay
// otherwise. Fallback ids are always fresh.
func (s *WebhookLogStore) Begin(ctx context.Context, entry WebhookLogEntry) (Outcome, error) {
	if strings.TrimSpace(entry.EventID) == "" {
		return OutcomeFresh, fmt.Errorf("events: webhook log event id required")
	}
	query := `
		INSERT INTO webhook_logs (event_id, source, raw_payload, processed)
		VALUES ($1, $2, $3, false)
		ON CONFLICT (event_id) DO NOTHING
	`
	ct, err := s.db.Exec(ctx, query, entry.EventID, entry.Source, entry.RawPayload)
	if err != nil {
		return OutcomeFresh, fmt.Errorf("events: insert webhook log: %w", err)
	}
	if ct.RowsAffected() > 0 || IsFallbackEventID(entry.EventID) {
		return OutcomeFresh, nil
	}

	var processed bool
	if err := s.db.QueryRow(ctx, `SELECT processed FROM webhook_logs WHERE event_id = $1`, entry.EventID).Scan(&processed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Removed between the insert and the lookup; treat as new work.
			return OutcomeFresh, nil
		}
		return OutcomeFresh, fmt.Errorf("events: read webhook log: %w", err)
	}
	if processed {
		return OutcomeDuplicate, nil
	}
	return OutcomeReplay, nil
}

// MarkProcessed flags the entry as completed.
func (s *WebhookLogStore) MarkProcessed(ctx context.Context, eventID string) error {
	query := `
		UPDATE webhook_logs
		SET processed = true, processed_at = $2
		WHERE event_id = $1
	`
	if _, err := s.db.Exec(ctx, query, eventID, nowFunc().UTC()); err != nil {
		return fmt.Errorf("events: mark webhook processed: %w", err)
	}
	return nil
}
