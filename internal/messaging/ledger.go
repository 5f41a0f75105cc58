package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/chatcommerce/internal/events"
	"github.com/wolfman30/chatcommerce/internal/observability/metrics"
	"github.com/wolfman30/chatcommerce/pkg/logging"
)

// StatusUpdate is one delivery-status entry from a provider callback.
type StatusUpdate struct {
	ProviderMessageID string
	Status            Status
	Timestamp         time.Time
	RecipientPhone    string
	ErrorCode         string
	ErrorMessage      string
}

// TransitionResult describes what happened to one status update.
type TransitionResult string

const (
	TransitionApplied TransitionResult = "applied"
	TransitionIgnored TransitionResult = "ignored"
	TransitionUnknown TransitionResult = "unknown"
)

// LedgerReport tallies one Apply call.
type LedgerReport struct {
	Applied int
	Ignored int
	Unknown int
	Failed  int
}

// transitions holds the guarded update per target status. A row only moves
// forward along queued -> sent -> delivered -> read; failed is reachable from
// any state before delivered.
var transitions = map[Status]struct {
	query   string
	counter string
}{
	StatusSent: {
		query: `UPDATE messages SET status = 'sent', sent_at = $2
			WHERE provider_message_id = $1 AND direction = 'outbound' AND status = 'queued'
			RETURNING owner_id, COALESCE(campaign_id::text, '')`,
	},
	StatusDelivered: {
		query: `UPDATE messages SET status = 'delivered', delivered_at = $2
			WHERE provider_message_id = $1 AND direction = 'outbound' AND status IN ('queued', 'sent')
			RETURNING owner_id, COALESCE(campaign_id::text, '')`,
		counter: `UPDATE campaigns SET delivered_count = delivered_count + 1 WHERE id = $1`,
	},
	StatusRead: {
		query: `UPDATE messages SET status = 'read', read_at = $2
			WHERE provider_message_id = $1 AND direction = 'outbound' AND status IN ('queued', 'sent', 'delivered')
			RETURNING owner_id, COALESCE(campaign_id::text, '')`,
		counter: `UPDATE campaigns SET read_count = read_count + 1 WHERE id = $1`,
	},
	StatusFailed: {
		query: `UPDATE messages SET status = 'failed', failed_at = $2, error_code = $3, error_message = $4
			WHERE provider_message_id = $1 AND direction = 'outbound' AND status IN ('queued', 'sent')
			RETURNING owner_id, COALESCE(campaign_id::text, '')`,
		counter: `UPDATE campaigns SET failed_count = failed_count + 1 WHERE id = $1`,
	},
}

type ledgerStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Ledger applies delivery status callbacks to outbound messages.
type Ledger struct {
	store   ledgerStore
	logger  *logging.Logger
	metrics *metrics.CommerceMetrics
}

func NewLedger(store *Store, logger *logging.Logger, m *metrics.CommerceMetrics) *Ledger {
	if store == nil {
		panic("messaging: store required")
	}
	return newLedger(store, logger, m)
}

func newLedger(store ledgerStore, logger *logging.Logger, m *metrics.CommerceMetrics) *Ledger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Ledger{store: store, logger: logger, metrics: m}
}

// Apply processes every update independently. A failing update does not stop
// the rest; the joined error is returned after all updates were attempted.
func (l *Ledger) Apply(ctx context.Context, updates []StatusUpdate) (LedgerReport, error) {
	var report LedgerReport
	var errs []error
	for _, update := range updates {
		result, err := l.applyOne(ctx, update)
		if err != nil {
			report.Failed++
			l.metrics.ObserveStatusTransition(string(update.Status), "error")
			l.logger.Error("status update failed", "error", err, "provider_message_id", update.ProviderMessageID, "status", update.Status)
			errs = append(errs, err)
			continue
		}
		l.metrics.ObserveStatusTransition(string(update.Status), string(result))
		switch result {
		case TransitionApplied:
			report.Applied++
		case TransitionIgnored:
			report.Ignored++
		case TransitionUnknown:
			report.Unknown++
			l.logger.Warn("status update for unknown message", "provider_message_id", update.ProviderMessageID, "status", update.Status)
		}
	}
	return report, errors.Join(errs...)
}

func (l *Ledger) applyOne(ctx context.Context, update StatusUpdate) (TransitionResult, error) {
	transition, ok := transitions[update.Status]
	if !ok || update.ProviderMessageID == "" {
		l.logger.Debug("ignoring unsupported status", "status", update.Status, "provider_message_id", update.ProviderMessageID)
		return TransitionIgnored, nil
	}
	ts := update.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("messaging: begin status tx: %w", err)
	}
	defer tx.Rollback(ctx)

	args := []any{update.ProviderMessageID, ts}
	if update.Status == StatusFailed {
		args = append(args, nullIfEmpty(update.ErrorCode), nullIfEmpty(update.ErrorMessage))
	}

	var ownerID, campaignID string
	err = tx.QueryRow(ctx, transition.query, args...).Scan(&ownerID, &campaignID)
	if errors.Is(err, pgx.ErrNoRows) {
		var current string
		lookup := `SELECT status FROM messages WHERE provider_message_id = $1 AND direction = 'outbound'`
		if err := tx.QueryRow(ctx, lookup, update.ProviderMessageID).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return TransitionUnknown, nil
			}
			return "", fmt.Errorf("messaging: lookup message status: %w", err)
		}
		l.logger.Debug("status transition not allowed", "provider_message_id", update.ProviderMessageID, "from", current, "to", update.Status)
		return TransitionIgnored, nil
	}
	if err != nil {
		return "", fmt.Errorf("messaging: apply %s: %w", update.Status, err)
	}

	if campaignID != "" && transition.counter != "" {
		if _, err := tx.Exec(ctx, transition.counter, campaignID); err != nil {
			return "", fmt.Errorf("messaging: increment campaign %s counter: %w", update.Status, err)
		}
	}

	if _, err := events.AppendCanonicalEvent(ctx, tx, "message:"+update.ProviderMessageID, update.ProviderMessageID, events.MessageStatusUpdatedV1{
		ProviderMessageID: update.ProviderMessageID,
		OwnerID:           ownerID,
		Status:            string(update.Status),
		CampaignID:        campaignID,
		ErrorCode:         update.ErrorCode,
		OccurredAt:        ts,
	}); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("messaging: commit status: %w", err)
	}
	return TransitionApplied, nil
}
