// Package billing tracks subscription state and metered usage per business.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoSubscription is returned when a business has never subscribed.
var ErrNoSubscription = errors.New("billing: subscription not found")

type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Limit caps a metric per period. Zero means unlimited.
type Limit struct {
	Daily   int64 `json:"daily,omitempty"`
	Monthly int64 `json:"monthly,omitempty"`
}

// Subscription is the plan state for one business.
type Subscription struct {
	OwnerID          string
	Plan             string
	Status           string
	CurrentPeriodEnd *time.Time
	Limits           map[string]Limit
}

// Operational reports whether the subscription allows automated activity at now.
func (s Subscription) Operational(now time.Time) bool {
	switch s.Status {
	case "active", "trialing":
	default:
		return false
	}
	return s.CurrentPeriodEnd == nil || now.Before(*s.CurrentPeriodEnd)
}

// LimitFor returns the configured limit for metric.
func (s Subscription) LimitFor(metric string) Limit {
	if s.Limits == nil {
		return Limit{}
	}
	return s.Limits[metric]
}

// SubscriptionStore reads subscriptions from Postgres.
type SubscriptionStore struct {
	db Querier
}

func NewSubscriptionStore(pool *pgxpool.Pool) *SubscriptionStore {
	if pool == nil {
		panic("billing: pgx pool required")
	}
	return &SubscriptionStore{db: pool}
}

func newSubscriptionStoreWithExec(db Querier) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func (s *SubscriptionStore) Get(ctx context.Context, ownerID string) (Subscription, error) {
	query := `
		SELECT owner_id, plan, status, current_period_end, limits
		FROM subscriptions
		WHERE owner_id = $1
	`
	var sub Subscription
	var limits []byte
	if err := s.db.QueryRow(ctx, query, ownerID).Scan(&sub.OwnerID, &sub.Plan, &sub.Status, &sub.CurrentPeriodEnd, &limits); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, ErrNoSubscription
		}
		return Subscription{}, fmt.Errorf("billing: get subscription: %w", err)
	}
	if len(limits) > 0 {
		if err := json.Unmarshal(limits, &sub.Limits); err != nil {
			return Subscription{}, fmt.Errorf("billing: decode limits: %w", err)
		}
	}
	return sub, nil
}
