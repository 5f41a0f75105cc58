package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Metered usage names.
const (
	MetricAIReplies = "ai_replies"
	MetricOrders    = "orders"
)

// Period keys are computed in UTC.
func dailyKey(t time.Time) string   { return t.UTC().Format("2006-01-02") }
func monthlyKey(t time.Time) string { return t.UTC().Format("2006-01") }

// Usage holds the current counts for one metric.
type Usage struct {
	Daily   int64
	Monthly int64
}

// Exceeds reports whether usage has reached limit in either period.
func (u Usage) Exceeds(limit Limit) bool {
	if limit.Daily > 0 && u.Daily >= limit.Daily {
		return true
	}
	return limit.Monthly > 0 && u.Monthly >= limit.Monthly
}

// UsageStore keeps per-period counters. Increments are relative updates so
// concurrent writers never lose counts.
type UsageStore struct {
	db Querier
}

func NewUsageStore(pool *pgxpool.Pool) *UsageStore {
	if pool == nil {
		panic("billing: pgx pool required")
	}
	return &UsageStore{db: pool}
}

func newUsageStoreWithExec(db Querier) *UsageStore {
	return &UsageStore{db: db}
}

// Increment adds one to the daily and monthly counters of metric. Pass a
// transaction as q to make the increment part of a larger unit.
func (s *UsageStore) Increment(ctx context.Context, q Querier, ownerID, metric string, now time.Time) error {
	if q == nil {
		q = s.db
	}
	query := `
		INSERT INTO usage_counters (owner_id, metric, period, period_key, count)
		VALUES ($1, $2, 'daily', $3, 1), ($1, $2, 'monthly', $4, 1)
		ON CONFLICT (owner_id, metric, period, period_key)
		DO UPDATE SET count = usage_counters.count + 1, updated_at = now()
	`
	if _, err := q.Exec(ctx, query, ownerID, metric, dailyKey(now), monthlyKey(now)); err != nil {
		return fmt.Errorf("billing: increment %s: %w", metric, err)
	}
	return nil
}

// Current reads the counts for the periods containing now.
func (s *UsageStore) Current(ctx context.Context, ownerID, metric string, now time.Time) (Usage, error) {
	query := `
		SELECT period, count
		FROM usage_counters
		WHERE owner_id = $1 AND metric = $2
		  AND ((period = 'daily' AND period_key = $3) OR (period = 'monthly' AND period_key = $4))
	`
	rows, err := s.db.Query(ctx, query, ownerID, metric, dailyKey(now), monthlyKey(now))
	if err != nil {
		return Usage{}, fmt.Errorf("billing: read usage: %w", err)
	}
	defer rows.Close()

	var usage Usage
	for rows.Next() {
		var period string
		var count int64
		if err := rows.Scan(&period, &count); err != nil {
			return Usage{}, fmt.Errorf("billing: scan usage: %w", err)
		}
		switch period {
		case "daily":
			usage.Daily = count
		case "monthly":
			usage.Monthly = count
		}
	}
	return usage, rows.Err()
}
