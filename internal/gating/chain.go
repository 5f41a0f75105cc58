// Package gating decides whether an inbound message may enter the reply pipeline.
package gating

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/chatcommerce/internal/billing"
	"github.com/wolfman30/chatcommerce/internal/business"
	"github.com/wolfman30/chatcommerce/internal/observability/metrics"
	"github.com/wolfman30/chatcommerce/pkg/logging"
)

// Gate names the check that stopped a message.
type Gate string

const (
	GateNone          Gate = ""
	GateChatbot       Gate = "chatbot_disabled"
	GateSubscription  Gate = "subscription_inactive"
	GateUsageQuota    Gate = "usage_quota"
	GateBusinessHours Gate = "outside_business_hours"
)

// Decision is the chain result. Stopped messages are acknowledged but not handled.
type Decision struct {
	Allowed   bool
	StoppedBy Gate
}

type subscriptionReader interface {
	Get(ctx context.Context, ownerID string) (billing.Subscription, error)
}

type usageReader interface {
	Current(ctx context.Context, ownerID, metric string, now time.Time) (billing.Usage, error)
}

// Chain runs the checks in a fixed order and stops at the first failure.
type Chain struct {
	subscriptions subscriptionReader
	usage         usageReader
	logger        *logging.Logger
	metrics       *metrics.CommerceMetrics
	now           func() time.Time
}

func NewChain(subs subscriptionReader, usage usageReader, logger *logging.Logger, m *metrics.CommerceMetrics) *Chain {
	if subs == nil {
		panic("gating: subscription reader required")
	}
	if usage == nil {
		panic("gating: usage reader required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Chain{subscriptions: subs, usage: usage, logger: logger, metrics: m, now: time.Now}
}

// Evaluate returns an error only when a check could not be performed.
func (c *Chain) Evaluate(ctx context.Context, settings *business.Settings) (Decision, error) {
	if settings == nil {
		return Decision{}, errors.New("gating: settings required")
	}
	now := c.now()

	if !settings.ChatbotEnabled || !settings.AutoReplyEnabled {
		return c.stop(settings.OwnerID, GateChatbot), nil
	}

	sub, err := c.subscriptions.Get(ctx, settings.OwnerID)
	switch {
	case errors.Is(err, billing.ErrNoSubscription):
		return c.stop(settings.OwnerID, GateSubscription), nil
	case err != nil:
		return Decision{}, fmt.Errorf("gating: subscription: %w", err)
	}
	if !sub.Operational(now) {
		return c.stop(settings.OwnerID, GateSubscription), nil
	}

	if limit := sub.LimitFor(billing.MetricAIReplies); limit != (billing.Limit{}) {
		usage, err := c.usage.Current(ctx, settings.OwnerID, billing.MetricAIReplies, now)
		if err != nil {
			return Decision{}, fmt.Errorf("gating: usage: %w", err)
		}
		if usage.Exceeds(limit) {
			return c.stop(settings.OwnerID, GateUsageQuota), nil
		}
	}

	if !settings.IsOpenAt(now) {
		return c.stop(settings.OwnerID, GateBusinessHours), nil
	}
	return Decision{Allowed: true}, nil
}

func (c *Chain) stop(ownerID string, gate Gate) Decision {
	c.logger.Info("inbound message gated", "owner_id", ownerID, "gate", string(gate))
	c.metrics.ObserveGateStop(string(gate))
	return Decision{StoppedBy: gate}
}
