package replies

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/chatcommerce/internal/billing"
	"github.com/wolfman30/chatcommerce/internal/messaging"
	"github.com/wolfman30/chatcommerce/internal/messaging/whatsappclient"
	"github.com/wolfman30/chatcommerce/internal/observability/metrics"
	"github.com/wolfman30/chatcommerce/pkg/logging"
)

// Message kinds recorded for outbound rows.
const (
	KindReply         = "text"
	KindOrderTemplate = "template"
	KindReprompt      = "reprompt"
	KindOrderSummary  = "order_summary"
	KindOutOfStock    = "out_of_stock"
)

// Sender is the outbound WhatsApp channel.
type Sender interface {
	SendTextMessage(ctx context.Context, phoneNumberID, to, body string) (whatsappclient.SendResult, error)
	SendOrderDetailsTemplate(ctx context.Context, phoneNumberID, to string) (whatsappclient.SendResult, error)
}

type outboundStore interface {
	InsertOutbound(ctx context.Context, q messaging.Querier, rec messaging.MessageRecord) (uuid.UUID, error)
}

type usageCounter interface {
	Increment(ctx context.Context, q billing.Querier, ownerID, metric string, now time.Time) error
}

// Target addresses one customer of one business.
type Target struct {
	OwnerID       string
	PhoneNumberID string
	BusinessPhone string
	CustomerID    uuid.UUID
	CustomerPhone string
}

// Dispatcher sends outbound messages and records them. A failed send is logged
// and recorded as failed; it is never retried here.
type Dispatcher struct {
	sender   Sender
	messages outboundStore
	usage    usageCounter
	logger   *logging.Logger
	metrics  *metrics.CommerceMetrics
	maxDelay time.Duration
	now      func() time.Time
}

func NewDispatcher(sender Sender, messages outboundStore, usage usageCounter, maxDelay time.Duration, logger *logging.Logger, m *metrics.CommerceMetrics) *Dispatcher {
	if sender == nil {
		panic("replies: sender required")
	}
	if messages == nil {
		panic("replies: message store required")
	}
	if usage == nil {
		panic("replies: usage counter required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{sender: sender, messages: messages, usage: usage, logger: logger, metrics: m, maxDelay: maxDelay, now: time.Now}
}

// DeliverReply waits out the typing delay, sends the reply, records it and
// counts one ai_replies usage. It reports whether the send succeeded.
func (d *Dispatcher) DeliverReply(ctx context.Context, t Target, reply Reply, typingDelay time.Duration) bool {
	if err := d.wait(ctx, typingDelay); err != nil {
		d.logger.Info("reply abandoned during typing delay", "owner_id", t.OwnerID, "customer_id", t.CustomerID.String())
		return false
	}
	if !d.SendText(ctx, t, KindReply, reply.Text) {
		return false
	}
	d.metrics.ObserveReply(string(reply.Stage))
	if err := d.usage.Increment(ctx, nil, t.OwnerID, billing.MetricAIReplies, d.now()); err != nil {
		d.logger.Error("failed to count ai reply", "error", err, "owner_id", t.OwnerID)
	}
	return true
}

// SendText sends body and appends it to the customer's history.
func (d *Dispatcher) SendText(ctx context.Context, t Target, kind, body string) bool {
	res, err := d.sender.SendTextMessage(ctx, t.PhoneNumberID, t.CustomerPhone, body)
	d.metrics.ObserveSend(kind, err)
	d.record(ctx, t, kind, body, res, err)
	return err == nil
}

// SendOrderTemplate asks the customer for their order details.
func (d *Dispatcher) SendOrderTemplate(ctx context.Context, t Target) bool {
	res, err := d.sender.SendOrderDetailsTemplate(ctx, t.PhoneNumberID, t.CustomerPhone)
	d.metrics.ObserveSend(KindOrderTemplate, err)
	d.record(ctx, t, KindOrderTemplate, "", res, err)
	return err == nil
}

func (d *Dispatcher) record(ctx context.Context, t Target, kind, body string, res whatsappclient.SendResult, sendErr error) {
	customerID := t.CustomerID
	rec := messaging.MessageRecord{
		OwnerID:           t.OwnerID,
		CustomerID:        &customerID,
		Direction:         messaging.DirectionOutbound,
		Kind:              kind,
		From:              t.BusinessPhone,
		To:                t.CustomerPhone,
		Body:              body,
		ProviderMessageID: res.ProviderMessageID,
		Status:            messaging.StatusQueued,
		OccurredAt:        d.now().UTC(),
	}
	if sendErr != nil {
		d.logger.Error("outbound send failed", "error", sendErr, "owner_id", t.OwnerID, "kind", kind)
		rec.Status = messaging.StatusFailed
		rec.ErrorMessage = sendErr.Error()
	}
	if _, err := d.messages.InsertOutbound(ctx, nil, rec); err != nil {
		d.logger.Error("failed to record outbound message", "error", err, "owner_id", t.OwnerID, "provider_message_id", res.ProviderMessageID)
	}
}

func (d *Dispatcher) wait(ctx context.Context, delay time.Duration) error {
	if d.maxDelay > 0 && delay > d.maxDelay {
		delay = d.maxDelay
	}
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
