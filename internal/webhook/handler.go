// Package webhook receives WhatsApp Cloud API callbacks: the subscription
// handshake, inbound customer messages and delivery status updates.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/chatcommerce/internal/business"
	"github.com/wolfman30/chatcommerce/internal/conversation"
	"github.com/wolfman30/chatcommerce/internal/customers"
	"github.com/wolfman30/chatcommerce/internal/events"
	"github.com/wolfman30/chatcommerce/internal/gating"
	"github.com/wolfman30/chatcommerce/internal/messaging"
	"github.com/wolfman30/chatcommerce/internal/observability/metrics"
	"github.com/wolfman30/chatcommerce/internal/replies"
	"github.com/wolfman30/chatcommerce/pkg/logging"
)

var tracer = otel.Tracer("chatcommerce.internal.webhook")

const (
	// FallbackVerifyToken is accepted by the handshake alongside the configured token.
	FallbackVerifyToken = "chatcommerce-webhook-verify"
	// OnboardingAck answers events for the platform's onboarding number.
	OnboardingAck = "EVENT_RECEIVED"

	sourceWhatsApp      = "whatsapp"
	maxBodyBytes        = 1 << 20
	defaultProcessLimit = 2 * time.Minute
)

type eventLog interface {
	Begin(ctx context.Context, entry events.WebhookLogEntry) (events.Outcome, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

type statusLedger interface {
	Apply(ctx context.Context, updates []messaging.StatusUpdate) (messaging.LedgerReport, error)
}

type businessDirectory interface {
	OwnerForPhoneNumber(ctx context.Context, phoneNumberID string) (string, error)
	Get(ctx context.Context, ownerID string) (*business.Settings, error)
}

type messageStore interface {
	RecordInbound(ctx context.Context, rec messaging.MessageRecord) (uuid.UUID, bool, error)
	AttachCustomer(ctx context.Context, messageID, customerID uuid.UUID) error
}

type customerStore interface {
	Touch(ctx context.Context, ownerID, phone, displayName string, at time.Time) (customers.Customer, bool, error)
}

type gate interface {
	Evaluate(ctx context.Context, settings *business.Settings) (gating.Decision, error)
}

type conversationEngine interface {
	Handle(ctx context.Context, turn conversation.Turn) (conversation.Outcome, error)
}

// Archiver stores raw verified payloads. Failures never affect processing.
type Archiver interface {
	Archive(ctx context.Context, kind, eventID string, body []byte) error
}

// Config holds the webhook secrets and limits.
type Config struct {
	AppSecret               string
	VerifyToken             string
	OnboardingPhoneNumberID string
	// ProcessingTimeout bounds the work done for one event after the
	// provider's request is detached.
	ProcessingTimeout time.Duration
}

// Deps are the collaborators of the webhook pipeline.
type Deps struct {
	Log       eventLog
	Ledger    statusLedger
	Business  businessDirectory
	Messages  messageStore
	Customers customerStore
	Locker    customers.Locker
	Gate      gate
	Engine    conversationEngine
	Archiver  Archiver
}

// Handler serves GET (handshake) and POST (events) on the webhook endpoint.
type Handler struct {
	cfg      Config
	deps     Deps
	logger   *logging.Logger
	metrics  *metrics.WebhookMetrics
	shutdown context.Context
	now      func() time.Time
}

// NewHandler wires the webhook. shutdown cancels in-flight processing when the
// process stops; it may be nil.
func NewHandler(cfg Config, deps Deps, shutdown context.Context, logger *logging.Logger, m *metrics.WebhookMetrics) *Handler {
	switch {
	case deps.Log == nil:
		panic("webhook: event log required")
	case deps.Ledger == nil:
		panic("webhook: status ledger required")
	case deps.Business == nil:
		panic("webhook: business directory required")
	case deps.Messages == nil:
		panic("webhook: message store required")
	case deps.Customers == nil:
		panic("webhook: customer store required")
	case deps.Locker == nil:
		panic("webhook: customer locker required")
	case deps.Gate == nil:
		panic("webhook: gating chain required")
	case deps.Engine == nil:
		panic("webhook: conversation engine required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if shutdown == nil {
		shutdown = context.Background()
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = defaultProcessLimit
	}
	return &Handler{
		cfg:      cfg,
		deps:     deps,
		logger:   logger,
		metrics:  m,
		shutdown: shutdown,
		now:      time.Now,
	}
}

// Verify answers the subscription handshake.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	tokenOK := token != "" && (token == h.cfg.VerifyToken || token == FallbackVerifyToken)
	if mode != "subscribe" || !tokenOK {
		h.logger.Warn("webhook verification rejected", "mode", mode)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// Receive handles one POSTed event.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	ctx, span := tracer.Start(r.Context(), "webhook.receive")
	defer span.End()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		span.RecordError(err)
		h.metrics.ObserveEvent(string(KindUnknown), "unreadable")
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if !VerifySignature(h.cfg.AppSecret, body, r.Header.Get(SignatureHeader)) {
		h.logger.Warn("webhook signature rejected", "remote_addr", r.RemoteAddr)
		h.metrics.ObserveEvent(string(KindUnknown), "rejected")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	classified, err := Classify(body, h.now())
	span.SetAttributes(attribute.String("webhook.kind", string(classified.Kind)))
	if err != nil {
		h.logger.Warn("webhook payload not parseable", "error", err)
		h.metrics.ObserveEvent(string(KindUnknown), "malformed")
		writeOK(w)
		return
	}
	if classified.Kind == KindUnknown {
		h.logger.Info("webhook payload ignored")
		h.metrics.ObserveEvent(string(KindUnknown), "ignored")
		writeOK(w)
		return
	}
	if h.cfg.OnboardingPhoneNumberID != "" && classified.PhoneNumberID == h.cfg.OnboardingPhoneNumberID {
		h.metrics.ObserveEvent(string(classified.Kind), "onboarding")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(OnboardingAck))
		return
	}

	procCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.ProcessingTimeout)
	defer cancel()
	stop := context.AfterFunc(h.shutdown, cancel)
	defer stop()

	var outcome string
	switch classified.Kind {
	case KindStatus:
		outcome, err = h.processStatuses(procCtx, span, classified, body)
	case KindMessage:
		outcome, err = h.processMessage(procCtx, span, classified, body)
	}
	h.metrics.ObserveLatency(string(classified.Kind), h.now().Sub(start).Seconds())
	if err != nil {
		span.RecordError(err)
		h.metrics.ObserveEvent(string(classified.Kind), "error")
		h.logger.Error("webhook processing failed", "error", err, "kind", classified.Kind)
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveEvent(string(classified.Kind), outcome)
	writeOK(w)
}

func (h *Handler) processStatuses(ctx context.Context, span trace.Span, c Classified, body []byte) (string, error) {
	eventID := StatusEventID(c.Statuses, h.now())
	span.SetAttributes(attribute.String("webhook.event_id", eventID))
	h.archive(ctx, c.Kind, eventID, body)

	logOutcome, err := h.deps.Log.Begin(ctx, events.WebhookLogEntry{EventID: eventID, Source: sourceWhatsApp, RawPayload: body})
	if err != nil {
		return "", err
	}
	if logOutcome == events.OutcomeDuplicate {
		return "duplicate", nil
	}
	report, err := h.deps.Ledger.Apply(ctx, c.Statuses)
	if err != nil {
		return "", fmt.Errorf("webhook: apply statuses: %w", err)
	}
	h.logger.Info("status updates applied", "event_id", eventID, "applied", report.Applied, "ignored", report.Ignored, "unknown", report.Unknown)
	if err := h.deps.Log.MarkProcessed(ctx, eventID); err != nil {
		return "", err
	}
	return "handled", nil
}

func (h *Handler) processMessage(ctx context.Context, span trace.Span, c Classified, body []byte) (string, error) {
	msg := c.Message
	eventID := msg.ProviderMessageID
	if eventID == "" {
		eventID = events.NewFallbackEventID(h.now())
	}
	span.SetAttributes(attribute.String("webhook.event_id", eventID))
	h.archive(ctx, c.Kind, eventID, body)

	ownerID, err := h.deps.Business.OwnerForPhoneNumber(ctx, msg.PhoneNumberID)
	if errors.Is(err, business.ErrUnknownPhoneNumber) {
		h.logger.Warn("message for unknown business number", "phone_number_id", msg.PhoneNumberID)
		return "unknown_business", nil
	}
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("owner.id", ownerID))
	logger := h.logger.With("owner_id", ownerID, "event_id", eventID)

	unlock, err := h.deps.Locker.Lock(ctx, ownerID, msg.From)
	if err != nil {
		return "", fmt.Errorf("webhook: lock customer: %w", err)
	}
	defer unlock()

	logOutcome, err := h.deps.Log.Begin(ctx, events.WebhookLogEntry{EventID: eventID, Source: sourceWhatsApp, RawPayload: body})
	if err != nil {
		return "", err
	}
	if logOutcome == events.OutcomeDuplicate {
		logger.Info("duplicate message event skipped")
		return "duplicate", nil
	}

	messageID, _, err := h.deps.Messages.RecordInbound(ctx, messaging.MessageRecord{
		OwnerID:           ownerID,
		Kind:              msg.Kind,
		From:              msg.From,
		To:                msg.BusinessPhone,
		Body:              msg.Text,
		ProviderMessageID: msg.ProviderMessageID,
		OccurredAt:        msg.Timestamp,
	})
	if err != nil {
		return "", err
	}

	settings, err := h.deps.Business.Get(ctx, ownerID)
	if err != nil {
		return "", err
	}
	decision, err := h.deps.Gate.Evaluate(ctx, settings)
	if err != nil {
		return "", err
	}
	if !decision.Allowed {
		logger.Info("message gated", "gate", decision.StoppedBy)
		if err := h.deps.Log.MarkProcessed(ctx, eventID); err != nil {
			return "", err
		}
		return "gated", nil
	}

	customer, created, err := h.deps.Customers.Touch(ctx, ownerID, msg.From, msg.ContactName, msg.Timestamp)
	if err != nil {
		return "", err
	}
	if created {
		logger.Info("customer created", "customer_id", customer.ID)
	}
	if err := h.deps.Messages.AttachCustomer(ctx, messageID, customer.ID); err != nil {
		return "", err
	}

	turnOutcome, err := h.deps.Engine.Handle(ctx, conversation.Turn{
		Target: replies.Target{
			OwnerID:       ownerID,
			PhoneNumberID: msg.PhoneNumberID,
			BusinessPhone: msg.BusinessPhone,
			CustomerID:    customer.ID,
			CustomerPhone: msg.From,
		},
		Customer: customer,
		Settings: settings,
		Text:     msg.Text,
	})
	if err != nil {
		return "", err
	}
	logger.Info("message handled", "outcome", turnOutcome, "customer_id", customer.ID)

	if err := h.deps.Log.MarkProcessed(ctx, eventID); err != nil {
		return "", err
	}
	return "handled", nil
}

func (h *Handler) archive(ctx context.Context, kind Kind, eventID string, body []byte) {
	if h.deps.Archiver == nil {
		return
	}
	if err := h.deps.Archiver.Archive(ctx, string(kind), eventID, body); err != nil {
		h.logger.Warn("payload archive failed", "error", err, "event_id", eventID)
	}
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}
