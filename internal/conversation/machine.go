// Package conversation drives the per-customer commerce conversation and
// provides the LLM-backed extraction and generation collaborators.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/chatcommerce/internal/business"
	"github.com/wolfman30/chatcommerce/internal/customers"
	"github.com/wolfman30/chatcommerce/internal/orders"
	"github.com/wolfman30/chatcommerce/internal/replies"
	"github.com/wolfman30/chatcommerce/pkg/logging"
)

// Outcome describes what a turn did.
type Outcome string

const (
	OutcomeOrderCollectionStarted Outcome = "order_collection_started"
	OutcomeDetailsReprompted      Outcome = "order_details_reprompted"
	OutcomeOrderPlaced            Outcome = "order_placed"
	OutcomeOutOfStock             Outcome = "out_of_stock"
	OutcomeOrderFailed            Outcome = "order_failed"
	OutcomeReplied                Outcome = "replied"
	OutcomeNoReply                Outcome = "no_reply"
)

// OrderExtractor is the free-text order details collaborator. A nil result
// means nothing usable was found.
type OrderExtractor interface {
	ParseOrderDetails(ctx context.Context, text string) (*customers.OrderDetails, error)
}

type conversationStore interface {
	SaveConversation(ctx context.Context, q customers.Execer, customerID uuid.UUID, next customers.ConversationContext) error
}

type replyResolver interface {
	Resolve(ctx context.Context, settings *business.Settings, message string) (replies.Reply, bool)
}

type outbound interface {
	DeliverReply(ctx context.Context, t replies.Target, reply replies.Reply, typingDelay time.Duration) bool
	SendText(ctx context.Context, t replies.Target, kind, body string) bool
	SendOrderTemplate(ctx context.Context, t replies.Target) bool
}

type orderPlacer interface {
	Place(ctx context.Context, req orders.Request) (orders.Order, error)
}

// Turn is one inbound text from a customer. Callers hold the customer's lock.
type Turn struct {
	Target   replies.Target
	Customer customers.Customer
	Settings *business.Settings
	Text     string
}

type StateMachine struct {
	store             conversationStore
	extractor         OrderExtractor
	resolver          replyResolver
	outbound          outbound
	orders            orderPlacer
	extractionTimeout time.Duration
	logger            *logging.Logger
	now               func() time.Time
}

func NewStateMachine(store conversationStore, extractor OrderExtractor, resolver replyResolver, out outbound, placer orderPlacer, extractionTimeout time.Duration, logger *logging.Logger) *StateMachine {
	if store == nil {
		panic("conversation: conversation store required")
	}
	if extractor == nil {
		panic("conversation: order extractor required")
	}
	if resolver == nil {
		panic("conversation: reply resolver required")
	}
	if out == nil {
		panic("conversation: outbound channel required")
	}
	if placer == nil {
		panic("conversation: order assembler required")
	}
	if extractionTimeout <= 0 {
		extractionTimeout = 8 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StateMachine{
		store:             store,
		extractor:         extractor,
		resolver:          resolver,
		outbound:          out,
		orders:            placer,
		extractionTimeout: extractionTimeout,
		logger:            logger,
		now:               time.Now,
	}
}

// Handle advances the conversation by one message. Errors mean the
// conversation state could not be persisted.
func (m *StateMachine) Handle(ctx context.Context, turn Turn) (Outcome, error) {
	switch c := turn.Customer.Context.(type) {
	case customers.CollectingOrderContext:
		return m.collect(ctx, turn, c)
	case nil, customers.BrowsingContext:
		return m.browse(ctx, turn)
	default:
		return "", fmt.Errorf("conversation: unhandled context %T", c)
	}
}

func (m *StateMachine) browse(ctx context.Context, turn Turn) (Outcome, error) {
	if HasPurchaseIntent(turn.Text) {
		next := customers.CollectingOrderContext{StartedAt: m.now().UTC()}
		if err := m.store.SaveConversation(ctx, nil, turn.Customer.ID, next); err != nil {
			return "", err
		}
		m.outbound.SendOrderTemplate(ctx, turn.Target)
		return OutcomeOrderCollectionStarted, nil
	}

	reply, ok := m.resolver.Resolve(ctx, turn.Settings, turn.Text)
	if !ok {
		return OutcomeNoReply, nil
	}
	m.outbound.DeliverReply(ctx, turn.Target, reply, turn.Settings.TypingDelay())
	return OutcomeReplied, nil
}

func (m *StateMachine) collect(ctx context.Context, turn Turn, current customers.CollectingOrderContext) (Outcome, error) {
	extractCtx, cancel := context.WithTimeout(ctx, m.extractionTimeout)
	extracted, err := m.extractor.ParseOrderDetails(extractCtx, turn.Text)
	cancel()
	if err != nil {
		m.logger.Warn("order detail extraction failed", "error", err, "owner_id", turn.Target.OwnerID, "customer_id", turn.Customer.ID.String())
		extracted = nil
	}

	details := current.PartialFields
	if extracted != nil {
		details = details.Merge(*extracted)
	}
	if !details.Complete() {
		next := customers.CollectingOrderContext{PartialFields: details, StartedAt: current.StartedAt}
		if err := m.store.SaveConversation(ctx, nil, turn.Customer.ID, next); err != nil {
			return "", err
		}
		m.outbound.SendText(ctx, turn.Target, replies.KindReprompt, RepromptMessage(details.Missing()))
		return OutcomeDetailsReprompted, nil
	}

	_, err = m.orders.Place(ctx, orders.Request{Target: turn.Target, Details: details, Settings: turn.Settings})
	switch {
	case err == nil:
		// the assembler returned the customer to browsing inside its transaction
		return OutcomeOrderPlaced, nil
	case errors.Is(err, orders.ErrOutOfStock):
		if err := m.store.SaveConversation(ctx, nil, turn.Customer.ID, customers.BrowsingContext{}); err != nil {
			return "", err
		}
		return OutcomeOutOfStock, nil
	default:
		m.logger.Error("order creation failed", "error", err, "owner_id", turn.Target.OwnerID, "customer_id", turn.Customer.ID.String())
		if err := m.store.SaveConversation(ctx, nil, turn.Customer.ID, customers.BrowsingContext{}); err != nil {
			return "", err
		}
		m.outbound.SendText(ctx, turn.Target, replies.KindReprompt, OrderFailedMessage)
		return OutcomeOrderFailed, nil
	}
}

const detailsFormat = "Name:\nPhone:\nEmail:\nAddress:\nItems and quantity:"

// OrderFailedMessage asks the customer to start over after a failed order.
const OrderFailedMessage = "Sorry, we couldn't place your order just now. Please send your details again in this format:\n" + detailsFormat

// RepromptMessage names the missing fields and repeats the expected format.
func RepromptMessage(missing []string) string {
	if len(missing) == 0 {
		return "Please send your order details in this format:\n" + detailsFormat
	}
	return fmt.Sprintf("Thanks! I still need your %s. Please reply in this format:\n%s", strings.Join(missing, ", "), detailsFormat)
}
