package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/chatcommerce/internal/business"
	"github.com/wolfman30/chatcommerce/internal/customers"
	"github.com/wolfman30/chatcommerce/internal/orders"
	"github.com/wolfman30/chatcommerce/internal/replies"
)

type memoryConversations struct {
	saved []customers.ConversationContext
	err   error
}

func (m *memoryConversations) SaveConversation(ctx context.Context, q customers.Execer, customerID uuid.UUID, next customers.ConversationContext) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, next)
	return nil
}

func (m *memoryConversations) last() customers.ConversationContext {
	if len(m.saved) == 0 {
		return nil
	}
	return m.saved[len(m.saved)-1]
}

type stubExtractor struct {
	details *customers.OrderDetails
	err     error
	calls   int
}

func (s *stubExtractor) ParseOrderDetails(ctx context.Context, text string) (*customers.OrderDetails, error) {
	s.calls++
	return s.details, s.err
}

type stubResolver struct {
	reply replies.Reply
	ok    bool
	calls int
}

func (s *stubResolver) Resolve(ctx context.Context, settings *business.Settings, message string) (replies.Reply, bool) {
	s.calls++
	return s.reply, s.ok
}

type recordingOutbound struct {
	replies   []replies.Reply
	texts     map[string][]string
	templates int
}

func (r *recordingOutbound) DeliverReply(ctx context.Context, t replies.Target, reply replies.Reply, typingDelay time.Duration) bool {
	r.replies = append(r.replies, reply)
	return true
}

func (r *recordingOutbound) SendText(ctx context.Context, t replies.Target, kind, body string) bool {
	if r.texts == nil {
		r.texts = map[string][]string{}
	}
	r.texts[kind] = append(r.texts[kind], body)
	return true
}

func (r *recordingOutbound) SendOrderTemplate(ctx context.Context, t replies.Target) bool {
	r.templates++
	return true
}

type stubPlacer struct {
	requests []orders.Request
	err      error
}

func (s *stubPlacer) Place(ctx context.Context, req orders.Request) (orders.Order, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return orders.Order{}, s.err
	}
	return orders.Order{ID: uuid.New()}, nil
}

type fixture struct {
	store     *memoryConversations
	extractor *stubExtractor
	resolver  *stubResolver
	outbound  *recordingOutbound
	placer    *stubPlacer
	machine   *StateMachine
}

func newFixture() *fixture {
	f := &fixture{
		store:     &memoryConversations{},
		extractor: &stubExtractor{},
		resolver:  &stubResolver{reply: replies.Reply{Text: "hello", Stage: replies.StageTone}, ok: true},
		outbound:  &recordingOutbound{},
		placer:    &stubPlacer{},
	}
	f.machine = NewStateMachine(f.store, f.extractor, f.resolver, f.outbound, f.placer, time.Second, nil)
	return f
}

func turn(c customers.ConversationContext, text string) Turn {
	return Turn{
		Target:   replies.Target{OwnerID: "owner-1", PhoneNumberID: "pn-1", CustomerPhone: "+919876543210"},
		Customer: customers.Customer{ID: uuid.New(), OwnerID: "owner-1", Context: c},
		Settings: business.DefaultSettings("owner-1"),
		Text:     text,
	}
}

func full() *customers.OrderDetails {
	return &customers.OrderDetails{Name: "Asha", Phone: "+919876543210", Email: "asha@example.com", Address: "12 MG Road"}
}

func TestPurchaseIntentStartsCollection(t *testing.T) {
	f := newFixture()
	outcome, err := f.machine.Handle(context.Background(), turn(customers.BrowsingContext{}, "I want to buy this"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeOrderCollectionStarted {
		t.Fatalf("unexpected outcome %s", outcome)
	}
	if f.store.last().State() != customers.StateCollectingOrderDetails {
		t.Fatalf("expected collecting state, got %v", f.store.last())
	}
	if f.outbound.templates != 1 {
		t.Fatalf("expected order template, got %d", f.outbound.templates)
	}
	if f.resolver.calls != 0 || len(f.outbound.replies) != 0 {
		t.Fatalf("reply pipeline must not run on purchase intent")
	}
}

func TestBrowsingWithoutIntentUsesResolver(t *testing.T) {
	f := newFixture()
	outcome, err := f.machine.Handle(context.Background(), turn(nil, "do you have kurtas?"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeReplied || len(f.outbound.replies) != 1 {
		t.Fatalf("expected reply, got %s %v", outcome, f.outbound.replies)
	}
	if len(f.store.saved) != 0 {
		t.Fatalf("state must not change")
	}

	f.resolver.ok = false
	outcome, _ = f.machine.Handle(context.Background(), turn(nil, "ok"))
	if outcome != OutcomeNoReply || len(f.outbound.replies) != 1 {
		t.Fatalf("expected no reply, got %s", outcome)
	}
}

func TestCollectingDoesNotRetriggerTemplate(t *testing.T) {
	f := newFixture()
	f.extractor.details = &customers.OrderDetails{Name: "Asha"}
	outcome, err := f.machine.Handle(context.Background(), turn(customers.CollectingOrderContext{}, "I want to order, my name is Asha"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeDetailsReprompted {
		t.Fatalf("unexpected outcome %s", outcome)
	}
	if f.outbound.templates != 0 {
		t.Fatalf("template must not be re-sent mid-collection")
	}
}

func TestMissingEmailReprompts(t *testing.T) {
	f := newFixture()
	d := full()
	d.Email = ""
	f.extractor.details = d

	outcome, err := f.machine.Handle(context.Background(), turn(customers.CollectingOrderContext{}, "Asha, +919876543210, 12 MG Road"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeDetailsReprompted {
		t.Fatalf("unexpected outcome %s", outcome)
	}
	if len(f.placer.requests) != 0 {
		t.Fatalf("no order may be created")
	}
	saved, ok := f.store.last().(customers.CollectingOrderContext)
	if !ok || saved.PartialFields.Name != "Asha" {
		t.Fatalf("expected partial fields kept, got %+v", f.store.last())
	}
	if got := f.outbound.texts[replies.KindReprompt]; len(got) != 1 || got[0] != RepromptMessage([]string{"email"}) {
		t.Fatalf("unexpected reprompt %v", got)
	}
}

func TestPartialFieldsAccumulateAcrossTurns(t *testing.T) {
	f := newFixture()
	f.extractor.details = &customers.OrderDetails{Email: "asha@example.com"}
	current := customers.CollectingOrderContext{PartialFields: customers.OrderDetails{Name: "Asha", Phone: "+919876543210", Address: "12 MG Road"}}

	outcome, err := f.machine.Handle(context.Background(), turn(current, "asha@example.com"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeOrderPlaced {
		t.Fatalf("unexpected outcome %s", outcome)
	}
	if len(f.placer.requests) != 1 || f.placer.requests[0].Details.Name != "Asha" {
		t.Fatalf("expected merged details, got %+v", f.placer.requests)
	}
	if len(f.store.saved) != 0 {
		t.Fatalf("browsing is saved by the assembler transaction, got %v", f.store.saved)
	}
}

func TestOutOfStockReturnsToBrowsing(t *testing.T) {
	f := newFixture()
	f.extractor.details = full()
	f.placer.err = orders.ErrOutOfStock

	outcome, err := f.machine.Handle(context.Background(), turn(customers.CollectingOrderContext{}, "details"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeOutOfStock || f.store.last().State() != customers.StateBrowsing {
		t.Fatalf("expected browsing after out of stock, got %s %v", outcome, f.store.last())
	}
}

func TestOrderFailureReturnsToBrowsingWithReprompt(t *testing.T) {
	f := newFixture()
	f.extractor.details = full()
	f.placer.err = errors.New("tx failed")

	outcome, err := f.machine.Handle(context.Background(), turn(customers.CollectingOrderContext{}, "details"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeOrderFailed || f.store.last().State() != customers.StateBrowsing {
		t.Fatalf("expected browsing after failure, got %s", outcome)
	}
	if got := f.outbound.texts[replies.KindReprompt]; len(got) != 1 || got[0] != OrderFailedMessage {
		t.Fatalf("expected failure reprompt, got %v", got)
	}
}

func TestExtractionErrorIsTreatedAsEmpty(t *testing.T) {
	f := newFixture()
	f.extractor.err = errors.New("llm timeout")

	outcome, err := f.machine.Handle(context.Background(), turn(customers.CollectingOrderContext{}, "hi"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if outcome != OutcomeDetailsReprompted {
		t.Fatalf("unexpected outcome %s", outcome)
	}
}

func TestStoreErrorPropagates(t *testing.T) {
	f := newFixture()
	f.store.err = errors.New("db down")
	if _, err := f.machine.Handle(context.Background(), turn(nil, "buy now")); err == nil {
		t.Fatalf("expected error")
	}
	if f.outbound.templates != 0 {
		t.Fatalf("template must not be sent when the state was not saved")
	}
}
