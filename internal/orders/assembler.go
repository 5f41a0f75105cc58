package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/chatcommerce/internal/billing"
	"github.com/wolfman30/chatcommerce/internal/business"
	"github.com/wolfman30/chatcommerce/internal/catalog"
	"github.com/wolfman30/chatcommerce/internal/customers"
	"github.com/wolfman30/chatcommerce/internal/events"
	"github.com/wolfman30/chatcommerce/internal/observability/metrics"
	"github.com/wolfman30/chatcommerce/internal/replies"
	"github.com/wolfman30/chatcommerce/pkg/logging"
)

// TxBeginner is satisfied by pgxpool.Pool and pgxmock pools.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type productResolver interface {
	ResolveForOrder(ctx context.Context, ownerID, itemsSummary string) (catalog.Product, error)
}

type usageCounter interface {
	Increment(ctx context.Context, q billing.Querier, ownerID, metric string, now time.Time) error
}

type conversationSaver interface {
	SaveConversation(ctx context.Context, q customers.Execer, customerID uuid.UUID, next customers.ConversationContext) error
}

// TextSender delivers customer-facing messages.
type TextSender interface {
	SendText(ctx context.Context, t replies.Target, kind, body string) bool
}

// OwnerNotifier tells the business about a new order.
type OwnerNotifier interface {
	OrderPlaced(ctx context.Context, settings *business.Settings, order Order) error
}

type Config struct {
	Links
	TaxRateBPS    int64
	NotifyTimeout time.Duration
}

// Assembler creates orders. Order, item, payment, usage increment, the
// order.created event and the customer's return to browsing commit together
// or not at all.
type Assembler struct {
	db            TxBeginner
	products      productResolver
	conversations conversationSaver
	usage         usageCounter
	sender        TextSender
	owner         OwnerNotifier
	cfg           Config
	logger        *logging.Logger
	metrics       *metrics.CommerceMetrics
	now           func() time.Time
}

func NewAssembler(db TxBeginner, products productResolver, conversations conversationSaver, usage usageCounter, sender TextSender, cfg Config, logger *logging.Logger, m *metrics.CommerceMetrics) *Assembler {
	if db == nil {
		panic("orders: pgx pool required")
	}
	if products == nil {
		panic("orders: product resolver required")
	}
	if conversations == nil {
		panic("orders: conversation store required")
	}
	if usage == nil {
		panic("orders: usage counter required")
	}
	if sender == nil {
		panic("orders: sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	return &Assembler{db: db, products: products, conversations: conversations, usage: usage, sender: sender, cfg: cfg, logger: logger, metrics: m, now: time.Now}
}

// WithOwnerNotifier enables the best-effort new-order email.
func (a *Assembler) WithOwnerNotifier(n OwnerNotifier) *Assembler {
	a.owner = n
	return a
}

type Request struct {
	Target   replies.Target
	Details  customers.OrderDetails
	Settings *business.Settings
}

// Place creates the order and sends the payment options. ErrOutOfStock means
// the customer was already told; any other error means nothing was created.
func (a *Assembler) Place(ctx context.Context, req Request) (Order, error) {
	if !req.Details.Complete() {
		return Order{}, ErrIncompleteDetails
	}
	settings := req.Settings
	if settings == nil {
		settings = business.DefaultSettings(req.Target.OwnerID)
	}

	var product *catalog.Product
	p, err := a.products.ResolveForOrder(ctx, req.Target.OwnerID, req.Details.ItemsSummary)
	switch {
	case errors.Is(err, catalog.ErrNoProduct):
	case err != nil:
		a.metrics.ObserveOrder("failed")
		return Order{}, fmt.Errorf("orders: resolve product: %w", err)
	default:
		product = &p
	}
	if product != nil && !product.InStock() {
		a.metrics.ObserveOrder("out_of_stock")
		a.sender.SendText(ctx, req.Target, replies.KindOutOfStock, OutOfStockMessage(product.Name))
		return Order{}, ErrOutOfStock
	}

	order := a.build(req, settings, product)
	if err := a.create(ctx, &order); err != nil {
		a.metrics.ObserveOrder("failed")
		return Order{}, err
	}
	a.metrics.ObserveOrder("created")
	a.logger.Info("order created", "order_id", order.ID.String(), "owner_id", order.OwnerID, "total_minor", order.TotalMinor)

	a.sender.SendText(ctx, req.Target, replies.KindOrderSummary, ComposePaymentMessage(order, settings, a.cfg.Links))
	a.notifyOwner(ctx, settings, order)
	return order, nil
}

func (a *Assembler) build(req Request, settings *business.Settings, product *catalog.Product) Order {
	qty := req.Details.Quantity
	if qty <= 0 {
		qty = 1
	}
	item := Item{Quantity: qty, Name: strings.TrimSpace(req.Details.ItemsSummary)}
	if product != nil {
		id := product.ID
		item.ProductID = &id
		item.Name = product.Name
		item.UnitPriceMinor = product.PriceMinor
	}
	if item.Name == "" {
		item.Name = "Custom order"
	}
	item.LineTotalMinor = item.UnitPriceMinor * int64(qty)

	mode := settings.Payments.Mode()
	subtotal := item.LineTotalMinor
	tax := TaxFor(subtotal, a.cfg.TaxRateBPS)
	return Order{
		OwnerID:           req.Target.OwnerID,
		CustomerID:        req.Target.CustomerID,
		CustomerName:      strings.TrimSpace(req.Details.Name),
		CustomerPhone:     strings.TrimSpace(req.Details.Phone),
		CustomerEmail:     strings.TrimSpace(req.Details.Email),
		ShippingAddress:   strings.TrimSpace(req.Details.Address),
		ItemsSummary:      strings.TrimSpace(req.Details.ItemsSummary),
		SubtotalMinor:     subtotal,
		TaxMinor:          tax,
		TotalMinor:        subtotal + tax,
		PaymentPreference: mode,
		PaymentStatus:     InitialPaymentStatus(mode),
		Item:              item,
	}
}

func (a *Assembler) create(ctx context.Context, o *Order) error {
	tx, err := a.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("orders: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	insertOrder := `
		INSERT INTO orders (owner_id, customer_id, customer_name, customer_phone, customer_email, shipping_address,
			items_summary, subtotal_minor, tax_minor, total_minor, currency, payment_preference, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at
	`
	if err := tx.QueryRow(ctx, insertOrder,
		o.OwnerID, o.CustomerID, o.CustomerName, o.CustomerPhone, o.CustomerEmail, o.ShippingAddress,
		o.ItemsSummary, o.SubtotalMinor, o.TaxMinor, o.TotalMinor, Currency, string(o.PaymentPreference), string(o.PaymentStatus),
	).Scan(&o.ID, &o.CreatedAt); err != nil {
		return fmt.Errorf("orders: insert order: %w", err)
	}

	// the invoice URL embeds the generated id
	o.InvoiceURL = a.cfg.Links.invoiceURL(*o)
	if _, err := tx.Exec(ctx, `UPDATE orders SET invoice_url = $2 WHERE id = $1`, o.ID, o.InvoiceURL); err != nil {
		return fmt.Errorf("orders: set invoice url: %w", err)
	}

	insertItem := `
		INSERT INTO order_items (order_id, product_id, name, unit_price_minor, quantity, line_total_minor)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(ctx, insertItem, o.ID, o.Item.ProductID, o.Item.Name, o.Item.UnitPriceMinor, o.Item.Quantity, o.Item.LineTotalMinor); err != nil {
		return fmt.Errorf("orders: insert item: %w", err)
	}

	insertPayment := `
		INSERT INTO payments (order_id, owner_id, amount_minor, currency, status)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, insertPayment, o.ID, o.OwnerID, o.TotalMinor, Currency, PaymentRecordPending); err != nil {
		return fmt.Errorf("orders: insert payment: %w", err)
	}

	if err := a.usage.Increment(ctx, tx, o.OwnerID, billing.MetricOrders, a.now()); err != nil {
		return err
	}

	if _, err := events.AppendCanonicalEvent(ctx, tx, "order:"+o.ID.String(), o.CustomerID.String(), events.OrderCreatedV1{
		OrderID:       o.ID.String(),
		OwnerID:       o.OwnerID,
		CustomerID:    o.CustomerID.String(),
		TotalMinor:    o.TotalMinor,
		Currency:      Currency,
		PaymentStatus: string(o.PaymentStatus),
		InvoiceURL:    o.InvoiceURL,
		CreatedAt:     o.CreatedAt,
	}); err != nil {
		return err
	}

	if err := a.conversations.SaveConversation(ctx, tx, o.CustomerID, customers.BrowsingContext{}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("orders: commit: %w", err)
	}
	return nil
}

func (a *Assembler) notifyOwner(ctx context.Context, settings *business.Settings, o Order) {
	if a.owner == nil {
		return
	}
	nctx, cancel := context.WithTimeout(ctx, a.cfg.NotifyTimeout)
	defer cancel()
	if err := a.owner.OrderPlaced(nctx, settings, o); err != nil {
		a.logger.Warn("order notification failed", "error", err, "order_id", o.ID.String(), "owner_id", o.OwnerID)
	}
}
