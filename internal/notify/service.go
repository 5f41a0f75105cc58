// Package notify emails business owners about new orders.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/chatcommerce/internal/business"
	"github.com/wolfman30/chatcommerce/internal/orders"
	"github.com/wolfman30/chatcommerce/pkg/logging"
)

// Service sends order notifications to the owner's notification address.
type Service struct {
	email  EmailSender
	logger *logging.Logger
}

func NewService(email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, logger: logger}
}

// OrderPlaced emails the owner a summary of o. Owners without a notification
// address are skipped.
func (s *Service) OrderPlaced(ctx context.Context, settings *business.Settings, o orders.Order) error {
	if s.email == nil || settings == nil {
		return nil
	}
	to := strings.TrimSpace(settings.NotificationEmail)
	if to == "" {
		s.logger.Debug("notify: no notification email configured", "owner_id", o.OwnerID)
		return nil
	}
	msg := EmailMessage{
		To:      to,
		ToName:  settings.BusinessName,
		Subject: fmt.Sprintf("New order #%s: %s", o.Reference(), orders.FormatINR(o.TotalMinor)),
		Body:    orderBody(o),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: order %s: %w", o.Reference(), err)
	}
	return nil
}

func orderBody(o orders.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order #%s was placed on WhatsApp.\n\n", o.Reference())
	fmt.Fprintf(&b, "Customer: %s\n", o.CustomerName)
	fmt.Fprintf(&b, "Phone: %s\n", o.CustomerPhone)
	if o.CustomerEmail != "" {
		fmt.Fprintf(&b, "Email: %s\n", o.CustomerEmail)
	}
	fmt.Fprintf(&b, "Ship to: %s\n\n", o.ShippingAddress)
	fmt.Fprintf(&b, "%d x %s @ %s\n", o.Item.Quantity, o.Item.Name, orders.FormatINR(o.Item.UnitPriceMinor))
	fmt.Fprintf(&b, "Subtotal: %s\n", orders.FormatINR(o.SubtotalMinor))
	fmt.Fprintf(&b, "Tax: %s\n", orders.FormatINR(o.TaxMinor))
	fmt.Fprintf(&b, "Total: %s\n", orders.FormatINR(o.TotalMinor))
	fmt.Fprintf(&b, "Payment: %s (%s)\n", o.PaymentPreference, o.PaymentStatus)
	if o.InvoiceURL != "" {
		fmt.Fprintf(&b, "\nInvoice: %s\n", o.InvoiceURL)
	}
	return b.String()
}
