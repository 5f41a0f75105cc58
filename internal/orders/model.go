// Package orders turns completed order details into an order, its line item
// and a pending payment, and tells the customer how to pay.
package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/chatcommerce/internal/business"
)

// Currency for every amount. Amounts are int64 paise.
const Currency = "INR"

// PaymentStatus of an order.
type PaymentStatus string

const (
	PaymentUnpaid     PaymentStatus = "unpaid"
	PaymentPendingCOD PaymentStatus = "pending_cod"
	PaymentPaid       PaymentStatus = "paid"
)

// PaymentRecordPending is the initial status of a payment placeholder.
const PaymentRecordPending = "PENDING"

// InitialPaymentStatus is pending_cod for cash-only sellers, otherwise unpaid.
func InitialPaymentStatus(mode business.PaymentMode) PaymentStatus {
	if mode == business.PaymentCOD {
		return PaymentPendingCOD
	}
	return PaymentUnpaid
}

type Item struct {
	ProductID      *uuid.UUID
	Name           string
	UnitPriceMinor int64
	Quantity       int
	LineTotalMinor int64
}

type Order struct {
	ID                uuid.UUID
	OwnerID           string
	CustomerID        uuid.UUID
	CustomerName      string
	CustomerPhone     string
	CustomerEmail     string
	ShippingAddress   string
	ItemsSummary      string
	SubtotalMinor     int64
	TaxMinor          int64
	TotalMinor        int64
	PaymentPreference business.PaymentMode
	PaymentStatus     PaymentStatus
	InvoiceURL        string
	Item              Item
	CreatedAt         time.Time
}

// Reference is the short order number shown to customers.
func (o Order) Reference() string {
	return strings.ToUpper(strings.ReplaceAll(o.ID.String(), "-", "")[:8])
}

// TaxFor applies a basis-point rate, rounding half up.
func TaxFor(subtotalMinor, rateBPS int64) int64 {
	if subtotalMinor <= 0 || rateBPS <= 0 {
		return 0
	}
	return (subtotalMinor*rateBPS + 5000) / 10000
}

// FormatINR renders paise as rupees, e.g. 58882 -> "₹588.82".
func FormatINR(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s₹%d.%02d", sign, minor/100, minor%100)
}

// majorAmount renders paise as a plain decimal for payment links.
func majorAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
