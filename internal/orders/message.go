package orders

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/wolfman30/chatcommerce/internal/business"
)

// Links are the base URLs used to build customer-facing references.
type Links struct {
	PublicBaseURL      string
	PaymentLinkBaseURL string
	UPIQRBaseURL       string
}

func (l Links) invoiceURL(o Order) string {
	return strings.TrimRight(l.PublicBaseURL, "/") + "/invoice/" + o.ID.String()
}

func (l Links) paymentLink(o Order) string {
	base := strings.TrimRight(strings.TrimSpace(l.PaymentLinkBaseURL), "/")
	if base == "" {
		return ""
	}
	return base + "/pay/" + o.ID.String()
}

// UPILink builds a upi://pay deep link for the order total.
func UPILink(prefs business.PaymentPreferences, payeeFallback string, o Order) string {
	payee := strings.TrimSpace(prefs.UPIPayeeName)
	if payee == "" {
		payee = payeeFallback
	}
	return "upi://pay?pa=" + url.QueryEscape(strings.TrimSpace(prefs.UPIID)) +
		"&pn=" + url.PathEscape(payee) +
		"&am=" + majorAmount(o.TotalMinor) +
		"&cu=" + Currency +
		"&tn=" + url.PathEscape("Order "+o.Reference())
}

func (l Links) qrImage(data string) string {
	base := strings.TrimSpace(l.UPIQRBaseURL)
	if base == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "size=300x300&data=" + url.QueryEscape(data)
}

// ComposePaymentMessage lists the order total and every payment option the
// seller accepts, ending with the invoice link.
func ComposePaymentMessage(o Order, settings *business.Settings, links Links) string {
	prefs := settings.Payments
	var b strings.Builder

	fmt.Fprintf(&b, "Thank you, %s! Your order #%s is confirmed.\n", firstName(o.CustomerName), o.Reference())
	if o.ItemsSummary != "" {
		fmt.Fprintf(&b, "Items: %s (x%d)\n", o.ItemsSummary, o.Item.Quantity)
	}
	fmt.Fprintf(&b, "Total: %s (includes %s tax)\n", FormatINR(o.TotalMinor), FormatINR(o.TaxMinor))

	mode := prefs.Mode()
	if mode != business.PaymentCOD {
		if link := links.paymentLink(o); link != "" {
			fmt.Fprintf(&b, "\nPay online: %s\n", link)
		}
	}
	if upi := strings.TrimSpace(prefs.UPIID); upi != "" {
		deepLink := UPILink(prefs, settings.DisplayName(), o)
		fmt.Fprintf(&b, "\nPay by UPI to %s: %s\n", upi, deepLink)
		if qr := links.qrImage(deepLink); qr != "" {
			fmt.Fprintf(&b, "Scan to pay: %s\n", qr)
		}
		b.WriteString("After paying, reply here with a screenshot of the payment as proof.\n")
	}
	if prefs.AcceptCOD {
		fmt.Fprintf(&b, "\nCash on delivery is available: pay %s when your order arrives.\n", FormatINR(o.TotalMinor))
	}

	fmt.Fprintf(&b, "\nInvoice: %s", o.InvoiceURL)
	return b.String()
}

// OutOfStockMessage is sent when the resolved product cannot be ordered.
func OutOfStockMessage(productName string) string {
	if strings.TrimSpace(productName) == "" {
		return "Sorry, that item is currently out of stock. We'll be happy to help you pick something else!"
	}
	return fmt.Sprintf("Sorry, %s is currently out of stock. We'll be happy to help you pick something else!", productName)
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}
