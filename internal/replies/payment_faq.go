package replies

import (
	"regexp"
	"strings"

	"github.com/wolfman30/chatcommerce/internal/business"
)

// "pay" may sit inside a word (prepay, repayment). The other terms must stand
// alone so product words such as cashmere, cardigan or barcode never match.
var paymentTerms = regexp.MustCompile(`(?i)(\w*pay\w*|\b(cod|upi|cards?|cash)\b)`)

// IsPaymentQuestion reports whether message mentions a payment term.
func IsPaymentQuestion(message string) bool {
	return paymentTerms.MatchString(message)
}

// DescribePayments summarizes the seller's accepted methods. It returns "" when
// no preference is configured.
func DescribePayments(settings *business.Settings) string {
	if settings == nil || !settings.Payments.Configured() {
		return ""
	}
	prefs := settings.Payments
	var methods []string
	if prefs.AcceptOnline {
		if prefs.AcceptCards {
			methods = append(methods, "online payment through a secure link (cards, UPI and net banking)")
		} else {
			methods = append(methods, "online payment through a secure link")
		}
	}
	if upi := strings.TrimSpace(prefs.UPIID); upi != "" {
		methods = append(methods, "UPI to "+upi)
	}
	if prefs.AcceptCOD {
		methods = append(methods, "cash on delivery")
	}
	return "At " + settings.DisplayName() + " we accept " + joinMethods(methods) +
		". You can pick your preferred option when you place an order."
}

func joinMethods(methods []string) string {
	switch len(methods) {
	case 0:
		return ""
	case 1:
		return methods[0]
	default:
		return strings.Join(methods[:len(methods)-1], ", ") + " and " + methods[len(methods)-1]
	}
}
