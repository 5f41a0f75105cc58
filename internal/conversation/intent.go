package conversation

import "strings"

var purchaseIntentPhrases = []string{
	"buy",
	"order",
	"purchase",
	"i want this",
	"i want to get",
	"book this",
	"place order",
	"add to cart",
	"checkout",
	"i'll take",
	"i will take",
}

// HasPurchaseIntent reports whether message contains any purchase phrase,
// case-insensitively.
func HasPurchaseIntent(message string) bool {
	text := strings.ToLower(message)
	for _, phrase := range purchaseIntentPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
