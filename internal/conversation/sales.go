package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/chatcommerce/internal/catalog"
)

const salesPrompt = `You are a helpful sales assistant replying on WhatsApp for a small online store.
Answer in two or three short sentences. Only mention products from the catalog below and their listed prices.
If an item is out of stock say so. Do not promise discounts, delivery dates or anything not listed.`

// SalesGenerator writes catalog-grounded replies.
type SalesGenerator struct {
	llm   LLMClient
	model string
}

func NewSalesGenerator(llm LLMClient, model string) *SalesGenerator {
	if llm == nil {
		panic("conversation: llm client required")
	}
	return &SalesGenerator{llm: llm, model: model}
}

func (g *SalesGenerator) GenerateSalesReply(ctx context.Context, message string, products []catalog.Product) (string, error) {
	if len(products) == 0 {
		return "", nil
	}
	resp, err := g.llm.Complete(ctx, LLMRequest{
		Model:       g.model,
		System:      []string{salesPrompt, "Catalog:\n" + GroundingContext(products)},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: message}},
		MaxTokens:   300,
		Temperature: 0.4,
	})
	if err != nil {
		return "", fmt.Errorf("conversation: generate sales reply: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// GroundingContext renders one line per product: name, price and stock flag.
func GroundingContext(products []catalog.Product) string {
	if len(products) > catalog.GroundingLimit {
		products = products[:catalog.GroundingLimit]
	}
	var b strings.Builder
	for _, p := range products {
		stock := "in stock"
		if !p.InStock() {
			stock = "out of stock"
		}
		fmt.Fprintf(&b, "- %s: ₹%d.%02d (%s)\n", p.Name, p.PriceMinor/100, p.PriceMinor%100, stock)
	}
	return b.String()
}
