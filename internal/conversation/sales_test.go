package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wolfman30/chatcommerce/internal/catalog"
	"github.com/wolfman30/chatcommerce/pkg/logging"
)

func TestGroundingContext(t *testing.T) {
	got := GroundingContext([]catalog.Product{
		{Name: "Cotton Kurta", PriceMinor: 49900, Stock: 3},
		{Name: "Silk Saree", PriceMinor: 250050, Stock: 0},
	})
	want := "- Cotton Kurta: ₹499.00 (in stock)\n- Silk Saree: ₹2500.50 (out of stock)\n"
	if got != want {
		t.Fatalf("unexpected grounding:\n%s", got)
	}

	many := make([]catalog.Product, 30)
	if lines := strings.Count(GroundingContext(many), "\n"); lines != catalog.GroundingLimit {
		t.Fatalf("expected %d lines, got %d", catalog.GroundingLimit, lines)
	}
}

func TestSalesGeneratorPassesCatalog(t *testing.T) {
	llm := &stubLLM{text: "  The Cotton Kurta is ₹499.  "}
	got, err := NewSalesGenerator(llm, "model-x").GenerateSalesReply(context.Background(), "kurta price?", []catalog.Product{{Name: "Cotton Kurta", PriceMinor: 49900, Stock: 1}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "The Cotton Kurta is ₹499." {
		t.Fatalf("unexpected reply %q", got)
	}
	if llm.req.Model != "model-x" || !strings.Contains(strings.Join(llm.req.System, "\n"), "Cotton Kurta") {
		t.Fatalf("catalog not supplied: %+v", llm.req)
	}
}

func TestFallbackLLMClient(t *testing.T) {
	primary := &stubLLM{err: errors.New("throttled")}
	secondary := &stubLLM{text: "from fallback"}
	resp, err := NewFallbackLLMClient(primary, secondary, logging.Default()).Complete(context.Background(), LLMRequest{})
	if err != nil || resp.Text != "from fallback" {
		t.Fatalf("expected fallback response, got %+v %v", resp, err)
	}

	if _, err := NewFallbackLLMClient(primary, nil, nil).Complete(context.Background(), LLMRequest{}); err == nil {
		t.Fatalf("expected primary error without fallback")
	}
}
