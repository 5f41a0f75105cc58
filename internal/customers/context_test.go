package customers

import (
	"testing"
	"time"
)

func TestOrderDetailsMergeKeepsEarlierFields(t *testing.T) {
	earlier := OrderDetails{Name: "Asha", Phone: "+919876543210"}
	merged := earlier.Merge(OrderDetails{Email: "asha@example.com", Name: "  "})

	if merged.Name != "Asha" {
		t.Fatalf("expected name kept, got %q", merged.Name)
	}
	if merged.Email != "asha@example.com" {
		t.Fatalf("expected email merged, got %q", merged.Email)
	}
	missing := merged.Missing()
	if len(missing) != 1 || missing[0] != "address" {
		t.Fatalf("expected only address missing, got %v", missing)
	}
	if merged.Complete() {
		t.Fatalf("expected incomplete details")
	}
	if !merged.Merge(OrderDetails{Address: "12 MG Road"}).Complete() {
		t.Fatalf("expected complete after address")
	}
}

func TestEncodeDecodeContext(t *testing.T) {
	state, raw, err := EncodeContext(BrowsingContext{})
	if err != nil {
		t.Fatalf("encode browsing: %v", err)
	}
	if state != StateBrowsing || raw != nil {
		t.Fatalf("expected browsing with null context, got %s %s", state, raw)
	}

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := CollectingOrderContext{PartialFields: OrderDetails{Name: "Asha", Quantity: 2}, StartedAt: started}
	state, raw, err = EncodeContext(in)
	if err != nil {
		t.Fatalf("encode collecting: %v", err)
	}
	if state != StateCollectingOrderDetails {
		t.Fatalf("unexpected state %s", state)
	}

	out, err := DecodeContext(state, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := out.(CollectingOrderContext)
	if !ok {
		t.Fatalf("expected CollectingOrderContext, got %T", out)
	}
	if got.PartialFields.Name != "Asha" || got.PartialFields.Quantity != 2 || !got.StartedAt.Equal(started) {
		t.Fatalf("unexpected context %+v", got)
	}
}

func TestDecodeContextEdgeCases(t *testing.T) {
	c, err := DecodeContext(StateCollectingOrderDetails, nil)
	if err != nil {
		t.Fatalf("decode nil: %v", err)
	}
	if _, ok := c.(CollectingOrderContext); !ok {
		t.Fatalf("expected empty collecting context, got %T", c)
	}
	if _, err := DecodeContext("shipping", nil); err == nil {
		t.Fatalf("expected error for unknown state")
	}
	if _, err := DecodeContext(StateCollectingOrderDetails, []byte("{bad")); err == nil {
		t.Fatalf("expected error for bad json")
	}
}
