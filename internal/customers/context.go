package customers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ConversationState is the stage of a customer's conversation.
type ConversationState string

const (
	StateBrowsing               ConversationState = "browsing"
	StateCollectingOrderDetails ConversationState = "collecting_order_details"
)

// ConversationContext is the state-specific payload stored with a customer.
// Each state has exactly one context type.
type ConversationContext interface {
	State() ConversationState
	isConversationContext()
}

// BrowsingContext carries no data.
type BrowsingContext struct{}

func (BrowsingContext) State() ConversationState { return StateBrowsing }
func (BrowsingContext) isConversationContext()   {}

// CollectingOrderContext accumulates order fields across turns.
type CollectingOrderContext struct {
	PartialFields OrderDetails `json:"partial_fields"`
	StartedAt     time.Time    `json:"started_at"`
}

func (CollectingOrderContext) State() ConversationState { return StateCollectingOrderDetails }
func (CollectingOrderContext) isConversationContext()   {}

// OrderDetails are the fields the customer must supply before an order is placed.
type OrderDetails struct {
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Address      string `json:"address,omitempty"`
	ItemsSummary string `json:"items_summary,omitempty"`
	Quantity     int    `json:"quantity,omitempty"`
}

// Merge overlays non-empty fields from newer onto d.
func (d OrderDetails) Merge(newer OrderDetails) OrderDetails {
	out := d
	if v := strings.TrimSpace(newer.Name); v != "" {
		out.Name = v
	}
	if v := strings.TrimSpace(newer.Phone); v != "" {
		out.Phone = v
	}
	if v := strings.TrimSpace(newer.Email); v != "" {
		out.Email = v
	}
	if v := strings.TrimSpace(newer.Address); v != "" {
		out.Address = v
	}
	if v := strings.TrimSpace(newer.ItemsSummary); v != "" {
		out.ItemsSummary = v
	}
	if newer.Quantity > 0 {
		out.Quantity = newer.Quantity
	}
	return out
}

// Missing lists the required fields that are still blank.
func (d OrderDetails) Missing() []string {
	var missing []string
	if strings.TrimSpace(d.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(d.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(d.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(d.Address) == "" {
		missing = append(missing, "address")
	}
	return missing
}

// Complete reports whether name, phone, email and address are all present.
func (d OrderDetails) Complete() bool {
	return len(d.Missing()) == 0
}

// EncodeContext serializes a context for the conversation_context column.
// Browsing stores NULL.
func EncodeContext(c ConversationContext) (ConversationState, []byte, error) {
	switch v := c.(type) {
	case nil, BrowsingContext:
		return StateBrowsing, nil, nil
	case CollectingOrderContext:
		data, err := json.Marshal(v)
		if err != nil {
			return "", nil, fmt.Errorf("customers: encode context: %w", err)
		}
		return StateCollectingOrderDetails, data, nil
	default:
		return "", nil, fmt.Errorf("customers: unsupported context %T", c)
	}
}

// DecodeContext rebuilds the typed context for a stored state.
func DecodeContext(state ConversationState, raw []byte) (ConversationContext, error) {
	switch state {
	case "", StateBrowsing:
		return BrowsingContext{}, nil
	case StateCollectingOrderDetails:
		var c CollectingOrderContext
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, fmt.Errorf("customers: decode context: %w", err)
			}
		}
		return c, nil
	default:
		return nil, fmt.Errorf("customers: unknown conversation state %q", state)
	}
}
