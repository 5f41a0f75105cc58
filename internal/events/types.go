package events

import "time"

// MessageReceivedV1 is appended when an inbound customer message is persisted.
type MessageReceivedV1 struct {
	MessageID         string    `json:"message_id"`
	OwnerID           string    `json:"owner_id"`
	ProviderMessageID string    `json:"provider_message_id"`
	FromPhone         string    `json:"from_phone"`
	Kind              string    `json:"kind"`
	Body              string    `json:"body"`
	ReceivedAt        time.Time `json:"received_at"`
}

func (MessageReceivedV1) EventType() string {
	return "messaging.message.received.v1"
}

// MessageStatusUpdatedV1 is appended when a delivery status transition is applied.
type MessageStatusUpdatedV1 struct {
	ProviderMessageID string    `json:"provider_message_id"`
	OwnerID           string    `json:"owner_id"`
	Status            string    `json:"status"`
	CampaignID        string    `json:"campaign_id,omitempty"`
	ErrorCode         string    `json:"error_code,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

func (MessageStatusUpdatedV1) EventType() string {
	return "messaging.message.status_updated.v1"
}

// OrderCreatedV1 is appended in the same transaction that creates an order.
type OrderCreatedV1 struct {
	OrderID       string    `json:"order_id"`
	OwnerID       string    `json:"owner_id"`
	CustomerID    string    `json:"customer_id"`
	TotalMinor    int64     `json:"total_minor"`
	Currency      string    `json:"currency"`
	PaymentStatus string    `json:"payment_status"`
	InvoiceURL    string    `json:"invoice_url"`
	CreatedAt     time.Time `json:"created_at"`
}

func (OrderCreatedV1) EventType() string {
	return "commerce.order.created.v1"
}
