package leads

import (
	"strings"
	"time"
)

// Lead is the sales record opened the first time a phone number messages a business.
type Lead struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	CustomerID string    `json:"customer_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateLeadRequest carries the fields needed to open a lead.
type CreateLeadRequest struct {
	OwnerID    string
	CustomerID string
	Name       string
	Phone      string
	Source     string
}

// Validate validates the create lead request
func (r *CreateLeadRequest) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return ErrMissingOwnerID
	}
	if strings.TrimSpace(r.CustomerID) == "" {
		return ErrMissingCustomer
	}
	if strings.TrimSpace(r.Phone) == "" {
		return ErrMissingContact
	}
	return nil
}
