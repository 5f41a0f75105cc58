package leads

import "errors"

var (
	// ErrMissingOwnerID is returned when the owning business is not set
	ErrMissingOwnerID = errors.New("leads: owner id is required")

	// ErrMissingCustomer is returned when the lead is not tied to a customer
	ErrMissingCustomer = errors.New("leads: customer id is required")

	// ErrMissingContact is returned when the phone is missing
	ErrMissingContact = errors.New("leads: phone is required")
)
