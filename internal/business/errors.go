package business

import "errors"

// ErrUnknownPhoneNumber is returned when no business owns a WhatsApp phone number id.
var ErrUnknownPhoneNumber = errors.New("business: unknown phone number id")
