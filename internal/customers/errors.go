package customers

import "errors"

// ErrLockNotAcquired is returned when the per-customer lock stays held past the wait budget.
var ErrLockNotAcquired = errors.New("customers: lock not acquired")
