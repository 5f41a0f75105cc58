package catalog

import "errors"

// ErrNoProduct means the business has no active product to price an order with.
var ErrNoProduct = errors.New("catalog: no active product")
