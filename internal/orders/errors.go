package orders

import "errors"

var (
	// ErrOutOfStock aborts an order whose resolved product has no stock.
	ErrOutOfStock = errors.New("orders: product out of stock")
	// ErrIncompleteDetails is returned when required customer fields are missing.
	ErrIncompleteDetails = errors.New("orders: incomplete order details")
)
