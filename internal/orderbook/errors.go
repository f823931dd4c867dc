package orderbook

import "errors"

// Command error taxonomy. Rejected commands leave the book unchanged;
// validation runs before any structural mutation.
var (
	ErrInvalidOrder    = errors.New("invalid order")
	ErrNotFound        = errors.New("order not found")
	ErrAlreadyTerminal = errors.New("order already terminal")
)
