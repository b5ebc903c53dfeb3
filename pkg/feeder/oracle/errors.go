// Package oracle builds the oracle program's instructions from aggregated prices.
package oracle

import "errors"

var (
	// ErrNoPricesProvided indicates that no prices were provided.
	ErrNoPricesProvided = errors.New("no prices provided")
	// ErrTooManyRows indicates the batch exceeds what one refresh accepts.
	ErrTooManyRows = errors.New("too many rows in one refresh")
	// ErrUnknownSymbol indicates a price set for an untracked symbol.
	ErrUnknownSymbol = errors.New("unknown symbol")
)
