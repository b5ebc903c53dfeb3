// Package aggregator reduces independent quotes into canonical fixed-point prices.
package aggregator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/switchboard-xyz/usdy-example/pkg/logging"
)

const (
	// ModeMedian reduces a multi-venue panel to its median.
	ModeMedian = "median"
	// ModePassthrough publishes a single authoritative value unchanged.
	ModePassthrough = "passthrough"
)

// Reducer combines values for the same logical price into one.
type Reducer interface {
	// Reduce returns the canonical value; inputs are already on a common decimal scale.
	Reduce(values []decimal.Decimal) (decimal.Decimal, error)

	// Mode returns the reducer's mode name.
	Mode() string
}

// NewReducer creates a reducer based on the specified mode.
func NewReducer(mode string, logger *logging.Logger) (Reducer, error) {
	switch mode {
	case ModeMedian:
		return NewMedianReducer(logger), nil
	case ModePassthrough:
		return NewPassthroughReducer(logger), nil
	default:
		return nil, fmt.Errorf("%w: %s (supported: median, passthrough)", ErrUnknownMode, mode)
	}
}
