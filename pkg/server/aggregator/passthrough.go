package aggregator

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/switchboard-xyz/usdy-example/pkg/logging"
	"github.com/switchboard-xyz/usdy-example/pkg/metrics"
)

// PassthroughReducer publishes a single authoritative value without reduction.
type PassthroughReducer struct {
	logger *logging.Logger
}

var _ Reducer = (*PassthroughReducer)(nil)

// NewPassthroughReducer creates a new pass-through reducer.
func NewPassthroughReducer(logger *logging.Logger) *PassthroughReducer {
	return &PassthroughReducer{logger: logger}
}

// Mode returns ModePassthrough.
func (r *PassthroughReducer) Mode() string {
	return ModePassthrough
}

// Reduce returns the only value.
func (r *PassthroughReducer) Reduce(values []decimal.Decimal) (decimal.Decimal, error) {
	start := time.Now()
	defer func() {
		metrics.RecordAggregation(ModePassthrough, time.Since(start))
	}()

	if len(values) != 1 {
		return decimal.Zero, fmt.Errorf("%w: got %d", ErrPassthroughArity, len(values))
	}
	return values[0], nil
}
