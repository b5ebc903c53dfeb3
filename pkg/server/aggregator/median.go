package aggregator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/switchboard-xyz/usdy-example/pkg/logging"
	"github.com/switchboard-xyz/usdy-example/pkg/metrics"
)

var half = decimal.New(5, -1)

// MedianReducer returns the middle value of a panel, or the mean of the two middle values.
type MedianReducer struct {
	logger *logging.Logger
}

// Ensure MedianReducer implements Reducer interface.
var _ Reducer = (*MedianReducer)(nil)

// NewMedianReducer creates a new median reducer.
func NewMedianReducer(logger *logging.Logger) *MedianReducer {
	return &MedianReducer{logger: logger}
}

// Mode returns ModeMedian.
func (r *MedianReducer) Mode() string {
	return ModeMedian
}

// Reduce computes the median. Decimal comparison is a total order, so equal values
// keep their relative order and the result is independent of input order.
func (r *MedianReducer) Reduce(values []decimal.Decimal) (decimal.Decimal, error) {
	start := time.Now()
	defer func() {
		metrics.RecordAggregation(ModeMedian, time.Since(start))
	}()

	if len(values) == 0 {
		return decimal.Zero, ErrNoValues
	}

	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Cmp(sorted[j]) < 0
	})

	mid := len(sorted) / 2
	var median decimal.Decimal
	if len(sorted)%2 == 0 {
		median = sorted[mid-1].Add(sorted[mid]).Mul(half)
	} else {
		median = sorted[mid]
	}

	r.logger.Debug("Median computed",
		"count", len(sorted),
		"min", sorted[0].String(),
		"max", sorted[len(sorted)-1].String(),
		"median", median.String())

	return median, nil
}
