package sources

import (
	"context"
	"math/big"
	"time"
)

// SourceType represents the type of quote source
type SourceType string

const (
	SourceTypeEVM SourceType = "evm"
)

// Quote is one raw price observation from a single venue.
// The value is Raw / 10^Decimals units of the quote asset per base asset.
type Quote struct {
	Source    string    `json:"source"`
	Symbol    string    `json:"symbol"`
	Raw       *big.Int  `json:"raw"`
	Decimals  int32     `json:"decimals"`
	Timestamp time.Time `json:"timestamp"`
}

// Source defines the interface that all quote sources must implement
type Source interface {
	// Initialize prepares the source for operation (e.g. dials the RPC endpoint)
	Initialize(ctx context.Context) error

	// Fetch performs a single network-bound quote fetch
	Fetch(ctx context.Context) (Quote, error)

	// Close releases network resources
	Close() error

	// Name returns the unique name of this source
	Name() string

	// Type returns the type of this source
	Type() SourceType

	// Symbol returns the unified symbol this source quotes
	Symbol() string

	// IsHealthy returns whether the last fetch succeeded
	IsHealthy() bool

	// LastUpdate returns the timestamp of the last successful fetch
	LastUpdate() time.Time
}

// SourceFactory is a function that creates a new Source instance
type SourceFactory func(config map[string]interface{}) (Source, error)
