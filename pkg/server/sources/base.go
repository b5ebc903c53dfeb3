package sources

import (
	"sync"
	"time"

	"github.com/switchboard-xyz/usdy-example/pkg/logging"
)

// BaseSource provides common functionality for all quote sources
type BaseSource struct {
	name       string
	sourcetype SourceType
	symbol     string
	lastUpdate time.Time
	healthy    bool
	mu         sync.RWMutex
	logger     *logging.Logger
}

// NewBaseSource creates a new base source for a single unified symbol (e.g. "USDY/USDC").
func NewBaseSource(name string, sourcetype SourceType, symbol string, logger *logging.Logger) *BaseSource {
	return &BaseSource{
		name:       name,
		sourcetype: sourcetype,
		symbol:     symbol,
		logger:     logger,
	}
}

// Name returns the source name
func (b *BaseSource) Name() string {
	return b.name
}

// Type returns the source type
func (b *BaseSource) Type() SourceType {
	return b.sourcetype
}

// Symbol returns the unified symbol
func (b *BaseSource) Symbol() string {
	return b.symbol
}

// IsHealthy returns the health status
func (b *BaseSource) IsHealthy() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.healthy
}

// SetHealthy sets the health status
func (b *BaseSource) SetHealthy(healthy bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthy = healthy
}

// LastUpdate returns the time of the last successful fetch
func (b *BaseSource) LastUpdate() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdate
}

// MarkFetched records the outcome of a fetch.
func (b *BaseSource) MarkFetched(ok bool, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthy = ok
	if ok {
		b.lastUpdate = at
	}
}

// Logger returns the logger
func (b *BaseSource) Logger() *logging.Logger {
	return b.logger
}
