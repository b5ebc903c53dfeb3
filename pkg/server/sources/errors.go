// Package sources provides quote source interfaces and the adapter registry.
package sources

import "errors"

var (
	// ErrUnknownSource indicates no factory is registered for the adapter key.
	ErrUnknownSource = errors.New("unknown source")
	// ErrInvalidConfig indicates that the source configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrAdapterRequired indicates that the config has no adapter.
	ErrAdapterRequired = errors.New("adapter is required")
	// ErrInvalidSymbolFormat indicates that the symbol format is invalid.
	ErrInvalidSymbolFormat = errors.New("symbol must be in BASE/QUOTE format")
	// ErrEmptyBaseCurrency indicates that the symbol BASE currency cannot be empty.
	ErrEmptyBaseCurrency = errors.New("symbol BASE currency cannot be empty")
	// ErrEmptyQuoteCurrency indicates that the symbol QUOTE currency cannot be empty.
	ErrEmptyQuoteCurrency = errors.New("symbol QUOTE currency cannot be empty")
	// ErrClientNotInitialized indicates that the client is not initialized.
	ErrClientNotInitialized = errors.New("client not initialized")
	// ErrZeroLiquidity indicates that there is zero liquidity in the pool.
	ErrZeroLiquidity = errors.New("zero liquidity in pool")
	// ErrInvalidPoolResponse indicates that the pool response is invalid.
	ErrInvalidPoolResponse = errors.New("invalid pool response")
	// ErrPoolNotFound indicates that the factory has no pool for the token pair.
	ErrPoolNotFound = errors.New("pool not found")
)
