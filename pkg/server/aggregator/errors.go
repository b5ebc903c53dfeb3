package aggregator

import "errors"

var (
	// ErrNoValues indicates that a reducer received no input.
	ErrNoValues = errors.New("no values to reduce")
	// ErrPassthroughArity indicates a pass-through reducer received other than one value.
	ErrPassthroughArity = errors.New("pass-through requires exactly one value")
	// ErrUnknownMode indicates that the aggregation mode is unknown.
	ErrUnknownMode = errors.New("unknown aggregation mode")
	// ErrValueOutOfRange indicates a value cannot be represented at ledger scale.
	ErrValueOutOfRange = errors.New("value out of ledger range")
	// ErrCycleAborted indicates at least one required source failed and nothing was reduced.
	ErrCycleAborted = errors.New("aggregation cycle aborted")
	// ErrSymbolMismatch indicates a source quoted a different symbol than its panel.
	ErrSymbolMismatch = errors.New("quote symbol does not match panel")
	// ErrEmptyPanel indicates a panel was configured without sources.
	ErrEmptyPanel = errors.New("panel has no sources")
)
