// Package evm provides EVM-based quote sources (Uniswap V2/V3 pools and issuer reference contracts).
package evm

import "errors"

var (
	// ErrRPCURLRequired indicates that rpc_url configuration is required.
	ErrRPCURLRequired = errors.New("rpc_url is required")
)
