// Package evm provides EVM-based quote sources (Uniswap V2/V3 pools and issuer reference contracts).
package evm

import (
	"github.com/switchboard-xyz/usdy-example/pkg/server/sources"
)

func init() {
	// Register all EVM adapters
	sources.Register("evm.uniswap_v3", NewUniswapV3Source)
	sources.Register("evm.uniswap_v2", NewUniswapV2Source)
	sources.Register("evm.reference", NewReferenceSource)
}
