package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/switchboard-xyz/usdy-example/pkg/server/sources"
)

// Uniswap V2 Pair ABI (only getReserves function).
const pairABIJSON = `[{
	"constant": true,
	"inputs": [],
	"name": "getReserves",
	"outputs": [
		{"internalType": "uint112", "name": "reserve0", "type": "uint112"},
		{"internalType": "uint112", "name": "reserve1", "type": "uint112"},
		{"internalType": "uint32", "name": "blockTimestampLast", "type": "uint32"}
	],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}]`

var pairABI = mustParseABI(pairABIJSON)

// UniswapV2Source implements quote fetching from a constant-product pair.
type UniswapV2Source struct {
	*evmSource
	pair      common.Address
	decimals0 int
	decimals1 int
	// baseIsToken1 inverts the reserve ratio when the base asset is token1.
	baseIsToken1 bool
}

// Reserves holds the pair reserves.
type Reserves struct {
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32
}

// NewUniswapV2Source creates a new Uniswap V2 style quote source.
func NewUniswapV2Source(config map[string]interface{}) (sources.Source, error) {
	base, err := newEVMSource(config)
	if err != nil {
		return nil, err
	}

	s := &UniswapV2Source{evmSource: base}
	if s.pair, err = parseAddress(config, "pair_address"); err != nil {
		return nil, err
	}
	if s.decimals0, err = parseDecimals(config, "decimals0"); err != nil {
		return nil, err
	}
	if s.decimals1, err = parseDecimals(config, "decimals1"); err != nil {
		return nil, err
	}
	if v, ok := config["base_is_token1"].(bool); ok {
		s.baseIsToken1 = v
	}

	return s, nil
}

// Fetch reads the pair reserves and converts their ratio into an 18-decimal quote.
func (s *UniswapV2Source) Fetch(ctx context.Context) (sources.Quote, error) {
	start := time.Now()
	raw, err := s.fetch(ctx)
	return s.finish(start, raw, err)
}

func (s *UniswapV2Source) fetch(ctx context.Context) (*big.Int, error) {
	reserves, err := s.getReserves(ctx)
	if err != nil {
		return nil, err
	}
	if reserves.Reserve0.Sign() == 0 || reserves.Reserve1.Sign() == 0 {
		return nil, fmt.Errorf("%w", sources.ErrZeroLiquidity)
	}
	return ReservesToQuote(reserves.Reserve0, reserves.Reserve1, s.decimals0, s.decimals1, s.baseIsToken1), nil
}

// getReserves calls the getReserves() function on a Uniswap V2 pair contract.
func (s *UniswapV2Source) getReserves(ctx context.Context) (*Reserves, error) {
	out, err := s.call(ctx, s.pair, pairABI, "getReserves")
	if err != nil {
		return nil, err
	}
	if len(out) != 3 {
		return nil, fmt.Errorf("%w: getReserves returned %d values", sources.ErrInvalidPoolResponse, len(out))
	}

	r0, ok0 := out[0].(*big.Int)
	r1, ok1 := out[1].(*big.Int)
	ts, ok2 := out[2].(uint32)
	if !ok0 || !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: getReserves types", sources.ErrInvalidPoolResponse)
	}

	return &Reserves{Reserve0: r0, Reserve1: r1, BlockTimestampLast: ts}, nil
}

// ReservesToQuote calculates the spot price of the base token from reserves.
// Price = (reserve1 / 10^decimals1) / (reserve0 / 10^decimals0) when the base is token0.
func ReservesToQuote(reserve0, reserve1 *big.Int, decimals0, decimals1 int, baseIsToken1 bool) *big.Int {
	if baseIsToken1 {
		return scaledRatio(reserve0, reserve1, decimals1, decimals0)
	}
	return scaledRatio(reserve1, reserve0, decimals0, decimals1)
}
