package evm

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/switchboard-xyz/usdy-example/pkg/server/sources"
)

// Uniswap V3 factory ABI (only getPool).
const factoryABIJSON = `[{
	"inputs": [
		{"internalType": "address", "name": "tokenA", "type": "address"},
		{"internalType": "address", "name": "tokenB", "type": "address"},
		{"internalType": "uint24", "name": "fee", "type": "uint24"}
	],
	"name": "getPool",
	"outputs": [{"internalType": "address", "name": "pool", "type": "address"}],
	"stateMutability": "view",
	"type": "function"
}]`

// Uniswap V3 pool ABI (only the leading slot0 outputs that are read).
const poolABIJSON = `[{
	"inputs": [],
	"name": "slot0",
	"outputs": [
		{"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
		{"internalType": "int24", "name": "tick", "type": "int24"}
	],
	"stateMutability": "view",
	"type": "function"
}]`

// DefaultFeeTier is the 0.05% pool used by stable pairs.
const DefaultFeeTier = 500

var (
	factoryABI = mustParseABI(factoryABIJSON)
	poolABI    = mustParseABI(poolABIJSON)

	// q192 is 2^192, the square of the Q64.96 fixed-point unit.
	q192 = new(big.Int).Lsh(big.NewInt(1), 192)
)

// UniswapV3Source quotes a concentrated-liquidity pool located through its factory.
type UniswapV3Source struct {
	*evmSource
	factory       common.Address
	baseToken     common.Address
	quoteToken    common.Address
	baseDecimals  int
	quoteDecimals int
	fee           *big.Int

	poolMu sync.Mutex
	pool   common.Address
}

// NewUniswapV3Source creates a new Uniswap V3 style quote source.
func NewUniswapV3Source(config map[string]interface{}) (sources.Source, error) {
	base, err := newEVMSource(config)
	if err != nil {
		return nil, err
	}

	s := &UniswapV3Source{evmSource: base}

	if s.factory, err = parseAddress(config, "factory"); err != nil {
		return nil, err
	}
	if s.baseToken, err = parseAddress(config, "base_token"); err != nil {
		return nil, err
	}
	if s.quoteToken, err = parseAddress(config, "quote_token"); err != nil {
		return nil, err
	}
	if s.baseDecimals, err = parseDecimals(config, "base_decimals"); err != nil {
		return nil, err
	}
	if s.quoteDecimals, err = parseDecimals(config, "quote_decimals"); err != nil {
		return nil, err
	}

	fee := sources.GetInt(config, "fee", DefaultFeeTier)
	if fee <= 0 || fee >= 1<<24 {
		return nil, fmt.Errorf("%w: fee out of range", sources.ErrInvalidConfig)
	}
	s.fee = big.NewInt(int64(fee))

	return s, nil
}

// Fetch reads slot0 from the pool and converts sqrtPriceX96 into an 18-decimal quote.
func (s *UniswapV3Source) Fetch(ctx context.Context) (sources.Quote, error) {
	start := time.Now()
	raw, err := s.fetch(ctx)
	return s.finish(start, raw, err)
}

func (s *UniswapV3Source) fetch(ctx context.Context) (*big.Int, error) {
	pool, err := s.poolAddress(ctx)
	if err != nil {
		return nil, err
	}

	out, err := s.call(ctx, pool, poolABI, "slot0")
	if err != nil {
		return nil, err
	}
	if len(out) < 1 {
		return nil, fmt.Errorf("%w: empty slot0", sources.ErrInvalidPoolResponse)
	}
	sqrtPriceX96, ok := out[0].(*big.Int)
	if !ok || sqrtPriceX96.Sign() <= 0 {
		return nil, fmt.Errorf("%w: sqrtPriceX96", sources.ErrInvalidPoolResponse)
	}

	return SqrtPriceToQuote(sqrtPriceX96, sortsBefore(s.baseToken, s.quoteToken), s.baseDecimals, s.quoteDecimals), nil
}

// poolAddress resolves the pool once; pool addresses never change for a factory/pair/fee.
func (s *UniswapV3Source) poolAddress(ctx context.Context) (common.Address, error) {
	s.poolMu.Lock()
	defer s.poolMu.Unlock()

	if s.pool != (common.Address{}) {
		return s.pool, nil
	}

	out, err := s.call(ctx, s.factory, factoryABI, "getPool", s.quoteToken, s.baseToken, s.fee)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) < 1 {
		return common.Address{}, fmt.Errorf("%w: empty getPool", sources.ErrInvalidPoolResponse)
	}
	pool, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: getPool returned %T", sources.ErrInvalidPoolResponse, out[0])
	}
	if pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: fee tier %s", sources.ErrPoolNotFound, s.fee)
	}

	s.pool = pool
	return pool, nil
}

// SqrtPriceToQuote converts a pool's sqrtPriceX96 into the price of the base token in
// quote token units, scaled to QuoteDecimals. sqrtPriceX96^2 / 2^192 is the raw
// token1/token0 ratio; baseIsToken0 selects the orientation.
func SqrtPriceToQuote(sqrtPriceX96 *big.Int, baseIsToken0 bool, baseDecimals, quoteDecimals int) *big.Int {
	sq := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	if baseIsToken0 {
		return scaledRatio(sq, q192, baseDecimals, quoteDecimals)
	}
	return scaledRatio(q192, sq, baseDecimals, quoteDecimals)
}
