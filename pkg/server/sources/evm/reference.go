package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/switchboard-xyz/usdy-example/pkg/server/sources"
)

// Issuer price oracle ABI (only getPrice).
const referenceABIJSON = `[{
	"inputs": [],
	"name": "getPrice",
	"outputs": [{"internalType": "uint256", "name": "price", "type": "uint256"}],
	"stateMutability": "view",
	"type": "function"
}]`

var referenceABI = mustParseABI(referenceABIJSON)

// ReferenceSource reads the issuer's published price from its on-chain oracle contract.
type ReferenceSource struct {
	*evmSource
	contract common.Address
	decimals int
}

// NewReferenceSource creates a new reference price source.
func NewReferenceSource(config map[string]interface{}) (sources.Source, error) {
	base, err := newEVMSource(config)
	if err != nil {
		return nil, err
	}

	s := &ReferenceSource{evmSource: base}
	if s.contract, err = parseAddress(config, "contract"); err != nil {
		return nil, err
	}
	if s.decimals, err = parseDecimals(config, "decimals"); err != nil {
		return nil, err
	}
	return s, nil
}

// Fetch calls getPrice() and rescales the result to 18 decimals.
func (s *ReferenceSource) Fetch(ctx context.Context) (sources.Quote, error) {
	start := time.Now()
	raw, err := s.fetch(ctx)
	return s.finish(start, raw, err)
}

func (s *ReferenceSource) fetch(ctx context.Context) (*big.Int, error) {
	out, err := s.call(ctx, s.contract, referenceABI, "getPrice")
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: getPrice returned %d values", sources.ErrInvalidPoolResponse, len(out))
	}
	price, ok := out[0].(*big.Int)
	if !ok || price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: getPrice", sources.ErrInvalidPoolResponse)
	}

	switch {
	case s.decimals == QuoteDecimals:
		return price, nil
	case s.decimals < QuoteDecimals:
		return new(big.Int).Mul(price, pow10(QuoteDecimals-s.decimals)), nil
	default:
		return new(big.Int).Quo(price, pow10(s.decimals-QuoteDecimals)), nil
	}
}
