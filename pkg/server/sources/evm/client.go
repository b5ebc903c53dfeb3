package evm

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/switchboard-xyz/usdy-example/pkg/metrics"
	"github.com/switchboard-xyz/usdy-example/pkg/server/sources"
)

// QuoteDecimals is the fixed-point scale of every EVM quote.
const QuoteDecimals = 18

// DefaultSymbol is quoted when the config names none.
const DefaultSymbol = "USDY/USDC"

// evmSource holds what every EVM adapter shares: the RPC connection and a contract caller.
type evmSource struct {
	*sources.BaseSource
	rpcURL string
	caller ethereum.ContractCaller
	client *ethclient.Client
}

func newEVMSource(config map[string]interface{}) (*evmSource, error) {
	name, err := sources.RequireString(config, "name")
	if err != nil {
		return nil, err
	}

	symbol := sources.GetString(config, "symbol")
	if symbol == "" {
		symbol = DefaultSymbol
	}
	if err := sources.ValidateSymbolFormat(symbol); err != nil {
		return nil, err
	}

	s := &evmSource{
		BaseSource: sources.NewBaseSource(name, sources.SourceTypeEVM, symbol, sources.GetLoggerFromConfig(config)),
		rpcURL:     sources.GetString(config, "rpc_url"),
	}

	// Tests and shared connections inject a caller directly.
	if caller, ok := config["caller"].(ethereum.ContractCaller); ok {
		s.caller = caller
	} else if s.rpcURL == "" {
		return nil, fmt.Errorf("%w", ErrRPCURLRequired)
	}

	return s, nil
}

// Initialize connects to the EVM RPC endpoint.
func (s *evmSource) Initialize(ctx context.Context) error {
	if s.caller != nil {
		return nil
	}
	client, err := ethclient.DialContext(ctx, s.rpcURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RPC: %w", err)
	}
	s.client = client
	s.caller = client
	return nil
}

// Close closes the RPC connection if this source opened one.
func (s *evmSource) Close() error {
	if s.client != nil {
		s.client.Close()
		s.client = nil
		s.caller = nil
	}
	return nil
}

// call packs, executes and unpacks a read-only contract call at the latest block.
func (s *evmSource) call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if s.caller == nil {
		return nil, fmt.Errorf("%w", sources.ErrClientNotInitialized)
	}

	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	result, err := s.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &to,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}

	out, err := contract.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return out, nil
}

// finish records metrics and health for one fetch and builds the quote.
func (s *evmSource) finish(start time.Time, raw *big.Int, err error) (sources.Quote, error) {
	now := time.Now()
	metrics.RecordQuoteFetch(s.Name(), err == nil, now.Sub(start))
	s.MarkFetched(err == nil, now)
	if err != nil {
		s.Logger().Warn("Quote fetch failed", "source", s.Name(), "error", err)
		return sources.Quote{}, err
	}
	s.Logger().Debug("Quote fetched", "source", s.Name(), "symbol", s.Symbol(), "raw", raw.String())
	return sources.Quote{
		Source:    s.Name(),
		Symbol:    s.Symbol(),
		Raw:       raw,
		Decimals:  QuoteDecimals,
		Timestamp: now,
	}, nil
}

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI: %v", err))
	}
	return parsed
}

func parseAddress(config map[string]interface{}, key string) (common.Address, error) {
	v, err := sources.RequireString(config, key)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%w: %s is not a hex address", sources.ErrInvalidConfig, key)
	}
	return common.HexToAddress(v), nil
}

func parseDecimals(config map[string]interface{}, key string) (int, error) {
	d := sources.GetInt(config, key, 18)
	if d < 0 || d > 36 {
		return 0, fmt.Errorf("%w: %s out of range", sources.ErrInvalidConfig, key)
	}
	return d, nil
}

// sortsBefore reports whether a is token0 of a pool containing a and b.
func sortsBefore(a, b common.Address) bool {
	return bytes.Compare(a.Bytes(), b.Bytes()) < 0
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// scaledRatio returns num*10^(QuoteDecimals+baseDecimals) / (den*10^quoteDecimals), truncated.
func scaledRatio(num, den *big.Int, baseDecimals, quoteDecimals int) *big.Int {
	n := new(big.Int).Mul(num, pow10(QuoteDecimals+baseDecimals))
	d := new(big.Int).Mul(den, pow10(quoteDecimals))
	return n.Quo(n, d)
}
