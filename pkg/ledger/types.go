package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// PriceScale is the number of fractional decimal digits of every published price.
const PriceScale = 9

// Symbol is a tracked trading pair.
type Symbol uint8

const (
	SymbolUSDYUSDC Symbol = iota
)

func (s Symbol) String() string {
	switch s {
	case SymbolUSDYUSDC:
		return "USDY/USDC"
	default:
		return fmt.Sprintf("Symbol(%d)", uint8(s))
	}
}

// Valid reports whether s is a tracked pair.
func (s Symbol) Valid() bool {
	return s == SymbolUSDYUSDC
}

// ParseSymbol accepts "USDY/USDC" or "USDY_USDC", case insensitive.
func ParseSymbol(s string) (Symbol, error) {
	switch strings.ToUpper(strings.ReplaceAll(s, "_", "/")) {
	case "USDY/USDC":
		return SymbolUSDYUSDC, nil
	}
	return 0, fmt.Errorf("unknown symbol %q", s)
}

// OracleData is the latest pair of prices for one symbol, both at PriceScale.
type OracleData struct {
	OracleTimestamp int64  `json:"oracle_timestamp"`
	OndoPrice       uint64 `json:"ondo_price"`
	TradedPrice     uint64 `json:"traded_price"`
}

// ProgramState is the singleton holding the authority and the bound writer.
type ProgramState struct {
	Bump        uint8            `json:"bump"`
	Authority   solana.PublicKey `json:"authority"`
	BoundWriter solana.PublicKey `json:"bound_writer"`
}

// OracleState is the singleton holding the latest prices.
type OracleState struct {
	Bump    uint8      `json:"bump"`
	USDYUSD OracleData `json:"usdy_usd"`
}

// Decimal is a fixed point value: Mantissa * 10^-Scale.
type Decimal struct {
	Mantissa *big.Int `json:"mantissa"`
	Scale    uint32   `json:"scale"`
}

// NewDecimal builds a Decimal from an unsigned mantissa.
func NewDecimal(mantissa uint64, scale uint32) Decimal {
	return Decimal{Mantissa: new(big.Int).SetUint64(mantissa), Scale: scale}
}

// Value returns the decimal value.
func (d Decimal) Value() decimal.Decimal {
	if d.Mantissa == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(d.Mantissa, -int32(d.Scale))
}

// Round is one confirmed price observation.
type Round struct {
	NumSuccess         uint32  `json:"num_success"`
	NumError           uint32  `json:"num_error"`
	Result             Decimal `json:"result"`
	RoundOpenTimestamp int64   `json:"round_open_timestamp"`
	RoundOpenSlot      uint64  `json:"round_open_slot"`
}

// FeedAccount exposes the latest confirmed round of one tracked price.
type FeedAccount struct {
	Authority            solana.PublicKey `json:"authority"`
	LatestConfirmedRound Round            `json:"latest_confirmed_round"`
}

// Row is one symbol's prices in a refresh batch.
type Row struct {
	Symbol Symbol     `json:"symbol"`
	Data   OracleData `json:"data"`
}

// RefreshOraclesParams is the argument of refresh_oracles.
type RefreshOraclesParams struct {
	Rows []Row `json:"rows"`
}

// InitializeParams is the argument of initialize and update.
type InitializeParams struct {
	Bump  uint8 `json:"bump"`
	Bump2 uint8 `json:"bump2"`
}
