package aggregator

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// LedgerScale is the number of fractional digits of every published price.
const LedgerScale = 9

// ToDecimal converts a raw fixed-point integer with the given number of fractional digits.
func ToDecimal(raw *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -decimals)
}

// ToLedger rounds v half away from zero to LedgerScale digits and returns the scaled integer.
func ToLedger(v decimal.Decimal) (uint64, error) {
	if v.IsNegative() {
		return 0, fmt.Errorf("%w: negative value %s", ErrValueOutOfRange, v)
	}
	scaled := v.Round(LedgerScale).Shift(LedgerScale).BigInt()
	if !scaled.IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrValueOutOfRange, v)
	}
	return scaled.Uint64(), nil
}

// FromLedger converts a ledger-scale integer back to a decimal.
func FromLedger(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -LedgerScale)
}
