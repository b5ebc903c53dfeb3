// Package trust derives the oracle's deterministic account addresses and holds the
// predicates that both the update builder and the ledger program evaluate.
package trust

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Address derivation seeds. They must match the deployed program byte for byte.
var (
	ProgramSeed   = []byte("USDY_USDC_ORACLE_V2")
	OracleSeed    = []byte("ORACLE_USDY_SEED_V2")
	PriceFeedTag  = []byte("ondo_price_feed")
	TradedFeedTag = []byte("ondo_traded_feed")
)

// Addresses are the four accounts a refresh touches, plus their canonical bumps.
type Addresses struct {
	Program        solana.PublicKey
	ProgramBump    uint8
	Oracle         solana.PublicKey
	OracleBump     uint8
	PriceFeed      solana.PublicKey
	PriceFeedBump  uint8
	TradedFeed     solana.PublicKey
	TradedFeedBump uint8
}

// ProgramStateSeeds returns the seeds of the program state account.
func ProgramStateSeeds() [][]byte {
	return [][]byte{ProgramSeed}
}

// OracleStateSeeds returns the seeds of the oracle state account.
func OracleStateSeeds() [][]byte {
	return [][]byte{OracleSeed}
}

// FeedSeeds returns the seeds of a writer's feed account for the given tag.
func FeedSeeds(writer solana.PublicKey, tag []byte) [][]byte {
	return [][]byte{OracleSeed, writer.Bytes(), tag}
}

// ProgramStateAddress derives the program state account.
func ProgramStateAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(ProgramStateSeeds(), programID)
}

// OracleStateAddress derives the oracle state account.
func OracleStateAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(OracleStateSeeds(), programID)
}

// FeedAddress derives the feed account bound to writer for tag.
func FeedAddress(programID, writer solana.PublicKey, tag []byte) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(FeedSeeds(writer, tag), programID)
}

// DeriveAddresses derives every account of a refresh for the given writer identity.
func DeriveAddresses(programID, writer solana.PublicKey) (Addresses, error) {
	var a Addresses
	var err error

	if a.Program, a.ProgramBump, err = ProgramStateAddress(programID); err != nil {
		return a, fmt.Errorf("derive program state: %w", err)
	}
	if a.Oracle, a.OracleBump, err = OracleStateAddress(programID); err != nil {
		return a, fmt.Errorf("derive oracle state: %w", err)
	}
	if a.PriceFeed, a.PriceFeedBump, err = FeedAddress(programID, writer, PriceFeedTag); err != nil {
		return a, fmt.Errorf("derive price feed: %w", err)
	}
	if a.TradedFeed, a.TradedFeedBump, err = FeedAddress(programID, writer, TradedFeedTag); err != nil {
		return a, fmt.Errorf("derive traded feed: %w", err)
	}
	return a, nil
}

// VerifySeeds reports whether addr is the address derived from seeds with the given bump.
func VerifySeeds(programID, addr solana.PublicKey, seeds [][]byte, bump uint8) bool {
	withBump := append(append([][]byte{}, seeds...), []byte{bump})
	derived, err := solana.CreateProgramAddress(withBump, programID)
	return err == nil && derived.Equals(addr)
}
