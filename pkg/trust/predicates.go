package trust

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrAccountMismatch indicates an account list does not match the derived addresses.
	ErrAccountMismatch = errors.New("account does not match derived address")
	// ErrSeedMismatch indicates an account is not the address derived from its seeds.
	ErrSeedMismatch = errors.New("account not derived from expected seeds")
	// ErrAuthorityMismatch indicates a feed's authority differs from the program authority.
	ErrAuthorityMismatch = errors.New("feed authority does not match program authority")
	// ErrWriterMismatch indicates the presented writer is not the bound writer.
	ErrWriterMismatch = errors.New("writer is not the bound writer")
)

// RefreshAccountCount is the number of accounts of a refresh instruction.
const RefreshAccountCount = 6

// VerifyRefreshAccounts checks a refresh instruction's accounts against the addresses
// derived from the claimed writer: program, oracle, writer, signer, price feed, traded feed.
// A wrong claim is not detected here; the derived feeds simply will not exist on the ledger.
func VerifyRefreshAccounts(programID, writer, signer solana.PublicKey, metas solana.AccountMetaSlice) error {
	if len(metas) != RefreshAccountCount {
		return fmt.Errorf("%w: expected %d accounts, got %d", ErrAccountMismatch, RefreshAccountCount, len(metas))
	}

	addrs, err := DeriveAddresses(programID, writer)
	if err != nil {
		return err
	}

	expected := []struct {
		name     string
		key      solana.PublicKey
		writable bool
		signer   bool
	}{
		{"program", addrs.Program, true, false},
		{"oracle", addrs.Oracle, true, false},
		{"function", writer, false, false},
		{"enclave_signer", signer, false, true},
		{"price_feed", addrs.PriceFeed, true, false},
		{"traded_feed", addrs.TradedFeed, true, false},
	}

	for i, want := range expected {
		got := metas[i]
		if !got.PublicKey.Equals(want.key) {
			return fmt.Errorf("%w: %s is %s, want %s", ErrAccountMismatch, want.name, got.PublicKey, want.key)
		}
		if got.IsWritable != want.writable || got.IsSigner != want.signer {
			return fmt.Errorf("%w: %s flags writable=%t signer=%t", ErrAccountMismatch, want.name, got.IsWritable, got.IsSigner)
		}
	}
	return nil
}

// CheckWriter reports whether the presented function is the bound writer.
func CheckWriter(presented, bound solana.PublicKey) error {
	if !presented.Equals(bound) {
		return fmt.Errorf("%w: %s", ErrWriterMismatch, presented)
	}
	return nil
}

// CheckFeedAddress verifies that feed is the bound writer's feed for tag and returns its bump.
func CheckFeedAddress(programID, boundWriter, feed solana.PublicKey, tag []byte) (uint8, error) {
	want, bump, err := FeedAddress(programID, boundWriter, tag)
	if err != nil {
		return 0, err
	}
	if !want.Equals(feed) {
		return 0, fmt.Errorf("%w: %s feed %s", ErrSeedMismatch, tag, feed)
	}
	return bump, nil
}

// CheckFeedAuthority verifies a feed is governed by the program's current authority.
func CheckFeedAuthority(feedAuthority, programAuthority solana.PublicKey) error {
	if !feedAuthority.Equals(programAuthority) {
		return fmt.Errorf("%w: feed %s, program %s", ErrAuthorityMismatch, feedAuthority, programAuthority)
	}
	return nil
}
