package ledger

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/switchboard-xyz/usdy-example/pkg/trust"
)

// LoadProgramState reads the program state singleton.
func LoadProgramState(ctx context.Context, store AccountStore, programID solana.PublicKey) (*ProgramState, error) {
	addr, _, err := trust.ProgramStateAddress(programID)
	if err != nil {
		return nil, err
	}
	acc, err := store.Get(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("load program state: %w", err)
	}
	return DecodeProgramState(acc.Data)
}

// LoadOracleState reads the oracle state singleton.
func LoadOracleState(ctx context.Context, store AccountStore, programID solana.PublicKey) (*OracleState, error) {
	addr, _, err := trust.OracleStateAddress(programID)
	if err != nil {
		return nil, err
	}
	acc, err := store.Get(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("load oracle state: %w", err)
	}
	return DecodeOracleState(acc.Data)
}

// LoadFeed reads the feed of writer for tag.
func LoadFeed(ctx context.Context, store AccountStore, programID, writer solana.PublicKey, tag []byte) (solana.PublicKey, *FeedAccount, error) {
	addr, _, err := trust.FeedAddress(programID, writer, tag)
	if err != nil {
		return addr, nil, err
	}
	acc, err := store.Get(ctx, addr)
	if err != nil {
		return addr, nil, fmt.Errorf("load %s: %w", tag, err)
	}
	feed, err := DecodeFeed(acc.Data)
	return addr, feed, err
}

// Feeds is a snapshot of both feeds of the bound writer.
type Feeds struct {
	Writer     solana.PublicKey `json:"writer"`
	PriceFeed  FeedView         `json:"ondo_price_feed"`
	TradedFeed FeedView         `json:"ondo_traded_feed"`
}

// FeedView is a feed with its address.
type FeedView struct {
	Address solana.PublicKey `json:"address"`
	FeedAccount
}

// LoadFeeds reads both feeds of the currently bound writer.
func LoadFeeds(ctx context.Context, store AccountStore, programID solana.PublicKey) (*Feeds, error) {
	program, err := LoadProgramState(ctx, store, programID)
	if err != nil {
		return nil, err
	}
	out := &Feeds{Writer: program.BoundWriter}
	for _, f := range []struct {
		tag  []byte
		dest *FeedView
	}{
		{trust.PriceFeedTag, &out.PriceFeed},
		{trust.TradedFeedTag, &out.TradedFeed},
	} {
		addr, feed, err := LoadFeed(ctx, store, programID, program.BoundWriter, f.tag)
		if err != nil {
			return nil, err
		}
		*f.dest = FeedView{Address: addr, FeedAccount: *feed}
	}
	return out, nil
}
