package main

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchboard-xyz/usdy-example/pkg/attest"
	"github.com/switchboard-xyz/usdy-example/pkg/config"
	feedertx "github.com/switchboard-xyz/usdy-example/pkg/feeder/tx"
	"github.com/switchboard-xyz/usdy-example/pkg/ledger"
)

// tickClock advances one slot per reading so repeated transactions get fresh blockhashes.
type tickClock struct{ slot uint64 }

func (c *tickClock) Now() (uint64, int64) {
	c.slot++
	return c.slot, 1_700_000_000 + int64(c.slot)
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	network := attest.NewMemoryNetwork(zerolog.Nop())
	authority := solana.NewWallet().PrivateKey
	register := func() solana.PublicKey {
		fn := solana.NewWallet().PublicKey()
		network.Register(&attest.FunctionAccount{
			Address:   fn,
			Authority: authority.PublicKey(),
			Status:    attest.StatusActive,
		})
		return fn
	}

	rt, err := ledger.NewRuntime(ledger.Config{
		ProgramID:            solana.MustPublicKeyFromBase58(config.DefaultProgramID),
		AttestationProgramID: solana.MustPublicKeyFromBase58(config.DefaultAttestationProgramID),
		Network:              network,
		Clock:                &tickClock{},
		Logger:               zerolog.Nop(),
	})
	require.NoError(t, err)
	b := feedertx.NewBroadcaster(feedertx.BroadcasterConfig{Submitter: rt, Blockhash: rt, Target: config.ModeLocal, Logger: zerolog.Nop()})

	first := register()
	require.NoError(t, bootstrap(ctx, rt, b, authority, first))
	program, err := ledger.LoadProgramState(ctx, rt.Store(), rt.ProgramID())
	require.NoError(t, err)
	assert.Equal(t, first, program.BoundWriter)

	// Restarting with the same function is a no-op.
	require.NoError(t, bootstrap(ctx, rt, b, authority, first))

	second := register()
	require.NoError(t, bootstrap(ctx, rt, b, authority, second))
	program, err = ledger.LoadProgramState(ctx, rt.Store(), rt.ProgramID())
	require.NoError(t, err)
	assert.Equal(t, second, program.BoundWriter)
	assert.Equal(t, authority.PublicKey(), program.Authority)

	// A foreign authority cannot rebind the writer.
	assert.Error(t, bootstrap(ctx, rt, b, solana.NewWallet().PrivateKey, register()))
}

func TestLocalMeasurement(t *testing.T) {
	m, err := localMeasurement("")
	require.NoError(t, err)
	assert.NotEqual(t, attest.Measurement{}, m)

	_, err = localMeasurement("not-hex")
	assert.Error(t, err)
}
