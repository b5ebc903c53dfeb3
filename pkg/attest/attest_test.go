package attest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFunction(allowed ...Measurement) *FunctionAccount {
	return &FunctionAccount{
		Address:             solana.NewWallet().PublicKey(),
		Authority:           solana.NewWallet().PublicKey(),
		AttestationQueue:    solana.NewWallet().PublicKey(),
		AllowedMeasurements: allowed,
		Status:              StatusActive,
	}
}

func TestValidate(t *testing.T) {
	good := Measurement{1}
	bad := Measurement{2}
	signer := solana.NewWallet().PublicKey()

	tests := []struct {
		name    string
		mutate  func(*FunctionAccount)
		signer  solana.PublicKey
		wantErr error
	}{
		{"valid", func(*FunctionAccount) {}, signer, nil},
		{"other signer", func(*FunctionAccount) {}, solana.NewWallet().PublicKey(), ErrInvalidTrustedSigner},
		{"unverified", func(f *FunctionAccount) { f.EnclaveSigner = solana.PublicKey{} }, solana.PublicKey{}, ErrInvalidTrustedSigner},
		{"measurement revoked", func(f *FunctionAccount) { f.MrEnclave = bad }, signer, ErrInvalidMrEnclave},
		{"expired", func(f *FunctionAccount) { f.Status = StatusExpired }, signer, ErrFunctionInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := newFunction(good)
			fn.EnclaveSigner = signer
			fn.MrEnclave = good
			tt.mutate(fn)

			err := Validate(fn, tt.signer)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.ErrorIs(t, Validate(nil, signer), ErrFunctionNotFound)
}

func TestMemoryNetworkVerify(t *testing.T) {
	ctx := context.Background()
	n := NewMemoryNetwork(zerolog.Nop())
	good := Measurement{0xaa}
	fn := newFunction(good)
	n.Register(fn)

	signer := solana.NewWallet().PublicKey()
	assert.ErrorIs(t, n.Verify(ctx, fn.Address, signer, Measurement{0xbb}), ErrInvalidMrEnclave)
	require.NoError(t, n.Verify(ctx, fn.Address, signer, good))

	loaded, err := n.Function(ctx, fn.Address)
	require.NoError(t, err)
	assert.Equal(t, signer, loaded.EnclaveSigner)
	assert.NoError(t, Validate(loaded, signer))

	// copies are detached from the network's record
	loaded.EnclaveSigner = solana.PublicKey{}
	again, err := n.Function(ctx, fn.Address)
	require.NoError(t, err)
	assert.Equal(t, signer, again.EnclaveSigner)

	_, err = n.Function(ctx, solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrFunctionNotFound)
}

func TestMemoryNetworkTrigger(t *testing.T) {
	ctx := context.Background()
	n := NewMemoryNetwork(zerolog.Nop())
	fn := newFunction()
	n.Register(fn)
	ch := n.Subscribe(fn.Address)

	require.NoError(t, n.Trigger(ctx, fn.Address, fn.Authority, fn.AttestationQueue))
	require.NoError(t, n.Trigger(ctx, fn.Address, fn.Authority, fn.AttestationQueue))

	// pending triggers coalesce into one notification
	select {
	case <-ch:
	default:
		t.Fatal("expected a trigger")
	}
	select {
	case <-ch:
		t.Fatal("triggers should coalesce")
	default:
	}

	loaded, err := n.Function(ctx, fn.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), loaded.TriggerCount)

	assert.ErrorIs(t, n.Trigger(ctx, fn.Address, solana.NewWallet().PublicKey(), fn.AttestationQueue), ErrUnauthorized)
	assert.ErrorIs(t, n.Trigger(ctx, fn.Address, fn.Authority, solana.NewWallet().PublicKey()), ErrUnauthorized)

	require.NoError(t, n.SetStatus(fn.Address, StatusOutOfFunds))
	assert.ErrorIs(t, n.Trigger(ctx, fn.Address, fn.Authority, fn.AttestationQueue), ErrFunctionInactive)
}

func TestParseMeasurement(t *testing.T) {
	m := Measurement{0xde, 0xad}
	parsed, err := ParseMeasurement("0x" + m.String())
	require.NoError(t, err)
	assert.Equal(t, m, parsed)

	_, err = ParseMeasurement("abcd")
	assert.Error(t, err)
	_, err = ParseMeasurement("zz")
	assert.Error(t, err)
}

func TestMeasureFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, []byte("build one"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("build two"), 0o600))

	ma, err := MeasureFile(a)
	require.NoError(t, err)
	ma2, err := MeasureFile(a)
	require.NoError(t, err)
	mb, err := MeasureFile(b)
	require.NoError(t, err)

	assert.Equal(t, ma, ma2)
	assert.NotEqual(t, ma, mb)

	_, err = MeasureExecutable()
	assert.NoError(t, err)
}
