package tx

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func memoInstruction(signers ...solana.PublicKey) solana.Instruction {
	metas := solana.AccountMetaSlice{}
	for _, s := range signers {
		metas = append(metas, solana.Meta(s).SIGNER())
	}
	return solana.NewInstruction(solana.MemoProgramID, metas, []byte("usdy"))
}

func newBroadcaster(sub Submitter) *Broadcaster {
	return NewBroadcaster(BroadcasterConfig{
		Submitter: sub,
		Blockhash: StaticBlockhash(solana.Hash{1, 2, 3}),
		Target:    "test",
		Logger:    zerolog.Nop(),
	})
}

func TestBuildSignsAllSigners(t *testing.T) {
	payer := solana.NewWallet().PrivateKey
	other := solana.NewWallet().PrivateKey
	b := newBroadcaster(nil)

	txn, err := b.Build(context.Background(), BroadcastTxRequest{
		Instructions: []solana.Instruction{memoInstruction(other.PublicKey())},
		Payer:        payer,
		Signers:      []solana.PrivateKey{other},
	})
	require.NoError(t, err)
	require.Len(t, txn.Signatures, 2)
	assert.NoError(t, txn.VerifySignatures())
	assert.Equal(t, payer.PublicKey(), txn.Message.AccountKeys[0])
	assert.Equal(t, solana.Hash{1, 2, 3}, txn.Message.RecentBlockhash)

	_, err = b.Build(context.Background(), BroadcastTxRequest{
		Instructions: []solana.Instruction{memoInstruction(other.PublicKey())},
		Payer:        payer,
	})
	assert.ErrorIs(t, err, ErrMissingSigner)

	_, err = b.Build(context.Background(), BroadcastTxRequest{Payer: payer})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestBroadcastTx(t *testing.T) {
	payer := solana.NewWallet().PrivateKey
	sub := new(mockSubmitter)
	want := solana.Signature{9}
	sub.On("Submit", mock.Anything, mock.AnythingOfType("*solana.Transaction")).Return(want, nil).Once()

	b := newBroadcaster(sub)
	sig, err := b.BroadcastTx(context.Background(), BroadcastTxRequest{
		Instructions: []solana.Instruction{memoInstruction()},
		Payer:        payer,
	})
	require.NoError(t, err)
	assert.Equal(t, want, sig)
	sub.AssertExpectations(t)

	sub.On("Submit", mock.Anything, mock.Anything).Return(solana.Signature{}, errors.New("boom")).Once()
	_, err = b.BroadcastTx(context.Background(), BroadcastTxRequest{
		Instructions: []solana.Instruction{memoInstruction()},
		Payer:        payer,
	})
	assert.ErrorIs(t, err, ErrTransactionRejected)
}

func TestEmitterWritesDecodableTransaction(t *testing.T) {
	var out bytes.Buffer
	payer := solana.NewWallet().PrivateKey
	b := newBroadcaster(NewEmitter(&out))

	sig, err := b.BroadcastTx(context.Background(), BroadcastTxRequest{
		Instructions: []solana.Instruction{memoInstruction()},
		Payer:        payer,
	})
	require.NoError(t, err)

	var res EmitResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, sig.String(), res.Signature)
	assert.Equal(t, "base64", res.Encoding)

	raw, err := base64.StdEncoding.DecodeString(res.Transaction)
	require.NoError(t, err)
	decoded, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	require.NoError(t, err)
	assert.NoError(t, decoded.VerifySignatures())
	assert.Equal(t, sig, decoded.Signatures[0])

	_, err = NewEmitter(&out).Submit(context.Background(), &solana.Transaction{})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestNewRPCSubmitterRequiresEndpoint(t *testing.T) {
	_, err := NewRPCSubmitter("")
	assert.ErrorIs(t, err, ErrInvalidParameter)

	s, err := NewRPCSubmitter("http://127.0.0.1:8899")
	require.NoError(t, err)
	assert.NotNil(t, s)
}
