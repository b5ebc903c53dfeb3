package ledger

import (
	"crypto/sha256"
	"errors"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscriminators(t *testing.T) {
	sum := sha256.Sum256([]byte("global:refresh_oracles"))
	d := InstructionDiscriminator(InstructionRefreshOracles)
	assert.Equal(t, sum[:8], d[:])

	sum = sha256.Sum256([]byte("account:AggregatorAccountData"))
	assert.Equal(t, sum[:8], feedDiscriminator[:])
}

func TestInt128(t *testing.T) {
	for _, s := range []string{"0", "1", "-1", "1043219877", "-170141183460469231731687303715884105728", "170141183460469231731687303715884105727"} {
		v, ok := new(big.Int).SetString(s, 10)
		require.True(t, ok)
		raw, err := int128Bytes(v)
		require.NoError(t, err, s)
		require.Len(t, raw, 16)
		assert.Equal(t, 0, v.Cmp(int128FromBytes(raw)), s)
	}

	raw, err := int128Bytes(big.NewInt(-1))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, raw)

	_, err = int128Bytes(new(big.Int).Lsh(big.NewInt(1), 127))
	assert.Error(t, err)
}

func TestAccountCodecs(t *testing.T) {
	program := &ProgramState{Bump: 254, Authority: solana.NewWallet().PublicKey(), BoundWriter: solana.NewWallet().PublicKey()}
	data, err := EncodeProgramState(program)
	require.NoError(t, err)
	gotProgram, err := DecodeProgramState(data)
	require.NoError(t, err)
	assert.Equal(t, program, gotProgram)

	feed := &FeedAccount{
		Authority: solana.NewWallet().PublicKey(),
		LatestConfirmedRound: Round{
			NumSuccess:         1,
			Result:             NewDecimal(1_043_219_877, PriceScale),
			RoundOpenTimestamp: 1_700_000_000,
			RoundOpenSlot:      42,
		},
	}
	data, err = EncodeFeed(feed)
	require.NoError(t, err)
	gotFeed, err := DecodeFeed(data)
	require.NoError(t, err)
	assert.Equal(t, "1.043219877", gotFeed.LatestConfirmedRound.Result.Value().String())
	assert.Equal(t, feed.Authority, gotFeed.Authority)
	assert.Equal(t, feed.LatestConfirmedRound.RoundOpenSlot, gotFeed.LatestConfirmedRound.RoundOpenSlot)

	// Data of one account type never decodes as another
	_, err = DecodeOracleState(data)
	assert.ErrorIs(t, err, ErrAccountDiscriminatorMismatch)

	_, err = DecodeFeed(data[:20])
	assert.ErrorIs(t, err, ErrAccountDidNotDeserialize)
}

func TestRefreshParamsRejectTruncatedBatch(t *testing.T) {
	params := RefreshOraclesParams{Rows: []Row{{Symbol: SymbolUSDYUSDC, Data: OracleData{OracleTimestamp: 1, OndoPrice: 2, TradedPrice: 3}}}}
	data, err := EncodeInstruction(InstructionRefreshOracles, params)
	require.NoError(t, err)

	decoded, err := decodeRefreshOraclesParams(data[8:])
	require.NoError(t, err)
	assert.Equal(t, params, decoded)

	_, err = decodeRefreshOraclesParams(data[8 : len(data)-1])
	assert.Error(t, err)
}

func TestProgramErrorMatching(t *testing.T) {
	cause := errors.New("boom")
	err := ErrFunctionValidationFailed.With(ErrInvalidMrEnclave.With(cause))

	assert.ErrorIs(t, err, ErrFunctionValidationFailed)
	assert.ErrorIs(t, err, ErrInvalidMrEnclave)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrInvalidTrustedSigner)
	assert.Contains(t, err.Error(), "Error Number: 6008")
	assert.Contains(t, err.Error(), "boom")

	var pe *ProgramError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, uint32(6008), pe.Code)
}

func TestParseSymbol(t *testing.T) {
	for _, s := range []string{"USDY/USDC", "USDY_USDC"} {
		sym, err := ParseSymbol(s)
		require.NoError(t, err)
		assert.Equal(t, SymbolUSDYUSDC, sym)
	}
	_, err := ParseSymbol("BTC/USD")
	assert.Error(t, err)
	assert.False(t, Symbol(3).Valid())
}
