package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchboard-xyz/usdy-example/pkg/attest"
	"github.com/switchboard-xyz/usdy-example/pkg/feeder/oracle"
	"github.com/switchboard-xyz/usdy-example/pkg/feeder/tx"
	"github.com/switchboard-xyz/usdy-example/pkg/ledger"
	"github.com/switchboard-xyz/usdy-example/pkg/metrics"
	"github.com/switchboard-xyz/usdy-example/pkg/trust"
)

var (
	programID       = solana.MustPublicKeyFromBase58("2LuPhyrumCFRXjeDuYp1bLNYp7EbzUraZcvrzN9ZBUkN")
	attestProgramID = solana.MustPublicKeyFromBase58("sbattyXrzedoNATfc4L31wC9Mhxsi1BmFhTiN8gDshx")
	goodMeasurement = attest.Measurement{0x5a}
)

type testClock struct {
	slot uint64
	ts   int64
}

func (c *testClock) Now() (uint64, int64) { return c.slot, c.ts }

// writer is an attested function with its verified enclave signer.
type writer struct {
	fn      *attest.FunctionAccount
	enclave solana.PrivateKey
}

type env struct {
	t         *testing.T
	ctx       context.Context
	rt        *ledger.Runtime
	store     *ledger.MemoryStore
	network   *attest.MemoryNetwork
	clock     *testClock
	b         *tx.Broadcaster
	authority solana.PrivateKey
	fnAuth    solana.PrivateKey
	queue     solana.PublicKey
	writer    writer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		t:         t,
		ctx:       context.Background(),
		store:     ledger.NewMemoryStore(),
		network:   attest.NewMemoryNetwork(zerolog.Nop()),
		clock:     &testClock{slot: 100, ts: 1_700_000_000},
		authority: solana.NewWallet().PrivateKey,
		fnAuth:    solana.NewWallet().PrivateKey,
		queue:     solana.NewWallet().PublicKey(),
	}
	rt, err := ledger.NewRuntime(ledger.Config{
		ProgramID:            programID,
		AttestationProgramID: attestProgramID,
		Store:                e.store,
		Network:              e.network,
		Clock:                e.clock,
		Logger:               zerolog.Nop(),
	})
	require.NoError(t, err)
	e.rt = rt
	e.b = tx.NewBroadcaster(tx.BroadcasterConfig{
		Submitter: rt,
		Blockhash: rt,
		Target:    "test",
		Logger:    zerolog.Nop(),
	})
	e.writer = e.newWriter()
	return e
}

func (e *env) newWriter() writer {
	e.t.Helper()
	w := writer{
		fn: &attest.FunctionAccount{
			Address:             solana.NewWallet().PublicKey(),
			Authority:           e.fnAuth.PublicKey(),
			AttestationQueue:    e.queue,
			AllowedMeasurements: []attest.Measurement{goodMeasurement},
			Status:              attest.StatusActive,
		},
		enclave: solana.NewWallet().PrivateKey,
	}
	e.network.Register(w.fn)
	require.NoError(e.t, e.network.Verify(e.ctx, w.fn.Address, w.enclave.PublicKey(), goodMeasurement))
	return w
}

// submit signs and executes ixs in one transaction, advancing the clock first.
func (e *env) submit(payer solana.PrivateKey, signers []solana.PrivateKey, ixs ...solana.Instruction) error {
	e.t.Helper()
	e.clock.slot++
	txn, err := e.b.Build(e.ctx, tx.BroadcastTxRequest{Instructions: ixs, Payer: payer, Signers: signers})
	require.NoError(e.t, err)
	_, err = e.rt.Submit(e.ctx, txn)
	return err
}

func (e *env) initialize(authority solana.PrivateKey, function solana.PublicKey) error {
	e.t.Helper()
	ix, err := oracle.BuildInitializeInstruction(programID, authority.PublicKey(), function, authority.PublicKey())
	require.NoError(e.t, err)
	return e.submit(authority, nil, ix)
}

func (e *env) refreshIx(w writer, signer solana.PrivateKey, rows ...ledger.Row) solana.Instruction {
	e.t.Helper()
	ix, err := oracle.BuildRefreshInstruction(programID, w.fn.Address, signer.PublicKey(), rows)
	require.NoError(e.t, err)
	return ix
}

func (e *env) refresh(w writer, signer solana.PrivateKey, rows ...ledger.Row) error {
	e.t.Helper()
	return e.submit(signer, nil, e.refreshIx(w, signer, rows...))
}

func (e *env) row(ondo, traded uint64) ledger.Row {
	return ledger.Row{
		Symbol: ledger.SymbolUSDYUSDC,
		Data:   ledger.OracleData{OracleTimestamp: e.clock.ts, OndoPrice: ondo, TradedPrice: traded},
	}
}

func (e *env) oracleState() *ledger.OracleState {
	e.t.Helper()
	s, err := ledger.LoadOracleState(e.ctx, e.store, programID)
	require.NoError(e.t, err)
	return s
}

func (e *env) programState() *ledger.ProgramState {
	e.t.Helper()
	s, err := ledger.LoadProgramState(e.ctx, e.store, programID)
	require.NoError(e.t, err)
	return s
}

func (e *env) feeds() *ledger.Feeds {
	e.t.Helper()
	f, err := ledger.LoadFeeds(e.ctx, e.store, programID)
	require.NoError(e.t, err)
	return f
}

func TestEndToEndRefresh(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.initialize(e.authority, e.writer.fn.Address))

	program := e.programState()
	assert.Equal(t, e.authority.PublicKey(), program.Authority)
	assert.Equal(t, e.writer.fn.Address, program.BoundWriter)

	require.NoError(t, e.refresh(e.writer, e.writer.enclave, e.row(1_000_000_000, 2_000_000_000)))

	data := e.oracleState().USDYUSD
	assert.True(t, ledger.NewDecimal(data.OndoPrice, ledger.PriceScale).Value().Equal(decimal.NewFromInt(1)))
	assert.True(t, ledger.NewDecimal(data.TradedPrice, ledger.PriceScale).Value().Equal(decimal.NewFromInt(2)))
	assert.Equal(t, e.clock.ts, data.OracleTimestamp)

	feeds := e.feeds()
	for _, tc := range []struct {
		feed ledger.FeedView
		want int64
	}{
		{feeds.PriceFeed, 1},
		{feeds.TradedFeed, 2},
	} {
		round := tc.feed.LatestConfirmedRound
		assert.Equal(t, uint32(1), round.NumSuccess)
		assert.Equal(t, uint32(0), round.NumError)
		assert.Equal(t, uint32(ledger.PriceScale), round.Result.Scale)
		assert.True(t, round.Result.Value().Equal(decimal.NewFromInt(tc.want)), "got %s", round.Result.Value())
		assert.Equal(t, e.clock.ts, round.RoundOpenTimestamp)
		assert.Equal(t, e.clock.slot, round.RoundOpenSlot)
		assert.Equal(t, e.authority.PublicKey(), tc.feed.Authority)
	}
}

func TestRefreshIsIdempotentOnContent(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.initialize(e.authority, e.writer.fn.Address))
	row := e.row(1_045_000_000, 1_043_219_877)

	require.NoError(t, e.refresh(e.writer, e.writer.enclave, row))
	first := e.feeds()

	e.clock.ts += 30
	require.NoError(t, e.refresh(e.writer, e.writer.enclave, row))
	second := e.feeds()

	a, b := first.TradedFeed.LatestConfirmedRound, second.TradedFeed.LatestConfirmedRound
	assert.Equal(t, a.Result.Mantissa.String(), b.Result.Mantissa.String())
	assert.Equal(t, a.RoundOpenTimestamp+30, b.RoundOpenTimestamp)
	assert.Greater(t, b.RoundOpenSlot, a.RoundOpenSlot)
}

func TestInitializeIsCreateIfMissing(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.initialize(e.authority, e.writer.fn.Address))
	require.NoError(t, e.refresh(e.writer, e.writer.enclave, e.row(1_000_000_000, 1_000_000_000)))

	// A second initialize by someone else leaves every account untouched
	intruder := solana.NewWallet().PrivateKey
	require.NoError(t, e.initialize(intruder, e.writer.fn.Address))

	assert.Equal(t, e.authority.PublicKey(), e.programState().Authority)
	assert.Equal(t, uint64(1_000_000_000), e.oracleState().USDYUSD.OndoPrice)
	assert.Equal(t, e.authority.PublicKey(), e.feeds().PriceFeed.Authority)
}

func TestInitializeRejectsBadAccounts(t *testing.T) {
	e := newEnv(t)

	ix, err := oracle.BuildInitializeInstruction(programID, e.authority.PublicKey(), solana.NewWallet().PublicKey(), e.authority.PublicKey())
	require.NoError(t, err)
	assert.ErrorIs(t, e.submit(e.authority, nil, ix), ledger.ErrAccountNotInitialized, "unknown function account")

	// Feeds derived for another writer
	other := e.newWriter()
	ix, err = oracle.BuildInitializeInstruction(programID, e.authority.PublicKey(), e.writer.fn.Address, e.authority.PublicKey())
	require.NoError(t, err)
	otherAddrs, err := trust.DeriveAddresses(programID, other.fn.Address)
	require.NoError(t, err)
	ix.AccountValues[6] = solana.Meta(otherAddrs.PriceFeed).WRITE()
	assert.ErrorIs(t, e.submit(e.authority, nil, ix), ledger.ErrConstraintSeeds)

	_, err = ledger.LoadProgramState(e.ctx, e.store, programID)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestRefreshRejectsForeignAttestation(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.initialize(e.authority, e.writer.fn.Address))
	require.NoError(t, e.refresh(e.writer, e.writer.enclave, e.row(1_000_000_000, 1_000_000_000)))
	before := e.feeds()

	// The bound function presented with another writer's enclave signer
	other := e.newWriter()
	err := e.refresh(e.writer, other.enclave, e.row(9_000_000_000, 9_000_000_000))
	assert.ErrorIs(t, err, ledger.ErrFunctionValidationFailed)
	assert.ErrorIs(t, err, ledger.ErrInvalidTrustedSigner)
	assert.ErrorIs(t, err, attest.ErrInvalidTrustedSigner)

	// Another writer claiming its own identity
	err = e.refresh(other, other.enclave, e.row(9_000_000_000, 9_000_000_000))
	assert.ErrorIs(t, err, ledger.ErrFunctionValidationFailed)
	assert.ErrorIs(t, err, ledger.ErrIncorrectSwitchboardFunction)

	assert.Equal(t, uint64(1_000_000_000), e.oracleState().USDYUSD.OndoPrice)
	assert.Equal(t, before, e.feeds())
}

func TestRefreshRejectsRevokedMeasurement(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.initialize(e.authority, e.writer.fn.Address))

	fn, err := e.network.Function(e.ctx, e.writer.fn.Address)
	require.NoError(t, err)
	fn.AllowedMeasurements = []attest.Measurement{{0x01}}
	e.network.Register(fn)

	err = e.refresh(e.writer, e.writer.enclave, e.row(1, 1))
	assert.ErrorIs(t, err, ledger.ErrFunctionValidationFailed)
	assert.ErrorIs(t, err, ledger.ErrInvalidMrEnclave)

	fn.AllowedMeasurements = []attest.Measurement{goodMeasurement}
	e.network.Register(fn)
	require.NoError(t, e.network.SetStatus(e.writer.fn.Address, attest.StatusExpired))
	err = e.refresh(e.writer, e.writer.enclave, e.row(1, 1))
	assert.ErrorIs(t, err, ledger.ErrFunctionValidationFailed)
	assert.ErrorIs(t, err, attest.ErrFunctionInactive)
}

func TestRefreshRejectsFeedAuthorityMismatch(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.initialize(e.authority, e.writer.fn.Address))
	require.NoError(t, e.refresh(e.writer, e.writer.enclave, e.row(1_000_000_000, 1_000_000_000)))

	addrs, err := trust.DeriveAddresses(programID, e.writer.fn.Address)
	require.NoError(t, err)
	forged, err := ledger.EncodeFeed(&ledger.FeedAccount{Authority: solana.NewWallet().PublicKey()})
	require.NoError(t, err)
	e.store.Put(addrs.TradedFeed, &ledger.Account{Owner: programID, Data: forged})

	for _, row := range []ledger.Row{e.row(2_000_000_000, 2_000_000_000), e.row(0, 0)} {
		err := e.refresh(e.writer, e.writer.enclave, row)
		assert.ErrorIs(t, err, ledger.ErrInvalidAuthority)
	}
	assert.Equal(t, uint64(1_000_000_000), e.oracleState().USDYUSD.OndoPrice)
	assert.Equal(t, uint64(1_000_000_000), e.feeds().PriceFeed.LatestConfirmedRound.Result.Mantissa.Uint64())
}

func TestRefreshRowValidation(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.initialize(e.authority, e.writer.fn.Address))
	require.NoError(t, e.refresh(e.writer, e.writer.enclave, e.row(1, 1)))

	tooMany := make([]ledger.Row, ledger.MaxRefreshRows+1)
	for i := range tooMany {
		tooMany[i] = e.row(1, 1)
	}
	badSymbol := e.row(1, 1)
	badSymbol.Symbol = ledger.Symbol(7)
	expired := e.row(1, 1)

	tests := []struct {
		name    string
		advance int64
		rows    []ledger.Row
		wantErr error
	}{
		{"empty batch", 0, nil, ledger.ErrInstructionDidNotDeserialize},
		{"overflow", 0, tooMany, ledger.ErrArrayOverflow},
		{"unknown symbol", 0, []ledger.Row{badSymbol}, ledger.ErrInvalidSymbol},
		{"older than max age", int64(ledger.DefaultMaxRowAge.Seconds()) + 1, []ledger.Row{expired}, ledger.ErrStaleData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.clock.ts += tt.advance
			err := e.refresh(e.writer, e.writer.enclave, tt.rows...)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Same timestamp is a resubmission, and a full batch applies its last row
	full := make([]ledger.Row, ledger.MaxRefreshRows)
	for i := range full {
		full[i] = e.row(uint64(i+1), uint64(i+1))
	}
	require.NoError(t, e.refresh(e.writer, e.writer.enclave, full...))
	assert.Equal(t, uint64(ledger.MaxRefreshRows), e.oracleState().USDYUSD.TradedPrice)
}

func TestRefreshOutOfOrderLastAppliedWins(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.initialize(e.authority, e.writer.fn.Address))

	// Two overlapping cycles stamped one second apart land in reverse order
	newer := e.row(1_000_000_001, 1_000_000_001)
	newer.Data.OracleTimestamp++
	older := e.row(1_000_000_000, 1_000_000_000)

	require.NoError(t, e.refresh(e.writer, e.writer.enclave, newer))
	require.NoError(t, e.refresh(e.writer, e.writer.enclave, older))

	state := e.oracleState().USDYUSD
	assert.Equal(t, older.Data.OracleTimestamp, state.OracleTimestamp)
	assert.Equal(t, uint64(1_000_000_000), state.OndoPrice)
	assert.Equal(t, uint64(1_000_000_000), e.feeds().TradedFeed.LatestConfirmedRound.Result.Mantissa.Uint64())
}

func TestUpdateRequiresAuthority(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.initialize(e.authority, e.writer.fn.Address))
	next := e.newWriter()

	intruder := solana.NewWallet().PrivateKey
	ix, err := oracle.BuildUpdateInstruction(programID, intruder.PublicKey(), next.fn.Address, intruder.PublicKey(), solana.PublicKey{})
	require.NoError(t, err)
	assert.ErrorIs(t, e.submit(intruder, nil, ix), ledger.ErrInvalidAuthority)
	assert.Equal(t, e.writer.fn.Address, e.programState().BoundWriter)

	ix, err = oracle.BuildUpdateInstruction(programID, e.authority.PublicKey(), next.fn.Address, e.authority.PublicKey(), solana.PublicKey{})
	require.NoError(t, err)
	require.NoError(t, e.submit(e.authority, nil, ix))
	assert.Equal(t, next.fn.Address, e.programState().BoundWriter)

	// The new writer's feeds exist and it can refresh; the old writer cannot
	require.NoError(t, e.refresh(next, next.enclave, e.row(3, 4)))
	assert.ErrorIs(t, e.refresh(e.writer, e.writer.enclave, e.row(3, 4)), ledger.ErrIncorrectSwitchboardFunction)
	assert.Equal(t, next.fn.Address, e.feeds().Writer)
}

func TestUpdateHandsOverAuthority(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.initialize(e.authority, e.writer.fn.Address))
	heir := solana.NewWallet().PrivateKey

	ix, err := oracle.BuildUpdateInstruction(programID, e.authority.PublicKey(), e.writer.fn.Address, e.authority.PublicKey(), heir.PublicKey())
	require.NoError(t, err)
	require.NoError(t, e.submit(e.authority, nil, ix))

	assert.Equal(t, heir.PublicKey(), e.programState().Authority)
	feeds := e.feeds()
	assert.Equal(t, heir.PublicKey(), feeds.PriceFeed.Authority)
	assert.Equal(t, heir.PublicKey(), feeds.TradedFeed.Authority)
	require.NoError(t, e.refresh(e.writer, e.writer.enclave, e.row(5, 6)))

	set, err := oracle.BuildSetFunctionInstruction(programID, e.authority.PublicKey(), e.writer.fn.Address)
	require.NoError(t, err)
	assert.ErrorIs(t, e.submit(e.authority, nil, set), ledger.ErrConstraintHasOne)
}

func TestSetFunctionRebindsWriter(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.initialize(e.authority, e.writer.fn.Address))
	next := e.newWriter()

	ix, err := oracle.BuildSetFunctionInstruction(programID, e.authority.PublicKey(), next.fn.Address)
	require.NoError(t, err)
	require.NoError(t, e.submit(e.authority, nil, ix))
	assert.Equal(t, next.fn.Address, e.programState().BoundWriter)

	// Feeds of the new writer are provisioned by initialize
	assert.ErrorIs(t, e.refresh(next, next.enclave, e.row(1, 1)), ledger.ErrAccountNotInitialized)
	require.NoError(t, e.initialize(e.authority, next.fn.Address))
	require.NoError(t, e.refresh(next, next.enclave, e.row(1, 1)))

	// Feeds provisioned by someone else carry the wrong authority
	third := e.newWriter()
	require.NoError(t, e.submit(e.authority, nil, mustSetFunction(t, e.authority.PublicKey(), third.fn.Address)))
	require.NoError(t, e.initialize(solana.NewWallet().PrivateKey, third.fn.Address))
	assert.ErrorIs(t, e.refresh(third, third.enclave, e.row(1, 1)), ledger.ErrInvalidAuthority)
}

func mustSetFunction(t *testing.T, authority, function solana.PublicKey) solana.Instruction {
	t.Helper()
	ix, err := oracle.BuildSetFunctionInstruction(programID, authority, function)
	require.NoError(t, err)
	return ix
}

func TestTriggerFunction(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.initialize(e.authority, e.writer.fn.Address))
	triggered := e.network.Subscribe(e.writer.fn.Address)

	trigger := func(attestation, function solana.PublicKey, authority solana.PrivateKey, queue solana.PublicKey) error {
		ix, err := oracle.BuildTriggerInstruction(programID, attestation, function, authority.PublicKey(), queue)
		require.NoError(t, err)
		return e.submit(authority, nil, ix)
	}

	require.NoError(t, trigger(attestProgramID, e.writer.fn.Address, e.fnAuth, e.queue))
	select {
	case <-triggered:
	default:
		t.Fatal("expected the function to be triggered")
	}

	assert.ErrorIs(t, trigger(attestProgramID, e.writer.fn.Address, solana.NewWallet().PrivateKey, e.queue), ledger.ErrConstraintHasOne)
	assert.ErrorIs(t, trigger(attestProgramID, e.writer.fn.Address, e.fnAuth, solana.NewWallet().PublicKey()), ledger.ErrConstraintHasOne)
	assert.ErrorIs(t, trigger(solana.NewWallet().PublicKey(), e.writer.fn.Address, e.fnAuth, e.queue), ledger.ErrConstraintAddress)

	other := e.newWriter()
	assert.ErrorIs(t, trigger(attestProgramID, other.fn.Address, e.fnAuth, e.queue), ledger.ErrInvalidSwitchboardFunction)

	fn, err := e.network.Function(e.ctx, e.writer.fn.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), fn.TriggerCount)
}

// failingStore rejects every commit while fail is set.
type failingStore struct {
	*ledger.MemoryStore
	fail bool
}

func (s *failingStore) Commit(ctx context.Context, writes map[solana.PublicKey]*ledger.Account) error {
	if s.fail {
		return errors.New("store unavailable")
	}
	return s.MemoryStore.Commit(ctx, writes)
}

func TestEffectsRunAfterCommit(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.initialize(e.authority, e.writer.fn.Address))
	require.NoError(t, e.refresh(e.writer, e.writer.enclave, e.row(1, 1)))
	triggered := e.network.Subscribe(e.writer.fn.Address)
	gauge := metrics.FeedRoundTimestamp.WithLabelValues(string(trust.PriceFeedTag))
	assert.Equal(t, float64(e.clock.ts), testutil.ToFloat64(gauge))

	store := &failingStore{MemoryStore: e.store, fail: true}
	rt, err := ledger.NewRuntime(ledger.Config{
		ProgramID:            programID,
		AttestationProgramID: attestProgramID,
		Store:                store,
		Network:              e.network,
		Clock:                e.clock,
		Logger:               zerolog.Nop(),
	})
	require.NoError(t, err)
	b := tx.NewBroadcaster(tx.BroadcasterConfig{Submitter: rt, Blockhash: rt, Target: "test", Logger: zerolog.Nop()})
	submit := func(payer solana.PrivateKey, ix solana.Instruction) error {
		e.clock.slot++
		_, err := b.BroadcastTx(e.ctx, tx.BroadcastTxRequest{Instructions: []solana.Instruction{ix}, Payer: payer})
		return err
	}
	triggerIx, err := oracle.BuildTriggerInstruction(programID, attestProgramID, e.writer.fn.Address, e.fnAuth.PublicKey(), e.queue)
	require.NoError(t, err)

	// A failed commit sends no trigger and records no round
	before := testutil.ToFloat64(gauge)
	e.clock.ts += 10
	assert.Error(t, submit(e.fnAuth, triggerIx))
	assert.Error(t, submit(e.writer.enclave, e.refreshIx(e.writer, e.writer.enclave, e.row(2, 2))))
	select {
	case <-triggered:
		t.Fatal("trigger sent for an uncommitted transaction")
	default:
	}
	assert.Equal(t, before, testutil.ToFloat64(gauge))
	assert.Equal(t, uint64(1), e.oracleState().USDYUSD.OndoPrice)

	store.fail = false
	require.NoError(t, submit(e.writer.enclave, e.refreshIx(e.writer, e.writer.enclave, e.row(2, 2))))
	assert.Equal(t, float64(e.clock.ts), testutil.ToFloat64(gauge))

	// The transaction stands when its trigger cannot be delivered
	require.NoError(t, e.network.SetStatus(e.writer.fn.Address, attest.StatusExpired))
	err = submit(e.fnAuth, triggerIx)
	assert.ErrorIs(t, err, ledger.ErrEffectFailed)
	assert.ErrorIs(t, err, attest.ErrFunctionInactive)
}

func TestTransactionIsAtomic(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.initialize(e.authority, e.writer.fn.Address))
	require.NoError(t, e.refresh(e.writer, e.writer.enclave, e.row(1, 1)))

	intruder := solana.NewWallet().PrivateKey
	err := e.submit(e.writer.enclave, []solana.PrivateKey{intruder},
		e.refreshIx(e.writer, e.writer.enclave, e.row(7, 7)),
		mustSetFunction(t, intruder.PublicKey(), e.writer.fn.Address),
	)
	assert.ErrorIs(t, err, ledger.ErrConstraintHasOne)
	assert.Equal(t, uint64(1), e.oracleState().USDYUSD.OndoPrice)
	assert.Equal(t, uint64(1), e.feeds().TradedFeed.LatestConfirmedRound.Result.Mantissa.Uint64())
}

func TestSubmitRejectsMalformedTransactions(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.initialize(e.authority, e.writer.fn.Address))
	ix := e.refreshIx(e.writer, e.writer.enclave, e.row(1, 1))

	_, err := e.rt.Submit(e.ctx, &solana.Transaction{})
	assert.ErrorIs(t, err, ledger.ErrUnsigned)

	txn, err := e.b.Build(e.ctx, tx.BroadcastTxRequest{Instructions: []solana.Instruction{ix}, Payer: e.writer.enclave})
	require.NoError(t, err)
	txn.Message.Instructions[0].Data[len(txn.Message.Instructions[0].Data)-1] ^= 0xff
	_, err = e.rt.Submit(e.ctx, txn)
	assert.ErrorIs(t, err, ledger.ErrSignatureVerification)

	txn, err = e.b.Build(e.ctx, tx.BroadcastTxRequest{Instructions: []solana.Instruction{ix}, Payer: e.writer.enclave})
	require.NoError(t, err)
	_, err = e.rt.Submit(e.ctx, txn)
	require.NoError(t, err)
	_, err = e.rt.Submit(e.ctx, txn)
	assert.ErrorIs(t, err, ledger.ErrDuplicateTransaction)

	unknown := solana.NewInstruction(programID, ix.Accounts(), []byte{1, 2, 3, 4, 5, 6, 7, 8})
	assert.ErrorIs(t, e.submit(e.writer.enclave, nil, unknown), ledger.ErrInstructionFallbackNotFound)

	short := solana.NewInstruction(programID, ix.Accounts(), []byte{1})
	assert.ErrorIs(t, e.submit(e.writer.enclave, nil, short), ledger.ErrInstructionMissing)

	foreign := solana.NewInstruction(solana.MemoProgramID, nil, []byte("hi"))
	assert.ErrorIs(t, e.submit(e.authority, nil, foreign), ledger.ErrUnsupportedProgram)
}

func TestOnCommitReceivesReceipts(t *testing.T) {
	e := newEnv(t)
	var receipts []ledger.Receipt
	e.rt.OnCommit(func(r ledger.Receipt) { receipts = append(receipts, r) })

	require.NoError(t, e.initialize(e.authority, e.writer.fn.Address))
	require.NoError(t, e.refresh(e.writer, e.writer.enclave, e.row(1, 1)))
	assert.Error(t, e.refresh(e.writer, solana.NewWallet().PrivateKey, e.row(1, 1)))

	require.Len(t, receipts, 2)
	assert.Equal(t, []string{ledger.InstructionInitialize}, receipts[0].Instructions)
	assert.Equal(t, []string{ledger.InstructionRefreshOracles}, receipts[1].Instructions)
	assert.Equal(t, e.clock.slot-1, receipts[1].Slot)
}
