package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/switchboard-xyz/usdy-example/pkg/attest"
	"github.com/switchboard-xyz/usdy-example/pkg/metrics"
	"github.com/switchboard-xyz/usdy-example/pkg/trust"
)

// Account positions of each instruction.
const (
	initProgram = iota
	initOracle
	initAuthority
	initFunction
	initPayer
	initSystemProgram
	initPriceFeed
	initTradedFeed
	initNewAuthority
)

const (
	refreshProgram = iota
	refreshOracle
	refreshFunction
	refreshEnclaveSigner
	refreshPriceFeed
	refreshTradedFeed
)

const (
	setFnProgram = iota
	setFnAuthority
	setFnFunction
)

const (
	triggerProgram = iota
	triggerFunction
	triggerAuthority
	triggerQueue
	triggerAttestationProgram
)

// initialize creates the program, oracle and feed accounts that do not exist yet.
// Existing accounts are left untouched.
func (r *Runtime) initialize(inv *invocation) error {
	params, err := r.adminPrelude(inv)
	if err != nil {
		return err
	}
	a := inv.accounts
	authority := a[initAuthority].PublicKey
	function := a[initFunction].PublicKey

	if ok, err := inv.exists(a[initProgram].PublicKey); err != nil {
		return err
	} else if !ok {
		if err := r.storeProgram(inv, a[initProgram].PublicKey, &ProgramState{
			Bump:        params.Bump,
			Authority:   authority,
			BoundWriter: function,
		}); err != nil {
			return err
		}
	}
	if ok, err := inv.exists(a[initOracle].PublicKey); err != nil {
		return err
	} else if !ok {
		if err := r.storeOracle(inv, a[initOracle].PublicKey, &OracleState{Bump: params.Bump2}); err != nil {
			return err
		}
	}
	for _, feed := range []solana.PublicKey{a[initPriceFeed].PublicKey, a[initTradedFeed].PublicKey} {
		if ok, err := inv.exists(feed); err != nil {
			return err
		} else if !ok {
			if err := r.storeFeed(inv, feed, &FeedAccount{Authority: authority}); err != nil {
				return err
			}
		}
	}

	r.logger.Debug().
		Str("authority", authority.String()).
		Str("function", function.String()).
		Msg("Initialized")
	return nil
}

// update rebinds the authority and the writer. The signer must be the stored authority.
// An optional trailing account names a new authority.
func (r *Runtime) update(inv *invocation) error {
	params, err := r.adminPrelude(inv)
	if err != nil {
		return err
	}
	a := inv.accounts
	signer := a[initAuthority].PublicKey
	function := a[initFunction].PublicKey

	program, err := r.loadProgram(inv, a[initProgram].PublicKey)
	if err != nil {
		return err
	}
	if !program.Authority.Equals(signer) {
		return ErrInvalidAuthority.Withf("signer %s is not the program authority", signer)
	}
	oracle, err := r.loadOracle(inv, a[initOracle].PublicKey)
	if err != nil {
		return err
	}

	newAuthority := signer
	if len(a) > initNewAuthority {
		newAuthority = a[initNewAuthority].PublicKey
	}

	program.Bump = params.Bump
	program.Authority = newAuthority
	program.BoundWriter = function
	if err := r.storeProgram(inv, a[initProgram].PublicKey, program); err != nil {
		return err
	}
	oracle.Bump = params.Bump2
	if err := r.storeOracle(inv, a[initOracle].PublicKey, oracle); err != nil {
		return err
	}

	for _, key := range []solana.PublicKey{a[initPriceFeed].PublicKey, a[initTradedFeed].PublicKey} {
		feed, err := r.loadFeed(inv, key)
		if errors.Is(err, ErrAccountNotInitialized) {
			feed, err = &FeedAccount{}, nil
		}
		if err != nil {
			return err
		}
		feed.Authority = newAuthority
		if err := r.storeFeed(inv, key, feed); err != nil {
			return err
		}
	}

	r.logger.Debug().
		Str("authority", newAuthority.String()).
		Str("function", function.String()).
		Msg("Updated")
	return nil
}

// adminPrelude runs the account checks shared by initialize and update.
func (r *Runtime) adminPrelude(inv *invocation) (InitializeParams, error) {
	if err := inv.requireAccounts(initNewAuthority); err != nil {
		return InitializeParams{}, err
	}
	params, err := decodeInitializeParams(inv.args)
	if err != nil {
		return params, ErrInstructionDidNotDeserialize.With(err)
	}
	a := inv.accounts

	if err := requireSigner(a[initAuthority], "authority"); err != nil {
		return params, err
	}
	if err := requireSigner(a[initPayer], "payer"); err != nil {
		return params, err
	}
	for _, i := range []int{initProgram, initOracle, initPriceFeed, initTradedFeed} {
		if err := requireWritable(a[i]); err != nil {
			return params, err
		}
	}
	if !a[initSystemProgram].PublicKey.Equals(solana.SystemProgramID) {
		return params, ErrConstraintAddress.Withf("system program %s", a[initSystemProgram].PublicKey)
	}

	programAddr, programBump, err := trust.ProgramStateAddress(r.programID)
	if err != nil {
		return params, err
	}
	if !programAddr.Equals(a[initProgram].PublicKey) || programBump != params.Bump {
		return params, ErrConstraintSeeds.Withf("program state %s bump %d", a[initProgram].PublicKey, params.Bump)
	}
	oracleAddr, oracleBump, err := trust.OracleStateAddress(r.programID)
	if err != nil {
		return params, err
	}
	if !oracleAddr.Equals(a[initOracle].PublicKey) || oracleBump != params.Bump2 {
		return params, ErrConstraintSeeds.Withf("oracle state %s bump %d", a[initOracle].PublicKey, params.Bump2)
	}

	function := a[initFunction].PublicKey
	if _, err := r.loadFunction(inv, function); err != nil {
		return params, err
	}
	if _, err := trust.CheckFeedAddress(r.programID, function, a[initPriceFeed].PublicKey, trust.PriceFeedTag); err != nil {
		return params, ErrConstraintSeeds.With(err)
	}
	if _, err := trust.CheckFeedAddress(r.programID, function, a[initTradedFeed].PublicKey, trust.TradedFeedTag); err != nil {
		return params, ErrConstraintSeeds.With(err)
	}
	return params, nil
}

// setFunction rebinds the writer alone.
func (r *Runtime) setFunction(inv *invocation) error {
	if err := inv.requireAccounts(setFnFunction + 1); err != nil {
		return err
	}
	a := inv.accounts
	if err := requireSigner(a[setFnAuthority], "authority"); err != nil {
		return err
	}
	if err := requireWritable(a[setFnProgram]); err != nil {
		return err
	}
	program, err := r.loadProgramChecked(inv, a[setFnProgram].PublicKey)
	if err != nil {
		return err
	}
	if !program.Authority.Equals(a[setFnAuthority].PublicKey) {
		return ErrConstraintHasOne.Withf("authority %s", a[setFnAuthority].PublicKey)
	}
	function := a[setFnFunction].PublicKey
	if _, err := r.loadFunction(inv, function); err != nil {
		return err
	}

	program.BoundWriter = function
	if err := r.storeProgram(inv, a[setFnProgram].PublicKey, program); err != nil {
		return err
	}
	r.logger.Debug().Str("function", function.String()).Msg("Function rebound")
	return nil
}

// refreshOracles writes a row batch from the bound writer into the oracle and both feeds.
func (r *Runtime) refreshOracles(inv *invocation) error {
	if err := inv.requireAccounts(refreshTradedFeed + 1); err != nil {
		return err
	}
	a := inv.accounts
	if err := requireSigner(a[refreshEnclaveSigner], "enclave_signer"); err != nil {
		return err
	}
	for _, i := range []int{refreshProgram, refreshOracle, refreshPriceFeed, refreshTradedFeed} {
		if err := requireWritable(a[i]); err != nil {
			return err
		}
	}

	program, err := r.loadProgramChecked(inv, a[refreshProgram].PublicKey)
	if err != nil {
		return err
	}
	oracle, err := r.loadOracle(inv, a[refreshOracle].PublicKey)
	if err != nil {
		return err
	}
	if !trust.VerifySeeds(r.programID, a[refreshOracle].PublicKey, trust.OracleStateSeeds(), oracle.Bump) {
		return ErrConstraintSeeds.Withf("oracle state %s", a[refreshOracle].PublicKey)
	}

	function := a[refreshFunction].PublicKey
	if err := trust.CheckWriter(function, program.BoundWriter); err != nil {
		return ErrFunctionValidationFailed.With(ErrIncorrectSwitchboardFunction.With(err))
	}
	fn, err := r.loadFunction(inv, function)
	if err != nil {
		return err
	}
	if err := attest.Validate(fn, a[refreshEnclaveSigner].PublicKey); err != nil {
		return ErrFunctionValidationFailed.With(attestationError(err))
	}

	feeds := []struct {
		key solana.PublicKey
		tag []byte
	}{
		{a[refreshPriceFeed].PublicKey, trust.PriceFeedTag},
		{a[refreshTradedFeed].PublicKey, trust.TradedFeedTag},
	}
	loaded := make([]*FeedAccount, len(feeds))
	for i, f := range feeds {
		if _, err := trust.CheckFeedAddress(r.programID, program.BoundWriter, f.key, f.tag); err != nil {
			return ErrConstraintSeeds.With(err)
		}
		feed, err := r.loadFeed(inv, f.key)
		if err != nil {
			return err
		}
		if err := trust.CheckFeedAuthority(feed.Authority, program.Authority); err != nil {
			return ErrInvalidAuthority.With(err)
		}
		loaded[i] = feed
	}

	params, err := decodeRefreshOraclesParams(inv.args)
	if err != nil {
		return ErrInstructionDidNotDeserialize.With(err)
	}
	data, err := r.applyRows(oracle.USDYUSD, params.Rows, inv.now)
	if err != nil {
		return err
	}

	r.logger.Debug().Msg("saving oracle data")
	oracle.USDYUSD = data
	if err := r.storeOracle(inv, a[refreshOracle].PublicKey, oracle); err != nil {
		return err
	}
	r.logger.Debug().
		Uint64("ondo_price", data.OndoPrice).
		Uint64("traded_price", data.TradedPrice).
		Msg("Oracle saved")

	prices := []uint64{data.OndoPrice, data.TradedPrice}
	names := []string{string(trust.PriceFeedTag), string(trust.TradedFeedTag)}
	for i, f := range feeds {
		loaded[i].LatestConfirmedRound = Round{
			NumSuccess:         1,
			NumError:           0,
			Result:             NewDecimal(prices[i], PriceScale),
			RoundOpenTimestamp: inv.now,
			RoundOpenSlot:      inv.slot,
		}
		if err := r.storeFeed(inv, f.key, loaded[i]); err != nil {
			return err
		}
	}
	now := inv.now
	inv.afterCommit(func(context.Context) error {
		for _, name := range names {
			metrics.RecordFeedRound(name, now)
		}
		return nil
	})
	return nil
}

// applyRows validates the batch and returns the data it leaves behind. Rows apply in
// order, so the last applied row wins even when its timestamp is older than the stored one.
func (r *Runtime) applyRows(current OracleData, rows []Row, now int64) (OracleData, error) {
	if len(rows) == 0 {
		return current, ErrInstructionDidNotDeserialize.Withf("refresh carries no rows")
	}
	if len(rows) > MaxRefreshRows {
		return current, ErrArrayOverflow.Withf("%d rows, at most %d", len(rows), MaxRefreshRows)
	}
	oldest := now - int64(r.maxRowAge.Seconds())
	for i, row := range rows {
		if !row.Symbol.Valid() {
			return current, ErrInvalidSymbol.Withf("row %d: %s", i, row.Symbol)
		}
		if row.Data.OracleTimestamp < oldest {
			return current, ErrStaleData.Withf("row %d timestamp %d is older than %s", i, row.Data.OracleTimestamp, r.maxRowAge)
		}
		current = row.Data
	}
	return current, nil
}

// attestationError maps an attestation failure to its program error.
func attestationError(err error) error {
	switch {
	case errors.Is(err, attest.ErrInvalidTrustedSigner):
		return ErrInvalidTrustedSigner.With(err)
	case errors.Is(err, attest.ErrInvalidMrEnclave):
		return ErrInvalidMrEnclave.With(err)
	default:
		return err
	}
}

// triggerFunction asks the attestation network to run the bound writer now.
func (r *Runtime) triggerFunction(inv *invocation) error {
	if err := inv.requireAccounts(triggerAttestationProgram + 1); err != nil {
		return err
	}
	a := inv.accounts
	if err := requireSigner(a[triggerAuthority], "authority"); err != nil {
		return err
	}
	program, err := r.loadProgramChecked(inv, a[triggerProgram].PublicKey)
	if err != nil {
		return err
	}
	function := a[triggerFunction].PublicKey
	if err := trust.CheckWriter(function, program.BoundWriter); err != nil {
		return ErrInvalidSwitchboardFunction.With(err)
	}
	fn, err := r.loadFunction(inv, function)
	if err != nil {
		return err
	}
	authority := a[triggerAuthority].PublicKey
	queue := a[triggerQueue].PublicKey
	if !fn.Authority.Equals(authority) {
		return ErrConstraintHasOne.Withf("function authority %s", authority)
	}
	if !fn.AttestationQueue.Equals(queue) {
		return ErrConstraintHasOne.Withf("attestation queue %s", queue)
	}
	if !a[triggerAttestationProgram].PublicKey.Equals(r.attestationProgramID) {
		return ErrConstraintAddress.Withf("attestation program %s", a[triggerAttestationProgram].PublicKey)
	}

	inv.afterCommit(func(ctx context.Context) error {
		if err := r.network.Trigger(ctx, function, authority, queue); err != nil {
			return fmt.Errorf("trigger function %s: %w", function, err)
		}
		return nil
	})
	return nil
}
