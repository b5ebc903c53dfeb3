package ledger

import (
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/switchboard-xyz/usdy-example/pkg/attest"
	"github.com/switchboard-xyz/usdy-example/pkg/trust"
)

func (inv *invocation) requireAccounts(n int) error {
	if len(inv.accounts) < n {
		return ErrAccountNotEnoughKeys.Withf("want %d accounts, got %d", n, len(inv.accounts))
	}
	return nil
}

func requireSigner(meta *solana.AccountMeta, name string) error {
	if !meta.IsSigner {
		return ErrAccountNotSigner.Withf("%s %s", name, meta.PublicKey)
	}
	return nil
}

func requireWritable(meta *solana.AccountMeta) error {
	if !meta.IsWritable {
		return ErrAccountNotMutable.Withf("%s", meta.PublicKey)
	}
	return nil
}

func (inv *invocation) exists(key solana.PublicKey) (bool, error) {
	_, err := inv.view.get(inv.ctx, key)
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	return err == nil, err
}

// data returns the data of an account owned by the program.
func (r *Runtime) data(inv *invocation, key solana.PublicKey) ([]byte, error) {
	acc, err := inv.view.get(inv.ctx, key)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrAccountNotInitialized.Withf("%s", key)
	}
	if err != nil {
		return nil, err
	}
	if !acc.Owner.Equals(r.programID) {
		return nil, ErrAccountOwnedByWrongProgram.Withf("%s owned by %s", key, acc.Owner)
	}
	return acc.Data, nil
}

func (r *Runtime) put(inv *invocation, key solana.PublicKey, data []byte, err error) error {
	if err != nil {
		return err
	}
	inv.view.put(key, &Account{Owner: r.programID, Data: data})
	return nil
}

func (r *Runtime) loadProgram(inv *invocation, key solana.PublicKey) (*ProgramState, error) {
	data, err := r.data(inv, key)
	if err != nil {
		return nil, err
	}
	return DecodeProgramState(data)
}

// loadProgramChecked loads the program state and verifies its address against the stored bump.
func (r *Runtime) loadProgramChecked(inv *invocation, key solana.PublicKey) (*ProgramState, error) {
	program, err := r.loadProgram(inv, key)
	if err != nil {
		return nil, err
	}
	if !trust.VerifySeeds(r.programID, key, trust.ProgramStateSeeds(), program.Bump) {
		return nil, ErrConstraintSeeds.Withf("program state %s", key)
	}
	return program, nil
}

func (r *Runtime) loadOracle(inv *invocation, key solana.PublicKey) (*OracleState, error) {
	data, err := r.data(inv, key)
	if err != nil {
		return nil, err
	}
	return DecodeOracleState(data)
}

func (r *Runtime) loadFeed(inv *invocation, key solana.PublicKey) (*FeedAccount, error) {
	data, err := r.data(inv, key)
	if err != nil {
		return nil, err
	}
	return DecodeFeed(data)
}

func (r *Runtime) storeProgram(inv *invocation, key solana.PublicKey, s *ProgramState) error {
	data, err := EncodeProgramState(s)
	return r.put(inv, key, data, err)
}

func (r *Runtime) storeOracle(inv *invocation, key solana.PublicKey, s *OracleState) error {
	data, err := EncodeOracleState(s)
	return r.put(inv, key, data, err)
}

func (r *Runtime) storeFeed(inv *invocation, key solana.PublicKey, f *FeedAccount) error {
	data, err := EncodeFeed(f)
	return r.put(inv, key, data, err)
}

func (r *Runtime) loadFunction(inv *invocation, key solana.PublicKey) (*attest.FunctionAccount, error) {
	fn, err := r.network.Function(inv.ctx, key)
	if errors.Is(err, attest.ErrFunctionNotFound) {
		return nil, ErrAccountNotInitialized.With(err)
	}
	return fn, err
}
