package oracle

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/switchboard-xyz/usdy-example/pkg/ledger"
	"github.com/switchboard-xyz/usdy-example/pkg/server/aggregator"
	"github.com/switchboard-xyz/usdy-example/pkg/trust"
)

// RowsFromPrices converts aggregated price sets into a refresh batch stamped with now.
// The reference price fills OndoPrice and the market median fills TradedPrice.
func RowsFromPrices(prices []aggregator.PriceSet, now time.Time) ([]ledger.Row, error) {
	if len(prices) == 0 {
		return nil, ErrNoPricesProvided
	}
	if len(prices) > ledger.MaxRefreshRows {
		return nil, fmt.Errorf("%w: %d", ErrTooManyRows, len(prices))
	}

	rows := make([]ledger.Row, 0, len(prices))
	for _, p := range prices {
		sym, err := ledger.ParseSymbol(p.Symbol)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, p.Symbol)
		}
		rows = append(rows, ledger.Row{
			Symbol: sym,
			Data: ledger.OracleData{
				OracleTimestamp: now.Unix(),
				OndoPrice:       p.ReferenceLedger,
				TradedPrice:     p.MarketLedger,
			},
		})
	}
	return rows, nil
}

// BuildRefreshInstruction builds refresh_oracles for the claimed writer. Accounts are
// derived from function; a wrong claim yields feeds the ledger will reject.
func BuildRefreshInstruction(programID, function, enclaveSigner solana.PublicKey, rows []ledger.Row) (*solana.GenericInstruction, error) {
	addrs, err := trust.DeriveAddresses(programID, function)
	if err != nil {
		return nil, err
	}
	data, err := ledger.EncodeInstruction(ledger.InstructionRefreshOracles, ledger.RefreshOraclesParams{Rows: rows})
	if err != nil {
		return nil, err
	}

	metas := solana.AccountMetaSlice{
		solana.Meta(addrs.Program).WRITE(),
		solana.Meta(addrs.Oracle).WRITE(),
		solana.Meta(function),
		solana.Meta(enclaveSigner).SIGNER(),
		solana.Meta(addrs.PriceFeed).WRITE(),
		solana.Meta(addrs.TradedFeed).WRITE(),
	}
	if err := trust.VerifyRefreshAccounts(programID, function, enclaveSigner, metas); err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, metas, data), nil
}

func adminAccounts(programID, authority, function, payer solana.PublicKey) (solana.AccountMetaSlice, ledger.InitializeParams, error) {
	addrs, err := trust.DeriveAddresses(programID, function)
	if err != nil {
		return nil, ledger.InitializeParams{}, err
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(addrs.Program).WRITE(),
		solana.Meta(addrs.Oracle).WRITE(),
		solana.Meta(authority).SIGNER(),
		solana.Meta(function),
		solana.Meta(payer).SIGNER().WRITE(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(addrs.PriceFeed).WRITE(),
		solana.Meta(addrs.TradedFeed).WRITE(),
	}
	return metas, ledger.InitializeParams{Bump: addrs.ProgramBump, Bump2: addrs.OracleBump}, nil
}

// BuildInitializeInstruction builds initialize binding function as the writer.
func BuildInitializeInstruction(programID, authority, function, payer solana.PublicKey) (*solana.GenericInstruction, error) {
	metas, params, err := adminAccounts(programID, authority, function, payer)
	if err != nil {
		return nil, err
	}
	data, err := ledger.EncodeInstruction(ledger.InstructionInitialize, params)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, metas, data), nil
}

// BuildUpdateInstruction builds update. A non-zero newAuthority hands the program over.
func BuildUpdateInstruction(programID, authority, function, payer, newAuthority solana.PublicKey) (*solana.GenericInstruction, error) {
	metas, params, err := adminAccounts(programID, authority, function, payer)
	if err != nil {
		return nil, err
	}
	if !newAuthority.IsZero() {
		metas = append(metas, solana.Meta(newAuthority))
	}
	data, err := ledger.EncodeInstruction(ledger.InstructionUpdate, params)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, metas, data), nil
}

// BuildSetFunctionInstruction builds set_function.
func BuildSetFunctionInstruction(programID, authority, function solana.PublicKey) (*solana.GenericInstruction, error) {
	program, _, err := trust.ProgramStateAddress(programID)
	if err != nil {
		return nil, err
	}
	data, err := ledger.EncodeInstruction(ledger.InstructionSetFunction, nil)
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(program).WRITE(),
		solana.Meta(authority).SIGNER(),
		solana.Meta(function),
	}
	return solana.NewInstruction(programID, metas, data), nil
}

// BuildTriggerInstruction builds trigger_function.
func BuildTriggerInstruction(programID, attestationProgramID, function, authority, queue solana.PublicKey) (*solana.GenericInstruction, error) {
	program, _, err := trust.ProgramStateAddress(programID)
	if err != nil {
		return nil, err
	}
	data, err := ledger.EncodeInstruction(ledger.InstructionTriggerFunction, nil)
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(program),
		solana.Meta(function).WRITE(),
		solana.Meta(authority).SIGNER(),
		solana.Meta(queue),
		solana.Meta(attestationProgramID),
	}
	return solana.NewInstruction(programID, metas, data), nil
}
