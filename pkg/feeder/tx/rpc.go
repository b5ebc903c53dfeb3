package tx

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCSubmitter submits transactions through a ledger JSON-RPC endpoint.
type RPCSubmitter struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
}

var (
	_ Submitter       = (*RPCSubmitter)(nil)
	_ BlockhashSource = (*RPCSubmitter)(nil)
)

// NewRPCSubmitter creates a submitter for endpoint.
func NewRPCSubmitter(endpoint string) (*RPCSubmitter, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: rpc endpoint", ErrInvalidParameter)
	}
	return &RPCSubmitter{client: rpc.New(endpoint), commitment: rpc.CommitmentConfirmed}, nil
}

// RecentBlockhash fetches the latest blockhash.
func (s *RPCSubmitter) RecentBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := s.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, err
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, fmt.Errorf("%w: empty blockhash response", ErrTransactionRejected)
	}
	return out.Value.Blockhash, nil
}

// Submit sends tx with preflight at the submitter's commitment.
func (s *RPCSubmitter) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	return s.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: s.commitment,
	})
}
