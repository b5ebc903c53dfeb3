package tx

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/switchboard-xyz/usdy-example/pkg/metrics"
)

// Submitter hands a signed transaction to a ledger.
type Submitter interface {
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// BlockhashSource supplies the recent blockhash a transaction is built against.
type BlockhashSource interface {
	RecentBlockhash(ctx context.Context) (solana.Hash, error)
}

// StaticBlockhash always returns the same hash. The attested runner replaces it
// before broadcast when the function emits instead of submitting.
type StaticBlockhash solana.Hash

func (h StaticBlockhash) RecentBlockhash(context.Context) (solana.Hash, error) {
	return solana.Hash(h), nil
}

// Broadcaster handles transaction construction, signing, and submission.
type Broadcaster struct {
	submitter Submitter
	blockhash BlockhashSource
	target    string
	logger    zerolog.Logger
}

// BroadcasterConfig holds configuration for creating a Broadcaster.
type BroadcasterConfig struct {
	Submitter Submitter
	Blockhash BlockhashSource
	Target    string // Metrics label: "stdout", "rpc" or "local"
	Logger    zerolog.Logger
}

// NewBroadcaster creates a new transaction broadcaster.
func NewBroadcaster(cfg BroadcasterConfig) *Broadcaster {
	return &Broadcaster{
		submitter: cfg.Submitter,
		blockhash: cfg.Blockhash,
		target:    cfg.Target,
		logger:    cfg.Logger,
	}
}

// BroadcastTxRequest holds parameters for broadcasting a transaction.
type BroadcastTxRequest struct {
	Instructions []solana.Instruction
	Payer        solana.PrivateKey   // Fee payer, always a signer
	Signers      []solana.PrivateKey // Additional signers
}

// Build constructs and signs a transaction.
func (b *Broadcaster) Build(ctx context.Context, req BroadcastTxRequest) (*solana.Transaction, error) {
	if len(req.Instructions) == 0 {
		return nil, fmt.Errorf("%w: no instructions", ErrInvalidParameter)
	}
	if len(req.Payer) == 0 {
		return nil, fmt.Errorf("%w: payer", ErrMissingSigner)
	}

	hash, err := b.blockhash.RecentBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	txn, err := solana.NewTransaction(req.Instructions, hash, solana.TransactionPayer(req.Payer.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	keys := map[solana.PublicKey]solana.PrivateKey{req.Payer.PublicKey(): req.Payer}
	for _, k := range req.Signers {
		keys[k.PublicKey()] = k
	}
	if _, err := txn.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if k, ok := keys[pub]; ok {
			return &k
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingSigner, err)
	}
	return txn, nil
}

// BroadcastTx builds, signs and submits a transaction.
func (b *Broadcaster) BroadcastTx(ctx context.Context, req BroadcastTxRequest) (solana.Signature, error) {
	txn, err := b.Build(ctx, req)
	if err != nil {
		return solana.Signature{}, err
	}

	b.logger.Debug().
		Str("payer", req.Payer.PublicKey().String()).
		Int("num_instructions", len(req.Instructions)).
		Str("recent_blockhash", txn.Message.RecentBlockhash.String()).
		Msg("Submitting transaction")

	sig, err := b.submitter.Submit(ctx, txn)
	if err != nil {
		metrics.RecordRefreshSubmission(b.target, "error")
		return sig, fmt.Errorf("%w: %w", ErrTransactionRejected, err)
	}
	metrics.RecordRefreshSubmission(b.target, "ok")

	b.logger.Info().
		Str("signature", sig.String()).
		Str("target", b.target).
		Msg("Transaction submitted")
	return sig, nil
}
