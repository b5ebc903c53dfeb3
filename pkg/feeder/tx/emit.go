package tx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// EmitResult is the function's output line: the signed transaction for the runner to broadcast.
type EmitResult struct {
	Signature   string `json:"signature"`
	Transaction string `json:"transaction"` // base64 wire encoding
	Encoding    string `json:"encoding"`
}

// Emitter writes each signed transaction as one JSON line instead of submitting it.
type Emitter struct {
	mu sync.Mutex
	w  io.Writer
}

var _ Submitter = (*Emitter)(nil)

// NewEmitter writes to w.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Submit encodes tx and writes it.
func (e *Emitter) Submit(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, fmt.Errorf("%w: unsigned transaction", ErrInvalidParameter)
	}
	encoded, err := tx.ToBase64()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("encode transaction: %w", err)
	}
	line, err := json.Marshal(EmitResult{
		Signature:   tx.Signatures[0].String(),
		Transaction: encoded,
		Encoding:    "base64",
	})
	if err != nil {
		return solana.Signature{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(append(line, '\n')); err != nil {
		return solana.Signature{}, fmt.Errorf("write result: %w", err)
	}
	return tx.Signatures[0], nil
}
