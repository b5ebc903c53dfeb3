package attest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

// Network is the attested execution network as seen by the ledger program and the runner.
type Network interface {
	// Function loads a function account.
	Function(ctx context.Context, address solana.PublicKey) (*FunctionAccount, error)

	// Trigger requests an immediate run of the function outside its schedule.
	Trigger(ctx context.Context, function, authority, queue solana.PublicKey) error
}

// MemoryNetwork is an in-process attestation network. Verification of an enclave quote
// is modeled by Verify: a signer is bound to a function only under an allowed measurement.
type MemoryNetwork struct {
	mu          sync.RWMutex
	functions   map[solana.PublicKey]*FunctionAccount
	subscribers map[solana.PublicKey][]chan struct{}
	logger      zerolog.Logger
}

var _ Network = (*MemoryNetwork)(nil)

// NewMemoryNetwork creates an empty network.
func NewMemoryNetwork(logger zerolog.Logger) *MemoryNetwork {
	return &MemoryNetwork{
		functions:   make(map[solana.PublicKey]*FunctionAccount),
		subscribers: make(map[solana.PublicKey][]chan struct{}),
		logger:      logger.With().Str("component", "attest").Logger(),
	}
}

// Register creates or replaces a function account.
func (n *MemoryNetwork) Register(fn *FunctionAccount) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.functions[fn.Address] = fn.Clone()
	n.logger.Info().
		Str("function", fn.Address.String()).
		Str("authority", fn.Authority.String()).
		Int("allowed_measurements", len(fn.AllowedMeasurements)).
		Msg("Function registered")
}

// Function returns a copy of the function account.
func (n *MemoryNetwork) Function(_ context.Context, address solana.PublicKey) (*FunctionAccount, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	fn, ok := n.functions[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, address)
	}
	return fn.Clone(), nil
}

// Verify binds signer as the function's enclave signer if measurement is allowed.
func (n *MemoryNetwork) Verify(_ context.Context, function, signer solana.PublicKey, measurement Measurement) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	fn, ok := n.functions[function]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFunctionNotFound, function)
	}
	if !fn.Allows(measurement) {
		n.logger.Warn().
			Str("function", function.String()).
			Str("mr_enclave", measurement.String()).
			Msg("Verification rejected")
		return fmt.Errorf("%w: %s", ErrInvalidMrEnclave, measurement)
	}

	fn.EnclaveSigner = signer
	fn.MrEnclave = measurement
	fn.VerifiedAt = time.Now()
	n.logger.Info().
		Str("function", function.String()).
		Str("enclave_signer", signer.String()).
		Str("mr_enclave", measurement.String()).
		Msg("Enclave signer verified")
	return nil
}

// SetStatus changes a function's status.
func (n *MemoryNetwork) SetStatus(function solana.PublicKey, status Status) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	fn, ok := n.functions[function]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFunctionNotFound, function)
	}
	fn.Status = status
	return nil
}

// Trigger notifies the function's subscribers. Pending triggers coalesce.
func (n *MemoryNetwork) Trigger(_ context.Context, function, authority, queue solana.PublicKey) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	fn, ok := n.functions[function]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFunctionNotFound, function)
	}
	if !fn.Authority.Equals(authority) || !fn.AttestationQueue.Equals(queue) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, authority)
	}
	if fn.Status != StatusActive {
		return fmt.Errorf("%w: %s", ErrFunctionInactive, fn.Status)
	}

	fn.TriggerCount++
	for _, ch := range n.subscribers[function] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	n.logger.Info().
		Str("function", function.String()).
		Uint64("trigger_count", fn.TriggerCount).
		Msg("Function triggered")
	return nil
}

// Subscribe returns a channel that receives one value per coalesced trigger of function.
func (n *MemoryNetwork) Subscribe(function solana.PublicKey) <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan struct{}, 1)
	n.subscribers[function] = append(n.subscribers[function], ch)
	return ch
}
