package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/switchboard-xyz/usdy-example/pkg/attest"
	"github.com/switchboard-xyz/usdy-example/pkg/metrics"
)

const (
	// MaxRefreshRows is the largest row batch refresh_oracles accepts.
	MaxRefreshRows = 8

	// DefaultMaxRowAge bounds how far a row timestamp may trail the ledger clock.
	DefaultMaxRowAge = 300 * time.Second

	// DefaultSlotTime is the nominal slot duration of SystemClock.
	DefaultSlotTime = 400 * time.Millisecond

	recentSignatureCap = 4096
)

// Clock reports the ledger's current slot and unix timestamp.
type Clock interface {
	Now() (slot uint64, unixTimestamp int64)
}

// SystemClock derives slots from wall time elapsed since genesis.
type SystemClock struct {
	genesis  time.Time
	slotTime time.Duration
}

// NewSystemClock starts a clock at the current time.
func NewSystemClock(slotTime time.Duration) *SystemClock {
	if slotTime <= 0 {
		slotTime = DefaultSlotTime
	}
	return &SystemClock{genesis: time.Now(), slotTime: slotTime}
}

func (c *SystemClock) Now() (uint64, int64) {
	now := time.Now()
	return uint64(now.Sub(c.genesis) / c.slotTime), now.Unix()
}

// Receipt describes a committed transaction.
type Receipt struct {
	Signature    solana.Signature
	Instructions []string
	Slot         uint64
	Timestamp    int64
}

// Listener is called after each committed transaction.
type Listener func(Receipt)

// Config holds the runtime's collaborators.
type Config struct {
	ProgramID            solana.PublicKey
	AttestationProgramID solana.PublicKey
	Store                AccountStore
	Network              attest.Network
	Clock                Clock
	MaxRowAge            time.Duration
	Logger               zerolog.Logger
}

// Runtime executes signed transactions against the oracle program one at a time.
type Runtime struct {
	mu                   sync.Mutex
	programID            solana.PublicKey
	attestationProgramID solana.PublicKey
	store                AccountStore
	network              attest.Network
	clock                Clock
	maxRowAge            time.Duration
	logger               zerolog.Logger
	handlers             map[Discriminator]handler

	recent      map[solana.Signature]struct{}
	recentOrder []solana.Signature

	listenersMu sync.RWMutex
	listeners   []Listener
}

// NewRuntime creates a runtime. Store defaults to a MemoryStore and Clock to a SystemClock.
func NewRuntime(cfg Config) (*Runtime, error) {
	if cfg.ProgramID.IsZero() {
		return nil, errors.New("program id is required")
	}
	if cfg.Network == nil {
		return nil, errors.New("attestation network is required")
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Clock == nil {
		cfg.Clock = NewSystemClock(DefaultSlotTime)
	}
	if cfg.MaxRowAge == 0 {
		cfg.MaxRowAge = DefaultMaxRowAge
	}

	r := &Runtime{
		programID:            cfg.ProgramID,
		attestationProgramID: cfg.AttestationProgramID,
		store:                cfg.Store,
		network:              cfg.Network,
		clock:                cfg.Clock,
		maxRowAge:            cfg.MaxRowAge,
		logger:               cfg.Logger.With().Str("component", "ledger").Str("program_id", cfg.ProgramID.String()).Logger(),
		recent:               make(map[solana.Signature]struct{}),
	}
	r.handlers = map[Discriminator]handler{
		InstructionDiscriminator(InstructionInitialize):      {InstructionInitialize, r.initialize},
		InstructionDiscriminator(InstructionUpdate):          {InstructionUpdate, r.update},
		InstructionDiscriminator(InstructionSetFunction):     {InstructionSetFunction, r.setFunction},
		InstructionDiscriminator(InstructionRefreshOracles):  {InstructionRefreshOracles, r.refreshOracles},
		InstructionDiscriminator(InstructionTriggerFunction): {InstructionTriggerFunction, r.triggerFunction},
	}
	return r, nil
}

// ProgramID returns the program's address.
func (r *Runtime) ProgramID() solana.PublicKey {
	return r.programID
}

// Store returns the runtime's account store.
func (r *Runtime) Store() AccountStore {
	return r.store
}

// RecentBlockhash returns a hash of the current slot.
func (r *Runtime) RecentBlockhash(context.Context) (solana.Hash, error) {
	slot, _ := r.clock.Now()
	var h solana.Hash
	binary.LittleEndian.PutUint64(h[:], slot)
	copy(h[8:], r.programID[:24])
	return h, nil
}

// OnCommit registers a listener for committed transactions.
func (r *Runtime) OnCommit(l Listener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, l)
}

type handler struct {
	name string
	fn   func(*invocation) error
}

// invocation is one instruction executing inside a transaction.
type invocation struct {
	ctx      context.Context
	view     *overlay
	accounts []*solana.AccountMeta
	args     []byte
	slot     uint64
	now      int64
	effects  []func(context.Context) error
}

// afterCommit defers fn until the whole transaction has been committed.
func (inv *invocation) afterCommit(fn func(context.Context) error) {
	inv.effects = append(inv.effects, fn)
}

// Submit verifies, executes and commits tx. Either every instruction applies or none does.
func (r *Runtime) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if tx == nil || len(tx.Signatures) == 0 {
		return solana.Signature{}, ErrUnsigned
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}
	sig := tx.Signatures[0]

	r.mu.Lock()
	receipt, err := r.execute(ctx, sig, tx)
	r.mu.Unlock()
	if err != nil && !errors.Is(err, ErrEffectFailed) {
		r.logger.Warn().Err(err).Str("signature", sig.String()).Msg("Transaction failed")
		return sig, err
	}

	r.logger.Info().
		Str("signature", sig.String()).
		Strs("instructions", receipt.Instructions).
		Uint64("slot", receipt.Slot).
		Msg("Transaction committed")

	r.listenersMu.RLock()
	listeners := append([]Listener(nil), r.listeners...)
	r.listenersMu.RUnlock()
	for _, l := range listeners {
		l(receipt)
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("signature", sig.String()).Msg("Transaction effect failed")
	}
	return sig, err
}

func (r *Runtime) execute(ctx context.Context, sig solana.Signature, tx *solana.Transaction) (Receipt, error) {
	if _, seen := r.recent[sig]; seen {
		return Receipt{}, fmt.Errorf("%w: %s", ErrDuplicateTransaction, sig)
	}

	slot, now := r.clock.Now()
	receipt := Receipt{Signature: sig, Slot: slot, Timestamp: now}
	view := newOverlay(r.store)
	var effects []func(context.Context) error

	for i, ci := range tx.Message.Instructions {
		programID, err := tx.Message.ResolveProgramIDIndex(ci.ProgramIDIndex)
		if err != nil {
			return receipt, fmt.Errorf("instruction %d: %w", i, err)
		}
		if !programID.Equals(r.programID) {
			return receipt, fmt.Errorf("instruction %d: %w: %s", i, ErrUnsupportedProgram, programID)
		}
		accounts, err := ci.ResolveInstructionAccounts(&tx.Message)
		if err != nil {
			return receipt, fmt.Errorf("instruction %d: %w", i, err)
		}

		inv := &invocation{
			ctx:      ctx,
			view:     view,
			accounts: accounts,
			slot:     slot,
			now:      now,
		}
		name, err := r.dispatch(inv, ci.Data)
		if err != nil {
			metrics.RecordInstruction(name, "error")
			return receipt, fmt.Errorf("instruction %d (%s): %w", i, name, err)
		}
		metrics.RecordInstruction(name, "ok")
		receipt.Instructions = append(receipt.Instructions, name)
		effects = append(effects, inv.effects...)
	}

	if err := view.commit(ctx); err != nil {
		return receipt, fmt.Errorf("commit: %w", err)
	}
	r.remember(sig)

	for _, effect := range effects {
		if err := effect(ctx); err != nil {
			return receipt, fmt.Errorf("%w: %w", ErrEffectFailed, err)
		}
	}
	return receipt, nil
}

func (r *Runtime) dispatch(inv *invocation, data []byte) (string, error) {
	if len(data) < len(Discriminator{}) {
		return "unknown", ErrInstructionMissing
	}
	var d Discriminator
	copy(d[:], data)
	h, ok := r.handlers[d]
	if !ok {
		return "unknown", ErrInstructionFallbackNotFound
	}
	inv.args = data[len(d):]
	r.logger.Debug().Str("instruction", h.name).Msg("Program invoke")
	return h.name, h.fn(inv)
}

func (r *Runtime) remember(sig solana.Signature) {
	r.recent[sig] = struct{}{}
	r.recentOrder = append(r.recentOrder, sig)
	if len(r.recentOrder) > recentSignatureCap {
		delete(r.recent, r.recentOrder[0])
		r.recentOrder = r.recentOrder[1:]
	}
}
