package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Account is a persistent record owned by a program.
type Account struct {
	Owner solana.PublicKey
	Data  []byte
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	return &Account{Owner: a.Owner, Data: append([]byte(nil), a.Data...)}
}

// AccountStore persists accounts. Commit applies every write or none.
type AccountStore interface {
	Get(ctx context.Context, key solana.PublicKey) (*Account, error)
	Commit(ctx context.Context, writes map[solana.PublicKey]*Account) error
}

// MemoryStore is an in-process AccountStore.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*Account
}

var _ AccountStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[solana.PublicKey]*Account)}
}

// Get returns a copy of the account at key or ErrAccountNotFound.
func (s *MemoryStore) Get(_ context.Context, key solana.PublicKey) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	return a.Clone(), nil
}

// Commit stores every write under one lock.
func (s *MemoryStore) Commit(_ context.Context, writes map[solana.PublicKey]*Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, a := range writes {
		s.accounts[k] = a.Clone()
	}
	return nil
}

// Put stores a single account. Tests use it to plant accounts directly.
func (s *MemoryStore) Put(key solana.PublicKey, a *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[key] = a.Clone()
}

// overlay buffers the writes of one transaction on top of a store.
type overlay struct {
	store  AccountStore
	writes map[solana.PublicKey]*Account
}

func newOverlay(store AccountStore) *overlay {
	return &overlay{store: store, writes: make(map[solana.PublicKey]*Account)}
}

func (o *overlay) get(ctx context.Context, key solana.PublicKey) (*Account, error) {
	if a, ok := o.writes[key]; ok {
		return a.Clone(), nil
	}
	return o.store.Get(ctx, key)
}

func (o *overlay) put(key solana.PublicKey, a *Account) {
	o.writes[key] = a
}

func (o *overlay) commit(ctx context.Context) error {
	if len(o.writes) == 0 {
		return nil
	}
	return o.store.Commit(ctx, o.writes)
}
