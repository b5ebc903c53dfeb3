// Package redisstore persists ledger accounts in Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/switchboard-xyz/usdy-example/pkg/ledger"
)

var _ ledger.AccountStore = (*Store)(nil)

// Store keeps each account under <prefix><base58 address>. The value is the
// 32 byte owner followed by the account data.
type Store struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// New creates a store on an existing client.
func New(client *redis.Client, prefix string, logger zerolog.Logger) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "redisstore").Logger(),
	}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, opts *redis.Options, prefix string, logger zerolog.Logger) (*Store, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return New(client, prefix, logger), nil
}

// Ping reports the connection status.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(addr solana.PublicKey) string {
	return s.prefix + addr.String()
}

// Get loads an account.
func (s *Store) Get(ctx context.Context, key solana.PublicKey) (*ledger.Account, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return decode(raw)
}

// Commit writes every account in one MULTI/EXEC transaction.
func (s *Store) Commit(ctx context.Context, writes map[solana.PublicKey]*ledger.Account) error {
	if len(writes) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	for addr, acc := range writes {
		pipe.Set(ctx, s.key(addr), encode(acc), 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis commit: %w", err)
	}
	s.logger.Debug().Int("accounts", len(writes)).Msg("Accounts committed")
	return nil
}

func encode(acc *ledger.Account) []byte {
	out := make([]byte, 0, solana.PublicKeyLength+len(acc.Data))
	out = append(out, acc.Owner[:]...)
	return append(out, acc.Data...)
}

func decode(raw []byte) (*ledger.Account, error) {
	if len(raw) < solana.PublicKeyLength {
		return nil, fmt.Errorf("stored account is %d bytes, shorter than its owner", len(raw))
	}
	return &ledger.Account{
		Owner: solana.PublicKeyFromBytes(raw[:solana.PublicKeyLength]),
		Data:  append([]byte(nil), raw[solana.PublicKeyLength:]...),
	}, nil
}
