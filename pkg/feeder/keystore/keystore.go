// Package keystore loads the ed25519 keys the feeder signs with.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ErrKeyNotConfigured indicates neither a keygen file nor an environment key was given.
var ErrKeyNotConfigured = errors.New("no key configured")

// Origin describes where a key came from.
type Origin string

const (
	OriginFile      Origin = "file"
	OriginEnv       Origin = "env"
	OriginEphemeral Origin = "ephemeral"
)

// Load reads a key from a keygen JSON file, else from the base58 key in envVar.
func Load(path, envVar string) (solana.PrivateKey, Origin, error) {
	if path != "" {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read keygen file %s: %w", path, err)
		}
		return key, OriginFile, nil
	}
	if envVar != "" {
		raw := strings.TrimSpace(os.Getenv(envVar))
		if raw == "" {
			return nil, "", fmt.Errorf("%w: %s is empty", ErrKeyNotConfigured, envVar)
		}
		key, err := solana.PrivateKeyFromBase58(raw)
		if err != nil {
			return nil, "", fmt.Errorf("failed to decode key from %s: %w", envVar, err)
		}
		return key, OriginEnv, nil
	}
	return nil, "", ErrKeyNotConfigured
}

// LoadOrGenerate behaves like Load but generates a fresh key when nothing is configured.
// Inside an enclave this is the signer the attestation binds to the function.
func LoadOrGenerate(path, envVar string) (solana.PrivateKey, Origin, error) {
	key, origin, err := Load(path, envVar)
	if errors.Is(err, ErrKeyNotConfigured) && path == "" && envVar == "" {
		key, err = solana.NewRandomPrivateKey()
		if err != nil {
			return nil, "", fmt.Errorf("failed to generate key: %w", err)
		}
		return key, OriginEphemeral, nil
	}
	return key, origin, err
}

// WriteKeygenFile stores key in the keygen JSON format (an array of 64 byte values).
func WriteKeygenFile(path string, key solana.PrivateKey) error {
	values := make([]int, len(key))
	for i, b := range key {
		values[i] = int(b)
	}
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
