// Package attest models the attested execution network: function accounts, their
// enclave measurements and signers, and the trigger channel of the bound writer.
package attest

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrInvalidTrustedSigner indicates the transaction signer is not the function's enclave signer.
	ErrInvalidTrustedSigner = errors.New("invalid trusted signer")
	// ErrInvalidMrEnclave indicates the function's measurement is not allowed.
	ErrInvalidMrEnclave = errors.New("invalid MRENCLAVE")
	// ErrFunctionInactive indicates the function is not in the active state.
	ErrFunctionInactive = errors.New("function is not active")
	// ErrFunctionNotFound indicates no function account exists at the address.
	ErrFunctionNotFound = errors.New("function account not found")
	// ErrUnauthorized indicates the caller is not the function's authority or queue.
	ErrUnauthorized = errors.New("not the function authority")
)

// Status is the lifecycle state of a function account.
type Status uint8

const (
	StatusNone Status = iota
	StatusActive
	StatusNonExecutable
	StatusExpired
	StatusOutOfFunds
	StatusInvalidPermissions
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusNonExecutable:
		return "non_executable"
	case StatusExpired:
		return "expired"
	case StatusOutOfFunds:
		return "out_of_funds"
	case StatusInvalidPermissions:
		return "invalid_permissions"
	default:
		return "none"
	}
}

// Measurement is an enclave measurement (MRENCLAVE).
type Measurement [32]byte

// ParseMeasurement decodes a hex measurement with optional 0x prefix.
func ParseMeasurement(s string) (Measurement, error) {
	var m Measurement
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return m, fmt.Errorf("decode measurement: %w", err)
	}
	if len(b) != len(m) {
		return m, fmt.Errorf("measurement must be %d bytes, got %d", len(m), len(b))
	}
	copy(m[:], b)
	return m, nil
}

func (m Measurement) String() string {
	return hex.EncodeToString(m[:])
}

// FunctionAccount is the attestation network's record of one off-ledger function.
type FunctionAccount struct {
	Address             solana.PublicKey `json:"address"`
	Authority           solana.PublicKey `json:"authority"`
	AttestationQueue    solana.PublicKey `json:"attestation_queue"`
	EnclaveSigner       solana.PublicKey `json:"enclave_signer"`
	MrEnclave           Measurement      `json:"mr_enclave"`
	AllowedMeasurements []Measurement    `json:"allowed_measurements"`
	Status              Status           `json:"status"`
	Schedule            string           `json:"schedule"`
	VerifiedAt          time.Time        `json:"verified_at"`
	TriggerCount        uint64           `json:"trigger_count"`
}

// Allows reports whether m is in the function's measurement allowlist.
func (f *FunctionAccount) Allows(m Measurement) bool {
	for _, allowed := range f.AllowedMeasurements {
		if bytes.Equal(allowed[:], m[:]) {
			return true
		}
	}
	return false
}

// Validate checks that signer is the function's current enclave signer, attested
// under an allowed measurement, and that the function is active.
func Validate(fn *FunctionAccount, signer solana.PublicKey) error {
	if fn == nil {
		return ErrFunctionNotFound
	}
	if fn.EnclaveSigner.IsZero() || !fn.EnclaveSigner.Equals(signer) {
		return fmt.Errorf("%w: %s", ErrInvalidTrustedSigner, signer)
	}
	if !fn.Allows(fn.MrEnclave) {
		return fmt.Errorf("%w: %s", ErrInvalidMrEnclave, fn.MrEnclave)
	}
	if fn.Status != StatusActive {
		return fmt.Errorf("%w: %s", ErrFunctionInactive, fn.Status)
	}
	return nil
}

// Clone returns a deep copy.
func (f *FunctionAccount) Clone() *FunctionAccount {
	c := *f
	c.AllowedMeasurements = append([]Measurement(nil), f.AllowedMeasurements...)
	return &c
}
