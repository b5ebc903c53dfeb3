// Package ledger implements the oracle program: its persistent accounts, the
// instruction handlers that move them, and a runtime that executes signed
// transactions against an account store atomically.
package ledger

import (
	"errors"
	"fmt"
)

// ProgramError is an error returned by an instruction handler. Errors compare equal
// under errors.Is when their codes match, so wrapped copies still match the sentinels.
type ProgramError struct {
	Code  uint32
	Name  string
	Msg   string
	Cause error
}

func (e *ProgramError) Error() string {
	s := fmt.Sprintf("Error Code: %s. Error Number: %d. Error Message: %s.", e.Name, e.Code, e.Msg)
	if e.Cause != nil {
		s += " Caused by: " + e.Cause.Error()
	}
	return s
}

// Is matches any ProgramError with the same code.
func (e *ProgramError) Is(target error) bool {
	t, ok := target.(*ProgramError)
	return ok && t.Code == e.Code
}

func (e *ProgramError) Unwrap() error {
	return e.Cause
}

// With returns a copy of e carrying cause.
func (e *ProgramError) With(cause error) *ProgramError {
	c := *e
	c.Cause = cause
	return &c
}

// Withf returns a copy of e carrying a formatted cause.
func (e *ProgramError) Withf(format string, args ...any) *ProgramError {
	return e.With(fmt.Errorf(format, args...))
}

func newProgramError(code uint32, name, msg string) *ProgramError {
	return &ProgramError{Code: code, Name: name, Msg: msg}
}

// Framework errors.
var (
	ErrInstructionMissing           = newProgramError(100, "InstructionMissing", "8 byte instruction identifier not provided")
	ErrInstructionFallbackNotFound  = newProgramError(101, "InstructionFallbackNotFound", "Fallback functions are not supported")
	ErrInstructionDidNotDeserialize = newProgramError(102, "InstructionDidNotDeserialize", "The program could not deserialize the given instruction")
	ErrConstraintHasOne             = newProgramError(2001, "ConstraintHasOne", "A has one constraint was violated")
	ErrConstraintSeeds              = newProgramError(2006, "ConstraintSeeds", "A seeds constraint was violated")
	ErrConstraintAddress            = newProgramError(2012, "ConstraintAddress", "An address constraint was violated")
	ErrAccountDiscriminatorMismatch = newProgramError(3002, "AccountDiscriminatorMismatch", "Account discriminator did not match what was expected")
	ErrAccountDidNotDeserialize     = newProgramError(3003, "AccountDidNotDeserialize", "Failed to deserialize the account")
	ErrAccountNotEnoughKeys         = newProgramError(3005, "AccountNotEnoughKeys", "Not enough account keys given to the instruction")
	ErrAccountNotMutable            = newProgramError(3006, "AccountNotMutable", "The given account is not mutable")
	ErrAccountOwnedByWrongProgram   = newProgramError(3007, "AccountOwnedByWrongProgram", "The given account is owned by a different program than expected")
	ErrAccountNotSigner             = newProgramError(3010, "AccountNotSigner", "The given account did not sign")
	ErrAccountNotInitialized        = newProgramError(3012, "AccountNotInitialized", "The program expected this account to be already initialized")
)

// Oracle program errors.
var (
	ErrInvalidAuthority             = newProgramError(6000, "InvalidAuthority", "Invalid authority account")
	ErrArrayOverflow                = newProgramError(6001, "ArrayOverflow", "Array overflow")
	ErrStaleData                    = newProgramError(6002, "StaleData", "Stale data")
	ErrInvalidTrustedSigner         = newProgramError(6003, "InvalidTrustedSigner", "Invalid trusted signer")
	ErrInvalidMrEnclave             = newProgramError(6004, "InvalidMrEnclave", "Invalid MRENCLAVE")
	ErrInvalidSymbol                = newProgramError(6005, "InvalidSymbol", "Failed to find a valid trading symbol for this price")
	ErrIncorrectSwitchboardFunction = newProgramError(6006, "IncorrectSwitchboardFunction", "FunctionAccount pubkey did not match program_state.function")
	ErrInvalidSwitchboardFunction   = newProgramError(6007, "InvalidSwitchboardFunction", "FunctionAccount provided is not valid")
	ErrFunctionValidationFailed     = newProgramError(6008, "FunctionValidationFailed", "FunctionAccount was not validated successfully")
)

// Runtime errors. These reject a transaction before any instruction runs.
var (
	ErrUnsigned              = errors.New("transaction has no signatures")
	ErrSignatureVerification = errors.New("signature verification failed")
	ErrUnsupportedProgram    = errors.New("instruction targets an unsupported program")
	ErrDuplicateTransaction  = errors.New("transaction already processed")
	ErrAccountNotFound       = errors.New("account not found")
)

// ErrEffectFailed indicates that a transaction committed but one of its follow-up
// effects, such as a trigger notification, did not complete.
var ErrEffectFailed = errors.New("post-commit effect failed")
