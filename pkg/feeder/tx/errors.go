// Package tx builds, signs and hands off ledger transactions.
package tx

import "errors"

var (
	// ErrTransactionRejected indicates that the transaction was rejected.
	ErrTransactionRejected = errors.New("transaction rejected")
	// ErrInvalidParameter indicates that an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrMissingSigner indicates a required signer key was not supplied.
	ErrMissingSigner = errors.New("missing signer key")
)
