// Package runner drives the attested function: each cycle collects quotes,
// builds the refresh instruction and hands the signed transaction to a submitter.
package runner

import "errors"

// Runner errors.
var (
	ErrCollectFailed   = errors.New("quote collection failed")
	ErrBuildFailed     = errors.New("failed to build refresh instruction")
	ErrSubmitFailed    = errors.New("refresh submission failed")
	ErrInvalidSchedule = errors.New("invalid schedule")
)
