package service

import "errors"

// Business outcome errors. InsufficientFunds and PreconditionFailed are
// surfaced to callers verbatim; they are outcomes, not bugs.
var (
	// ErrValidation marks malformed input, rejected before any state change
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a missing battle, show, entry or user
	ErrNotFound = errors.New("not found")

	// ErrPreconditionFailed marks a wrong state for the requested
	// transition: not active, already completed, already queued
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrInsufficientFunds marks a debit exceeding the available balance
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConflict marks a lost idempotency-key or position race
	ErrConflict = errors.New("conflict")
)
