package model

import "errors"

// Sentinel errors shared by the trading core. Wrap with fmt.Errorf("...: %w", err)
// and test with errors.Is at the API boundary.
var (
	// ErrInsufficientBalance means a buy would overdraw the account.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientPosition means a sell exceeds the held quantity.
	ErrInsufficientPosition = errors.New("insufficient position")

	// ErrUnknownInstrument means the instrument code is not in the price feed.
	ErrUnknownInstrument = errors.New("unknown instrument")

	// ErrInvalidParameters means strategy or trade parameters failed validation.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrDuplicateStrategy means an (account, instrument) strategy already exists.
	ErrDuplicateStrategy = errors.New("duplicate strategy")

	// ErrNotFound is an entity lookup miss (account, strategy, position).
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the entity belongs to a different account.
	ErrForbidden = errors.New("forbidden")

	// ErrPersistence means the backing store rejected or lost an operation.
	// The in-flight mutation is rolled back; memory state stays untouched.
	ErrPersistence = errors.New("persistence failure")
)
