package escrow

import (
	"errors"
	"fmt"
)

// Validation failure taxonomy. Every mutating operation runs its full
// validation gauntlet before touching state, so any of these aborts the
// calling transaction with zero persisted side effects.
var (
	// ErrMissingSignature indicates the required authorizing account did
	// not sign the calling transaction.
	ErrMissingSignature = errors.New("escrow: missing required signature")
	// ErrWrongProgramOwner indicates an account is owned by the wrong
	// module for its role.
	ErrWrongProgramOwner = errors.New("escrow: account owned by wrong program")
	// ErrAddressMismatch indicates a supplied address differs from the
	// recomputed derived address for its role.
	ErrAddressMismatch = errors.New("escrow: supplied address does not match derived address")
	// ErrWrongDataSize indicates an account's data is not the exact size
	// its role requires.
	ErrWrongDataSize = errors.New("escrow: account data has wrong size")
	// ErrUninitialized indicates a record or custody account that must
	// already exist holds no data.
	ErrUninitialized = errors.New("escrow: account not initialized")
	// ErrAlreadyInitialized indicates the derivation namespace is already
	// occupied by an open record or custody account.
	ErrAlreadyInitialized = errors.New("escrow: account already initialized")
	// ErrNotEnoughAccounts indicates the positional account list is
	// shorter than the operation requires.
	ErrNotEnoughAccounts = errors.New("escrow: not enough accounts")
	// ErrInvalidArgument indicates a malformed payload or out-of-range
	// argument.
	ErrInvalidArgument = errors.New("escrow: invalid argument")

	// ErrInsufficientFunding indicates the maker cannot fund the record
	// allocation.
	ErrInsufficientFunding = errors.New("escrow: maker cannot fund record allocation")
)

// ErrZeroAmount is the InvalidArgument case for a zero deposit.
var ErrZeroAmount = fmt.Errorf("%w: deposit amount must be nonzero", ErrInvalidArgument)
