package token

import "errors"

var (
	// ErrNilState indicates the engine was used before SetState.
	ErrNilState = errors.New("token engine: state not configured")
	// ErrAccountNotFound indicates the referenced account does not exist.
	ErrAccountNotFound = errors.New("token engine: account not found")
	// ErrAccountExists indicates an initialization target is already in use.
	ErrAccountExists = errors.New("token engine: account already initialized")
	// ErrMintNotFound indicates the referenced asset class does not exist.
	ErrMintNotFound = errors.New("token engine: mint not found")
	// ErrWrongOwner indicates an account is not owned by the token module.
	ErrWrongOwner = errors.New("token engine: account not owned by token module")
	// ErrWrongMint indicates a transfer between different asset classes.
	ErrWrongMint = errors.New("token engine: mint mismatch")
	// ErrWrongAuthority indicates the presented authority does not control
	// the account.
	ErrWrongAuthority = errors.New("token engine: authority mismatch")
	// ErrInsufficientFunds indicates a transfer exceeding the balance.
	ErrInsufficientFunds = errors.New("token engine: insufficient funds")
	// ErrInsufficientRent indicates a payer cannot fund an allocation.
	ErrInsufficientRent = errors.New("token engine: payer cannot fund allocation")
	// ErrNonZeroBalance indicates an attempt to close an account that still
	// holds tokens.
	ErrNonZeroBalance = errors.New("token engine: account balance must be zero to close")
	// ErrAmountOverflow indicates a credit would overflow the 64-bit amount.
	ErrAmountOverflow = errors.New("token engine: amount overflow")
)
