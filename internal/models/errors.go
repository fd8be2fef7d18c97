package models

import "errors"

// Ledger error taxonomy. Validation errors are rejected synchronously and
// never partially applied; ErrConflict is transient and retryable with the
// same group/idempotency key.
var (
	ErrInsufficientBalance = errors.New("insufficient available balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrSameWallet          = errors.New("sender and receiver wallets are the same")
	ErrAssetMismatch       = errors.New("sender and receiver wallet assets differ")
	ErrNotFound            = errors.New("not found")
	ErrLockAlreadyFreed    = errors.New("balance lock already freed")
	ErrConflict            = errors.New("transient conflict")
)
