package domain

import "errors"

var (
	// Entry errors
	ErrMissingAccountID  = errors.New("entry has no balance account id")
	ErrUnknownSourceType = errors.New("unknown source type")
	ErrMissingOccurredAt = errors.New("entry has no occurred_at timestamp")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrEntryNotFound     = errors.New("ledger entry not found")

	// Transfer errors
	ErrSameAccount = errors.New("cannot transfer to same account")

	// Snapshot errors
	ErrSnapshotNotFound = errors.New("daily snapshot not found")
)
