package model

import "errors"

// Common errors used across the application
var (
	// Payload errors
	ErrInvalidFormat    = errors.New("invalid payload format")
	ErrUnknownAction    = errors.New("unknown payload action")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrAmountOutOfRange = errors.New("amount out of range")

	// Ledger rejections
	ErrAlreadyProcessed         = errors.New("already processed")
	ErrPlayerNotFound           = errors.New("player not found")
	ErrUndoTargetNotFound       = errors.New("target transaction not found")
	ErrUndoTargetNotTransaction = errors.New("only transactions can be undone")
	ErrSyncScannedByBank        = errors.New("sync payload must be scanned by a player device, not the bank")
	ErrBalanceOverflow          = errors.New("balance would overflow")

	// Wallet errors
	ErrNotRegistered     = errors.New("player device is not registered")
	ErrInvalidUndoTarget = errors.New("undo target must be an earlier sequence number")
	ErrNotSyncPayload    = errors.New("recovery requires a sync payload")
	ErrStaleReservation  = errors.New("reservation outdated by re-registration, recovery or reset")

	// Storage errors
	ErrBlobNotFound = errors.New("blob not found")
)
