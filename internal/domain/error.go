package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Storage errors
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid exec context")

	// Payment lifecycle errors
	ErrConfig            = errors.New("missing or invalid provider configuration")
	ErrProviderAPI       = errors.New("provider API call failed")
	ErrSignatureInvalid  = errors.New("callback signature verification failed")
	ErrAmountMismatch    = errors.New("verified amount does not match order")
	ErrDuplicateEvent    = errors.New("webhook event already processed")
	ErrAlreadyHandled    = errors.New("order already transitioned")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrNotCapturable     = errors.New("order provider does not support capture")
)
