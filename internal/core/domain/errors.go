package domain

import "errors"

var (
	// ErrDepositNotFound ...
	ErrDepositNotFound = errors.New("deposit not found")
	// ErrDepositNullAddress ...
	ErrDepositNullAddress = errors.New("deposit address must not be null")
	// ErrDepositInvalidAmount ...
	ErrDepositInvalidAmount = errors.New("deposit amount must be greater than zero")
	// ErrDepositNullKey ...
	ErrDepositNullKey = errors.New("deposit signing key must not be null")
	// ErrDepositAlreadyVerified is returned when trying to expire a paid deposit.
	ErrDepositAlreadyVerified = errors.New("deposit payment is already verified")
	// ErrDepositAlreadySwept ...
	ErrDepositAlreadySwept = errors.New("deposit funds are already swept")
	// ErrDepositSweepInProgress is returned when another sweep of the same
	// deposit has not completed yet.
	ErrDepositSweepInProgress = errors.New("deposit sweep already in progress")
)
