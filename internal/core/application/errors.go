package application

import "errors"

var (
	// ErrNoFundsToSweep is returned when the deposit address is empty.
	ErrNoFundsToSweep = errors.New("No funds to sweep")
	// ErrInsufficientBalanceAfterFees is returned when the balance does not
	// cover the sweep fee.
	ErrInsufficientBalanceAfterFees = errors.New("Insufficient balance after fees")
	// ErrSweepExecution is returned when the sweep tx fails on chain.
	ErrSweepExecution = errors.New("sweep transaction failed")
	// ErrInvalidMasterAddress ...
	ErrInvalidMasterAddress = errors.New("master address is not a valid public key")
	// ErrNullLedgerService ...
	ErrNullLedgerService = errors.New("ledger service must not be null")
	// ErrInvalidAmount is returned when a deposit request has not exactly one
	// positive amount.
	ErrInvalidAmount = errors.New("exactly one positive amount among lamports, sol and usd must be given")
	// ErrPriceSourceUnavailable is returned when a USD amount is requested
	// without a price source.
	ErrPriceSourceUnavailable = errors.New("SOL/USD price source not available")
	// ErrDepositNotVerified is returned when sweeping a deposit whose payment
	// has not been verified.
	ErrDepositNotVerified = errors.New("deposit payment not verified yet")
	// ErrMissingKeyPassword is returned when a deposit key is encrypted but
	// no password is configured.
	ErrMissingKeyPassword = errors.New("deposit key is encrypted but no password is configured")
	// ErrUnknownTopic ...
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrPubSubNotInitialized is returned when managing webhooks without a
	// pubsub service.
	ErrPubSubNotInitialized = errors.New("webhook pubsub is not initialized")
)
