package application

import "time"

const (
	// VerificationCacheTTL is how long a successful verification result is
	// served for the same (address, expected amount) pair.
	VerificationCacheTTL = 5 * time.Second
	// SignatureScanLimit is the max number of recent signatures inspected
	// when looking for the transfer paying a deposit.
	SignatureScanLimit = 50
	// SweepFeeBuffer is the amount of lamports left on the deposit address
	// to pay the fee of the sweep tx.
	SweepFeeBuffer uint64 = 5000
	// SweepTimeout bounds a sweep attempt, confirmation included. It outlives
	// the validity of the blockhash the sweep tx is built with.
	SweepTimeout = 3 * time.Minute
)

// RateLimitBackoff is the sequence of waits between consecutive attempts of
// a verification refused because of rate limiting.
var RateLimitBackoff = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	15 * time.Second,
}

// Topics published to webhook subscribers.
const (
	TopicDepositVerified = "DEPOSIT_VERIFIED"
	TopicDepositSwept    = "DEPOSIT_SWEPT"
	TopicSweepFailed     = "SWEEP_FAILED"
	TopicDepositExpired  = "DEPOSIT_EXPIRED"
	TopicAny             = "*"
)

var knownTopics = map[string]struct{}{
	TopicDepositVerified: {},
	TopicDepositSwept:    {},
	TopicSweepFailed:     {},
	TopicDepositExpired:  {},
	TopicAny:             {},
}

// Topics returns the list of topics that can be subscribed.
func Topics() []string {
	return []string{
		TopicDepositVerified, TopicDepositSwept, TopicSweepFailed,
		TopicDepositExpired, TopicAny,
	}
}
