package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned when the endpoint refuses a request because
	// of rate limiting (HTTP 429 or equivalent).
	ErrRateLimited = errors.New("rate limited by ledger endpoint")
	// ErrBlockhashExpired is returned when a transaction is not confirmed
	// before its blockhash expires.
	ErrBlockhashExpired = errors.New(
		"blockhash expired before transaction was confirmed",
	)
	// ErrUnavailable is returned when the endpoint is considered down.
	ErrUnavailable = errors.New("ledger endpoint unavailable")
)

// RPCError is the error returned by the endpoint for a given method.
type RPCError struct {
	Method     string
	HTTPStatus int
	Code       int
	Message    string
	RateLimit  bool
}

func (e *RPCError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf(
			"rpc %s failed with code %d: %s", e.Method, e.Code, e.Message,
		)
	}
	if e.HTTPStatus != 0 {
		return fmt.Sprintf(
			"rpc %s failed with status %d: %s", e.Method, e.HTTPStatus, e.Message,
		)
	}
	return fmt.Sprintf("rpc %s failed: %s", e.Method, e.Message)
}

// Unwrap makes errors.Is(err, ErrRateLimited) work for rate-limit errors.
func (e *RPCError) Unwrap() error {
	if e.RateLimit {
		return ErrRateLimited
	}
	return nil
}

// IsRateLimited returns whether the given error signals rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
