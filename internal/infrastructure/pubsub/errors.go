package pubsub

import "errors"

var (
	// ErrNullTopic ...
	ErrNullTopic = errors.New("missing subscription topic")
	// ErrInvalidEndpoint ...
	ErrInvalidEndpoint = errors.New("invalid webhook endpoint, must be a valid http(s) URI")
	// ErrSubscriptionNotFound ...
	ErrSubscriptionNotFound = errors.New("webhook not found")
)
