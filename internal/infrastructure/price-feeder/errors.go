package pricefeederinfra

import "errors"

var (
	// ErrPriceUnavailable is returned when no price has been received yet.
	ErrPriceUnavailable = errors.New("SOL/USD price not available yet")
	// ErrPriceTooOld is returned when the last received price is stale.
	ErrPriceTooOld = errors.New("SOL/USD price is too old")
	// ErrInvalidStaticPrice ...
	ErrInvalidStaticPrice = errors.New("static SOL/USD price must be positive")
)
