package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceSource provides the price of 1 SOL in USD.
type PriceSource interface {
	Start() error
	Stop()
	GetSolPrice(ctx context.Context) (decimal.Decimal, error)
}
