package lamports

import (
	"errors"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the precision of SOL, 1 SOL = 10^9 lamports.
const Decimals = 9

var (
	// LamportsPerSol represents a single SOL in lamports.
	LamportsPerSol = uint64(1_000_000_000)

	// ErrInvalidPrice ...
	ErrInvalidPrice = errors.New("price must be a positive number")
	// ErrNegativeAmount ...
	ErrNegativeAmount = errors.New("amount must not be negative")
	// ErrAmountTooLarge is returned when an amount does not fit in uint64
	// lamports.
	ErrAmountTooLarge = errors.New("amount exceeds the max number of lamports")

	maxLamports = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)
)

// SolToLamports scales the given amount of SOL to lamports, flooring any
// digit beyond the 9th decimal. Negative amounts are returned as 0, amounts
// beyond the uint64 range saturate at math.MaxUint64.
func SolToLamports(sol decimal.Decimal) uint64 {
	if sol.IsNegative() {
		return 0
	}
	value, err := ParseSol(sol)
	if err != nil {
		return math.MaxUint64
	}
	return value
}

// ParseSol is the checked version of SolToLamports.
func ParseSol(sol decimal.Decimal) (uint64, error) {
	if sol.IsNegative() {
		return 0, ErrNegativeAmount
	}
	value := sol.Shift(Decimals).Floor()
	if value.GreaterThan(maxLamports) {
		return 0, ErrAmountTooLarge
	}
	return value.BigInt().Uint64(), nil
}

// LamportsToSol scales the given amount of lamports to SOL.
func LamportsToSol(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -Decimals)
}

// SolToLamportsFloat is the float64 version of SolToLamports.
func SolToLamportsFloat(sol float64) uint64 {
	return SolToLamports(decimal.NewFromFloat(sol))
}

// LamportsToSolFloat is the float64 version of LamportsToSol.
func LamportsToSolFloat(lamports uint64) float64 {
	sol, _ := LamportsToSol(lamports).Float64()
	return sol
}

// FiatToLamports converts a fiat amount to lamports given the price of one
// SOL in the same fiat currency.
func FiatToLamports(amount, solPrice decimal.Decimal) (uint64, error) {
	if !solPrice.IsPositive() {
		return 0, ErrInvalidPrice
	}
	if amount.IsNegative() {
		return 0, ErrNegativeAmount
	}
	sol := amount.Shift(Decimals).Div(solPrice).Floor().Shift(-Decimals)
	return ParseSol(sol)
}
