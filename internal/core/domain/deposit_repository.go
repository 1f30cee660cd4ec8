package domain

import "context"

// DepositFilter restricts the deposits returned by the repository.
type DepositFilter struct {
	// Statuses, if not empty, restricts the result to deposits with one of the
	// given statuses.
	Statuses []DepositStatus
	// Unswept restricts the result to paid deposits whose funds have not been
	// swept yet.
	Unswept bool
}

// DepositRepository is the abstraction for any kind of database intended to
// persist Deposits.
type DepositRepository interface {
	// NextDerivationIndex atomically reserves the next unused derivation
	// index. Indexes are never handed out twice.
	NextDerivationIndex(ctx context.Context) (uint64, error)
	// AddDeposit adds the provided deposit to the repository.
	AddDeposit(ctx context.Context, deposit *Deposit) error
	// GetDeposit returns the deposit with the given id.
	GetDeposit(ctx context.Context, id string) (*Deposit, error)
	// GetDepositByAddress returns the deposit with the given address.
	GetDepositByAddress(ctx context.Context, address string) (*Deposit, error)
	// ListDeposits returns the deposits matching the filter, oldest first.
	// A nil page returns all of them.
	ListDeposits(
		ctx context.Context, filter DepositFilter, page *Page,
	) ([]Deposit, error)
	// UpdateDeposit updates the state of a deposit. The closure function
	// lets to commit multiple changes in a transactional way.
	UpdateDeposit(
		ctx context.Context,
		id string, updateFn func(d *Deposit) (*Deposit, error),
	) error
}
