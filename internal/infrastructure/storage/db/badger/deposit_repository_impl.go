package dbbadger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vcard-network/depositd/internal/core/domain"
)

const (
	derivationIndexSeqKey       = "derivation_index"
	derivationIndexSeqBandwidth = 100
	maxUpdateAttempts           = 5
)

type depositRepositoryImpl struct {
	store *badgerhold.Store
	seq   *badger.Sequence
}

func newDepositRepositoryImpl(
	store *badgerhold.Store,
) (*depositRepositoryImpl, error) {
	seq, err := store.Badger().GetSequence(
		[]byte(derivationIndexSeqKey), derivationIndexSeqBandwidth,
	)
	if err != nil {
		return nil, fmt.Errorf("opening derivation index sequence: %w", err)
	}
	return &depositRepositoryImpl{store, seq}, nil
}

func (r *depositRepositoryImpl) NextDerivationIndex(
	_ context.Context,
) (uint64, error) {
	return r.seq.Next()
}

func (r *depositRepositoryImpl) AddDeposit(
	_ context.Context, deposit *domain.Deposit,
) error {
	if deposit == nil {
		return fmt.Errorf("deposit must not be null")
	}

	d := toStorageDeposit(*deposit)
	if err := r.store.Insert(d.ID, &d); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("deposit %s already exists", d.ID)
		}
		return err
	}
	return nil
}

func (r *depositRepositoryImpl) GetDeposit(
	_ context.Context, id string,
) (*domain.Deposit, error) {
	var d Deposit
	if err := r.store.Get(id, &d); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrDepositNotFound
		}
		return nil, err
	}

	deposit := d.toDomain()
	return &deposit, nil
}

func (r *depositRepositoryImpl) GetDepositByAddress(
	_ context.Context, address string,
) (*domain.Deposit, error) {
	query := badgerhold.Where("Address").Eq(address).Index("Address")

	var deposits []Deposit
	if err := r.store.Find(&deposits, query); err != nil {
		return nil, err
	}
	if len(deposits) <= 0 {
		return nil, domain.ErrDepositNotFound
	}

	deposit := deposits[0].toDomain()
	return &deposit, nil
}

func (r *depositRepositoryImpl) ListDeposits(
	_ context.Context, filter domain.DepositFilter, page *domain.Page,
) ([]domain.Deposit, error) {
	query := badgerhold.Where("CreatedAt").Ge(int64(0))
	if len(filter.Statuses) > 0 {
		statuses := make([]interface{}, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, int(s))
		}
		query = query.And("Status").In(statuses...)
	}
	if filter.Unswept {
		query = query.And("PaymentVerified").Eq(true).
			And("SweepStatus").Ne(int(domain.SweepStatusSwept))
	}
	query = query.SortBy("CreatedAt", "DerivationIndex")
	if page != nil {
		query = query.Skip(page.Offset()).Limit(page.Size)
	}

	var deposits []Deposit
	if err := r.store.Find(&deposits, query); err != nil {
		return nil, err
	}

	list := make([]domain.Deposit, 0, len(deposits))
	for _, d := range deposits {
		list = append(list, d.toDomain())
	}
	return list, nil
}

// UpdateDeposit runs updateFn and stores its result in a single badger
// transaction. On write conflicts the whole read-update cycle is retried,
// thus updateFn may be called more than once.
func (r *depositRepositoryImpl) UpdateDeposit(
	_ context.Context,
	id string, updateFn func(d *domain.Deposit) (*domain.Deposit, error),
) error {
	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err = r.store.Badger().Update(func(tx *badger.Txn) error {
			var d Deposit
			if err := r.store.TxGet(tx, id, &d); err != nil {
				if errors.Is(err, badgerhold.ErrNotFound) {
					return domain.ErrDepositNotFound
				}
				return err
			}

			deposit := d.toDomain()
			updated, err := updateFn(&deposit)
			if err != nil {
				return err
			}
			updated.ID = id

			data := toStorageDeposit(*updated)
			return r.store.TxUpdate(tx, id, &data)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (r *depositRepositoryImpl) close() error {
	return r.seq.Release()
}
