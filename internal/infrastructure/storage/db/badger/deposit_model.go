package dbbadger

import (
	"github.com/vcard-network/depositd/internal/core/domain"
	"github.com/vcard-network/depositd/pkg/depositwallet"
)

// Deposit is the storage representation of a domain.Deposit.
type Deposit struct {
	ID               string
	DerivationIndex  uint64
	Address          string `badgerhold:"index"`
	ExpectedLamports uint64
	KeyEncoding      string
	KeyData          string
	Status           int `badgerhold:"index"`
	PaymentVerified  bool
	TxSignature      string
	AmountReceived   uint64
	SweepStatus      int
	SweepSignature   string
	SweepError       string
	SweepAttempts    int
	CreatedAt        int64
	ExpiresAt        int64
	VerifiedAt       int64
}

func toStorageDeposit(d domain.Deposit) Deposit {
	return Deposit{
		ID:               d.ID,
		DerivationIndex:  d.DerivationIndex,
		Address:          d.Address,
		ExpectedLamports: d.ExpectedLamports,
		KeyEncoding:      string(d.SigningKey.Encoding),
		KeyData:          d.SigningKey.Data,
		Status:           int(d.Status),
		PaymentVerified:  d.PaymentVerified,
		TxSignature:      d.TxSignature,
		AmountReceived:   d.AmountReceived,
		SweepStatus:      int(d.SweepStatus),
		SweepSignature:   d.SweepSignature,
		SweepError:       d.SweepError,
		SweepAttempts:    d.SweepAttempts,
		CreatedAt:        d.CreatedAt,
		ExpiresAt:        d.ExpiresAt,
		VerifiedAt:       d.VerifiedAt,
	}
}

func (d Deposit) toDomain() domain.Deposit {
	return domain.Deposit{
		ID:               d.ID,
		DerivationIndex:  d.DerivationIndex,
		Address:          d.Address,
		ExpectedLamports: d.ExpectedLamports,
		SigningKey: depositwallet.EncodedKey{
			Encoding: depositwallet.KeyEncoding(d.KeyEncoding),
			Data:     d.KeyData,
		},
		Status:          domain.DepositStatus(d.Status),
		PaymentVerified: d.PaymentVerified,
		TxSignature:     d.TxSignature,
		AmountReceived:  d.AmountReceived,
		SweepStatus:     domain.SweepStatus(d.SweepStatus),
		SweepSignature:  d.SweepSignature,
		SweepError:      d.SweepError,
		SweepAttempts:   d.SweepAttempts,
		CreatedAt:       d.CreatedAt,
		ExpiresAt:       d.ExpiresAt,
		VerifiedAt:      d.VerifiedAt,
	}
}
