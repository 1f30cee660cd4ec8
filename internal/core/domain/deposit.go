package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/vcard-network/depositd/pkg/depositwallet"
)

const (
	DepositStatusPending DepositStatus = iota
	DepositStatusVerified
	DepositStatusExpired
)

const (
	SweepStatusNone SweepStatus = iota
	SweepStatusPending
	SweepStatusSwept
	SweepStatusFailed
)

var (
	depositStatusToString = map[DepositStatus]string{
		DepositStatusPending:  "PENDING",
		DepositStatusVerified: "VERIFIED",
		DepositStatusExpired:  "EXPIRED",
	}
	sweepStatusToString = map[SweepStatus]string{
		SweepStatusNone:    "NONE",
		SweepStatusPending: "PENDING",
		SweepStatusSwept:   "SWEPT",
		SweepStatusFailed:  "FAILED",
	}
)

// DepositStatus is the lifecycle status of the payment to a deposit address.
type DepositStatus int

func (s DepositStatus) String() string {
	str, ok := depositStatusToString[s]
	if !ok {
		return "UNKNOWN"
	}
	return str
}

// DepositStatusFromString returns the status with the given label.
func DepositStatusFromString(str string) (DepositStatus, bool) {
	for status, label := range depositStatusToString {
		if label == str {
			return status, true
		}
	}
	return -1, false
}

// SweepStatus is the status of the transfer of the received funds to the
// master custody address.
type SweepStatus int

func (s SweepStatus) String() string {
	str, ok := sweepStatusToString[s]
	if !ok {
		return "UNKNOWN"
	}
	return str
}

// Deposit is a one-time deposit address waiting for, or having received, a
// payment of ExpectedLamports.
type Deposit struct {
	ID               string
	DerivationIndex  uint64
	Address          string
	ExpectedLamports uint64
	SigningKey       depositwallet.EncodedKey
	Status           DepositStatus
	PaymentVerified  bool
	TxSignature      string
	AmountReceived   uint64
	SweepStatus      SweepStatus
	SweepSignature   string
	SweepError       string
	SweepAttempts    int
	CreatedAt        int64
	ExpiresAt        int64
	VerifiedAt       int64
}

// NewDeposit returns a pending deposit with a new id.
func NewDeposit(
	index uint64, address string, expectedLamports uint64,
	key depositwallet.EncodedKey, createdAt time.Time, expiry time.Duration,
) (*Deposit, error) {
	if len(address) <= 0 {
		return nil, ErrDepositNullAddress
	}
	if expectedLamports <= 0 {
		return nil, ErrDepositInvalidAmount
	}
	if len(key.Data) <= 0 {
		return nil, ErrDepositNullKey
	}

	d := &Deposit{
		ID:               uuid.New().String(),
		DerivationIndex:  index,
		Address:          address,
		ExpectedLamports: expectedLamports,
		SigningKey:       key,
		Status:           DepositStatusPending,
		SweepStatus:      SweepStatusNone,
		CreatedAt:        createdAt.Unix(),
	}
	if expiry > 0 {
		d.ExpiresAt = createdAt.Add(expiry).Unix()
	}
	return d, nil
}

// IsPending returns whether the payment has not been verified yet. Expired
// deposits are still pending from the ledger point of view since funds can
// still land on the address.
func (d *Deposit) IsPending() bool {
	return !d.PaymentVerified
}

// IsExpired returns whether the deposit is unpaid past its expiration.
func (d *Deposit) IsExpired(now time.Time) bool {
	if d.ExpiresAt <= 0 || d.PaymentVerified {
		return false
	}
	return now.Unix() >= d.ExpiresAt
}

// Verify marks the payment as received. Calling it again has no effect.
func (d *Deposit) Verify(
	signature string, amountReceived uint64, verifiedAt time.Time,
) {
	if d.PaymentVerified {
		return
	}
	d.PaymentVerified = true
	d.Status = DepositStatusVerified
	d.TxSignature = signature
	d.AmountReceived = amountReceived
	d.VerifiedAt = verifiedAt.Unix()
}

// Expire marks an unpaid deposit as expired.
func (d *Deposit) Expire() error {
	if d.PaymentVerified {
		return ErrDepositAlreadyVerified
	}
	d.Status = DepositStatusExpired
	return nil
}

// IsSwept returns whether the funds have been moved to the master address.
func (d *Deposit) IsSwept() bool {
	return d.SweepStatus == SweepStatusSwept
}

// CanSweep returns whether a new sweep attempt can be started.
func (d *Deposit) CanSweep(maxAttempts int) bool {
	if d.SweepStatus == SweepStatusSwept || d.SweepStatus == SweepStatusPending {
		return false
	}
	if maxAttempts > 0 && d.SweepAttempts >= maxAttempts {
		return false
	}
	return true
}

// StartSweep records a new sweep attempt.
func (d *Deposit) StartSweep() error {
	if d.SweepStatus == SweepStatusSwept {
		return ErrDepositAlreadySwept
	}
	if d.SweepStatus == SweepStatusPending {
		return ErrDepositSweepInProgress
	}
	d.SweepStatus = SweepStatusPending
	d.SweepAttempts++
	d.SweepError = ""
	return nil
}

// RecordSweepSubmission records the signature of the sweep tx of the
// ongoing attempt, before it is confirmed.
func (d *Deposit) RecordSweepSubmission(signature string) {
	if d.SweepStatus != SweepStatusPending {
		return
	}
	d.SweepSignature = signature
}

// CompleteSweep records the successful sweep tx.
func (d *Deposit) CompleteSweep(signature string) {
	d.SweepStatus = SweepStatusSwept
	d.SweepSignature = signature
	d.SweepError = ""
}

// FailSweep records the reason of a failed sweep attempt.
func (d *Deposit) FailSweep(reason string) {
	d.SweepStatus = SweepStatusFailed
	d.SweepError = reason
}
