package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/vcard-network/depositd/internal/core/domain"
	"github.com/vcard-network/depositd/internal/core/ports"
	"github.com/vcard-network/depositd/pkg/depositwallet"
	"github.com/vcard-network/depositd/pkg/lamports"
)

// Amount is the amount requested for a deposit. Exactly one field must be
// set.
type Amount struct {
	Lamports uint64
	Sol      decimal.Decimal
	Usd      decimal.Decimal
}

// CheckResult is the state of a deposit after a check, along with the
// verification and the sweep performed during the check, if any.
type CheckResult struct {
	Deposit      domain.Deposit
	Verification *PaymentVerification
	Sweep        *SweepResult
}

// DepositService hands out deposit addresses and follows them until their
// funds reach the master address.
type DepositService interface {
	MasterAddress() string
	// ConvertToLamports returns the lamports corresponding to the amount.
	ConvertToLamports(ctx context.Context, amount Amount) (uint64, error)
	CreateDeposit(ctx context.Context, amount Amount) (*domain.Deposit, error)
	GetDeposit(ctx context.Context, id string) (*domain.Deposit, error)
	ListDeposits(
		ctx context.Context, statuses []domain.DepositStatus, page *domain.Page,
	) ([]domain.Deposit, error)
	// CheckDeposit verifies the payment of a pending deposit and sweeps the
	// funds of a verified one.
	CheckDeposit(ctx context.Context, id string) (*CheckResult, error)
	// SweepDeposit moves the funds of a verified deposit to the master
	// address. Sweeping a swept deposit is a no-op.
	SweepDeposit(ctx context.Context, id string) (*domain.Deposit, *SweepResult, error)
	// ListUnsweptDeposits returns the verified deposits whose funds have not
	// been swept yet.
	ListUnsweptDeposits(ctx context.Context) ([]domain.Deposit, error)
	// ExpireDeposits marks as expired the unpaid deposits past their expiry.
	ExpireDeposits(ctx context.Context) (int, error)
	// RecoverInterruptedSweeps marks as failed the sweeps left in progress by
	// a previous run so that they can be retried.
	RecoverInterruptedSweeps(ctx context.Context) (int, error)
}

type depositService struct {
	derivation       *depositwallet.KeyDerivation
	repository       domain.DepositRepository
	verifier         PaymentVerifier
	sweeper          FundSweeper
	pubsub           PubSubService
	priceSource      ports.PriceSource
	keyPassword      string
	depositExpiry    time.Duration
	maxSweepAttempts int
	clock            clock.Clock

	sweepLocks *keyedMutex
}

// NewDepositService returns a DepositService. The price source is optional
// and needed only for USD amounts.
func NewDepositService(
	derivation *depositwallet.KeyDerivation,
	repository domain.DepositRepository,
	verifier PaymentVerifier,
	sweeper FundSweeper,
	pubsub PubSubService,
	priceSource ports.PriceSource,
	keyPassword string,
	depositExpiry time.Duration,
	maxSweepAttempts int,
	clk clock.Clock,
) (DepositService, error) {
	return newDepositService(
		derivation, repository, verifier, sweeper, pubsub, priceSource,
		keyPassword, depositExpiry, maxSweepAttempts, clk,
	)
}

func newDepositService(
	derivation *depositwallet.KeyDerivation,
	repository domain.DepositRepository,
	verifier PaymentVerifier,
	sweeper FundSweeper,
	pubsub PubSubService,
	priceSource ports.PriceSource,
	keyPassword string,
	depositExpiry time.Duration,
	maxSweepAttempts int,
	clk clock.Clock,
) (*depositService, error) {
	if derivation == nil {
		return nil, fmt.Errorf("missing key derivation")
	}
	if repository == nil {
		return nil, fmt.Errorf("missing deposit repository")
	}
	if verifier == nil {
		return nil, fmt.Errorf("missing payment verifier")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("missing fund sweeper")
	}
	if pubsub == nil {
		pubsub = NewPubSubService(nil)
	}
	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	return &depositService{
		derivation:       derivation,
		repository:       repository,
		verifier:         verifier,
		sweeper:          sweeper,
		pubsub:           pubsub,
		priceSource:      priceSource,
		keyPassword:      keyPassword,
		depositExpiry:    depositExpiry,
		maxSweepAttempts: maxSweepAttempts,
		clock:            clk,
		sweepLocks:       newKeyedMutex(),
	}, nil
}

func (s *depositService) MasterAddress() string {
	return s.derivation.MasterPublicAddress()
}

func (s *depositService) ConvertToLamports(
	ctx context.Context, amount Amount,
) (uint64, error) {
	set := 0
	if amount.Lamports > 0 {
		set++
	}
	if !amount.Sol.IsZero() {
		set++
	}
	if !amount.Usd.IsZero() {
		set++
	}
	if set != 1 || amount.Sol.IsNegative() || amount.Usd.IsNegative() {
		return 0, ErrInvalidAmount
	}

	var value uint64
	switch {
	case amount.Lamports > 0:
		value = amount.Lamports
	case !amount.Sol.IsZero():
		v, err := lamports.ParseSol(amount.Sol)
		if err != nil {
			return 0, err
		}
		value = v
	default:
		if s.priceSource == nil {
			return 0, ErrPriceSourceUnavailable
		}
		price, err := s.priceSource.GetSolPrice(ctx)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrPriceSourceUnavailable, err)
		}
		v, err := lamports.FiatToLamports(amount.Usd, price)
		if err != nil {
			return 0, err
		}
		value = v
	}
	if value <= 0 {
		return 0, ErrInvalidAmount
	}
	return value, nil
}

func (s *depositService) CreateDeposit(
	ctx context.Context, amount Amount,
) (*domain.Deposit, error) {
	expectedLamports, err := s.ConvertToLamports(ctx, amount)
	if err != nil {
		return nil, err
	}

	index, err := s.repository.NextDerivationIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate derivation index: %w", err)
	}
	keyPair, err := s.derivation.Derive(index)
	if err != nil {
		return nil, err
	}

	key := keyPair.EncodedKey()
	if len(s.keyPassword) > 0 {
		if key, err = depositwallet.SealKey(key, s.keyPassword); err != nil {
			return nil, fmt.Errorf("failed to encrypt deposit key: %w", err)
		}
	}

	deposit, err := domain.NewDeposit(
		index, keyPair.Address, expectedLamports, key,
		s.clock.Now(), s.depositExpiry,
	)
	if err != nil {
		return nil, err
	}
	if err := s.repository.AddDeposit(ctx, deposit); err != nil {
		return nil, err
	}

	depositsCreated.Inc()
	log.WithFields(log.Fields{
		"deposit":  deposit.ID,
		"index":    index,
		"address":  deposit.Address,
		"lamports": expectedLamports,
	}).Info("created deposit")
	return deposit, nil
}

func (s *depositService) GetDeposit(
	ctx context.Context, id string,
) (*domain.Deposit, error) {
	return s.repository.GetDeposit(ctx, id)
}

func (s *depositService) ListDeposits(
	ctx context.Context, statuses []domain.DepositStatus, page *domain.Page,
) ([]domain.Deposit, error) {
	return s.repository.ListDeposits(
		ctx, domain.DepositFilter{Statuses: statuses}, page,
	)
}

func (s *depositService) ListUnsweptDeposits(
	ctx context.Context,
) ([]domain.Deposit, error) {
	return s.repository.ListDeposits(
		ctx, domain.DepositFilter{Unswept: true}, nil,
	)
}

func (s *depositService) CheckDeposit(
	ctx context.Context, id string,
) (*CheckResult, error) {
	deposit, err := s.repository.GetDeposit(ctx, id)
	if err != nil {
		return nil, err
	}

	if deposit.PaymentVerified {
		return s.sweepIfNeeded(ctx, &CheckResult{Deposit: *deposit})
	}

	verification, err := s.verifier.VerifyPaymentWithBackoff(
		ctx, deposit.Address, deposit.ExpectedLamports,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}
	result := &CheckResult{Verification: &verification}

	if !verification.Verified {
		if deposit.Status == domain.DepositStatusPending &&
			deposit.IsExpired(s.clock.Now()) {
			expired, err := s.expire(ctx, deposit.ID)
			if err != nil {
				return nil, err
			}
			deposit = expired
		}
		result.Deposit = *deposit
		return result, nil
	}

	// Verification is persisted before sweeping, a failing sweep never
	// reverts it.
	var verified *domain.Deposit
	newlyVerified := false
	if err := s.repository.UpdateDeposit(
		ctx, deposit.ID, func(d *domain.Deposit) (*domain.Deposit, error) {
			newlyVerified = !d.PaymentVerified
			d.Verify(
				verification.Signature.UnwrapOr(""),
				verification.AmountReceived, verification.ObservedAt,
			)
			verified = d
			return d, nil
		},
	); err != nil {
		return nil, fmt.Errorf("failed to persist payment verification: %w", err)
	}

	if newlyVerified {
		log.WithFields(log.Fields{
			"deposit":  verified.ID,
			"address":  verified.Address,
			"received": verified.AmountReceived,
			"outcome":  verification.Outcome.String(),
		}).Info("deposit payment verified")
		s.pubsub.PublishDepositEvent(TopicDepositVerified, *verified)
	}

	result.Deposit = *verified
	return s.sweepIfNeeded(ctx, result)
}

func (s *depositService) SweepDeposit(
	ctx context.Context, id string,
) (*domain.Deposit, *SweepResult, error) {
	deposit, err := s.repository.GetDeposit(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	s.sweepLocks.Lock(deposit.Address)
	defer s.sweepLocks.Unlock(deposit.Address)

	return s.sweep(ctx, deposit.ID)
}

func (s *depositService) ExpireDeposits(ctx context.Context) (int, error) {
	pending, err := s.repository.ListDeposits(ctx, domain.DepositFilter{
		Statuses: []domain.DepositStatus{domain.DepositStatusPending},
	}, nil)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	count := 0
	for _, d := range pending {
		if !d.IsExpired(now) {
			continue
		}
		if _, err := s.expire(ctx, d.ID); err != nil {
			if errors.Is(err, domain.ErrDepositAlreadyVerified) {
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *depositService) RecoverInterruptedSweeps(
	ctx context.Context,
) (int, error) {
	unswept, err := s.ListUnsweptDeposits(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, d := range unswept {
		if d.SweepStatus != domain.SweepStatusPending {
			continue
		}
		if err := s.repository.UpdateDeposit(
			ctx, d.ID, func(d *domain.Deposit) (*domain.Deposit, error) {
				if d.SweepStatus == domain.SweepStatusPending {
					d.FailSweep("sweep interrupted")
				}
				return d, nil
			},
		); err != nil {
			return count, err
		}
		log.WithField("deposit", d.ID).Warn("recovered interrupted sweep")
		count++
	}
	return count, nil
}

func (s *depositService) sweepIfNeeded(
	ctx context.Context, result *CheckResult,
) (*CheckResult, error) {
	if !result.Deposit.CanSweep(s.maxSweepAttempts) {
		return result, nil
	}

	deposit, sweep, err := s.SweepDeposit(ctx, result.Deposit.ID)
	if err != nil {
		if errors.Is(err, domain.ErrDepositSweepInProgress) {
			return result, nil
		}
		return nil, err
	}
	result.Deposit = *deposit
	result.Sweep = sweep
	return result, nil
}

// sweep must be called while holding the sweep lock of the deposit address.
func (s *depositService) sweep(
	ctx context.Context, id string,
) (*domain.Deposit, *SweepResult, error) {
	var deposit *domain.Deposit
	alreadySwept := false
	if err := s.repository.UpdateDeposit(
		ctx, id, func(d *domain.Deposit) (*domain.Deposit, error) {
			if !d.PaymentVerified {
				return nil, ErrDepositNotVerified
			}
			if d.IsSwept() {
				alreadySwept = true
				deposit = d
				return d, nil
			}
			if err := d.StartSweep(); err != nil {
				return nil, err
			}
			deposit = d
			return d, nil
		},
	); err != nil {
		return nil, nil, err
	}
	if alreadySwept {
		return deposit, nil, nil
	}

	// Once submitted, the sweep tx is confirmed even if the caller goes
	// away, bounded by SweepTimeout.
	sweepCtx, cancel := context.WithTimeout(
		context.WithoutCancel(ctx), SweepTimeout,
	)
	defer cancel()

	result := s.sweepFunds(sweepCtx, deposit.SigningKey, func(signature string) {
		if err := s.repository.UpdateDeposit(
			sweepCtx, id, func(d *domain.Deposit) (*domain.Deposit, error) {
				d.RecordSweepSubmission(signature)
				return d, nil
			},
		); err != nil {
			log.WithError(err).WithField("deposit", id).Warn(
				"failed to persist submitted sweep tx",
			)
		}
	})

	// An address emptied after a previous attempt has already been swept
	// by that attempt, only the deposit key can move its funds.
	if !result.Success && result.Error == ErrNoFundsToSweep.Error() &&
		deposit.SweepAttempts > 1 {
		result = SweepResult{
			Success:   true,
			Signature: fn.None[string](),
		}
	}

	var updated *domain.Deposit
	if err := s.repository.UpdateDeposit(
		sweepCtx, id, func(d *domain.Deposit) (*domain.Deposit, error) {
			if result.Success {
				d.CompleteSweep(result.Signature.UnwrapOr(d.SweepSignature))
			} else {
				d.FailSweep(result.Error)
			}
			updated = d
			return d, nil
		},
	); err != nil {
		return nil, nil, fmt.Errorf("failed to persist sweep result: %w", err)
	}
	if result.Signature.IsNone() && updated.SweepSignature != "" {
		result.Signature = fn.Some(updated.SweepSignature)
	}

	logger := log.WithFields(log.Fields{
		"deposit": updated.ID,
		"address": updated.Address,
		"attempt": updated.SweepAttempts,
	})
	if result.Success {
		logger.Info("deposit swept")
		s.pubsub.PublishDepositEvent(TopicDepositSwept, *updated)
	} else {
		logger.Warnf("deposit sweep failed: %s", result.Error)
		s.pubsub.PublishDepositEvent(TopicSweepFailed, *updated)
	}
	return updated, &result, nil
}

func (s *depositService) sweepFunds(
	ctx context.Context, key depositwallet.EncodedKey,
	onSubmit func(signature string),
) SweepResult {
	if key.IsEncrypted() {
		if len(s.keyPassword) <= 0 {
			return SweepResult{Error: ErrMissingKeyPassword.Error()}
		}
		opened, err := depositwallet.OpenKey(key, s.keyPassword)
		if err != nil {
			return SweepResult{Error: err.Error()}
		}
		key = opened
	}
	return s.sweeper.SweepNotify(ctx, key, s.MasterAddress(), onSubmit)
}

func (s *depositService) expire(
	ctx context.Context, id string,
) (*domain.Deposit, error) {
	var expired *domain.Deposit
	if err := s.repository.UpdateDeposit(
		ctx, id, func(d *domain.Deposit) (*domain.Deposit, error) {
			if err := d.Expire(); err != nil {
				return nil, err
			}
			expired = d
			return d, nil
		},
	); err != nil {
		return nil, err
	}

	log.WithField("deposit", id).Info("deposit expired")
	s.pubsub.PublishDepositEvent(TopicDepositExpired, *expired)
	return expired, nil
}
