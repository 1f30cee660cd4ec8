package application

import (
	"context"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	log "github.com/sirupsen/logrus"
	"github.com/vcard-network/depositd/pkg/ledger"
)

// Outcome tells which rule produced a verification result.
type Outcome int

const (
	// OutcomeUnknown is the outcome of a verification that could not be
	// evaluated because of ledger errors.
	OutcomeUnknown Outcome = iota
	// OutcomeInsufficient means the balance is lower than expected.
	OutcomeInsufficient
	// OutcomeMatchedTransfer means a single transfer paying at least the
	// expected amount was found.
	OutcomeMatchedTransfer
	// OutcomeBalanceFallback means the balance covers the expected amount
	// but no single transfer does.
	OutcomeBalanceFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInsufficient:
		return "insufficient"
	case OutcomeMatchedTransfer:
		return "matched_transfer"
	case OutcomeBalanceFallback:
		return "balance_fallback"
	default:
		return "unknown"
	}
}

// PaymentVerification is the answer to whether the expected amount arrived
// at a deposit address.
type PaymentVerification struct {
	Verified       bool
	Signature      fn.Option[string]
	AmountReceived uint64
	ObservedAt     time.Time
	Outcome        Outcome
}

// PaymentVerifier checks the ledger for payments to deposit addresses.
type PaymentVerifier interface {
	// VerifyPayment never fails: ledger errors are reported as an unverified
	// payment with nothing received.
	VerifyPayment(
		ctx context.Context, address string, expectedLamports uint64,
	) PaymentVerification
	// VerifyPaymentWithBackoff retries rate-limited verifications with
	// increasing waits and returns any other error.
	VerifyPaymentWithBackoff(
		ctx context.Context, address string, expectedLamports uint64,
	) (PaymentVerification, error)
}

type sleepFn func(ctx context.Context, d time.Duration) error

type paymentVerifier struct {
	ledgerSvc ledger.Service
	cache     *verificationCache
	clock     clock.Clock
	backoff   []time.Duration
	sleep     sleepFn
}

// NewPaymentVerifier returns a PaymentVerifier querying the given ledger.
func NewPaymentVerifier(
	ledgerSvc ledger.Service, clk clock.Clock,
) (PaymentVerifier, error) {
	if ledgerSvc == nil {
		return nil, ErrNullLedgerService
	}
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return newPaymentVerifier(ledgerSvc, clk, nil), nil
}

func newPaymentVerifier(
	ledgerSvc ledger.Service, clk clock.Clock, sleep sleepFn,
) *paymentVerifier {
	if sleep == nil {
		sleep = clockSleep(clk)
	}
	return &paymentVerifier{
		ledgerSvc: ledgerSvc,
		cache:     newVerificationCache(VerificationCacheTTL, clk),
		clock:     clk,
		backoff:   RateLimitBackoff,
		sleep:     sleep,
	}
}

func (v *paymentVerifier) VerifyPayment(
	ctx context.Context, address string, expectedLamports uint64,
) PaymentVerification {
	result, err := v.verify(ctx, address, expectedLamports)
	if err != nil {
		log.WithError(err).WithField("address", address).Warn(
			"failed to verify payment",
		)
		verificationsTotal.WithLabelValues(OutcomeUnknown.String()).Inc()
		return PaymentVerification{
			Verified:       false,
			Signature:      fn.None[string](),
			AmountReceived: 0,
			ObservedAt:     v.clock.Now(),
			Outcome:        OutcomeUnknown,
		}
	}
	return result
}

func (v *paymentVerifier) VerifyPaymentWithBackoff(
	ctx context.Context, address string, expectedLamports uint64,
) (PaymentVerification, error) {
	start := v.clock.Now()
	defer func() {
		verificationDuration.Observe(v.clock.Now().Sub(start).Seconds())
	}()

	for attempt := 0; ; attempt++ {
		result, err := v.verify(ctx, address, expectedLamports)
		if err == nil {
			return result, nil
		}
		if !ledger.IsRateLimited(err) {
			return PaymentVerification{}, err
		}
		if attempt >= len(v.backoff) {
			return PaymentVerification{}, fmt.Errorf(
				"giving up after %d attempts: %w", attempt+1, err,
			)
		}

		wait := v.backoff[attempt]
		log.WithField("address", address).Debugf(
			"rate limited, retrying verification in %s", wait,
		)
		rateLimitRetries.Inc()
		if err := v.sleep(ctx, wait); err != nil {
			return PaymentVerification{}, err
		}
	}
}

// verify serves the cached result if any, otherwise evaluates and caches
// the verification.
func (v *paymentVerifier) verify(
	ctx context.Context, address string, expectedLamports uint64,
) (PaymentVerification, error) {
	if result, ok := v.cache.get(address, expectedLamports); ok {
		verificationCacheHits.Inc()
		return result, nil
	}

	result, err := v.evaluate(ctx, address, expectedLamports)
	if err != nil {
		return PaymentVerification{}, err
	}

	v.cache.put(address, expectedLamports, result)
	verificationsTotal.WithLabelValues(result.Outcome.String()).Inc()
	return result, nil
}

func (v *paymentVerifier) evaluate(
	ctx context.Context, address string, expectedLamports uint64,
) (PaymentVerification, error) {
	balance, err := v.ledgerSvc.GetBalance(ctx, address)
	if err != nil {
		return PaymentVerification{}, err
	}
	if balance < expectedLamports {
		return PaymentVerification{
			Verified:       false,
			Signature:      fn.None[string](),
			AmountReceived: balance,
			ObservedAt:     v.clock.Now(),
			Outcome:        OutcomeInsufficient,
		}, nil
	}

	sigs, err := v.ledgerSvc.GetSignaturesForAddress(
		ctx, address, SignatureScanLimit,
	)
	if err != nil {
		return PaymentVerification{}, err
	}

	for _, sig := range sigs {
		if sig.Failed() {
			continue
		}
		tx, err := v.ledgerSvc.GetParsedTransaction(ctx, sig.Signature)
		if err != nil {
			return PaymentVerification{}, err
		}
		if tx == nil {
			continue
		}

		for _, transfer := range tx.NativeTransfersTo(address) {
			if transfer.Lamports >= expectedLamports {
				return PaymentVerification{
					Verified:       true,
					Signature:      fn.Some(sig.Signature),
					AmountReceived: transfer.Lamports,
					ObservedAt:     v.clock.Now(),
					Outcome:        OutcomeMatchedTransfer,
				}, nil
			}
		}
	}

	signature := fn.None[string]()
	if len(sigs) > 0 {
		signature = fn.Some(sigs[0].Signature)
	}
	return PaymentVerification{
		Verified:       true,
		Signature:      signature,
		AmountReceived: balance,
		ObservedAt:     v.clock.Now(),
		Outcome:        OutcomeBalanceFallback,
	}, nil
}

func clockSleep(clk clock.Clock) sleepFn {
	return func(ctx context.Context, d time.Duration) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.TickAfter(d):
			return nil
		}
	}
}
