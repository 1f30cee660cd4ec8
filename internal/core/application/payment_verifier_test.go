package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vcard-network/depositd/pkg/ledger"
)

const (
	testDepositAddress = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	testExpected       = uint64(1_000_000)
)

var (
	testNow        = time.Unix(1700000000, 0)
	errRateLimit   = &ledger.RPCError{Method: "getBalance", HTTPStatus: 429, RateLimit: true}
	errUnreachable = errors.New("connection refused")
)

type sleepRecorder struct {
	waits []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func newTestVerifier(
	l *mockLedger,
) (*paymentVerifier, *clock.TestClock, *sleepRecorder) {
	clk := clock.NewTestClock(testNow)
	rec := &sleepRecorder{}
	return newPaymentVerifier(l, clk, rec.sleep), clk, rec
}

func transferTx(sig, to string, lamports uint64) *ledger.ParsedTransaction {
	return &ledger.ParsedTransaction{
		Signature: sig,
		Instructions: []ledger.Instruction{
			{
				ProgramID:   ledger.SystemProgramID,
				Program:     "system",
				Type:        "transfer",
				Source:      "payer",
				Destination: to,
				Lamports:    lamports,
			},
		},
	}
}

func TestVerifyPayment(t *testing.T) {
	t.Parallel()

	t.Run("insufficient balance", func(t *testing.T) {
		l := &mockLedger{}
		l.On("GetBalance", mock.Anything, testDepositAddress).
			Return(uint64(400_000), nil)
		v, _, _ := newTestVerifier(l)

		res := v.VerifyPayment(ctx(), testDepositAddress, testExpected)
		require.False(t, res.Verified)
		require.Equal(t, uint64(400_000), res.AmountReceived)
		require.True(t, res.Signature.IsNone())
		require.Equal(t, OutcomeInsufficient, res.Outcome)
		require.Equal(t, testNow, res.ObservedAt)
		l.AssertNotCalled(t, "GetSignaturesForAddress", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("matched transfer", func(t *testing.T) {
		l := &mockLedger{}
		l.On("GetBalance", mock.Anything, testDepositAddress).
			Return(uint64(4_500_000), nil)
		l.On("GetSignaturesForAddress", mock.Anything, testDepositAddress, SignatureScanLimit).
			Return([]ledger.SignatureInfo{
				{Signature: "failed", Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}},
				{Signature: "small"},
				{Signature: "paid"},
				{Signature: "older"},
			}, nil)
		l.On("GetParsedTransaction", mock.Anything, "small").
			Return(transferTx("small", testDepositAddress, 500_000), nil)
		l.On("GetParsedTransaction", mock.Anything, "paid").
			Return(transferTx("paid", testDepositAddress, 1_500_000), nil)
		v, _, _ := newTestVerifier(l)

		res := v.VerifyPayment(ctx(), testDepositAddress, testExpected)
		require.True(t, res.Verified)
		require.Equal(t, "paid", res.Signature.UnwrapOr(""))
		require.Equal(t, uint64(1_500_000), res.AmountReceived)
		require.Equal(t, OutcomeMatchedTransfer, res.Outcome)
		l.AssertNotCalled(t, "GetParsedTransaction", mock.Anything, "failed")
		l.AssertNotCalled(t, "GetParsedTransaction", mock.Anything, "older")
	})

	t.Run("transfer to other address is ignored", func(t *testing.T) {
		l := &mockLedger{}
		l.On("GetBalance", mock.Anything, testDepositAddress).
			Return(uint64(1_000_000), nil)
		l.On("GetSignaturesForAddress", mock.Anything, testDepositAddress, SignatureScanLimit).
			Return([]ledger.SignatureInfo{{Signature: "outgoing"}}, nil)
		l.On("GetParsedTransaction", mock.Anything, "outgoing").
			Return(transferTx("outgoing", "someone-else", 2_000_000), nil)
		v, _, _ := newTestVerifier(l)

		res := v.VerifyPayment(ctx(), testDepositAddress, testExpected)
		require.True(t, res.Verified)
		require.Equal(t, OutcomeBalanceFallback, res.Outcome)
		require.Equal(t, "outgoing", res.Signature.UnwrapOr(""))
		require.Equal(t, uint64(1_000_000), res.AmountReceived)
	})

	t.Run("balance fallback with split payments", func(t *testing.T) {
		l := &mockLedger{}
		l.On("GetBalance", mock.Anything, testDepositAddress).
			Return(uint64(1_200_000), nil)
		l.On("GetSignaturesForAddress", mock.Anything, testDepositAddress, SignatureScanLimit).
			Return([]ledger.SignatureInfo{{Signature: "second"}, {Signature: "first"}}, nil)
		l.On("GetParsedTransaction", mock.Anything, "second").
			Return(transferTx("second", testDepositAddress, 600_000), nil)
		l.On("GetParsedTransaction", mock.Anything, "first").
			Return(transferTx("first", testDepositAddress, 600_000), nil)
		v, _, _ := newTestVerifier(l)

		res := v.VerifyPayment(ctx(), testDepositAddress, testExpected)
		require.True(t, res.Verified)
		require.Equal(t, "second", res.Signature.UnwrapOr(""))
		require.Equal(t, uint64(1_200_000), res.AmountReceived)
		require.Equal(t, OutcomeBalanceFallback, res.Outcome)
	})

	t.Run("balance fallback without history", func(t *testing.T) {
		l := &mockLedger{}
		l.On("GetBalance", mock.Anything, testDepositAddress).
			Return(testExpected, nil)
		l.On("GetSignaturesForAddress", mock.Anything, testDepositAddress, SignatureScanLimit).
			Return([]ledger.SignatureInfo{}, nil)
		v, _, _ := newTestVerifier(l)

		res := v.VerifyPayment(ctx(), testDepositAddress, testExpected)
		require.True(t, res.Verified)
		require.True(t, res.Signature.IsNone())
		require.Equal(t, testExpected, res.AmountReceived)
	})

	t.Run("missing transaction is skipped", func(t *testing.T) {
		l := &mockLedger{}
		l.On("GetBalance", mock.Anything, testDepositAddress).
			Return(testExpected, nil)
		l.On("GetSignaturesForAddress", mock.Anything, testDepositAddress, SignatureScanLimit).
			Return([]ledger.SignatureInfo{{Signature: "pending"}, {Signature: "paid"}}, nil)
		l.On("GetParsedTransaction", mock.Anything, "pending").Return(nil, nil)
		l.On("GetParsedTransaction", mock.Anything, "paid").
			Return(transferTx("paid", testDepositAddress, testExpected), nil)
		v, _, _ := newTestVerifier(l)

		res := v.VerifyPayment(ctx(), testDepositAddress, testExpected)
		require.Equal(t, OutcomeMatchedTransfer, res.Outcome)
		require.Equal(t, "paid", res.Signature.UnwrapOr(""))
	})

	t.Run("ledger errors are swallowed and not cached", func(t *testing.T) {
		l := &mockLedger{}
		l.On("GetBalance", mock.Anything, testDepositAddress).
			Return(nil, errUnreachable)
		v, _, _ := newTestVerifier(l)

		for i := 0; i < 2; i++ {
			res := v.VerifyPayment(ctx(), testDepositAddress, testExpected)
			require.False(t, res.Verified)
			require.Zero(t, res.AmountReceived)
			require.True(t, res.Signature.IsNone())
			require.Equal(t, OutcomeUnknown, res.Outcome)
		}
		l.AssertNumberOfCalls(t, "GetBalance", 2)
	})

	t.Run("transaction fetch error is swallowed", func(t *testing.T) {
		l := &mockLedger{}
		l.On("GetBalance", mock.Anything, testDepositAddress).
			Return(testExpected, nil)
		l.On("GetSignaturesForAddress", mock.Anything, testDepositAddress, SignatureScanLimit).
			Return([]ledger.SignatureInfo{{Signature: "paid"}}, nil)
		l.On("GetParsedTransaction", mock.Anything, "paid").
			Return(nil, errUnreachable)
		v, _, _ := newTestVerifier(l)

		res := v.VerifyPayment(ctx(), testDepositAddress, testExpected)
		require.False(t, res.Verified)
		require.Equal(t, OutcomeUnknown, res.Outcome)
	})
}

func TestVerificationCache(t *testing.T) {
	t.Parallel()

	l := &mockLedger{}
	l.On("GetBalance", mock.Anything, testDepositAddress).
		Return(uint64(10), nil)
	v, clk, _ := newTestVerifier(l)

	first := v.VerifyPayment(ctx(), testDepositAddress, testExpected)
	second, err := v.VerifyPaymentWithBackoff(ctx(), testDepositAddress, testExpected)
	require.NoError(t, err)
	require.Equal(t, first, second)
	l.AssertNumberOfCalls(t, "GetBalance", 1)

	// Different expected amount is a different entry.
	v.VerifyPayment(ctx(), testDepositAddress, testExpected+1)
	l.AssertNumberOfCalls(t, "GetBalance", 2)

	clk.SetTime(testNow.Add(VerificationCacheTTL - time.Millisecond))
	v.VerifyPayment(ctx(), testDepositAddress, testExpected)
	l.AssertNumberOfCalls(t, "GetBalance", 2)

	clk.SetTime(testNow.Add(VerificationCacheTTL))
	res := v.VerifyPayment(ctx(), testDepositAddress, testExpected)
	l.AssertNumberOfCalls(t, "GetBalance", 3)
	require.Equal(t, testNow.Add(VerificationCacheTTL), res.ObservedAt)
}

func TestVerifyPaymentWithBackoff(t *testing.T) {
	t.Parallel()

	t.Run("retries rate limited requests", func(t *testing.T) {
		l := &mockLedger{}
		l.On("GetBalance", mock.Anything, testDepositAddress).
			Return(nil, errRateLimit).Times(3)
		l.On("GetBalance", mock.Anything, testDepositAddress).
			Return(uint64(0), nil)
		v, _, rec := newTestVerifier(l)

		res, err := v.VerifyPaymentWithBackoff(ctx(), testDepositAddress, testExpected)
		require.NoError(t, err)
		require.False(t, res.Verified)
		require.Equal(t, OutcomeInsufficient, res.Outcome)
		require.Equal(t, []time.Duration{
			time.Second, 2 * time.Second, 4 * time.Second,
		}, rec.waits)
		l.AssertNumberOfCalls(t, "GetBalance", 4)
	})

	t.Run("gives up after the last wait", func(t *testing.T) {
		l := &mockLedger{}
		l.On("GetBalance", mock.Anything, testDepositAddress).
			Return(nil, errRateLimit)
		v, _, rec := newTestVerifier(l)

		_, err := v.VerifyPaymentWithBackoff(ctx(), testDepositAddress, testExpected)
		require.Error(t, err)
		require.True(t, ledger.IsRateLimited(err))
		require.Equal(t, RateLimitBackoff, rec.waits)
		l.AssertNumberOfCalls(t, "GetBalance", len(RateLimitBackoff)+1)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		l := &mockLedger{}
		l.On("GetBalance", mock.Anything, testDepositAddress).
			Return(nil, errUnreachable)
		v, _, rec := newTestVerifier(l)

		_, err := v.VerifyPaymentWithBackoff(ctx(), testDepositAddress, testExpected)
		require.ErrorIs(t, err, errUnreachable)
		require.Empty(t, rec.waits)
		l.AssertNumberOfCalls(t, "GetBalance", 1)
	})

	t.Run("rate limit while scanning history", func(t *testing.T) {
		l := &mockLedger{}
		l.On("GetBalance", mock.Anything, testDepositAddress).
			Return(testExpected, nil)
		l.On("GetSignaturesForAddress", mock.Anything, testDepositAddress, SignatureScanLimit).
			Return([]ledger.SignatureInfo{{Signature: "paid"}}, nil)
		l.On("GetParsedTransaction", mock.Anything, "paid").
			Return(nil, &ledger.RPCError{Method: "getTransaction", Code: 429, RateLimit: true}).Once()
		l.On("GetParsedTransaction", mock.Anything, "paid").
			Return(transferTx("paid", testDepositAddress, testExpected), nil)
		v, _, rec := newTestVerifier(l)

		res, err := v.VerifyPaymentWithBackoff(ctx(), testDepositAddress, testExpected)
		require.NoError(t, err)
		require.Equal(t, OutcomeMatchedTransfer, res.Outcome)
		require.Len(t, rec.waits, 1)
	})

	t.Run("canceled context aborts the wait", func(t *testing.T) {
		l := &mockLedger{}
		l.On("GetBalance", mock.Anything, testDepositAddress).
			Return(nil, errRateLimit)
		v := newPaymentVerifier(l, clock.NewTestClock(testNow), nil)

		c, cancel := context.WithCancel(ctx())
		cancel()

		_, err := v.VerifyPaymentWithBackoff(c, testDepositAddress, testExpected)
		require.ErrorIs(t, err, context.Canceled)
		l.AssertNumberOfCalls(t, "GetBalance", 1)
	})
}

func ctx() context.Context {
	return context.Background()
}
