package application

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vcard-network/depositd/internal/core/domain"
)

const testExpiredWindow = time.Hour

func TestDepositMonitor(t *testing.T) {
	f := newDepositFixture(t, "", 3)

	paid := f.createDeposit(t, 1_000)
	f.paid(paid, "paysig")
	f.sweeper.On("SweepNotify", mock.Anything, paid.SigningKey, f.svc.MasterAddress()).
		Return(sweepSucceeded("sweepsig"))

	unpaid := f.createDeposit(t, 2_000)
	f.unpaid(unpaid)

	// Verified before a restart with its sweep left in progress.
	interrupted := f.createDeposit(t, 3_000)
	verifyDeposit(t, f, interrupted)
	err := f.repository.UpdateDeposit(
		ctx(), interrupted.ID, func(d *domain.Deposit) (*domain.Deposit, error) {
			return d, d.StartSweep()
		},
	)
	require.NoError(t, err)
	f.sweeper.On("SweepNotify", mock.Anything, interrupted.SigningKey, f.svc.MasterAddress()).
		Return(sweepSucceeded("resweepsig"))

	tick := ticker.NewForce(time.Hour)
	monitor := newDepositMonitor(
		f.svc, tick, 2, testExpiredWindow, 3, f.clock,
	)
	monitor.Start()
	defer monitor.Stop()

	tick.Force <- f.clock.Now()

	require.Eventually(t, func() bool {
		d, err := f.svc.GetDeposit(ctx(), paid.ID)
		if err != nil || !d.IsSwept() {
			return false
		}
		d, err = f.svc.GetDeposit(ctx(), interrupted.ID)
		return err == nil && d.IsSwept()
	}, 2*time.Second, 10*time.Millisecond)

	got, err := f.svc.GetDeposit(ctx(), unpaid.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DepositStatusPending, got.Status)

	got, err = f.svc.GetDeposit(ctx(), interrupted.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.SweepAttempts)
	require.Equal(t, "resweepsig", got.SweepSignature)
}

func TestDepositMonitorExpiredWindow(t *testing.T) {
	f := newDepositFixture(t, "", 0)

	d := f.createDeposit(t, 1_000)
	f.unpaid(d)

	monitor := newDepositMonitor(
		f.svc, ticker.NewForce(time.Hour), 1, testExpiredWindow, 0, f.clock,
	)

	f.clock.SetTime(testNow.Add(testDepositExpiry))
	monitor.poll(ctx())
	f.verifier.AssertNumberOfCalls(t, "VerifyPaymentWithBackoff", 1)
	got, err := f.svc.GetDeposit(ctx(), d.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DepositStatusExpired, got.Status)
	require.Equal(t, []string{TopicDepositExpired}, f.pubsub.topics())

	// Still within the window.
	f.clock.SetTime(testNow.Add(testDepositExpiry + testExpiredWindow))
	monitor.poll(ctx())
	f.verifier.AssertNumberOfCalls(t, "VerifyPaymentWithBackoff", 2)

	f.clock.SetTime(testNow.Add(testDepositExpiry + testExpiredWindow + time.Second))
	monitor.poll(ctx())
	f.verifier.AssertNumberOfCalls(t, "VerifyPaymentWithBackoff", 2)

	// A zero window polls expired deposits forever.
	monitor.expiredWindow = 0
	monitor.poll(ctx())
	f.verifier.AssertNumberOfCalls(t, "VerifyPaymentWithBackoff", 3)
	require.Equal(t, []string{TopicDepositExpired}, f.pubsub.topics())
}
