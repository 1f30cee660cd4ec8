package application

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	log "github.com/sirupsen/logrus"
	"github.com/vcard-network/depositd/internal/core/domain"
	"golang.org/x/sync/errgroup"
)

const defaultMonitorConcurrency = 4

// DepositMonitor periodically checks the pending deposits and retries the
// failed sweeps.
type DepositMonitor interface {
	Start()
	Stop()
}

type depositMonitor struct {
	depositSvc       DepositService
	ticker           ticker.Ticker
	concurrency      int
	expiredWindow    time.Duration
	maxSweepAttempts int
	clock            clock.Clock

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewDepositMonitor returns a monitor polling at every tick. Expired
// deposits are polled for expiredWindow after their expiration, a zero
// window polls them forever.
func NewDepositMonitor(
	depositSvc DepositService, t ticker.Ticker, concurrency int,
	expiredWindow time.Duration, maxSweepAttempts int, clk clock.Clock,
) DepositMonitor {
	return newDepositMonitor(
		depositSvc, t, concurrency, expiredWindow, maxSweepAttempts, clk,
	)
}

func newDepositMonitor(
	depositSvc DepositService, t ticker.Ticker, concurrency int,
	expiredWindow time.Duration, maxSweepAttempts int, clk clock.Clock,
) *depositMonitor {
	if concurrency <= 0 {
		concurrency = defaultMonitorConcurrency
	}
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &depositMonitor{
		depositSvc:       depositSvc,
		ticker:           t,
		concurrency:      concurrency,
		expiredWindow:    expiredWindow,
		maxSweepAttempts: maxSweepAttempts,
		clock:            clk,
		quit:             make(chan struct{}),
	}
}

func (m *depositMonitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())

	if n, err := m.depositSvc.RecoverInterruptedSweeps(ctx); err != nil {
		log.WithError(err).Warn("failed to recover interrupted sweeps")
	} else if n > 0 {
		log.Infof("marked %d interrupted sweeps as failed", n)
	}

	m.ticker.Resume()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		for {
			select {
			case <-m.ticker.Ticks():
				m.poll(ctx)
			case <-m.quit:
				return
			}
		}
	}()

	// Abort in-flight checks on stop, started sweeps run to completion.
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		select {
		case <-m.quit:
			cancel()
		case <-ctx.Done():
		}
	}()
}

func (m *depositMonitor) Stop() {
	close(m.quit)
	m.ticker.Stop()
	m.wg.Wait()
}

func (m *depositMonitor) poll(ctx context.Context) {
	if _, err := m.depositSvc.ExpireDeposits(ctx); err != nil {
		log.WithError(err).Warn("failed to expire deposits")
	}

	deposits, err := m.depositSvc.ListDeposits(ctx, []domain.DepositStatus{
		domain.DepositStatusPending, domain.DepositStatusExpired,
	}, nil)
	if err != nil {
		log.WithError(err).Warn("failed to list pending deposits")
		return
	}

	unswept, err := m.depositSvc.ListUnsweptDeposits(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to list unswept deposits")
	}

	now := m.clock.Now()
	ids := make([]string, 0, len(deposits)+len(unswept))
	for _, d := range deposits {
		if d.Status == domain.DepositStatusExpired && m.expiredWindow > 0 &&
			now.Sub(time.Unix(d.ExpiresAt, 0)) > m.expiredWindow {
			continue
		}
		ids = append(ids, d.ID)
	}
	for _, d := range unswept {
		if d.CanSweep(m.maxSweepAttempts) {
			ids = append(ids, d.ID)
		}
	}
	if len(ids) <= 0 {
		return
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(m.concurrency)
	for _, id := range ids {
		id := id
		eg.Go(func() error {
			if _, err := m.depositSvc.CheckDeposit(ctx, id); err != nil {
				log.WithError(err).WithField("deposit", id).Warn(
					"failed to check deposit",
				)
			}
			return nil
		})
	}
	//nolint
	eg.Wait()
}
