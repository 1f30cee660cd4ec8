package application

import (
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	log "github.com/sirupsen/logrus"
	"github.com/vcard-network/depositd/internal/core/ports"
	dbbadger "github.com/vcard-network/depositd/internal/infrastructure/storage/db/badger"
	"github.com/vcard-network/depositd/pkg/depositwallet"
	"github.com/vcard-network/depositd/pkg/ledger"
)

const (
	DBBadger = "badger"
)

var (
	SupportedDBType = map[string]struct{}{
		DBBadger: {},
	}
)

type Config struct {
	DBType   string
	DBConfig interface{}

	MasterKey   *depositwallet.MasterKey
	LedgerSvc   ledger.Service
	PubSub      ports.PubSub
	PriceSource ports.PriceSource
	Clock       clock.Clock

	KeyPassword       string
	DepositExpiry     time.Duration
	MaxSweepAttempts  int
	MonitorInterval   time.Duration
	MonitorWorkers    int
	ExpiredPollWindow time.Duration

	repo     ports.RepoManager
	pubsub   PubSubService
	verifier PaymentVerifier
	sweeper  FundSweeper
	deposit  DepositService
	monitor  DepositMonitor
}

func (c *Config) Validate() error {
	if _, ok := SupportedDBType[c.DBType]; !ok {
		return fmt.Errorf("db type %q not supported", c.DBType)
	}
	if c.MasterKey == nil {
		return fmt.Errorf("missing master key")
	}
	if c.LedgerSvc == nil {
		return ErrNullLedgerService
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("monitor interval must be positive")
	}
	if _, err := c.repoManager(); err != nil {
		return err
	}
	if _, err := c.depositService(); err != nil {
		return err
	}
	return nil
}

func (c *Config) RepoManager() ports.RepoManager {
	svc, _ := c.repoManager()
	return svc
}

func (c *Config) PubSubService() PubSubService {
	svc, _ := c.pubsubService()
	return svc
}

func (c *Config) PaymentVerifier() PaymentVerifier {
	svc, _ := c.paymentVerifier()
	return svc
}

func (c *Config) FundSweeper() FundSweeper {
	svc, _ := c.fundSweeper()
	return svc
}

func (c *Config) DepositService() DepositService {
	svc, _ := c.depositService()
	return svc
}

func (c *Config) DepositMonitor() DepositMonitor {
	svc, _ := c.depositMonitor()
	return svc
}

func (c *Config) clock() clock.Clock {
	if c.Clock == nil {
		c.Clock = clock.NewDefaultClock()
	}
	return c.Clock
}

func (c *Config) repoManager() (ports.RepoManager, error) {
	if c.repo == nil {
		if c.DBType == DBBadger {
			datadir, _ := c.DBConfig.(string)
			repoManager, err := dbbadger.NewRepoManager(datadir, BadgerLogger{})
			if err != nil {
				return nil, err
			}
			c.repo = repoManager
		}
	}
	return c.repo, nil
}

func (c *Config) pubsubService() (PubSubService, error) {
	if c.pubsub == nil {
		c.pubsub = NewPubSubService(c.PubSub)
	}
	return c.pubsub, nil
}

func (c *Config) paymentVerifier() (PaymentVerifier, error) {
	if c.verifier == nil {
		verifier, err := NewPaymentVerifier(c.LedgerSvc, c.clock())
		if err != nil {
			return nil, err
		}
		c.verifier = verifier
	}
	return c.verifier, nil
}

func (c *Config) fundSweeper() (FundSweeper, error) {
	if c.sweeper == nil {
		sweeper, err := NewFundSweeper(c.LedgerSvc)
		if err != nil {
			return nil, err
		}
		c.sweeper = sweeper
	}
	return c.sweeper, nil
}

func (c *Config) depositService() (DepositService, error) {
	if c.deposit == nil {
		derivation, err := depositwallet.NewKeyDerivation(c.MasterKey)
		if err != nil {
			return nil, err
		}
		repo, err := c.repoManager()
		if err != nil {
			return nil, err
		}
		if repo == nil {
			return nil, fmt.Errorf("missing repo manager")
		}
		verifier, err := c.paymentVerifier()
		if err != nil {
			return nil, err
		}
		sweeper, err := c.fundSweeper()
		if err != nil {
			return nil, err
		}
		pubsub, _ := c.pubsubService()

		deposit, err := NewDepositService(
			derivation, repo.DepositRepository(), verifier, sweeper, pubsub,
			c.PriceSource, c.KeyPassword, c.DepositExpiry, c.MaxSweepAttempts,
			c.clock(),
		)
		if err != nil {
			return nil, err
		}
		c.deposit = deposit
	}
	return c.deposit, nil
}

func (c *Config) depositMonitor() (DepositMonitor, error) {
	if c.monitor == nil {
		deposit, err := c.depositService()
		if err != nil {
			return nil, err
		}
		c.monitor = NewDepositMonitor(
			deposit, ticker.New(c.MonitorInterval), c.MonitorWorkers,
			c.ExpiredPollWindow, c.MaxSweepAttempts, c.clock(),
		)
	}
	return c.monitor, nil
}

// BadgerLogger forwards badger warnings and errors to logrus and drops the
// rest.
type BadgerLogger struct{}

func (BadgerLogger) Errorf(format string, args ...interface{}) {
	log.Errorf("badger: "+format, args...)
}

func (BadgerLogger) Warningf(format string, args ...interface{}) {
	log.Warnf("badger: "+format, args...)
}

func (BadgerLogger) Infof(string, ...interface{}) {}

func (BadgerLogger) Debugf(string, ...interface{}) {}
