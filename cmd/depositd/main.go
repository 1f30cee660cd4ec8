package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lightningnetwork/lnd/healthcheck"
	log "github.com/sirupsen/logrus"
	"github.com/vcard-network/depositd/internal/config"
	"github.com/vcard-network/depositd/internal/core/application"
	"github.com/vcard-network/depositd/internal/core/ports"
	pricefeederinfra "github.com/vcard-network/depositd/internal/infrastructure/price-feeder"
	"github.com/vcard-network/depositd/internal/infrastructure/pubsub"
	httpinterface "github.com/vcard-network/depositd/internal/interfaces/http"
	"github.com/vcard-network/depositd/pkg/depositwallet"
	"github.com/vcard-network/depositd/pkg/ledger"
	"github.com/vcard-network/depositd/pkg/ledger/solanarpc"
	"github.com/vcard-network/depositd/pkg/price-feeder/coinbase"
	"github.com/vcard-network/depositd/pkg/stats"
)

const (
	healthCheckTimeout  = 10 * time.Second
	healthCheckBackoff  = 5 * time.Second
	healthCheckAttempts = 3
)

// Set at build time.
var version = "dev"

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	datadir := config.GetDatadir()
	dbDir := config.GetDbDir()

	masterKey, err := depositwallet.LoadMasterKey(
		config.GetString(config.MasterSecretKey),
		config.GetString(config.MasterKeyPathKey),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to load master key")
	}

	ledgerSvc, err := solanarpc.NewService(solanarpc.Config{
		Endpoint:          config.GetString(config.RPCEndpointKey),
		RequestTimeout:    config.GetDuration(config.RPCRequestTimeoutKey),
		RequestsPerSecond: config.GetInt(config.RPCRequestsPerSecondKey),
		Commitment:        config.GetCommitment(),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to initialize ledger client")
	}

	pubsubSvc, err := pubsub.NewService(
		filepath.Join(dbDir, "pubsub"), application.BadgerLogger{},
		config.GetDuration(config.WebhookRequestTimeoutKey),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize webhook pubsub")
	}

	priceSource, err := newPriceSource()
	if err != nil {
		log.WithError(err).Fatal("failed to initialize price source")
	}

	appConfig := &application.Config{
		DBType:            config.GetString(config.DBTypeKey),
		DBConfig:          dbDir,
		MasterKey:         masterKey,
		LedgerSvc:         ledgerSvc,
		PubSub:            pubsubSvc,
		PriceSource:       priceSource,
		KeyPassword:       config.GetString(config.KeyEncryptionPasswordKey),
		DepositExpiry:     config.GetDuration(config.DepositExpiryKey),
		MaxSweepAttempts:  config.GetInt(config.MaxSweepAttemptsKey),
		MonitorInterval:   config.GetDuration(config.MonitorIntervalKey),
		MonitorWorkers:    config.GetInt(config.MonitorWorkersKey),
		ExpiredPollWindow: config.GetDuration(config.ExpiredPollWindowKey),
	}
	if err := appConfig.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	apiToken, err := httpinterface.LoadOrCreateAPIToken(datadir)
	if err != nil {
		log.WithError(err).Fatal("failed to load api token")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.GetBool(config.EnableProfilerKey) {
		stats.EnableMemoryStatistics(
			ctx, config.GetDuration(config.StatsIntervalKey),
			filepath.Join(datadir, config.ProfilerLocation),
		)
	}

	if priceSource != nil {
		if err := priceSource.Start(); err != nil {
			log.WithError(err).Fatal("failed to start price source")
		}
	}

	monitor := appConfig.DepositMonitor()
	monitor.Start()
	log.Info("deposit monitor started")

	svc, err := httpinterface.NewService(httpinterface.ServiceOpts{
		Address:    config.GetString(config.ListeningAddrKey),
		APIToken:   apiToken,
		Version:    version,
		DepositSvc: appConfig.DepositService(),
		PubSubSvc:  appConfig.PubSubService(),
		Health: func(ctx context.Context) error {
			_, err := ledgerSvc.GetBlockHeight(ctx)
			return err
		},
	})
	if err != nil {
		log.WithError(err).Fatal("failed to initialize http interface")
	}
	if err := svc.Start(); err != nil {
		log.WithError(err).Fatal("failed to start http interface")
	}

	// A ledger endpoint unreachable for too long makes the daemon shut down.
	shutdown := make(chan struct{}, 1)
	livenessMonitor := healthcheck.NewMonitor(&healthcheck.Config{
		Checks: []*healthcheck.Observation{
			healthcheck.NewObservation(
				"ledger rpc", ledgerCheck(ledgerSvc),
				config.GetDuration(config.HealthCheckIntervalKey),
				healthCheckTimeout, healthCheckBackoff, healthCheckAttempts,
			),
		},
		Shutdown: func(format string, params ...interface{}) {
			log.Errorf(format, params...)
			select {
			case shutdown <- struct{}{}:
			default:
			}
		},
	})
	if err := livenessMonitor.Start(); err != nil {
		log.WithError(err).Fatal("failed to start health monitor")
	}

	log.WithFields(log.Fields{
		"version":        version,
		"master_address": masterKey.PublicAddress(),
		"datadir":        datadir,
	}).Info("depositd started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	select {
	case <-sigChan:
	case <-shutdown:
	}

	log.Info("shutting down daemon")

	svc.Stop()
	if err := livenessMonitor.Stop(); err != nil {
		log.WithError(err).Warn("failed to stop health monitor")
	}
	monitor.Stop()
	if priceSource != nil {
		priceSource.Stop()
	}
	appConfig.RepoManager().Close()
	if err := pubsubSvc.Close(); err != nil {
		log.WithError(err).Warn("failed to close pubsub store")
	}
	cancel()

	log.Info("exiting")
}

func newPriceSource() (ports.PriceSource, error) {
	if price, ok := config.GetStaticSolUsdPrice(); ok {
		log.Infof("using static SOL/USD price %s", price)
		return pricefeederinfra.NewStaticService(price)
	}
	if config.GetBool(config.NoPriceFeedKey) {
		log.Info("price feed disabled, usd amounts are not supported")
		return nil, nil
	}
	feeder := coinbase.NewService(config.GetString(config.PriceFeedURLKey))
	return pricefeederinfra.NewService(
		feeder, config.GetDuration(config.PriceMaxAgeKey), nil,
	), nil
}

func ledgerCheck(ledgerSvc ledger.Service) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(
			context.Background(), healthCheckTimeout,
		)
		defer cancel()

		height, err := ledgerSvc.GetBlockHeight(ctx)
		if err != nil {
			return err
		}
		log.Debugf("ledger rpc healthy at block height %d", height)
		return nil
	}
}
