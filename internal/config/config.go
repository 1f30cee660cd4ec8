package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/vcard-network/depositd/internal/core/application"
	"github.com/vcard-network/depositd/pkg/ledger"
	"github.com/vcard-network/depositd/pkg/price-feeder/coinbase"
)

const (
	// DatadirKey is the local data directory to store the internal state of daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// ListeningAddrKey is the <host:port> the HTTP interface listens on
	ListeningAddrKey = "LISTENING_ADDR"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"

	// MasterSecretKey is the base58 or JSON byte-array encoded secret key of
	// the master keypair all deposit addresses are derived from
	MasterSecretKey = "MASTER_SECRET"
	// MasterKeyPathKey is the path of a solana-keygen file used in place of
	// MasterSecretKey
	MasterKeyPathKey = "MASTER_KEY_PATH"
	// KeyEncryptionPasswordKey, if set, is used to encrypt the deposit keys at
	// rest
	KeyEncryptionPasswordKey = "KEY_ENCRYPTION_PASSWORD"

	// RPCEndpointKey is the url of the Solana JSON-RPC endpoint
	RPCEndpointKey = "RPC_ENDPOINT"
	// RPCRequestTimeoutKey is the timeout of every single RPC request
	RPCRequestTimeoutKey = "RPC_REQUEST_TIMEOUT"
	// RPCRequestsPerSecondKey is the max number of requests per second made
	// to the RPC endpoint
	RPCRequestsPerSecondKey = "RPC_REQUESTS_PER_SECOND"
	// RPCCommitmentKey is the commitment level used for reads and
	// confirmations, either confirmed or finalized
	RPCCommitmentKey = "RPC_COMMITMENT"

	// DepositExpiryKey is how long an unpaid deposit stays pending
	DepositExpiryKey = "DEPOSIT_EXPIRY"
	// ExpiredPollWindowKey is how long expired deposits keep being polled
	// for late payments, 0 means forever
	ExpiredPollWindowKey = "EXPIRED_POLL_WINDOW"
	// MaxSweepAttemptsKey is the max number of automatic sweep attempts per
	// deposit, 0 means unlimited
	MaxSweepAttemptsKey = "MAX_SWEEP_ATTEMPTS"
	// MonitorIntervalKey is the interval between deposit polls
	MonitorIntervalKey = "MONITOR_INTERVAL"
	// MonitorWorkersKey is the max number of deposits checked concurrently
	MonitorWorkersKey = "MONITOR_WORKERS"

	// PriceFeedURLKey is the websocket url of the Coinbase ticker feed
	PriceFeedURLKey = "PRICE_FEED_URL"
	// SolUsdPriceKey, if set, is a static SOL/USD price used in place of the
	// feed
	SolUsdPriceKey = "SOL_USD_PRICE"
	// PriceMaxAgeKey is the max age of the last tick before USD conversions
	// are refused
	PriceMaxAgeKey = "PRICE_MAX_AGE"
	// NoPriceFeedKey disables USD amounts
	NoPriceFeedKey = "NO_PRICE_FEED"

	// WebhookRequestTimeoutKey is the timeout of webhook notifications
	WebhookRequestTimeoutKey = "WEBHOOK_REQUEST_TIMEOUT"
	// HealthCheckIntervalKey is the interval between checks of the RPC
	// endpoint
	HealthCheckIntervalKey = "HEALTHCHECK_INTERVAL"
	// EnableProfilerKey enables profiler that can be used to investigate performance issues
	EnableProfilerKey = "ENABLE_PROFILER"
	// StatsIntervalKey defines interval for printing basic memory statistics
	StatsIntervalKey = "STATS_INTERVAL"

	DbLocation       = "db"
	ProfilerLocation = "stats"

	defaultRPCEndpoint = "https://api.mainnet-beta.solana.com"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("depositd", false)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("DEPOSITD")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(ListeningAddrKey, "0.0.0.0:9080")
	vip.SetDefault(DBTypeKey, application.DBBadger)
	vip.SetDefault(RPCEndpointKey, defaultRPCEndpoint)
	vip.SetDefault(RPCRequestTimeoutKey, 15*time.Second)
	vip.SetDefault(RPCRequestsPerSecondKey, 10)
	vip.SetDefault(RPCCommitmentKey, string(ledger.CommitmentConfirmed))
	vip.SetDefault(DepositExpiryKey, 30*time.Minute)
	vip.SetDefault(ExpiredPollWindowKey, 24*time.Hour)
	vip.SetDefault(MaxSweepAttemptsKey, 5)
	vip.SetDefault(MonitorIntervalKey, 15*time.Second)
	vip.SetDefault(MonitorWorkersKey, 4)
	vip.SetDefault(PriceFeedURLKey, coinbase.DefaultURL)
	vip.SetDefault(PriceMaxAgeKey, 2*time.Minute)
	vip.SetDefault(NoPriceFeedKey, false)
	vip.SetDefault(WebhookRequestTimeoutKey, 10*time.Second)
	vip.SetDefault(HealthCheckIntervalKey, time.Minute)
	vip.SetDefault(EnableProfilerKey, false)
	vip.SetDefault(StatsIntervalKey, 10*time.Minute)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

func GetDbDir() string {
	return filepath.Join(GetDatadir(), DbLocation)
}

// GetCommitment returns the commitment level for ledger reads.
func GetCommitment() ledger.Commitment {
	return ledger.Commitment(GetString(RPCCommitmentKey))
}

// GetStaticSolUsdPrice returns the static SOL/USD price if configured.
func GetStaticSolUsdPrice() (decimal.Decimal, bool) {
	str := GetString(SolUsdPriceKey)
	if len(str) <= 0 {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	if _, ok := application.SupportedDBType[GetString(DBTypeKey)]; !ok {
		return fmt.Errorf("unsupported db type %s", GetString(DBTypeKey))
	}

	if GetString(MasterSecretKey) == "" && GetString(MasterKeyPathKey) == "" {
		return fmt.Errorf(
			"one of %s or %s must be defined", MasterSecretKey, MasterKeyPathKey,
		)
	}

	if _, _, err := net.SplitHostPort(GetString(ListeningAddrKey)); err != nil {
		return fmt.Errorf("invalid %s: %s", ListeningAddrKey, err)
	}

	if GetString(RPCEndpointKey) == "" {
		return fmt.Errorf("missing rpc endpoint")
	}
	switch GetCommitment() {
	case ledger.CommitmentConfirmed, ledger.CommitmentFinalized:
	default:
		return fmt.Errorf(
			"%s must be either %s or %s", RPCCommitmentKey,
			ledger.CommitmentConfirmed, ledger.CommitmentFinalized,
		)
	}
	if GetInt(RPCRequestsPerSecondKey) <= 0 {
		return fmt.Errorf("%s must be positive", RPCRequestsPerSecondKey)
	}

	for _, key := range []string{
		RPCRequestTimeoutKey, DepositExpiryKey, MonitorIntervalKey,
		PriceMaxAgeKey, WebhookRequestTimeoutKey, HealthCheckIntervalKey,
		StatsIntervalKey,
	} {
		if GetDuration(key) <= 0 {
			return fmt.Errorf("%s must be a positive duration", key)
		}
	}
	if GetDuration(ExpiredPollWindowKey) < 0 {
		return fmt.Errorf("%s must not be negative", ExpiredPollWindowKey)
	}
	if GetInt(MaxSweepAttemptsKey) < 0 {
		return fmt.Errorf("%s must not be negative", MaxSweepAttemptsKey)
	}
	if GetInt(MonitorWorkersKey) <= 0 {
		return fmt.Errorf("%s must be positive", MonitorWorkersKey)
	}

	if str := GetString(SolUsdPriceKey); len(str) > 0 {
		price, err := decimal.NewFromString(str)
		if err != nil {
			return fmt.Errorf("invalid %s: %s", SolUsdPriceKey, err)
		}
		if !price.IsPositive() {
			return fmt.Errorf("%s must be positive", SolUsdPriceKey)
		}
	}

	return nil
}

func initDatadir() error {
	datadir := GetDatadir()
	if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
		return err
	}

	profilerEnabled := GetBool(EnableProfilerKey)
	if profilerEnabled {
		if err := makeDirectoryIfNotExists(filepath.Join(datadir, ProfilerLocation)); err != nil {
			return err
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
