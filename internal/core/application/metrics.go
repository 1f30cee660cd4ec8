package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "depositd",
		Name:      "payment_verifications_total",
		Help:      "Number of payment verifications by outcome.",
	}, []string{"outcome"})

	verificationCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "depositd",
		Name:      "payment_verification_cache_hits_total",
		Help:      "Number of payment verifications served from cache.",
	})

	rateLimitRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "depositd",
		Name:      "ledger_rate_limit_retries_total",
		Help:      "Number of verification retries caused by rate limiting.",
	})

	sweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "depositd",
		Name:      "sweeps_total",
		Help:      "Number of sweep attempts by result.",
	}, []string{"result"})

	sweptLamports = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "depositd",
		Name:      "swept_lamports_total",
		Help:      "Lamports moved to the master address.",
	})

	verificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "depositd",
		Name:      "payment_verification_duration_seconds",
		Help:      "Duration of payment verifications including retries.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	depositsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "depositd",
		Name:      "deposits_created_total",
		Help:      "Number of deposit addresses handed out.",
	})
)
