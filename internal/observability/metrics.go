package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpDurationHistogram  *prometheus.HistogramVec
	trxPostedCounter       *prometheus.CounterVec
	lockEventCounter       *prometheus.CounterVec
	lockSweepCounter       prometheus.Counter
	prizeAwardedCounter    *prometheus.CounterVec
	fillSettledCounter     prometheus.Counter
	ledgerImbalanceCounter *prometheus.CounterVec
	idempotencyCounter     *prometheus.CounterVec
	workerRunCounter       *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		trxPostedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_trx_posted_total",
			Help: "Committed ledger trx rows by scope",
		}, []string{"scope"})

		lockEventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "balance_lock_events_total",
			Help: "Balance lock lifecycle transitions",
		}, []string{"action"})

		lockSweepCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "balance_lock_sweeps_total",
			Help: "Expired locks materialized as freed by the sweeper",
		})

		prizeAwardedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prizes_awarded_total",
			Help: "Prizes created by scope",
		}, []string{"scope"})

		fillSettledCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fills_settled_total",
			Help: "Trade fills settled through the commission split",
		})

		ledgerImbalanceCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_imbalance_total",
			Help: "Reconciliation findings by kind",
		}, []string{"kind"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			trxPostedCounter,
			lockEventCounter,
			lockSweepCounter,
			prizeAwardedCounter,
			fillSettledCounter,
			ledgerImbalanceCounter,
			idempotencyCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementTrxPosted(scope string) {
	if trxPostedCounter == nil {
		return
	}
	trxPostedCounter.WithLabelValues(scope).Inc()
}

func IncrementLockEvent(action string) {
	if lockEventCounter == nil {
		return
	}
	lockEventCounter.WithLabelValues(action).Inc()
}

func AddLockSweep(n int) {
	if lockSweepCounter == nil {
		return
	}
	lockSweepCounter.Add(float64(n))
}

func IncrementPrizeAwarded(scope string) {
	if prizeAwardedCounter == nil {
		return
	}
	prizeAwardedCounter.WithLabelValues(scope).Inc()
}

func IncrementFillSettled() {
	if fillSettledCounter == nil {
		return
	}
	fillSettledCounter.Inc()
}

func IncrementLedgerImbalance(kind string) {
	if ledgerImbalanceCounter == nil {
		return
	}
	ledgerImbalanceCounter.WithLabelValues(kind).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
