package metrics

import (
	"errors"
	"sync"

	"portfolio_tracker/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RefreshCyclesTotal counts scheduler cycles that were executed.
	RefreshCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "portfolio_refresh_cycles_total",
			Help: "Total number of token refresh cycles run",
		},
	)

	// TokenFetchesTotal counts token fetches by origin (add, refresh, schedule) and result.
	TokenFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_token_fetches_total",
			Help: "Total number of token data fetches from the price API",
		},
		[]string{"origin", "result"},
	)

	// TokenFetchDuration tracks price API latency.
	TokenFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "portfolio_token_fetch_duration_seconds",
			Help:    "Price API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RefreshQueueLength is the number of addresses waiting in the refresh queue.
	RefreshQueueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "portfolio_refresh_queue_length",
			Help: "Addresses queued for refresh after the last cycle",
		},
	)

	// TrackedTokens is the number of tokens held by the portfolio store.
	TrackedTokens = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "portfolio_tracked_tokens",
			Help: "Number of tokens in the portfolio",
		},
	)

	registerOnce sync.Once
)

// Fetch results used as label values.
const (
	ResultSuccess  = "success"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// MustRegisterMetrics registers all collectors with the default Prometheus registry.
// Safe to call more than once.
func MustRegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RefreshCyclesTotal,
			TokenFetchesTotal,
			TokenFetchDuration,
			RefreshQueueLength,
			TrackedTokens,
		)
	})
}

// Fetch origins used as label values.
const (
	OriginAdd      = "add"
	OriginRefresh  = "refresh"
	OriginSchedule = "schedule"
)

// ObserveFetch records the outcome of one token fetch.
func ObserveFetch(origin string, err error) {
	result := ResultSuccess
	switch {
	case errors.Is(err, entity.ErrTokenNotFound):
		result = ResultNotFound
	case err != nil:
		result = ResultError
	}
	TokenFetchesTotal.WithLabelValues(origin, result).Inc()
}
