package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueryDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bridge",
		Subsystem: "db",
		Name:      "query_duration_seconds",
		Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2},
	}, []string{"query"})

	QueryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "db",
		Name:      "query_errors_total",
	}, []string{"query"})

	TxResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "db",
		Name:      "tx_results_total",
	}, []string{"query", "result"})
)

func ObserveDuration(query string) func() time.Duration {
	return prometheus.NewTimer(QueryDurations.WithLabelValues(query)).ObserveDuration
}

// ObserveError counts a failed query. A missing row is a lookup result, not a failure.
func ObserveError(query string, err error) {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
		return
	}
	QueryErrors.WithLabelValues(query).Inc()
}

// ObserveTx counts the outcome of a transaction started by query. Registration rolls
// back on replayed commitments, so a growing rolled_back rate is worth a look.
func ObserveTx(query string, err error) {
	result := "committed"
	if err != nil {
		result = "rolled_back"
	}
	TxResults.WithLabelValues(query, result).Inc()
}
