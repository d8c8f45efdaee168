package ethclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "l2_rpc",
		Name:      "request_results_total",
	}, []string{"url", "query", "status"})

	RequestDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bridge",
		Subsystem: "l2_rpc",
		Name:      "request_duration_seconds",
		Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 20},
	}, []string{"url", "query"})

	RateLimitWaits = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bridge",
		Subsystem: "l2_rpc",
		Name:      "rate_limit_wait_seconds",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"url"})
)

// ResultStatus classifies the outcome of a node call. Rejections that resubmission
// can't fix, such as reverts and nonce errors, are told apart from transport errors;
// only the numeric json rpc code is kept so the label set stays bounded.
func ResultStatus(err error) string {
	var rpcErr rpc.Error
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case IsAlreadyKnown(err):
		return "already_known"
	case IsNonRetryable(err):
		return "rejected"
	case errors.As(err, &rpcErr):
		return fmt.Sprintf("error-%d", rpcErr.ErrorCode())
	}
	return "error"
}

func ObserveError(url, query string, err error) {
	RequestResults.WithLabelValues(url, query, ResultStatus(err)).Inc()
}

// ObservePending counts a receipt lookup for a transaction that is not mined yet.
func ObservePending(url, query string) {
	RequestResults.WithLabelValues(url, query, "pending").Inc()
}

func ObserveDuration(url, query string) func() time.Duration {
	return prometheus.NewTimer(RequestDurations.WithLabelValues(url, query)).ObserveDuration
}

func observeRateLimitWait(url string) func() time.Duration {
	return prometheus.NewTimer(RateLimitWaits.WithLabelValues(url)).ObserveDuration
}
