// Package metrics holds the Prometheus collectors of the ledger process.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StatusOK labels successful operations. Failures are labelled with their
// error class.
const StatusOK = "ok"

var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_ledger_operations_total",
			Help: "Total number of ledger operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "token_ledger_operation_duration_seconds",
			Help:    "Duration of ledger operations including value movement",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_ledger_transfers_total",
			Help: "Total number of transfer service calls by kind and status",
		},
		[]string{"kind", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_ledger_http_requests_total",
			Help: "Total number of HTTP requests served by the read API",
		},
		[]string{"method", "path", "status"},
	)
)

// ObserveOperation records one finished ledger operation.
func ObserveOperation(operation, status string, elapsed time.Duration) {
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveTransfer records one transfer service call.
func ObserveTransfer(kind string, err error) {
	status := StatusOK
	if err != nil {
		status = "error"
	}
	TransfersTotal.WithLabelValues(kind, status).Inc()
}

// ObserveHTTP records one served request. path should be the route pattern,
// not the raw URL.
func ObserveHTTP(method, path string, status int) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
