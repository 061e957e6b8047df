// Package monitoring exposes Prometheus metrics for the evaluation cycle
// and the execution pipeline. Everything here is additive observability;
// the engine works the same with the endpoint unserved.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cycle metrics
	cyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "leverbot_cycles_total",
			Help: "Total number of evaluation cycles run",
		},
	)

	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leverbot_cycle_duration_seconds",
			Help:    "Wall-clock duration of evaluation cycles",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Execution metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leverbot_trades_total",
			Help: "Total number of trades by operation and final status",
		},
		[]string{"symbol", "operation", "status"},
	)

	guardRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leverbot_guard_rejections_total",
			Help: "Buy admissions rejected, by guard",
		},
		[]string{"guard"},
	)

	gatewayFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leverbot_gateway_faults_total",
			Help: "Exchange gateway call failures",
		},
		[]string{"op"},
	)

	// Account metrics
	accountEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "leverbot_account_equity",
			Help: "Total account equity in the margin asset",
		},
	)

	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "leverbot_open_positions",
			Help: "Number of open positions",
		},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal)
	prometheus.MustRegister(cycleDuration)
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(guardRejections)
	prometheus.MustRegister(gatewayFaults)
	prometheus.MustRegister(accountEquity)
	prometheus.MustRegister(openPositions)
}

// Handler returns the Prometheus metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCycle records one completed evaluation cycle.
func RecordCycle(seconds float64) {
	cyclesTotal.Inc()
	cycleDuration.Observe(seconds)
}

// RecordTrade records a trade reaching a terminal status.
func RecordTrade(symbol, operation, status string) {
	tradesTotal.WithLabelValues(symbol, operation, status).Inc()
}

// RecordGuardRejection records a Buy rejected by the named guard.
func RecordGuardRejection(guard string) {
	guardRejections.WithLabelValues(guard).Inc()
}

// RecordGatewayFault records a failed gateway call.
func RecordGatewayFault(op string) {
	gatewayFaults.WithLabelValues(op).Inc()
}

// UpdateAccount updates the account-level gauges.
func UpdateAccount(equity float64, open int) {
	accountEquity.Set(equity)
	openPositions.Set(float64(open))
}
