package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type rpcMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

type engineMetrics struct {
	settlements *prometheus.CounterVec
	redemptions *prometheus.CounterVec
	accruals    *prometheus.CounterVec
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics

	engineMetricsOnce sync.Once
	engineRegistry    *engineMetrics
)

// RPCMetrics returns the lazily-initialised registry used to record JSON-RPC
// activity.
func RPCMetrics() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bondvault",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bondvault",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and status code.",
			}, []string{"method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "bondvault",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bondvault",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the rate limiter.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
			rpcRegistry.throttles,
		)
	})
	return rpcRegistry
}

// Observe records the outcome of an RPC request. The status code should be the
// HTTP status that was ultimately written to the response writer.
func (m *rpcMetrics) Observe(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit" so dashboards and alerts remain consistent.
func (m *rpcMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// EngineMetrics returns the singleton registry tracking settlement, redemption
// and accrual activity.
func EngineMetrics() *engineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &engineMetrics{
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bondvault",
				Subsystem: "settle",
				Name:      "takes_total",
				Help:      "Count of settled takes segmented by pair and outcome.",
			}, []string{"pair", "outcome"}),
			redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bondvault",
				Subsystem: "redemption",
				Name:      "transitions_total",
				Help:      "Count of redemption request transitions segmented by transition and outcome.",
			}, []string{"transition", "outcome"}),
			accruals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bondvault",
				Subsystem: "cache",
				Name:      "accruals_total",
				Help:      "Count of accrual runs segmented by asset and outcome.",
			}, []string{"asset", "outcome"}),
		}
		prometheus.MustRegister(
			engineRegistry.settlements,
			engineRegistry.redemptions,
			engineRegistry.accruals,
		)
	})
	return engineRegistry
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordTake counts one settlement attempt for the supplied pair.
func (m *engineMetrics) RecordTake(pair string, err error) {
	if m == nil {
		return
	}
	pair = strings.TrimSpace(pair)
	if pair == "" {
		pair = "unknown"
	}
	m.settlements.WithLabelValues(pair, outcomeOf(err)).Inc()
}

// RecordRedemption counts one redemption lifecycle transition ("create",
// "cancel" or "fulfill").
func (m *engineMetrics) RecordRedemption(transition string, err error) {
	if m == nil {
		return
	}
	transition = strings.TrimSpace(transition)
	if transition == "" {
		transition = "unknown"
	}
	m.redemptions.WithLabelValues(transition, outcomeOf(err)).Inc()
}

// RecordAccrual counts one accrual run for the supplied asset.
func (m *engineMetrics) RecordAccrual(asset string, err error) {
	if m == nil {
		return
	}
	asset = strings.TrimSpace(asset)
	if asset == "" {
		asset = "unknown"
	}
	m.accruals.WithLabelValues(asset, outcomeOf(err)).Inc()
}
