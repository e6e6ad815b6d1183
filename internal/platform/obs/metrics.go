// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

/*
Package obs provides Prometheus instrumentation for the API server.

It exposes request-level HTTP metrics plus a small set of authentication
counters, all registered on the default registry and served at /metrics.

Scope:

  - HTTP: request totals, latency histogram, in-flight gauge.
  - Auth: login outcomes and OTP verification results, labelled by outcome
    only (never by principal) so cardinality stays bounded.
*/
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// # HTTP Metrics

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// # Authentication Metrics

var (
	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Login attempts by final outcome of the credential stage.",
		},
		[]string{"outcome"},
	)

	otpVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_otp_verifications_total",
			Help: "OTP verification attempts by result.",
		},
		[]string{"result"},
	)

	sessionsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_sessions_issued_total",
		Help: "Sessions issued after a fully completed login flow.",
	})
)

// MustRegister registers all collectors on the default Prometheus registry.
// It panics on duplicate registration and must be called exactly once.
func MustRegister() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		loginAttempts,
		otpVerifications,
		sessionsIssued,
	)
}

// Handler returns the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncLogin records the outcome of a credential-stage attempt
// ("success", "failed", "locked").
func IncLogin(outcome string) {
	loginAttempts.WithLabelValues(outcome).Inc()
}

// IncOTPVerification records an OTP verification result ("success",
// "mismatch", "expired", "attempts_exceeded", "consumed", "no_challenge").
func IncOTPVerification(result string) {
	otpVerifications.WithLabelValues(result).Inc()
}

// IncSessionIssued records a successfully issued session.
func IncSessionIssued() {
	sessionsIssued.Inc()
}

// # HTTP Instrumentation

// statusWriter captures the response code for labelling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Instrument wraps a handler with RPS, latency, and in-flight tracking.
//
// The path label uses the routing pattern's URL path as-is; the API surface
// is small and fixed, so cardinality stays manageable without a router hook.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}
