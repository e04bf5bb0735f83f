package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway outcomes
const (
	outcomeForwarded     = "forwarded"
	outcomeFree          = "free"
	outcomeChallenged    = "challenged"
	outcomeRejected      = "rejected"
	outcomeReplayed      = "replayed"
	outcomeNotFound      = "not_found"
	outcomeLedgerError   = "ledger_unavailable"
	outcomeUpstreamError = "upstream_unreachable"
	outcomeInternalError = "internal_error"
)

var (
	gatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxyfox_gateway_requests_total",
		Help: "Gateway requests, labeled by outcome",
	}, []string{"outcome"})

	verificationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proxyfox_verification_duration_seconds",
		Help:    "Latency of payment proof verification",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"result"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proxyfox_upstream_duration_seconds",
		Help:    "Latency of forwarded upstream requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"resource"})

	paymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxyfox_payments_total",
		Help: "Client-side payment attempts, labeled by final state",
	}, []string{"outcome"})
)
