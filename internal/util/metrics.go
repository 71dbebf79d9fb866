package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RegistrationsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registrations_submitted_total",
		Help: "Total number of registrations submitted",
	})

	RegistrationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "registrations_failed_total",
		Help: "Total number of failed registration submissions",
	}, []string{"reason"})

	CheckoutsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_confirmed_total",
		Help: "Total number of checkouts confirmed",
	})

	CheckoutsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_cancelled_total",
		Help: "Total number of checkouts cancelled",
	})

	DuplicateCallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duplicate_callbacks_total",
		Help: "Total number of confirmation callbacks for already-confirmed checkouts",
	})

	PaymentsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Total number of manually recorded payments",
	}, []string{"channel"})

	SettlementEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_events_total",
		Help: "Total number of card settlement events processed",
	}, []string{"type"})

	StripeSessionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stripe_session_latency_seconds",
		Help:    "Latency of checkout session creation",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
