// Package metrics holds the prometheus collectors shared by the HTTP layer,
// the session service and the realtime relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "socialize"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Sessions issued on login or registration.",
	})

	SessionsRevoked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_revoked_total",
		Help:      "Sessions deactivated, by reason.",
	}, []string{"reason"})

	SessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_swept_total",
		Help:      "Sessions marked expired by the background sweep.",
	})

	SessionValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_validations_total",
		Help:      "Session token lookups, by outcome.",
	}, []string{"outcome"})

	SessionRenewals = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_renewals_total",
		Help:      "Sliding-window extensions applied to sessions close to expiry.",
	})

	PresenceEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "presence_entries",
		Help:      "Users currently present on the realtime channel.",
	})

	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_connected_clients",
		Help:      "Open realtime connections, identified or not.",
	})

	RelayDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_deliveries_total",
		Help:      "Relayed messages, by outcome.",
	}, []string{"outcome"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter, by action.",
	}, []string{"action"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Domain events handed to the publisher, by type and outcome.",
	}, []string{"type", "outcome"})
)

// Revocation reasons.
const (
	ReasonLogout = "logout"
	ReasonManual = "manual"
	ReasonAll    = "all"
	ReasonReset  = "password_reset"
	ReasonOrphan = "orphaned"
)

// Relay outcomes.
const (
	RelayDelivered = "delivered"
	RelayOffline   = "offline"
	RelayDropped   = "dropped"
)
