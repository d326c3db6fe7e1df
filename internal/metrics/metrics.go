// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Purchase outcomes, one per terminal state of a purchase.
const (
	OutcomeCommitted    = "committed"
	OutcomeInsufficient = "insufficient_stock"
	OutcomeNotFound     = "not_found"
	OutcomeError        = "error"
)

// Auth events.
const (
	AuthRegister     = "register"
	AuthLoginSuccess = "login_success"
	AuthLoginFailure = "login_failure"
	AuthLockout      = "lockout"
	AuthLogout       = "logout"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfumery_http_requests_total",
			Help: "Total HTTP requests by method, route pattern and status code.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "perfumery_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	PurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfumery_purchases_total",
			Help: "Purchase attempts by outcome.",
		},
		[]string{"outcome"},
	)

	PurchaseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "perfumery_purchase_duration_seconds",
			Help:    "Time spent inside the purchase transaction.",
			Buckets: prometheus.DefBuckets,
		},
	)

	UnitsSold = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "perfumery_units_sold_total",
			Help: "Units removed from stock by committed purchases.",
		},
	)

	AuthEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfumery_auth_events_total",
			Help: "Authentication events by type.",
		},
		[]string{"event"},
	)
)

// RecordHTTPRequest counts one served request.
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordPurchase counts a finished purchase attempt.
func RecordPurchase(outcome string, quantity int64, duration time.Duration) {
	PurchasesTotal.WithLabelValues(outcome).Inc()
	PurchaseDuration.Observe(duration.Seconds())
	if outcome == OutcomeCommitted {
		UnitsSold.Add(float64(quantity))
	}
}

// RecordAuth counts an authentication event.
func RecordAuth(event string) {
	AuthEventsTotal.WithLabelValues(event).Inc()
}
