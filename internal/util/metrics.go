package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_completed_total",
		Help: "Total number of completed sales",
	}, []string{"payment_method"})

	CheckoutFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_latency_seconds",
		Help:    "Latency of checkout operations",
		Buckets: prometheus.DefBuckets,
	})

	DebtPaymentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "debt_payments_total",
		Help: "Total number of recorded debt payments",
	})

	DebtPaymentsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "debt_payments_rejected_total",
		Help: "Total number of rejected debt payments",
	})

	CartLinesAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_lines_added_total",
		Help: "Total number of lines added to carts",
	})

	CartAddsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_adds_rejected_total",
		Help: "Total number of rejected cart additions",
	}, []string{"reason"})

	StockAdjustmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_adjustments_total",
		Help: "Total number of admin stock adjustments",
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
