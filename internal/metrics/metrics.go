package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_webhook_events_total",
			Help: "Payment webhook notifications by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	checkoutsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_orders_created_total",
			Help: "Checkout creation attempts by outcome",
		},
		[]string{"outcome"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_notifications_total",
			Help: "Participant confirmation emails by result",
		},
		[]string{"result"},
	)

	couponRedemptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_coupon_redemptions_total",
			Help: "Coupon uses recorded on approved checkouts",
		},
	)
)

// Middleware records request count and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordWebhook(provider, outcome string) {
	webhookEvents.WithLabelValues(provider, outcome).Inc()
}

func RecordCheckoutCreated(success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	checkoutsCreated.WithLabelValues(outcome).Inc()
}

func RecordNotification(success bool) {
	result := "sent"
	if !success {
		result = "failed"
	}
	notifications.WithLabelValues(result).Inc()
}

func RecordCouponRedemption() {
	couponRedemptions.Inc()
}
