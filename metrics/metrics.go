// Package metrics provides Prometheus metrics for the AVRCP sessions.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avrctl_sessions_active",
			Help: "Number of active device sessions",
		},
	)

	deferredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avrctl_deferred_messages_total",
			Help: "Total number of messages deferred while a folder was being fetched",
		},
	)

	// Stack call metrics
	stackCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avrctl_stack_calls_total",
			Help: "Total number of outbound calls to the native stack",
		},
		[]string{"call", "status"},
	)

	// Browsing metrics
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avrctl_folder_fetches_total",
			Help: "Total number of folder fetches, by outcome",
		},
		[]string{"reason"},
	)

	fetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "avrctl_folder_fetch_duration_seconds",
			Help:    "Time taken to fetch a folder listing",
			Buckets: prometheus.DefBuckets,
		},
	)

	pagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avrctl_listing_pages_total",
			Help: "Total number of listing pages received",
		},
		[]string{"event"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve serves the metrics handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// SessionOpened records a new device session.
func SessionOpened() {
	sessionsActive.Inc()
}

// SessionClosed records a removed device session.
func SessionClosed() {
	sessionsActive.Dec()
}

// RecordDeferred records a deferred message.
func RecordDeferred() {
	deferredTotal.Inc()
}

// RecordStackCall records an outbound stack call.
func RecordStackCall(call string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	stackCallsTotal.WithLabelValues(call, status).Inc()
}

// RecordFetch records a finished folder fetch.
func RecordFetch(reason string, duration time.Duration) {
	fetchesTotal.WithLabelValues(reason).Inc()
	fetchDuration.Observe(duration.Seconds())
}

// RecordPage records a received listing page.
func RecordPage(event string) {
	pagesTotal.WithLabelValues(event).Inc()
}
