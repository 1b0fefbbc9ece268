// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes the Prometheus registry used by the harvester.
// Metrics themselves are declared with promauto next to the code that
// updates them (httputil, scholars, resolve, fetch, sink).
//
// Throttle and retry (internal/httputil):
//   - scholars_rate_limit_wait_seconds (Histogram): time spent waiting for a grant
//   - scholars_request_attempts_total{op,outcome} (Counter): attempts per logical request
//   - scholars_retries_exhausted_total{class} (Counter): requests that ran out of retries
//
// Transport (internal/scholars):
//   - scholars_http_requests_total{endpoint,status} (Counter)
//   - scholars_http_request_duration_seconds{endpoint} (Histogram)
//
// Resolution (internal/resolve):
//   - scholars_scan_probes_total{result} (Counter): found, absent, matched, failed
//   - scholars_name_queries_total{variant} (Counter): name search queries per variant
//
// Fetch (internal/fetch):
//   - scholars_fetch_outcomes_total{status} (Counter): ok, partial, failed
//   - scholars_collection_pages_total{collection} (Counter)
//   - scholars_fetch_inflight (Gauge): targets being fetched right now
//
// Sinks (internal/sink):
//   - scholars_sink_writes_total{sink,result} (Counter)
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the registerer every promauto metric in this module uses.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled. It returns
// immediately; listen errors are logged.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
