// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "scholars_metrics_test_total",
	Help: "Counter registered only by the metrics package test.",
})

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	testCounter.Inc()

	ts := httptest.NewServer(Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "scholars_metrics_test_total 1")
}
