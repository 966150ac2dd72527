package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestCountersRegistered(t *testing.T) {
	SignalsIngested.WithLabelValues("manual").Inc()
	Evaluations.WithLabelValues("SL Hit").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	require.True(t, names["signaldesk_signals_ingested_total"])
	require.True(t, names["signaldesk_evaluations_total"])
}

func TestStartAsyncServesMetrics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := StartAsync(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	FeedErrors.WithLabelValues("tv").Inc()

	resp, err := http.Get("http://" + srv.Addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `signaldesk_feed_errors_total{feed="tv"}`))

	resp2, err := http.Get("http://" + srv.Addr + "/debug/vars")
	require.NoError(t, err)
	resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
}
