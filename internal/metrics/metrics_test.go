package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syho-lab/ainewsldo/internal/logging"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(CompletionsTotal.WithLabelValues(OutcomeUpstream))
	CompletionsTotal.WithLabelValues(OutcomeUpstream).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CompletionsTotal.WithLabelValues(OutcomeUpstream)))

	before = testutil.ToFloat64(PersonalityChanges.WithLabelValues("Angry"))
	PersonalityChanges.WithLabelValues("Angry").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PersonalityChanges.WithLabelValues("Angry")))
}

func TestServeDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "", logging.Discard()) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeExposesMetrics(t *testing.T) {
	EventsTotal.WithLabelValues("text").Inc()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, logging.Discard()) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `ainewsldo_events_total{kind="text"}`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
