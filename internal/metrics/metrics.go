package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Completion outcomes, used as the "outcome" label.
const (
	OutcomeSuccess   = "success"
	OutcomeTransport = "transport"
	OutcomeUpstream  = "upstream"
)

var (
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ainewsldo_events_total",
			Help: "Total number of inbound events by kind",
		},
		[]string{"kind"},
	)

	CompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ainewsldo_completions_total",
			Help: "Total number of completion cycles by outcome",
		},
		[]string{"outcome"},
	)

	CompletionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ainewsldo_completion_duration_seconds",
			Help:    "Completion call latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 6, 8, 10, 15},
		},
	)

	PersonalityChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ainewsldo_personality_changes_total",
			Help: "Total number of personality changes by new personality",
		},
		[]string{"personality"},
	)

	TransportErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ainewsldo_transport_errors_total",
			Help: "Total number of failed outbound chat operations",
		},
		[]string{"op"},
	)
)

// Handler returns the /metrics handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done. An empty addr disables
// the server and Serve just waits for ctx.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if addr == "" {
		<-ctx.Done()
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", addr, err)
	}
	return serve(ctx, ln, logger)
}

func serve(ctx context.Context, ln net.Listener, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info("metrics server listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics shutdown: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
