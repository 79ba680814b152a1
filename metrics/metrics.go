// Package metrics records turn activity as Prometheus metrics on a private
// registry.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "turnbench"

// Recorder implements engine.Recorder.
type Recorder struct {
	registry *prometheus.Registry

	turns         *prometheus.CounterVec
	retries       *prometheus.CounterVec
	providerCalls *prometheus.HistogramVec
	tokens        *prometheus.CounterVec
	gamesFinished *prometheus.CounterVec
}

// New creates a Recorder with its own registry, including Go runtime and
// process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Committed turns by stage.",
		}, []string{"stage"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Rejected model responses that were retried, by stage and kind.",
		}, []string{"stage", "kind"}),
		providerCalls: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_seconds",
			Help:      "Completion provider latency by stage.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens consumed by committed turns.",
		}, []string{"direction"}),
		gamesFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Finished games by reason and outcome.",
		}, []string{"reason", "success"}),
	}
}

func (r *Recorder) TurnCompleted(stage string) {
	r.turns.WithLabelValues(stage).Inc()
}

func (r *Recorder) Retry(stage, kind string) {
	r.retries.WithLabelValues(stage, kind).Inc()
}

func (r *Recorder) ProviderCall(stage string, seconds float64) {
	r.providerCalls.WithLabelValues(stage).Observe(seconds)
}

func (r *Recorder) Tokens(input, output int) {
	r.tokens.WithLabelValues("input").Add(float64(input))
	r.tokens.WithLabelValues("output").Add(float64(output))
}

func (r *Recorder) GameFinished(reason string, success bool) {
	r.gamesFinished.WithLabelValues(reason, strconv.FormatBool(success)).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is canceled.
func (r *Recorder) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
