// Package metrics exposes Prometheus collectors for agent turns, tool calls
// and the memory store.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/run-bigpig/watchdog/internal/logger"
)

var log = logger.New("metrics")

const namespace = "watchdog"

// Tool call status labels
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusUnknown = "unknown_tool"
	StatusInvalid = "invalid_arguments"
)

// Turn outcome labels
const (
	OutcomeAnswered  = "answered"
	OutcomeExhausted = "budget_exhausted"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Metrics collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ToolCalls     *prometheus.CounterVec
	ToolLatency   *prometheus.HistogramVec
	Turns         *prometheus.CounterVec
	TurnSteps     prometheus.Histogram
	MemoryRecords prometheus.Gauge
}

// New creates and registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by provider, tool and status",
		}, []string{"provider", "tool", "status"}),
		ToolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool invocation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "tool"}),
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed turns by outcome",
		}, []string{"outcome"}),
		TurnSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_steps",
			Help:      "Backend round trips per turn",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 13},
		}),
		MemoryRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_records",
			Help:      "Fragments held in the semantic memory store",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ToolCalls, m.ToolLatency, m.Turns, m.TurnSteps, m.MemoryRecords)
	}
	return m
}

// ObserveToolCall counts one tool invocation
func (m *Metrics) ObserveToolCall(provider, tool, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(provider, tool, status).Inc()
	if provider != "" {
		m.ToolLatency.WithLabelValues(provider, tool).Observe(elapsed.Seconds())
	}
}

// ObserveTurn counts one finished turn
func (m *Metrics) ObserveTurn(outcome string, steps int) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(outcome).Inc()
	m.TurnSteps.Observe(float64(steps))
}

// SetMemoryRecords updates the memory gauge
func (m *Metrics) SetMemoryRecords(n int) {
	if m == nil {
		return
	}
	m.MemoryRecords.Set(float64(n))
}

// Serve exposes /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return goerr.Wrap(err, "metrics server failed", goerr.V("addr", addr))
	}
	return nil
}
