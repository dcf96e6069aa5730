package utils

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunMetrics carries the instrumentation for one aggregation run: snapshot
// fetching, timeline building, and CT log polling.
type RunMetrics struct {
	registry *prometheus.Registry

	SlotsFetched    prometheus.Counter
	SlotFetchErrors prometheus.Counter
	SlotsCached     prometheus.Gauge
	EntriesLoaded   prometheus.Counter
	IssuersTracked  prometheus.Gauge

	LogsPolled    prometheus.Counter
	LogPollErrors prometheus.Counter
	WorstEntryLag prometheus.Gauge
	WorstTimeDiff prometheus.Gauge

	RunDuration prometheus.Histogram
}

func NewRunMetrics(enableRuntimeMetrics bool) *RunMetrics {
	reg := prometheus.NewRegistry()

	if enableRuntimeMetrics {
		_ = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		_ = reg.Register(collectors.NewGoCollector())
	}

	m := &RunMetrics{
		registry: reg,
		SlotsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crlwatch_slots_fetched_total",
			Help: "Snapshot slots fetched from the source this run.",
		}),
		SlotFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crlwatch_slot_fetch_errors_total",
			Help: "Snapshot slots that failed to fetch or parse.",
		}),
		SlotsCached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crlwatch_slots_cached",
			Help: "Snapshot slots present in the cache after reconciliation.",
		}),
		EntriesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crlwatch_audit_entries_total",
			Help: "Audit entries folded into issuer timelines.",
		}),
		IssuersTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crlwatch_issuers_tracked",
			Help: "Distinct issuers in the current status board.",
		}),
		LogsPolled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crlwatch_ct_logs_polled_total",
			Help: "CT logs whose STH endpoint was polled.",
		}),
		LogPollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crlwatch_ct_log_poll_errors_total",
			Help: "CT log STH polls that failed.",
		}),
		WorstEntryLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crlwatch_ct_worst_entry_lag",
			Help: "Largest entry lag observed across successfully polled logs.",
		}),
		WorstTimeDiff: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crlwatch_ct_worst_time_diff_hours",
			Help: "Largest absolute STH time difference in hours.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crlwatch_run_duration_seconds",
			Help:    "Wall time of a full aggregation run.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}

	reg.MustRegister(
		m.SlotsFetched, m.SlotFetchErrors, m.SlotsCached,
		m.EntriesLoaded, m.IssuersTracked,
		m.LogsPolled, m.LogPollErrors, m.WorstEntryLag, m.WorstTimeDiff,
		m.RunDuration,
	)
	return m
}

func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// StartServerWithContext exposes /metrics until the context is cancelled.
func (m *RunMetrics) StartServerWithContext(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("metrics server error: %w", err)
	}
}
