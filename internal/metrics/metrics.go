// Package metrics exposes run outcomes as Prometheus metrics. The Collector
// is a box hook, so every case and step of a run is counted as it finishes.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"boxrun/internal/box"
	"boxrun/internal/domain"
)

const Namespace = "boxrun"

// Collector records case and step outcomes on its own registry.
type Collector struct {
	registry *prometheus.Registry

	casesTotal   *prometheus.CounterVec
	caseDuration *prometheus.HistogramVec
	stepsTotal   *prometheus.CounterVec
	runsTotal    *prometheus.CounterVec
	runCases     *prometheus.GaugeVec
	runDuration  *prometheus.GaugeVec

	started sync.Map // caseKey -> time.Time
}

// NewCollector builds a Collector with a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		casesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cases_total",
			Help:      "Count of finished cases by status",
		}, []string{"project", "feature", "status"}),
		caseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "case_duration_seconds",
			Help:      "Duration of finished cases",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"project", "feature"}),
		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "steps_total",
			Help:      "Count of finished steps by status",
		}, []string{"project", "feature", "status"}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Count of finished runs by result",
		}, []string{"project", "result"}),
		runCases: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_cases",
			Help:      "Case counters of the last run",
		}, []string{"project", "result"}),
		runDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last run",
		}, []string{"project"}),
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Name() string { return "metrics" }

func caseKey(info box.CaseInfo) string {
	return info.Project + "\x00" + info.Feature + "\x00" + info.Number
}

func (c *Collector) BeforeCase(info box.CaseInfo) {
	c.started.Store(caseKey(info), time.Now())
}

func (c *Collector) AfterCase(info box.CaseInfo, status domain.Status, _ error) {
	if info.Role != "" {
		return
	}
	c.casesTotal.WithLabelValues(info.Project, info.Feature, status.String()).Inc()
	if v, ok := c.started.LoadAndDelete(caseKey(info)); ok {
		c.caseDuration.WithLabelValues(info.Project, info.Feature).Observe(time.Since(v.(time.Time)).Seconds())
	}
}

func (c *Collector) AfterStep(info box.StepInfo, status domain.Status, _ error) {
	c.stepsTotal.WithLabelValues(info.Case.Project, info.Case.Feature, status.String()).Inc()
}

// RecordRun stores the totals of a finished run.
func (c *Collector) RecordRun(snap domain.ProjectSnapshot, interrupted bool) {
	result := "pass"
	switch {
	case interrupted:
		result = "interrupted"
	case snap.Counters.Failed > 0:
		result = "fail"
	}
	c.runsTotal.WithLabelValues(snap.Name, result).Inc()

	counters := snap.Counters
	c.runCases.WithLabelValues(snap.Name, "passed").Set(float64(counters.Passed))
	c.runCases.WithLabelValues(snap.Name, "failed").Set(float64(counters.Failed))
	c.runCases.WithLabelValues(snap.Name, "errored").Set(float64(counters.Errored))
	c.runCases.WithLabelValues(snap.Name, "skipped").Set(float64(counters.Skipped))
	c.runDuration.WithLabelValues(snap.Name).Set(snap.Duration.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string, log box.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("serving metrics on %s/metrics", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	}
}
