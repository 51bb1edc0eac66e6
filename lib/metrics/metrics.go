package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "remotelab"

// Metrics counts plot traffic and plotter process lifecycle events.
type Metrics struct {
	Registry *prometheus.Registry

	Plots         *prometheus.CounterVec
	Samples       prometheus.Counter
	Spawns        prometheus.Counter
	SpawnFailures prometheus.Counter
	Teardowns     *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := Metrics{
		Registry: prometheus.NewRegistry(),
		Plots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plot_updates_total",
			Help:      "Plot updates sent to the plotter, by result.",
		}, []string{"status"}),
		Samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plot_rows_total",
			Help:      "Data block rows written to the plotter.",
		}),
		Spawns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plotter_spawns_total",
			Help:      "Plotter processes started.",
		}),
		SpawnFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plotter_spawn_failures_total",
			Help:      "Plotter processes that failed to start.",
		}),
		Teardowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plotter_teardowns_total",
			Help:      "Plotter teardowns, by outcome.",
		}, []string{"outcome"}),
	}
	m.Registry.MustRegister(m.Plots, m.Samples, m.Spawns, m.SpawnFailures, m.Teardowns)
	return &m
}

// ObservePlot records one plot update.
func (m *Metrics) ObservePlot(status string, rows int) {
	m.Plots.WithLabelValues(status).Inc()
	if status == "ok" {
		m.Samples.Add(float64(rows))
	}
}

// ObserveSpawn records an attempt to start the plotter.
func (m *Metrics) ObserveSpawn(err error) {
	if err != nil {
		m.SpawnFailures.Inc()
		return
	}
	m.Spawns.Inc()
}

// ObserveTeardown records a plotter teardown.
func (m *Metrics) ObserveTeardown(alreadyGone bool, err error) {
	outcome := "terminated"
	switch {
	case err != nil:
		outcome = "error"
	case alreadyGone:
		outcome = "already_gone"
	}
	m.Teardowns.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
