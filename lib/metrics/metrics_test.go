package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObservePlot(t *testing.T) {
	m := New()
	m.ObservePlot("ok", 3)
	m.ObservePlot("ok", 5)
	m.ObservePlot("write failed", 5)

	require.Equal(t, 2.0, testutil.ToFloat64(m.Plots.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Plots.WithLabelValues("write failed")))
	require.Equal(t, 8.0, testutil.ToFloat64(m.Samples))
}

func TestObserveLifecycle(t *testing.T) {
	m := New()
	m.ObserveSpawn(nil)
	m.ObserveSpawn(errors.New("not found"))
	m.ObserveTeardown(false, nil)
	m.ObserveTeardown(true, nil)
	m.ObserveTeardown(false, errors.New("wait failed"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.Spawns))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SpawnFailures))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Teardowns.WithLabelValues("terminated")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Teardowns.WithLabelValues("already_gone")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Teardowns.WithLabelValues("error")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObservePlot("ok", 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "remotelab_plot_updates_total"))
}
