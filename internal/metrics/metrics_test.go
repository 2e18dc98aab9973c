package metrics

import (
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRecorderObserveHTTP(t *testing.T) {
	rec := NewRecorder(nil)
	rec.ObserveHTTP("/api/tasks", "GET", 200, 250*time.Millisecond)

	families := gather(t, rec, "portal_http_requests_total", "portal_http_request_duration_seconds")

	counter := findMetric(t, families["portal_http_requests_total"], map[string]string{
		"route":       "/api/tasks",
		"method":      "GET",
		"status_code": "200",
	})
	require.Equal(t, float64(1), counter.GetCounter().GetValue())

	hist := findMetric(t, families["portal_http_request_duration_seconds"], map[string]string{
		"route":  "/api/tasks",
		"method": "GET",
	}).GetHistogram()
	require.NotNil(t, hist)
	require.Equal(t, uint64(1), hist.GetSampleCount())
	require.Less(t, math.Abs(hist.GetSampleSum()-0.25), 0.001)
}

func TestRecorderObserveCacheAndUpstream(t *testing.T) {
	rec := NewRecorder(nil)
	rec.ObserveCacheLookup("tasks", "hit", time.Millisecond)
	rec.ObserveCacheLookup("tasks", "hit", time.Millisecond)
	rec.ObserveCacheLookup("", "miss", time.Millisecond)
	rec.ObserveUpstream("Tasks", "select", "ok", 40*time.Millisecond)
	rec.ObserveDegraded("tasks", "upstream_unavailable")

	families := gather(t, rec,
		"portal_cache_lookups_total",
		"portal_upstream_calls_total",
		"portal_upstream_call_duration_seconds",
		"portal_fallback_responses_total",
	)

	hits := findMetric(t, families["portal_cache_lookups_total"], map[string]string{"resource": "tasks", "result": "hit"})
	require.Equal(t, float64(2), hits.GetCounter().GetValue())
	unknown := findMetric(t, families["portal_cache_lookups_total"], map[string]string{"resource": "unknown", "result": "miss"})
	require.Equal(t, float64(1), unknown.GetCounter().GetValue())

	calls := findMetric(t, families["portal_upstream_calls_total"], map[string]string{"table": "Tasks", "operation": "select", "outcome": "ok"})
	require.Equal(t, float64(1), calls.GetCounter().GetValue())

	fallback := findMetric(t, families["portal_fallback_responses_total"], map[string]string{"resource": "tasks", "reason": "upstream_unavailable"})
	require.Equal(t, float64(1), fallback.GetCounter().GetValue())
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.ObserveHTTP("/", "GET", 200, time.Second)
	rec.ObserveCacheLookup("tasks", "hit", time.Second)
	rec.ObserveUpstream("Tasks", "select", "ok", time.Second)
	rec.ObserveDegraded("tasks", "empty_result")

	rr := httptest.NewRecorder()
	rec.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 503, rr.Code)
}

func TestRecorderHandler(t *testing.T) {
	rec := NewRecorder(nil)
	rec.ObserveDegraded("kpis", "configuration_missing")
	rr := httptest.NewRecorder()
	rec.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), "portal_fallback_responses_total"))
}

func gather(t *testing.T, rec *Recorder, names ...string) map[string][]*dto.Metric {
	t.Helper()
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	families, err := rec.Gatherer().Gather()
	require.NoError(t, err)
	collected := make(map[string][]*dto.Metric, len(names))
	for _, mf := range families {
		if !wanted[mf.GetName()] {
			continue
		}
		collected[mf.GetName()] = append(collected[mf.GetName()], mf.GetMetric()...)
	}
	for _, name := range names {
		require.NotEmpty(t, collected[name], "metric %q not collected", name)
	}
	return collected
}

func findMetric(t *testing.T, metrics []*dto.Metric, labels map[string]string) *dto.Metric {
	t.Helper()
	for _, metric := range metrics {
		if matchLabels(metric, labels) {
			return metric
		}
	}
	t.Fatalf("metric with labels %v not found", labels)
	return nil
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.GetLabel()) != len(labels) {
		return false
	}
	for _, pair := range metric.GetLabel() {
		if labels[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}
