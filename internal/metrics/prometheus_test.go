package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCounters(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.CyclesCompleted.Inc()
	prom.Metrics.CyclesAborted.Inc()
	prom.Metrics.DivergenceStops.Inc()
	prom.Metrics.OrdersPlaced.Inc()
	prom.Metrics.OrdersFailed.Inc()
	prom.Metrics.CandidatesQualified.Inc()
	prom.Metrics.AlertsSent.Inc()
	prom.Metrics.ScanErrors.Inc()

	assertCounter(t, prom.cyclesCompleted, 1)
	assertCounter(t, prom.cyclesAborted, 1)
	assertCounter(t, prom.divergenceStops, 1)
	assertCounter(t, prom.ordersPlaced, 1)
	assertCounter(t, prom.ordersFailed, 1)
	assertCounter(t, prom.candidatesQualified, 1)
	assertCounter(t, prom.alertsSent, 1)
	assertCounter(t, prom.scanErrors, 1)
}

func assertCounter(t *testing.T, counter prometheus.Counter, expected float64) {
	t.Helper()
	if got := testutil.ToFloat64(counter); got != expected {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}
