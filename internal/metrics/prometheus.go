package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "ol_hedge_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry            *prometheus.Registry
	cyclesCompleted     prometheus.Counter
	cyclesAborted       prometheus.Counter
	divergenceStops     prometheus.Counter
	ordersPlaced        prometheus.Counter
	ordersFailed        prometheus.Counter
	candidatesQualified prometheus.Counter
	alertsSent          prometheus.Counter
	scanErrors          prometheus.Counter
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	cyclesCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cycles_completed_total",
		Help:      "Total number of hedge cycles reconciled.",
	})
	cyclesAborted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cycles_aborted_total",
		Help:      "Total number of hedge cycles aborted before the taker leg.",
	})
	divergenceStops := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "divergence_stops_total",
		Help:      "Total number of combined-exposure divergence stops.",
	})
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_placed_total",
		Help:      "Total number of orders placed across both venues.",
	})
	ordersFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_failed_total",
		Help:      "Total number of order placement failures.",
	})
	candidatesQualified := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "candidates_qualified_total",
		Help:      "Total number of scan candidates clearing the dynamic threshold.",
	})
	alertsSent := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "alerts_sent_total",
		Help:      "Total number of alerts dispatched after cooldown.",
	})
	scanErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "scan_errors_total",
		Help:      "Total number of per-symbol scan failures.",
	})

	registry.MustRegister(cyclesCompleted, cyclesAborted, divergenceStops,
		ordersPlaced, ordersFailed, candidatesQualified, alertsSent, scanErrors)

	m := &Metrics{
		CyclesCompleted:     promCounter{cyclesCompleted},
		CyclesAborted:       promCounter{cyclesAborted},
		DivergenceStops:     promCounter{divergenceStops},
		OrdersPlaced:        promCounter{ordersPlaced},
		OrdersFailed:        promCounter{ordersFailed},
		CandidatesQualified: promCounter{candidatesQualified},
		AlertsSent:          promCounter{alertsSent},
		ScanErrors:          promCounter{scanErrors},
	}

	return &Prometheus{
		Metrics:             m,
		registry:            registry,
		cyclesCompleted:     cyclesCompleted,
		cyclesAborted:       cyclesAborted,
		divergenceStops:     divergenceStops,
		ordersPlaced:        ordersPlaced,
		ordersFailed:        ordersFailed,
		candidatesQualified: candidatesQualified,
		alertsSent:          alertsSent,
		scanErrors:          scanErrors,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
