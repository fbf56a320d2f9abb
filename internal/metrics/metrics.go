package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	CyclesCompleted     Counter
	CyclesAborted       Counter
	DivergenceStops     Counter
	OrdersPlaced        Counter
	OrdersFailed        Counter
	CandidatesQualified Counter
	AlertsSent          Counter
	ScanErrors          Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		CyclesCompleted:     n,
		CyclesAborted:       n,
		DivergenceStops:     n,
		OrdersPlaced:        n,
		OrdersFailed:        n,
		CandidatesQualified: n,
		AlertsSent:          n,
		ScanErrors:          n,
	}
}
