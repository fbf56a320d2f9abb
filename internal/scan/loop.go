package scan

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ol-hedge-bot/internal/alerts"
	"ol-hedge-bot/internal/book"
	"ol-hedge-bot/internal/metrics"
	"ol-hedge-bot/internal/pricing"
)

// PrimaryData serves quotes from the maker venue.
type PrimaryData interface {
	Quote(ctx context.Context, symbol string) (book.Quote, error)
}

// SecondaryData serves order-book depth from the taker venue.
type SecondaryData interface {
	Depth(ctx context.Context, symbol string) (bids, asks []book.Level, err error)
}

// CandidateSink receives qualified candidates for durable journalling. It
// must not block the scan cycle.
type CandidateSink interface {
	RecordCandidate(candidate Candidate)
}

type LoopConfig struct {
	Symbols     []string
	Exclude     []string
	Interval    time.Duration
	TopN        int
	AlertNetBps float64
}

// Loop runs periodic scan cycles: warm funding concurrently, evaluate every
// tracked symbol sequentially, rank, render and alert.
type Loop struct {
	cfg        LoopConfig
	scanner    *Scanner
	fees       *pricing.FeeSchedule
	primary    PrimaryData
	secondary  SecondaryData
	funding    *FundingCache
	dispatcher *alerts.Dispatcher
	sink       CandidateSink
	metrics    *metrics.Metrics
	log        *zap.Logger
	excluded   map[string]struct{}
	now        func() time.Time
}

func NewLoop(cfg LoopConfig, scanner *Scanner, fees *pricing.FeeSchedule, primary PrimaryData, secondary SecondaryData, funding *FundingCache, dispatcher *alerts.Dispatcher, sink CandidateSink, m *metrics.Metrics, log *zap.Logger) *Loop {
	if m == nil {
		m = metrics.NewNoop()
	}
	if fees == nil {
		fees = pricing.DefaultFeeSchedule()
	}
	excluded := make(map[string]struct{}, len(cfg.Exclude))
	for _, symbol := range cfg.Exclude {
		excluded[symbol] = struct{}{}
	}
	return &Loop{
		cfg:        cfg,
		scanner:    scanner,
		fees:       fees,
		primary:    primary,
		secondary:  secondary,
		funding:    funding,
		dispatcher: dispatcher,
		sink:       sink,
		metrics:    m,
		log:        log,
		excluded:   excluded,
		now:        time.Now,
	}
}

func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()
	l.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single scan cycle.
func (l *Loop) RunOnce(ctx context.Context) {
	symbols := l.tradableSymbols()
	if len(symbols) == 0 {
		return
	}
	l.funding.Warm(ctx, symbols)

	var candidates []Candidate
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return
		}
		snap, err := l.snapshot(ctx, symbol)
		if err != nil {
			l.metrics.ScanErrors.Inc()
			l.log.Warn("symbol skipped", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		candidates = append(candidates, l.scanner.Evaluate(snap)...)
	}

	ranking := Rank(candidates)
	l.render(ranking)
	l.dispatchAlerts(ctx, ranking.Qualified)
}

// tradableSymbols filters exclusions and equity symbols outside US market
// hours, whose primary-venue quotes go stale.
func (l *Loop) tradableSymbols() []string {
	now := l.now()
	var out []string
	for _, symbol := range l.cfg.Symbols {
		if _, skip := l.excluded[symbol]; skip {
			continue
		}
		category := l.fees.Category(symbol)
		if (category == pricing.CategoryEquity || category == pricing.CategoryIndex) && !pricing.EquityMarketOpen(now) {
			continue
		}
		out = append(out, symbol)
	}
	return out
}

func (l *Loop) snapshot(ctx context.Context, symbol string) (Snapshot, error) {
	quote, err := l.primary.Quote(ctx, symbol)
	if err != nil {
		return Snapshot{}, err
	}
	bids, asks, err := l.secondary.Depth(ctx, symbol)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Symbol:     symbol,
		Quote:      quote,
		Bids:       bids,
		Asks:       asks,
		FundingBps: l.funding.Rate(symbol),
	}, nil
}

func (l *Loop) render(ranking Ranking) {
	// Category views are cut from the full ranking, not the overall head, so
	// a thin category still shows its best rows.
	views := Partition(l.fees, ranking.Best(0), l.cfg.TopN)
	for _, view := range []string{"crypto", "forex", "equities_commodities", "other"} {
		for _, c := range views[view] {
			l.log.Info("scan candidate",
				zap.String("view", view),
				zap.String("symbol", c.Symbol),
				zap.String("direction", string(c.Direction)),
				zap.String("gross_bps", c.GrossBps.StringFixed(2)),
				zap.String("cost_bps", c.CostBps.StringFixed(2)),
				zap.String("funding_bps", c.FundingBps.StringFixed(2)),
				zap.String("net_bps", c.NetBps.StringFixed(2)),
				zap.String("threshold_bps", c.Threshold.StringFixed(2)),
				zap.Bool("qualified", c.Qualified()))
		}
	}
}

// alertBatchSize caps how many alerts one cycle may push; the ranking is
// net-descending so the cap keeps the best edges.
const alertBatchSize = 5

func (l *Loop) dispatchAlerts(ctx context.Context, qualified []Candidate) {
	// Alerting is opt-in: delivery needs a dispatcher and a positive net
	// threshold, otherwise qualified rows are only journalled and counted.
	alerting := l.dispatcher != nil && l.cfg.AlertNetBps > 0
	sent := 0
	for _, c := range qualified {
		l.metrics.CandidatesQualified.Inc()
		if l.sink != nil {
			l.sink.RecordCandidate(c)
		}
		if !alerting || sent >= alertBatchSize {
			continue
		}
		if netFloat, _ := c.NetBps.Float64(); netFloat < l.cfg.AlertNetBps {
			continue
		}
		delivered, err := l.dispatcher.Dispatch(ctx, c.Symbol, string(c.Direction), formatAlert(c))
		if err != nil {
			l.log.Warn("alert dispatch failed", zap.String("symbol", c.Symbol), zap.Error(err))
			continue
		}
		if delivered {
			sent++
			l.metrics.AlertsSent.Inc()
		}
	}
}

func formatAlert(c Candidate) string {
	return "arb " + c.Symbol + " " + string(c.Direction) +
		": net " + c.NetBps.StringFixed(1) + "bps" +
		" (gross " + c.GrossBps.StringFixed(1) +
		", cost " + c.CostBps.StringFixed(1) +
		", funding " + c.FundingBps.StringFixed(1) + ")"
}
