package scan

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type FundingSource interface {
	FundingRateBps(ctx context.Context, symbol string, periodHours int) (decimal.Decimal, error)
}

type fundingEntry struct {
	rate    decimal.Decimal
	fetched time.Time
}

// FundingCache holds per-symbol funding rates with a TTL. Lookup failures
// resolve to zero so scoring never stalls on a non-critical input.
type FundingCache struct {
	source FundingSource
	ttl    time.Duration
	hours  int
	log    *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]fundingEntry
}

func NewFundingCache(source FundingSource, ttl time.Duration, periodHours int, log *zap.Logger) *FundingCache {
	return &FundingCache{
		source:  source,
		ttl:     ttl,
		hours:   periodHours,
		log:     log,
		now:     time.Now,
		entries: make(map[string]fundingEntry),
	}
}

// Warm fetches stale symbols concurrently before a scan cycle. Individual
// failures are logged and leave a zero-rate entry for this cycle.
func (c *FundingCache) Warm(ctx context.Context, symbols []string) {
	now := c.now()
	var stale []string
	c.mu.Lock()
	for _, symbol := range symbols {
		entry, ok := c.entries[symbol]
		if !ok || now.Sub(entry.fetched) >= c.ttl {
			stale = append(stale, symbol)
		}
	}
	c.mu.Unlock()
	if len(stale) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, symbol := range stale {
		symbol := symbol
		g.Go(func() error {
			rate, err := c.source.FundingRateBps(gctx, symbol, c.hours)
			if err != nil {
				c.log.Warn("funding lookup failed, using zero",
					zap.String("symbol", symbol), zap.Error(err))
				rate = decimal.Zero
			}
			c.mu.Lock()
			c.entries[symbol] = fundingEntry{rate: rate, fetched: now}
			c.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// Rate returns the cached funding rate in bps, zero when unknown.
func (c *FundingCache) Rate(symbol string) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[symbol]; ok {
		return entry.rate
	}
	return decimal.Zero
}
