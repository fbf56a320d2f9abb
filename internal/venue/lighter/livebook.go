package lighter

import (
	"sync"
	"time"

	"ol-hedge-bot/internal/book"
)

// LiveBook caches the latest streamed depth per market so read paths can
// avoid a REST round trip. Entries older than maxAge are treated as missing,
// which sends callers back to REST until the stream catches up.
type LiveBook struct {
	maxAge time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	updates map[int]DepthUpdate
	stamps  map[int]time.Time
}

func NewLiveBook(maxAge time.Duration) *LiveBook {
	if maxAge <= 0 {
		maxAge = 10 * time.Second
	}
	return &LiveBook{
		maxAge:  maxAge,
		now:     time.Now,
		updates: make(map[int]DepthUpdate),
		stamps:  make(map[int]time.Time),
	}
}

// Apply stores a streamed snapshot. Matches the WSClient handler signature.
func (b *LiveBook) Apply(update DepthUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates[update.MarketID] = update
	b.stamps[update.MarketID] = b.now()
}

// Snapshot returns the cached sides for a market, false when absent or stale.
func (b *LiveBook) Snapshot(marketID int) ([]book.Level, []book.Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stamp, ok := b.stamps[marketID]
	if !ok || b.now().Sub(stamp) > b.maxAge {
		return nil, nil, false
	}
	update := b.updates[marketID]
	if len(update.Bids) == 0 && len(update.Asks) == 0 {
		return nil, nil, false
	}
	return update.Bids, update.Asks, true
}
