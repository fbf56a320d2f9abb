package alerts

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"ol-hedge-bot/internal/state"
)

type Sender interface {
	Send(ctx context.Context, message string) error
}

// Dispatcher rate-limits alert delivery per (symbol, direction) key. The last
// fire time is mirrored into the state store so restarts keep the cooldown.
type Dispatcher struct {
	sender   Sender
	store    state.Store
	cooldown time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewDispatcher(sender Sender, store state.Store, cooldown time.Duration, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		store:    store,
		cooldown: cooldown,
		log:      log,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

func alertKey(symbol, direction string) string {
	return fmt.Sprintf("alert:%s:%s", symbol, direction)
}

// LoadStamps primes the in-memory cooldown map from stamps persisted by
// earlier runs, so a restart does not re-fire alerts still inside their
// window.
func (d *Dispatcher) LoadStamps(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	keys, err := d.store.Keys(ctx, "alert:")
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, key := range keys {
		stamp, found, err := d.store.Get(ctx, key)
		if err != nil || !found {
			continue
		}
		unix, err := strconv.ParseInt(stamp, 10, 64)
		if err != nil {
			continue
		}
		d.lastSent[key] = time.Unix(unix, 0)
	}
	return nil
}

// Dispatch sends one alert unless the key fired within the cooldown window.
// Returns true when the message was actually sent.
func (d *Dispatcher) Dispatch(ctx context.Context, symbol, direction, message string) (bool, error) {
	key := alertKey(symbol, direction)
	now := d.now()

	d.mu.Lock()
	last, ok := d.lastSent[key]
	if !ok && d.store != nil {
		if stamp, found, err := d.store.Get(ctx, key); err == nil && found {
			if unix, err := strconv.ParseInt(stamp, 10, 64); err == nil {
				last = time.Unix(unix, 0)
				ok = true
			}
		}
	}
	if ok && now.Sub(last) < d.cooldown {
		d.mu.Unlock()
		return false, nil
	}
	d.lastSent[key] = now
	d.mu.Unlock()

	if err := d.sender.Send(ctx, message); err != nil {
		d.mu.Lock()
		delete(d.lastSent, key)
		d.mu.Unlock()
		return false, err
	}
	if d.store != nil {
		if err := d.store.Set(ctx, key, strconv.FormatInt(now.Unix(), 10)); err != nil {
			d.log.Warn("failed to persist alert stamp", zap.String("key", key), zap.Error(err))
		}
	}
	return true, nil
}
