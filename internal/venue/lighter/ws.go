package lighter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"ol-hedge-bot/internal/book"
)

// DepthUpdate is one full-book snapshot for a market, delivered by the
// streaming subscription.
type DepthUpdate struct {
	MarketID int
	Bids     []book.Level
	Asks     []book.Level
}

type WSConfig struct {
	URL            string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
}

// WSClient streams order-book snapshots keyed by market id. It resubscribes
// after every reconnect.
type WSClient struct {
	cfg WSConfig
	log *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	markets []int
}

func NewWS(cfg WSConfig, log *zap.Logger) *WSClient {
	return &WSClient{cfg: cfg, log: log}
}

func (c *WSClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := websocket.Dial(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

// SubscribeDepth subscribes to a market's order-book channel.
func (c *WSClient) SubscribeDepth(ctx context.Context, marketID int) error {
	c.mu.Lock()
	c.markets = append(c.markets, marketID)
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("ws not connected")
	}
	return writeJSON(ctx, conn, subscribeMessage(marketID))
}

// Run reads the stream until the context ends, reconnecting on failure and
// answering venue pings.
func (c *WSClient) Run(ctx context.Context, handler func(DepthUpdate)) error {
	for {
		if err := c.ensureConnected(ctx); err != nil {
			return err
		}
		pingCtx, cancel := context.WithCancel(ctx)
		pingDone := make(chan struct{})
		go func() {
			defer close(pingDone)
			c.pingLoop(pingCtx)
		}()
		err := c.readLoop(ctx, handler)
		cancel()
		<-pingDone
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("ws read loop ended", zap.Error(err))
			c.resetConn()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.ReconnectDelay):
			}
			continue
		}
	}
}

func (c *WSClient) ensureConnected(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	markets := append([]int(nil), c.markets...)
	c.mu.Unlock()
	for _, marketID := range markets {
		if err := writeJSON(ctx, conn, subscribeMessage(marketID)); err != nil {
			return err
		}
	}
	return nil
}

func (c *WSClient) readLoop(ctx context.Context, handler func(DepthUpdate)) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("ws not connected")
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		c.handleMessage(ctx, conn, data, handler)
	}
}

func (c *WSClient) handleMessage(ctx context.Context, conn *websocket.Conn, data []byte, handler func(DepthUpdate)) {
	var envelope struct {
		Type      string          `json:"type"`
		Channel   string          `json:"channel"`
		OrderBook json.RawMessage `json:"order_book"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.log.Warn("ws message unparseable", zap.Error(err))
		return
	}
	switch envelope.Type {
	case "ping":
		if err := writeJSON(ctx, conn, map[string]string{"type": "pong"}); err != nil {
			c.log.Warn("ws pong failed", zap.Error(err))
		}
	case "update/order_book", "subscribed/order_book":
		update, err := parseDepthUpdate(envelope.Channel, envelope.OrderBook)
		if err != nil {
			c.log.Warn("ws depth unparseable", zap.String("channel", envelope.Channel), zap.Error(err))
			return
		}
		if handler != nil {
			handler(update)
		}
	}
}

func parseDepthUpdate(channel string, raw json.RawMessage) (DepthUpdate, error) {
	idText := channel
	if i := strings.LastIndexAny(channel, "/:"); i >= 0 {
		idText = channel[i+1:]
	}
	marketID, err := strconv.Atoi(idText)
	if err != nil {
		return DepthUpdate{}, fmt.Errorf("bad channel %q: %w", channel, err)
	}
	var payload struct {
		Bids any `json:"bids"`
		Asks any `json:"asks"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return DepthUpdate{}, err
	}
	// Strict parsing keeps a corrupted update out of the live book; the
	// caller logs it and the stale snapshot ages out to the REST fallback.
	bids, err := book.ParseLevelsStrict(payload.Bids)
	if err != nil {
		return DepthUpdate{}, fmt.Errorf("bids: %w", err)
	}
	asks, err := book.ParseLevelsStrict(payload.Asks)
	if err != nil {
		return DepthUpdate{}, fmt.Errorf("asks: %w", err)
	}
	return DepthUpdate{
		MarketID: marketID,
		Bids:     bids,
		Asks:     asks,
	}, nil
}

func (c *WSClient) pingLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	interval := c.cfg.PingInterval
	c.mu.Unlock()
	if conn == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writeJSON(ctx, conn, map[string]string{"type": "ping"}); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) resetConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "reset")
		c.conn = nil
	}
}

func subscribeMessage(marketID int) map[string]string {
	return map[string]string{
		"type":    "subscribe",
		"channel": "order_book/" + strconv.Itoa(marketID),
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
