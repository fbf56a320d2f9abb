// Package app wires configuration, venue clients, persistence and the hedge
// loop into a runnable bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ol-hedge-bot/internal/alerts"
	"ol-hedge-bot/internal/config"
	"ol-hedge-bot/internal/hedge"
	"ol-hedge-bot/internal/journal"
	"ol-hedge-bot/internal/metrics"
	"ol-hedge-bot/internal/state/sqlite"
	"ol-hedge-bot/internal/venue/lighter"
	"ol-hedge-bot/internal/venue/ostium"
	"ol-hedge-bot/internal/venue/signing"
)

const liveBookMaxAge = 10 * time.Second

type App struct {
	cfg        *config.Config
	log        *zap.Logger
	store      *sqlite.Store
	journal    *journal.Writer
	prom       *metrics.Prometheus
	dispatcher *alerts.Dispatcher
	primary    *ostium.Client
	secondary  *lighter.Client
	loop       *hedge.Loop
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if cfg.Hedge.Ticker == "" {
		return nil, errors.New("hedge.ticker is required")
	}
	orderQty, err := cfg.Hedge.OrderQuantity()
	if err != nil {
		return nil, err
	}
	maxPosition, err := cfg.Hedge.MaxPositionQty()
	if err != nil {
		return nil, err
	}

	traderSigner, err := signing.New(os.Getenv("PRIVATE_KEY"))
	if err != nil {
		return nil, fmt.Errorf("PRIVATE_KEY: %w", err)
	}
	lighterSigner, err := signing.New(os.Getenv("API_KEY_PRIVATE_KEY"))
	if err != nil {
		return nil, fmt.Errorf("API_KEY_PRIVATE_KEY: %w", err)
	}

	primary := ostium.New(ostium.Config{
		BaseURL:     cfg.Ostium.BaseURL,
		SubgraphURL: cfg.Ostium.SubgraphURL,
		Timeout:     cfg.Ostium.Timeout,
		Trader:      traderSigner.Address().Hex(),
		Leverage:    decimal.NewFromFloat(cfg.Ostium.Leverage),
	}, log.Named("ostium"))

	secondary := lighter.New(lighter.Config{
		BaseURL:      cfg.Lighter.BaseURL,
		Timeout:      cfg.Lighter.Timeout,
		AccountIndex: cfg.Lighter.AccountIndex,
		APIKeyIndex:  cfg.Lighter.APIKeyIndex,
	}, lighterSigner, log.Named("lighter"))

	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("state store: %w", err)
	}

	journalWriter, err := journal.New(cfg.Journal, log.Named("journal"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}

	var prom *metrics.Prometheus
	m := metrics.NewNoop()
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	var dispatcher *alerts.Dispatcher
	if cfg.Telegram.Enabled {
		telegram := alerts.NewTelegram(cfg.Telegram, log.Named("telegram"))
		dispatcher = alerts.NewDispatcher(telegram, store, cfg.Telegram.Cooldown, log.Named("alerts"))
	}

	executor := hedge.NewExecutor(hedge.ExecutorConfig{
		Symbol:           cfg.Hedge.Ticker,
		OffsetBps:        decimal.NewFromFloat(cfg.Ostium.OffsetBps),
		FillAttempts:     cfg.Hedge.FillAttempts,
		PollInterval:     cfg.Hedge.PollInterval,
		ReconcileTimeout: cfg.Hedge.ReconcileTimeout,
		ReconcilePoll:    cfg.Hedge.ReconcilePoll,
	}, primary, secondary, m, log.Named("hedge"))

	app := &App{
		cfg:        cfg,
		log:        log,
		store:      store,
		journal:    journalWriter,
		prom:       prom,
		dispatcher: dispatcher,
		primary:    primary,
		secondary:  secondary,
	}
	app.loop = hedge.NewLoop(hedge.LoopConfig{
		Symbol:      cfg.Hedge.Ticker,
		OrderQty:    orderQty,
		MaxPosition: maxPosition,
		Iterations:  cfg.Hedge.Iterations,
		PhasePause:  cfg.Hedge.PhasePause,
	}, executor, primary, cycleSink{journal: journalWriter}, log.Named("loop"))
	return app, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.close()

	// Unresolved pairs are configuration errors: fail before trading.
	pair, err := a.primary.ResolvePair(ctx, a.cfg.Hedge.Ticker)
	if err != nil {
		return err
	}
	market, err := a.secondary.Resolve(ctx, a.cfg.Hedge.Ticker)
	if err != nil {
		return err
	}
	a.log.Info("pairs resolved",
		zap.String("symbol", a.cfg.Hedge.Ticker),
		zap.Int("ostium_pair", pair.ID),
		zap.Int("lighter_market", market.ID))

	a.journal.Start(ctx)
	a.startMetricsServer(ctx)
	a.startDepthStream(ctx, market.ID)
	if a.dispatcher != nil {
		if err := a.dispatcher.LoadStamps(ctx); err != nil {
			a.log.Warn("alert cooldown reload failed", zap.Error(err))
		}
	}

	err = a.loop.Run(ctx)
	if errors.Is(err, hedge.ErrDivergence) {
		a.notifyDivergence(a.cfg.Hedge.Ticker)
		return err
	}
	return err
}

func (a *App) startMetricsServer(ctx context.Context) {
	if a.prom == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.prom.Handler())
	server := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

// startDepthStream feeds the lighter live book from the websocket feed.
// Stream failures fall back to REST snapshots, so they are not fatal.
func (a *App) startDepthStream(ctx context.Context, marketID int) {
	live := lighter.NewLiveBook(liveBookMaxAge)
	a.secondary.UseLiveBook(live)
	ws := lighter.NewWS(lighter.WSConfig{
		URL:            a.cfg.Lighter.WSURL,
		ReconnectDelay: a.cfg.Lighter.ReconnectDelay,
		PingInterval:   a.cfg.Lighter.PingInterval,
	}, a.log.Named("lighter-ws"))
	go func() {
		if err := ws.Connect(ctx); err != nil {
			a.log.Warn("depth stream connect failed, using REST snapshots", zap.Error(err))
			return
		}
		if err := ws.SubscribeDepth(ctx, marketID); err != nil {
			a.log.Warn("depth subscription failed, using REST snapshots", zap.Error(err))
			return
		}
		if err := ws.Run(ctx, live.Apply); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("depth stream stopped, using REST snapshots", zap.Error(err))
		}
	}()
}

func (a *App) notifyDivergence(symbol string) {
	if a.dispatcher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := a.dispatcher.Dispatch(ctx, symbol, "divergence",
		"hedge stopped: combined exposure exceeds divergence bound for "+symbol); err != nil {
		a.log.Warn("divergence alert failed", zap.Error(err))
	}
}

func (a *App) close() {
	if a.journal != nil {
		_ = a.journal.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// cycleSink bridges finished hedge cycles into the journal.
type cycleSink struct {
	journal *journal.Writer
}

func (s cycleSink) RecordCycle(cycle *hedge.Cycle) {
	if s.journal == nil {
		return
	}
	s.journal.RecordCycle(journal.CycleRecord{
		Time:         time.Now().UTC(),
		Symbol:       cycle.Symbol,
		Direction:    string(cycle.Direction),
		State:        string(cycle.State()),
		MakerStatus:  string(cycle.Maker.Status),
		TakerStatus:  string(cycle.Taker.Status),
		RequestedQty: cycle.Maker.RequestedQty.String(),
		FilledQty:    cycle.Maker.FilledQty.String(),
		MakerPrice:   cycle.Maker.Price.String(),
		TakerPrice:   cycle.Taker.Price.String(),
	})
}
