// Command scan runs the cross-venue arbitrage ranker without trading: it
// scores every symbol listed on both venues, logs ranked candidates and
// fires cooldown-gated alerts for qualified edges.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ol-hedge-bot/internal/alerts"
	"ol-hedge-bot/internal/config"
	"ol-hedge-bot/internal/journal"
	"ol-hedge-bot/internal/logging"
	"ol-hedge-bot/internal/metrics"
	"ol-hedge-bot/internal/pricing"
	"ol-hedge-bot/internal/scan"
	"ol-hedge-bot/internal/state/sqlite"
	"ol-hedge-bot/internal/venue/lighter"
	"ol-hedge-bot/internal/venue/ostium"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single scan cycle and exit")
	flag.Parse()

	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	primary := ostium.New(ostium.Config{
		BaseURL:     cfg.Ostium.BaseURL,
		SubgraphURL: cfg.Ostium.SubgraphURL,
		Timeout:     cfg.Ostium.Timeout,
		Leverage:    decimal.NewFromFloat(cfg.Ostium.Leverage),
	}, log.Named("ostium"))
	secondary := lighter.New(lighter.Config{
		BaseURL: cfg.Lighter.BaseURL,
		Timeout: cfg.Lighter.Timeout,
	}, nil, log.Named("lighter"))

	symbols, err := sharedSymbols(ctx, primary, secondary)
	if err != nil {
		log.Error("symbol discovery failed", zap.Error(err))
		os.Exit(1)
	}
	log.Info("scanning symbols", zap.Int("count", len(symbols)), zap.Strings("symbols", symbols))

	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		log.Error("state store failed", zap.Error(err))
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	var dispatcher *alerts.Dispatcher
	if cfg.Telegram.Enabled {
		telegram := alerts.NewTelegram(cfg.Telegram, log.Named("telegram"))
		dispatcher = alerts.NewDispatcher(telegram, store, cfg.Telegram.Cooldown, log.Named("alerts"))
		if err := dispatcher.LoadStamps(ctx); err != nil {
			log.Warn("alert cooldown reload failed", zap.Error(err))
		}
	}

	journalWriter, err := journal.New(cfg.Journal, log.Named("journal"))
	if err != nil {
		log.Error("journal failed", zap.Error(err))
		os.Exit(1)
	}
	journalWriter.Start(ctx)
	defer func() { _ = journalWriter.Close() }()

	m := metrics.NewNoop()
	if cfg.Metrics.Enabled {
		m = metrics.NewPrometheus().Metrics
	}

	fees := pricing.DefaultFeeSchedule()
	scanner := scan.NewScanner(scan.Params{
		NotionalUSD:       decimal.NewFromFloat(cfg.Scan.NotionalUSD),
		Leverage:          decimal.NewFromFloat(cfg.Ostium.Leverage),
		MinNotionalUSD:    decimal.NewFromFloat(cfg.Scan.MinNotionalUSD),
		MaxNotionalUSD:    decimal.NewFromFloat(cfg.Scan.MaxNotionalUSD),
		DepthQuoteUSD:     decimal.NewFromFloat(cfg.Scan.DepthQuoteUSD),
		MinDepthQuoteUSD:  decimal.NewFromFloat(cfg.Scan.MinDepthQuoteUSD),
		OffsetBps:         decimal.NewFromFloat(cfg.Ostium.OffsetBps),
		OracleFeeUSD:      decimal.NewFromFloat(cfg.Scan.OracleFeeUSD),
		BufferBps:         decimal.NewFromFloat(cfg.Scan.BufferBps),
		MinNetBps:         decimal.NewFromFloat(cfg.Scan.MinNetBps),
		SpreadWeight:      decimal.NewFromFloat(cfg.Scan.SpreadWeight),
		MaxSpreadBps:      decimal.NewFromFloat(cfg.Scan.MaxSpreadBps),
		MaxDislocationBps: decimal.NewFromFloat(cfg.Scan.MaxDislocationBps),
	}, fees)
	funding := scan.NewFundingCache(primary, cfg.Scan.FundingCacheTTL, cfg.Scan.FundingHours, log.Named("funding"))

	loop := scan.NewLoop(scan.LoopConfig{
		Symbols:     symbols,
		Exclude:     cfg.Scan.ExcludeSymbols,
		Interval:    cfg.Scan.Interval,
		TopN:        cfg.Scan.TopN,
		AlertNetBps: cfg.Scan.AlertNetBps,
	}, scanner, fees, primary, secondary, funding, dispatcher, journalWriter, m, log.Named("scan"))

	if *once {
		loop.RunOnce(ctx)
		return
	}
	if err := loop.Run(ctx); err != nil && err != context.Canceled {
		log.Error("scan loop terminated", zap.Error(err))
		os.Exit(1)
	}
}

// sharedSymbols lists the secondary venue's markets and keeps those the
// primary venue also quotes.
func sharedSymbols(ctx context.Context, primary *ostium.Client, secondary *lighter.Client) ([]string, error) {
	markets, err := secondary.ListOrderBooks(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, market := range markets {
		if _, err := primary.ResolvePair(ctx, market.Symbol); err != nil {
			continue
		}
		out = append(out, market.Symbol)
	}
	sort.Strings(out)
	return out, nil
}
