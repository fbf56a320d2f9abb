// Package journal persists hedge cycles and qualified arbitrage candidates
// to Postgres asynchronously. Writes are best-effort: a full queue drops the
// row rather than stalling the trading path.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"ol-hedge-bot/internal/config"
	"ol-hedge-bot/internal/scan"
)

const writeTimeout = 3 * time.Second

// CycleRecord is one finished hedge cycle.
type CycleRecord struct {
	Time         time.Time
	Symbol       string
	Direction    string
	State        string
	MakerStatus  string
	TakerStatus  string
	RequestedQty string
	FilledQty    string
	MakerPrice   string
	TakerPrice   string
}

type Writer struct {
	db         *sql.DB
	log        *zap.Logger
	schema     string
	cycles     chan CycleRecord
	candidates chan scan.Candidate
	started    atomic.Bool
	dropCycle  atomic.Uint64
	dropCand   atomic.Uint64
}

func New(cfg config.JournalConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("journal dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:         db,
		log:        log,
		schema:     schema,
		cycles:     make(chan CycleRecord, queueSize),
		candidates: make(chan scan.Candidate, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) RecordCycle(record CycleRecord) {
	if w == nil {
		return
	}
	select {
	case w.cycles <- record:
		return
	default:
		if w.dropCycle.Add(1) == 1 && w.log != nil {
			w.log.Warn("journal cycle queue full")
		}
	}
}

// RecordCandidate implements scan.CandidateSink.
func (w *Writer) RecordCandidate(candidate scan.Candidate) {
	if w == nil {
		return
	}
	select {
	case w.candidates <- candidate:
		return
	default:
		if w.dropCand.Add(1) == 1 && w.log != nil {
			w.log.Warn("journal candidate queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case record := <-w.cycles:
			w.writeCycle(ctx, record)
		case candidate := <-w.candidates:
			w.writeCandidate(ctx, candidate)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("journal db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		state TEXT NOT NULL,
		maker_status TEXT NOT NULL,
		taker_status TEXT NOT NULL,
		requested_qty NUMERIC NOT NULL,
		filled_qty NUMERIC NOT NULL,
		maker_price NUMERIC NOT NULL,
		taker_price NUMERIC NOT NULL
	)`, w.table("hedge_cycles"))); err != nil {
		return err
	}
	return w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL DEFAULT now(),
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		gross_bps NUMERIC NOT NULL,
		cost_bps NUMERIC NOT NULL,
		funding_bps NUMERIC NOT NULL,
		net_bps NUMERIC NOT NULL,
		threshold_bps NUMERIC NOT NULL,
		maker_price NUMERIC NOT NULL,
		taker_price NUMERIC NOT NULL
	)`, w.table("arb_candidates")))
}

func (w *Writer) writeCycle(ctx context.Context, record CycleRecord) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, symbol, direction, state, maker_status, taker_status,
		requested_qty, filled_qty, maker_price, taker_price
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, w.table("hedge_cycles"))
	if _, err := w.db.ExecContext(ctx, query,
		record.Time,
		record.Symbol,
		record.Direction,
		record.State,
		record.MakerStatus,
		record.TakerStatus,
		emptyZero(record.RequestedQty),
		emptyZero(record.FilledQty),
		emptyZero(record.MakerPrice),
		emptyZero(record.TakerPrice),
	); err != nil && w.log != nil {
		w.log.Warn("journal cycle insert failed", zap.Error(err))
	}
}

func (w *Writer) writeCandidate(ctx context.Context, candidate scan.Candidate) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		symbol, direction, gross_bps, cost_bps, funding_bps, net_bps,
		threshold_bps, maker_price, taker_price
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, w.table("arb_candidates"))
	if _, err := w.db.ExecContext(ctx, query,
		candidate.Symbol,
		string(candidate.Direction),
		candidate.GrossBps.String(),
		candidate.CostBps.String(),
		candidate.FundingBps.String(),
		candidate.NetBps.String(),
		candidate.Threshold.String(),
		candidate.MakerPrice.String(),
		candidate.TakerPrice.String(),
	); err != nil && w.log != nil {
		w.log.Warn("journal candidate insert failed", zap.Error(err))
	}
}

func emptyZero(value string) string {
	if strings.TrimSpace(value) == "" {
		return "0"
	}
	return value
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
