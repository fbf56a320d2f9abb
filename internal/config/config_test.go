package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
hedge:
  ticker: BTC
  order_qty: "0.002"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected default log level, got %s", cfg.Log.Level)
	}
	if cfg.Lighter.WSURL != "wss://mainnet.zklighter.elliot.ai/stream" {
		t.Fatalf("unexpected ws url: %s", cfg.Lighter.WSURL)
	}
	if cfg.Hedge.FillAttempts != 10 {
		t.Fatalf("expected 10 fill attempts, got %d", cfg.Hedge.FillAttempts)
	}
	if cfg.Scan.FundingCacheTTL != 5*time.Minute {
		t.Fatalf("unexpected funding cache ttl: %s", cfg.Scan.FundingCacheTTL)
	}
	if len(cfg.Scan.ExcludeSymbols) != 1 || cfg.Scan.ExcludeSymbols[0] != "SPX" {
		t.Fatalf("unexpected exclude symbols: %v", cfg.Scan.ExcludeSymbols)
	}
}

func TestLoadRejectsBadQuantity(t *testing.T) {
	path := writeTempConfig(t, `
hedge:
  ticker: BTC
  order_qty: "not-a-number"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid order_qty")
	}
}

func TestLoadRejectsZeroQuantity(t *testing.T) {
	path := writeTempConfig(t, `
hedge:
  ticker: BTC
  order_qty: "0"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for zero order_qty")
	}
}

func TestMaxPositionFallsBackToOrderQty(t *testing.T) {
	h := HedgeConfig{OrderQty: "0.5"}
	maxPos, err := h.MaxPositionQty()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if maxPos.String() != "0.5" {
		t.Fatalf("expected 0.5, got %s", maxPos)
	}
	h.MaxPosition = "2"
	maxPos, err = h.MaxPositionQty()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if maxPos.String() != "2" {
		t.Fatalf("expected 2, got %s", maxPos)
	}
}

func TestLoadRejectsJournalWithoutDSN(t *testing.T) {
	path := writeTempConfig(t, `
hedge:
  ticker: BTC
  order_qty: "0.002"
journal:
  enabled: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for journal without dsn")
	}
}

func TestDeriveWSURL(t *testing.T) {
	if got := deriveWSURL("http://localhost:8080"); got != "ws://localhost:8080/stream" {
		t.Fatalf("unexpected ws url: %s", got)
	}
	if got := deriveWSURL("example.com/"); got != "example.com/stream" {
		t.Fatalf("unexpected ws url: %s", got)
	}
}
