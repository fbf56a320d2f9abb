package pricing

import (
	"strings"
	"time"
)

// ParseSymbol splits a ticker into base and quote. "BTC" quotes in USD,
// six-letter forex pairs split in half, and "X-Y" is explicit.
func ParseSymbol(symbol string) (string, string) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if base, quote, ok := strings.Cut(symbol, "-"); ok {
		return base, quote
	}
	if len(symbol) == 6 && isAlpha(symbol) {
		return symbol[:3], symbol[3:]
	}
	return symbol, "USD"
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// EquityMarketOpen approximates US equity hours, 14:00-21:00 UTC on
// weekdays, for feeds that do not report session state themselves.
func EquityMarketOpen(now time.Time) bool {
	now = now.UTC()
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}
	return now.Hour() >= 14 && now.Hour() < 21
}
