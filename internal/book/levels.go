// Package book normalizes heterogeneous venue order-book payloads into a
// canonical level shape and computes notional-bounded VWAPs over them.
package book

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Level is one order-book row, best price first in any slice of levels.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

var ErrBadLevelShape = errors.New("unrecognized order book level shape")

// ParseLevels normalizes a raw book side. Venues deliver rows either as
// [price, size] pairs or as {"price": .., "size": ..} records, with values
// encoded as strings or numbers. Rows without a positive price and size are
// dropped.
func ParseLevels(raw any) []Level {
	levels, _ := parseLevels(raw, false)
	return levels
}

// ParseLevelsStrict is ParseLevels but rows of an unknown shape are an error
// instead of being silently skipped, so stale or corrupted feeds surface as a
// transient data failure rather than an empty book.
func ParseLevelsStrict(raw any) ([]Level, error) {
	return parseLevels(raw, true)
}

func parseLevels(raw any, strict bool) ([]Level, error) {
	rows, ok := toSlice(raw)
	if !ok {
		if raw == nil {
			return nil, nil
		}
		if strict {
			return nil, fmt.Errorf("%w: %T", ErrBadLevelShape, raw)
		}
		return nil, nil
	}
	levels := make([]Level, 0, len(rows))
	for _, row := range rows {
		level, ok, err := parseLevel(row)
		if err != nil {
			if strict {
				return nil, err
			}
			continue
		}
		if !ok {
			continue
		}
		levels = append(levels, level)
	}
	return levels, nil
}

func parseLevel(row any) (Level, bool, error) {
	var price, size decimal.Decimal
	switch v := row.(type) {
	case []any:
		if len(v) < 2 {
			return Level{}, false, fmt.Errorf("%w: pair with %d entries", ErrBadLevelShape, len(v))
		}
		price = decimalFromAny(v[0])
		size = decimalFromAny(v[1])
	case map[string]any:
		price = decimalFromMap(v, "price", "px")
		size = decimalFromMap(v, "size", "sz", "quantity")
	default:
		return Level{}, false, fmt.Errorf("%w: %T", ErrBadLevelShape, row)
	}
	if price.Sign() <= 0 || size.Sign() <= 0 {
		return Level{}, false, nil
	}
	return Level{Price: price, Size: size}, true, nil
}

// BestPrice extracts only the top-of-book price from a raw book side. Missing
// or empty sides report false rather than an error so callers can fall back to
// the mid price.
func BestPrice(raw any) (decimal.Decimal, bool) {
	rows, ok := toSlice(raw)
	if !ok || len(rows) == 0 {
		return decimal.Zero, false
	}
	switch first := rows[0].(type) {
	case []any:
		if len(first) == 0 {
			return decimal.Zero, false
		}
		if price := decimalFromAny(first[0]); price.Sign() > 0 {
			return price, true
		}
	case map[string]any:
		if price := decimalFromMap(first, "price", "px"); price.Sign() > 0 {
			return price, true
		}
	}
	return decimal.Zero, false
}

func toSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func decimalFromMap(m map[string]any, keys ...string) decimal.Decimal {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if d := decimalFromAny(v); !d.IsZero() {
				return d
			}
		}
	}
	return decimal.Zero
}

func decimalFromAny(v any) decimal.Decimal {
	switch val := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(val)
	case float32:
		return decimal.NewFromFloat32(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}
