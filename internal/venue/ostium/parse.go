package ostium

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// Subgraph and backend payloads mix numeric encodings, so both helpers
// accept strings, JSON numbers and floats.
func decimalFromAny(v any) (decimal.Decimal, bool) {
	switch value := v.(type) {
	case string:
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, false
		}
		return parsed, true
	case json.Number:
		parsed, err := decimal.NewFromString(value.String())
		if err != nil {
			return decimal.Zero, false
		}
		return parsed, true
	case float64:
		return decimal.NewFromFloat(value), true
	case int:
		return decimal.NewFromInt(int64(value)), true
	case int64:
		return decimal.NewFromInt(value), true
	default:
		return decimal.Zero, false
	}
}

func intFromAny(v any) (int, bool) {
	switch value := v.(type) {
	case string:
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case json.Number:
		parsed, err := value.Int64()
		if err != nil {
			return 0, false
		}
		return int(parsed), true
	case float64:
		return int(value), true
	case int:
		return value, true
	case int64:
		return int(value), true
	default:
		return 0, false
	}
}
