package lighter

import (
	"bytes"
	"errors"

	"github.com/vmihailenco/msgpack/v5"
)

// OrderTx is the transaction body signed and submitted through sendTx.
// Amounts are integers scaled by the market's size/price decimals.
type OrderTx struct {
	AccountIndex     int    `json:"account_index"`
	APIKeyIndex      int    `json:"api_key_index"`
	MarketIndex      int    `json:"market_index"`
	ClientOrderIndex int64  `json:"client_order_index"`
	BaseAmount       int64  `json:"base_amount"`
	Price            int64  `json:"price"`
	IsAsk            bool   `json:"is_ask"`
	OrderType        string `json:"order_type"`
	TimeInForce      string `json:"time_in_force"`
	ReduceOnly       bool   `json:"reduce_only"`
}

// EncodeOrderTx produces the canonical msgpack payload the venue verifies
// the signature against. Field order is part of the wire contract.
func EncodeOrderTx(tx OrderTx) ([]byte, error) {
	if tx.OrderType == "" {
		return nil, errors.New("order type is required")
	}
	if tx.TimeInForce == "" {
		return nil, errors.New("time in force is required")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(10); err != nil {
		return nil, err
	}
	if err := encodeInt(enc, "account_index", int64(tx.AccountIndex)); err != nil {
		return nil, err
	}
	if err := encodeInt(enc, "api_key_index", int64(tx.APIKeyIndex)); err != nil {
		return nil, err
	}
	if err := encodeInt(enc, "market_index", int64(tx.MarketIndex)); err != nil {
		return nil, err
	}
	if err := encodeInt(enc, "client_order_index", tx.ClientOrderIndex); err != nil {
		return nil, err
	}
	if err := encodeInt(enc, "base_amount", tx.BaseAmount); err != nil {
		return nil, err
	}
	if err := encodeInt(enc, "price", tx.Price); err != nil {
		return nil, err
	}
	if err := encodeBool(enc, "is_ask", tx.IsAsk); err != nil {
		return nil, err
	}
	if err := encodeString(enc, "order_type", tx.OrderType); err != nil {
		return nil, err
	}
	if err := encodeString(enc, "time_in_force", tx.TimeInForce); err != nil {
		return nil, err
	}
	if err := encodeBool(enc, "reduce_only", tx.ReduceOnly); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeInt(enc *msgpack.Encoder, key string, value int64) error {
	if err := enc.EncodeString(key); err != nil {
		return err
	}
	return enc.EncodeInt(value)
}

func encodeBool(enc *msgpack.Encoder, key string, value bool) error {
	if err := enc.EncodeString(key); err != nil {
		return err
	}
	return enc.EncodeBool(value)
}

func encodeString(enc *msgpack.Encoder, key, value string) error {
	if err := enc.EncodeString(key); err != nil {
		return err
	}
	return enc.EncodeString(value)
}
