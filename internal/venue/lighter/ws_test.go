package lighter

import (
	"encoding/json"
	"testing"
)

func TestParseDepthUpdateChannelForms(t *testing.T) {
	raw := json.RawMessage(`{"bids":[["100.2","3"]],"asks":[{"price":"100.3","size":"2"}]}`)
	for _, channel := range []string{"order_book/1", "order_book:1"} {
		update, err := parseDepthUpdate(channel, raw)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", channel, err)
		}
		if update.MarketID != 1 {
			t.Fatalf("%s: expected market 1, got %d", channel, update.MarketID)
		}
		if len(update.Bids) != 1 || update.Bids[0].Price.String() != "100.2" {
			t.Fatalf("%s: bad bids %v", channel, update.Bids)
		}
		if len(update.Asks) != 1 || update.Asks[0].Size.String() != "2" {
			t.Fatalf("%s: bad asks %v", channel, update.Asks)
		}
	}
}

func TestParseDepthUpdateRejectsCorruptRows(t *testing.T) {
	raw := json.RawMessage(`{"bids":["garbage-row",["100.2","3"]],"asks":[]}`)
	if _, err := parseDepthUpdate("order_book/1", raw); err == nil {
		t.Fatal("corrupt level row must fail the update")
	}
}

func TestParseDepthUpdateBadChannel(t *testing.T) {
	if _, err := parseDepthUpdate("trades/none", json.RawMessage(`{}`)); err == nil {
		t.Fatal("non-numeric channel suffix must fail")
	}
}

func TestSubscribeMessage(t *testing.T) {
	msg := subscribeMessage(12)
	if msg["channel"] != "order_book/12" || msg["type"] != "subscribe" {
		t.Fatalf("unexpected subscribe message: %v", msg)
	}
}
