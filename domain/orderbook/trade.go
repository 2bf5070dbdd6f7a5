package orderbook

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an immutable execution record, emitted exactly once per match.
// Seq orders trades deterministically within a symbol; Time is the wall
// clock carried for downstream consumers.
type Trade struct {
	ID            string          `json:"trade_id"`
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Qty           decimal.Decimal `json:"quantity"`
	AggressorSide Side            `json:"aggressor_side"`
	MakerOrderID  string          `json:"maker_order_id"`
	TakerOrderID  string          `json:"taker_order_id"`
	Seq           uint64          `json:"seq"`
	Time          time.Time       `json:"timestamp"`
}

// MarshalJSON emits the side as its wire name ("buy"/"sell").
func (s Side) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *Side) UnmarshalJSON(b []byte) error {
	if string(b) == `"sell"` {
		*s = Sell
	} else {
		*s = Buy
	}
	return nil
}
