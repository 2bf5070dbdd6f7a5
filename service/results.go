package service

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SparshBisen/Crypto/domain/orderbook"
)

// ErrInvalidOrder covers everything rejected at admission: non-positive
// quantity, a missing or non-positive price on a priced type, a price on a
// market order, an empty symbol.
var ErrInvalidOrder = errors.New("invalid order")

// ErrUnknownSymbol is returned by reads against a symbol that has never had
// an order admitted.
var ErrUnknownSymbol = errors.New("unknown symbol")

// OrderRequest is a parsed submission from the gateway; Submit checks it
// against the admission rules. Numeric fields arrive in canonical decimal
// form; parsing happened once at the boundary.
type OrderRequest struct {
	Symbol string
	Side   orderbook.Side
	Type   orderbook.OrderType
	Qty    decimal.Decimal
	Price  decimal.Decimal
}

// SubmissionResult describes the order's terminal or resting state after one
// matching pass. Remaining is the quantity still on the book: zero unless
// the order rests.
type SubmissionResult struct {
	OrderID   string
	Status    orderbook.Status
	Remaining decimal.Decimal
	Filled    decimal.Decimal
	Trades    []orderbook.Trade
	Reason    string
}

// CancelResult is the typed outcome of a cancellation.
type CancelResult int

const (
	Cancelled CancelResult = iota
	NotFound
	AlreadyTerminal
)

func (r CancelResult) String() string {
	switch r {
	case Cancelled:
		return "cancelled"
	case NotFound:
		return "not_found"
	case AlreadyTerminal:
		return "already_terminal"
	default:
		return "unknown"
	}
}

// BboSnapshot is a copied top-of-book view. Nil price pointers mean the side
// is empty.
type BboSnapshot struct {
	Symbol  string           `json:"symbol"`
	BestBid *decimal.Decimal `json:"best_bid"`
	BidQty  *decimal.Decimal `json:"bid_quantity"`
	BestAsk *decimal.Decimal `json:"best_offer"`
	AskQty  *decimal.Decimal `json:"offer_quantity"`
	Seq     uint64           `json:"seq"`
	Time    time.Time        `json:"timestamp"`
}

// DepthSnapshot is a copied view of the top levels per side.
type DepthSnapshot struct {
	Symbol string                `json:"symbol"`
	Bids   []orderbook.LevelView `json:"bids"`
	Asks   []orderbook.LevelView `json:"asks"`
	Seq    uint64                `json:"seq"`
	Time   time.Time             `json:"timestamp"`
}

func newBboSnapshot(symbol string, bbo orderbook.Bbo, seq uint64) BboSnapshot {
	s := BboSnapshot{Symbol: symbol, Seq: seq, Time: time.Now().UTC()}
	if bbo.Bid.Ok {
		p, q := bbo.Bid.Price, bbo.Bid.Qty
		s.BestBid, s.BidQty = &p, &q
	}
	if bbo.Ask.Ok {
		p, q := bbo.Ask.Price, bbo.Ask.Qty
		s.BestAsk, s.AskQty = &p, &q
	}
	return s
}
