package orderbook

import "github.com/shopspring/decimal"

type Side int
type OrderType int
type Status int

const (
	Buy Side = iota
	Sell
)

const (
	Limit OrderType = iota
	Market
	IOC
	FOK
)

const (
	Pending Status = iota
	PartiallyFilled
	Filled
	Cancelled
	Rejected
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "limit"
	case Market:
		return "market"
	case IOC:
		return "ioc"
	case FOK:
		return "fok"
	default:
		return "unknown"
	}
}

// NeedsPrice reports whether the type carries a limit price.
func (t OrderType) NeedsPrice() bool {
	return t == Limit || t == IOC || t == FOK
}

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further mutation of the order is allowed.
func (s Status) Terminal() bool {
	return s == Filled || s == Cancelled || s == Rejected
}

// Order is a pure domain entity. Identity fields are set at admission and
// never mutated; Remaining and Status evolve as the order executes.
//
// The next/prev links and the level pointer form the intrusive FIFO queue
// inside a PriceLevel; they double as the O(1) cancellation handle.
type Order struct {
	ID     string
	Symbol string
	Side   Side
	Type   OrderType
	Price  decimal.Decimal
	Qty    decimal.Decimal

	Remaining decimal.Decimal
	Status    Status

	// SeqID is the submission timestamp: assigned under the symbol lock,
	// strictly increasing, and the time-priority tie-break at equal price.
	SeqID uint64

	next  *Order
	prev  *Order
	level *PriceLevel
}

// Filled returns the cumulative executed quantity.
func (o *Order) Filled() decimal.Decimal {
	return o.Qty.Sub(o.Remaining)
}

// Resting reports whether the order currently sits on a price level.
func (o *Order) Resting() bool {
	return o.level != nil
}

// Read-only traversal helper.
func (o *Order) Next() *Order {
	return o.next
}

// Reset clears the order for pool reuse.
func (o *Order) Reset() { *o = Order{} }
