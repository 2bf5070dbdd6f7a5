package orderbook

import "github.com/shopspring/decimal"

// Fill records one maker execution produced by a matching pass. The price is
// always the maker's resting price: price improvement accrues to the taker.
type Fill struct {
	MakerID string
	Price   decimal.Decimal
	Qty     decimal.Decimal
}

// Quote is one side of the top of book. Ok is false when the side is empty.
type Quote struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
	Ok    bool
}

// Bbo is the best bid and offer with aggregate quantity at each extreme.
type Bbo struct {
	Bid Quote
	Ask Quote
}

// LevelView is one aggregated price level in a depth snapshot.
type LevelView struct {
	Price decimal.Decimal `json:"price"`
	Qty   decimal.Decimal `json:"quantity"`
}

// OrderBook holds the resting liquidity for one symbol: bids and asks as
// red-black trees of price levels plus an order_id index for O(1) cancel.
// It is single-writer; the caller serializes all access per symbol.
type OrderBook struct {
	Symbol string
	Bids   *RBTree
	Asks   *RBTree

	orders map[string]*Order
}

func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		Bids:   NewRBTree(),
		Asks:   NewRBTree(),
		orders: make(map[string]*Order),
	}
}

// ---------------- Matching ---------------- //

// MatchAgainst walks the opposite side from the best price outward, consuming
// makers FIFO until the taker is exhausted, the book runs out, or the next
// best price violates the taker's limit. Fully consumed makers are unlinked
// from the book and returned in released for the caller to retire.
func (b *OrderBook) MatchAgainst(o *Order) (fills []Fill, released []*Order) {
	if o.Side == Buy {
		return b.matchBuy(o)
	}
	return b.matchSell(o)
}

func (b *OrderBook) matchBuy(o *Order) (fills []Fill, released []*Order) {
	for o.Remaining.IsPositive() {
		best := b.Asks.MinLevel()
		if best == nil {
			break
		}
		if o.Type != Market && best.Price.Cmp(o.Price) > 0 {
			break
		}
		f, r, ok := b.consumeHead(best, o, Sell)
		if r != nil {
			released = append(released, r)
		}
		if ok {
			fills = append(fills, f)
		}
	}
	return fills, released
}

func (b *OrderBook) matchSell(o *Order) (fills []Fill, released []*Order) {
	for o.Remaining.IsPositive() {
		best := b.Bids.MaxLevel()
		if best == nil {
			break
		}
		if o.Type != Market && best.Price.Cmp(o.Price) < 0 {
			break
		}
		f, r, ok := b.consumeHead(best, o, Buy)
		if r != nil {
			released = append(released, r)
		}
		if ok {
			fills = append(fills, f)
		}
	}
	return fills, released
}

// consumeHead executes the taker against the head of one level. It returns
// the fill (ok=false for the defensive discard of a zero-remaining head) and
// the maker released from the book, if any.
func (b *OrderBook) consumeHead(lvl *PriceLevel, taker *Order, makerSide Side) (Fill, *Order, bool) {
	head := lvl.Head()
	if head == nil || !head.Remaining.IsPositive() {
		// A zero-remaining order must never trade at the head of a level.
		var dropped *Order
		if head != nil {
			dropped = lvl.PopHead()
			dropped.Status = Filled
			delete(b.orders, dropped.ID)
		}
		b.collapseIfEmpty(lvl, makerSide)
		return Fill{}, dropped, false
	}

	qty := decimal.Min(taker.Remaining, head.Remaining)
	taker.Remaining = taker.Remaining.Sub(qty)
	lvl.DecrementHead(qty)

	fill := Fill{MakerID: head.ID, Price: lvl.Price, Qty: qty}

	var released *Order
	if head.Remaining.IsPositive() {
		head.Status = PartiallyFilled
	} else {
		released = lvl.PopHead()
		released.Status = Filled
		delete(b.orders, released.ID)
		b.collapseIfEmpty(lvl, makerSide)
	}
	return fill, released, true
}

func (b *OrderBook) collapseIfEmpty(lvl *PriceLevel, side Side) {
	if !lvl.Empty() {
		return
	}
	if side == Buy {
		b.Bids.DeleteLevel(lvl.Price)
	} else {
		b.Asks.DeleteLevel(lvl.Price)
	}
}

// ---------------- Feasibility ---------------- //

// CanFill reports whether the opposite side holds enough eligible liquidity
// to fill the order completely. It is a read-only walk over cached level
// sums; the book is not mutated.
func (b *OrderBook) CanFill(o *Order) bool {
	available := decimal.Zero
	if o.Side == Buy {
		b.Asks.ForEachAscending(func(lvl *PriceLevel) bool {
			if o.Type != Market && lvl.Price.Cmp(o.Price) > 0 {
				return false
			}
			available = available.Add(lvl.TotalQty)
			return available.Cmp(o.Remaining) < 0
		})
	} else {
		b.Bids.ForEachDescending(func(lvl *PriceLevel) bool {
			if o.Type != Market && lvl.Price.Cmp(o.Price) < 0 {
				return false
			}
			available = available.Add(lvl.TotalQty)
			return available.Cmp(o.Remaining) < 0
		})
	}
	return available.Cmp(o.Remaining) >= 0
}

// ---------------- Resting orders ---------------- //

// Insert rests the order at the tail of its price level, creating the level
// if absent.
func (b *OrderBook) Insert(o *Order) {
	if o.Side == Buy {
		b.Bids.UpsertLevel(o.Price).Enqueue(o)
	} else {
		b.Asks.UpsertLevel(o.Price).Enqueue(o)
	}
	b.orders[o.ID] = o
}

// Cancel unlinks a resting order in O(1) via its intrusive handle, collapses
// the emptied level, and returns the order. Nil when the id is not resting.
func (b *OrderBook) Cancel(id string) *Order {
	o, ok := b.orders[id]
	if !ok {
		return nil
	}
	lvl := o.level
	lvl.Remove(o)
	b.collapseIfEmpty(lvl, o.Side)
	delete(b.orders, id)
	o.Status = Cancelled
	return o
}

// Lookup returns the resting order with the given id, or nil.
func (b *OrderBook) Lookup(id string) *Order {
	return b.orders[id]
}

// RestingCount returns the number of orders currently on the book.
func (b *OrderBook) RestingCount() int {
	return len(b.orders)
}

// ---------------- Market data ---------------- //

// BestBidOffer reads the top of book from the tree extremes. Each side's read
// walks one root-to-leaf path, O(log L); the extremes are not cached.
func (b *OrderBook) BestBidOffer() Bbo {
	var bbo Bbo
	if lvl := b.Bids.MaxLevel(); lvl != nil {
		bbo.Bid = Quote{Price: lvl.Price, Qty: lvl.TotalQty, Ok: true}
	}
	if lvl := b.Asks.MinLevel(); lvl != nil {
		bbo.Ask = Quote{Price: lvl.Price, Qty: lvl.TotalQty, Ok: true}
	}
	return bbo
}

// Depth returns the top d aggregated levels per side, bids from highest and
// asks from lowest. The slices are copies; they never alias book state.
func (b *OrderBook) Depth(d int) (bids, asks []LevelView) {
	n := 0
	b.Bids.ForEachDescending(func(lvl *PriceLevel) bool {
		bids = append(bids, LevelView{Price: lvl.Price, Qty: lvl.TotalQty})
		n++
		return n < d
	})
	n = 0
	b.Asks.ForEachAscending(func(lvl *PriceLevel) bool {
		asks = append(asks, LevelView{Price: lvl.Price, Qty: lvl.TotalQty})
		n++
		return n < d
	})
	return bids, asks
}
