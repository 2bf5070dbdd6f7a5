package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/SparshBisen/Crypto/bus"
	"github.com/SparshBisen/Crypto/domain/orderbook"
	"github.com/SparshBisen/Crypto/infra/memory"
	"github.com/SparshBisen/Crypto/infra/sequence"
)

/*
MatchingEngine is the ONLY write entry point into the core.

It owns one order book per symbol behind a per-symbol mutex, dispatches
submissions by order type, turns maker fills into Trade records, and
publishes trade / bbo / depth events on the bus in that canonical order
before the symbol lock is released.
*/

const defaultEventDepth = 10

type MatchingEngine struct {
	mu     sync.RWMutex
	shards map[string]*bookShard

	bus      *bus.Bus
	pool     *memory.Pool[orderbook.Order]
	tradeSeq *sequence.Sequencer
	log      *logrus.Logger
	depth    int
}

// bookShard is one symbol's book plus everything serialized under its lock.
type bookShard struct {
	mu   sync.Mutex
	book *orderbook.OrderBook

	// seq assigns submission timestamps at lock acquisition, so time
	// priority inside the book reflects serialization order.
	seq *sequence.Sequencer

	// terminal remembers the final status of every order this shard has
	// retired, so a late cancel resolves as AlreadyTerminal, not NotFound.
	terminal map[string]orderbook.Status
}

type Option func(*MatchingEngine)

// WithEventDepth sets how many levels per side depth events carry.
func WithEventDepth(d int) Option {
	return func(e *MatchingEngine) {
		if d > 0 {
			e.depth = d
		}
	}
}

func NewMatchingEngine(b *bus.Bus, log *logrus.Logger, opts ...Option) *MatchingEngine {
	e := &MatchingEngine{
		shards: make(map[string]*bookShard),
		bus:    b,
		pool: memory.NewPool(func() *orderbook.Order {
			return &orderbook.Order{}
		}),
		tradeSeq: sequence.New(0),
		log:      log,
		depth:    defaultEventDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// Submit runs one order through admission, matching, and event emission.
// All errors come back as values; the book is never left half-mutated.
func (e *MatchingEngine) Submit(req OrderRequest) (SubmissionResult, error) {
	if reason := validate(req); reason != "" {
		return SubmissionResult{
			OrderID:   uuid.NewString(),
			Status:    orderbook.Rejected,
			Remaining: decimal.Zero,
			Reason:    reason,
		}, fmt.Errorf("%w: %s", ErrInvalidOrder, reason)
	}

	sh := e.shard(req.Symbol, true)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	o := e.pool.Get()
	*o = orderbook.Order{
		ID:        uuid.NewString(),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Price:     req.Price,
		Qty:       req.Qty,
		Remaining: req.Qty,
		Status:    orderbook.Pending,
		SeqID:     sh.seq.Next(),
	}

	bboBefore := sh.book.BestBidOffer()
	bidsBefore, asksBefore := sh.book.Depth(e.depth)

	var (
		fills    []orderbook.Fill
		released []*orderbook.Order
		reason   string
	)

	switch o.Type {
	case orderbook.Market:
		fills, released = sh.book.MatchAgainst(o)
		if o.Remaining.IsPositive() {
			o.Status = orderbook.Rejected
			reason = "insufficient liquidity"
		} else {
			o.Status = orderbook.Filled
		}

	case orderbook.Limit:
		fills, released = sh.book.MatchAgainst(o)
		switch {
		case !o.Remaining.IsPositive():
			o.Status = orderbook.Filled
		case len(fills) > 0:
			o.Status = orderbook.PartiallyFilled
			sh.book.Insert(o)
		default:
			o.Status = orderbook.Pending
			sh.book.Insert(o)
		}

	case orderbook.IOC:
		fills, released = sh.book.MatchAgainst(o)
		switch {
		case !o.Remaining.IsPositive():
			o.Status = orderbook.Filled
		case len(fills) > 0:
			o.Status = orderbook.PartiallyFilled
		default:
			o.Status = orderbook.Cancelled
		}

	case orderbook.FOK:
		if !sh.book.CanFill(o) {
			o.Status = orderbook.Cancelled
		} else {
			fills, released = sh.book.MatchAgainst(o)
			if o.Remaining.IsPositive() {
				// CanFill ran under this same lock; a shortfall here means
				// the book is corrupt.
				panic("matching: FOK underfilled after feasibility check")
			}
			o.Status = orderbook.Filled
		}
	}

	trades := e.recordTrades(o, fills)
	e.retireMakers(sh, released)

	result := SubmissionResult{
		OrderID: o.ID,
		Status:  o.Status,
		Filled:  o.Filled(),
		Trades:  trades,
		Reason:  reason,
	}
	if o.Resting() {
		result.Remaining = o.Remaining
	} else {
		result.Remaining = decimal.Zero
	}

	if !o.Resting() {
		sh.terminal[o.ID] = o.Status
		e.pool.Put(o)
	}

	e.publish(sh, req.Symbol, trades, bboBefore, bidsBefore, asksBefore)

	e.log.WithFields(logrus.Fields{
		"order_id": result.OrderID,
		"symbol":   req.Symbol,
		"side":     req.Side.String(),
		"type":     req.Type.String(),
		"status":   result.Status.String(),
		"trades":   len(trades),
	}).Debug("order processed")

	return result, nil
}

// Cancel removes a resting order. A cancel that races a fill resolves as
// AlreadyTerminal: whichever operation acquires the symbol lock first wins.
func (e *MatchingEngine) Cancel(orderID, symbol string) CancelResult {
	sh := e.shard(symbol, false)
	if sh == nil {
		return NotFound
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.book.Lookup(orderID) == nil {
		if _, ok := sh.terminal[orderID]; ok {
			return AlreadyTerminal
		}
		return NotFound
	}

	bboBefore := sh.book.BestBidOffer()
	bidsBefore, asksBefore := sh.book.Depth(e.depth)

	o := sh.book.Cancel(orderID)
	sh.terminal[o.ID] = orderbook.Cancelled
	e.pool.Put(o)

	// A cancel can only move bbo/depth, never print trades.
	e.publish(sh, symbol, nil, bboBefore, bidsBefore, asksBefore)

	e.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"symbol":   symbol,
	}).Debug("order cancelled")

	return Cancelled
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// Snapshot returns a read-consistent copy of the top depth levels.
func (e *MatchingEngine) Snapshot(symbol string, depth int) (DepthSnapshot, error) {
	sh := e.shard(symbol, false)
	if sh == nil {
		return DepthSnapshot{}, ErrUnknownSymbol
	}
	if depth <= 0 {
		depth = e.depth
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	return e.depthSnapshot(sh, symbol, depth), nil
}

// Bbo returns a copied top-of-book view.
func (e *MatchingEngine) Bbo(symbol string) (BboSnapshot, error) {
	sh := e.shard(symbol, false)
	if sh == nil {
		return BboSnapshot{}, ErrUnknownSymbol
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	return newBboSnapshot(symbol, sh.book.BestBidOffer(), sh.seq.Current()), nil
}

// Subscribe registers a consumer for trade, bbo, or depth events.
func (e *MatchingEngine) Subscribe(kind bus.Kind) *bus.Subscription {
	return e.bus.Subscribe(kind)
}

// Unsubscribe releases a subscription.
func (e *MatchingEngine) Unsubscribe(s *bus.Subscription) {
	e.bus.Unsubscribe(s)
}

//
// ──────────────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────────────
//

func validate(req OrderRequest) string {
	if req.Symbol == "" {
		return "symbol required"
	}
	if !req.Qty.IsPositive() {
		return "quantity must be positive"
	}
	if req.Type.NeedsPrice() {
		if !req.Price.IsPositive() {
			return "price must be positive for " + req.Type.String() + " orders"
		}
	} else if !req.Price.IsZero() {
		return "price must be absent for market orders"
	}
	return ""
}

func (e *MatchingEngine) shard(symbol string, create bool) *bookShard {
	e.mu.RLock()
	sh := e.shards[symbol]
	e.mu.RUnlock()
	if sh != nil || !create {
		return sh
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if sh = e.shards[symbol]; sh == nil {
		sh = &bookShard{
			book:     orderbook.NewOrderBook(symbol),
			seq:      sequence.New(0),
			terminal: make(map[string]orderbook.Status),
		}
		e.shards[symbol] = sh
		e.log.WithField("symbol", symbol).Info("order book created")
	}
	return sh
}

func (e *MatchingEngine) recordTrades(taker *orderbook.Order, fills []orderbook.Fill) []orderbook.Trade {
	if len(fills) == 0 {
		return nil
	}
	trades := make([]orderbook.Trade, 0, len(fills))
	now := time.Now().UTC()
	for _, f := range fills {
		trades = append(trades, orderbook.Trade{
			ID:            uuid.NewString(),
			Symbol:        taker.Symbol,
			Price:         f.Price,
			Qty:           f.Qty,
			AggressorSide: taker.Side,
			MakerOrderID:  f.MakerID,
			TakerOrderID:  taker.ID,
			Seq:           e.tradeSeq.Next(),
			Time:          now,
		})
	}
	return trades
}

func (e *MatchingEngine) retireMakers(sh *bookShard, released []*orderbook.Order) {
	for _, m := range released {
		sh.terminal[m.ID] = m.Status
		e.pool.Put(m)
	}
}

func (e *MatchingEngine) depthSnapshot(sh *bookShard, symbol string, depth int) DepthSnapshot {
	bids, asks := sh.book.Depth(depth)
	return DepthSnapshot{
		Symbol: symbol,
		Bids:   bids,
		Asks:   asks,
		Seq:    sh.seq.Current(),
		Time:   time.Now().UTC(),
	}
}

// publish emits the submission's event batch in canonical order: trades in
// execution order, then bbo when it moved, then one coalesced depth event
// when the top levels changed.
// The symbol lock is still held; bus publication never blocks.
func (e *MatchingEngine) publish(
	sh *bookShard,
	symbol string,
	trades []orderbook.Trade,
	bboBefore orderbook.Bbo,
	bidsBefore, asksBefore []orderbook.LevelView,
) {
	for _, t := range trades {
		e.bus.Publish(bus.Event{Kind: bus.KindTrade, Symbol: symbol, Payload: t})
	}

	bboAfter := sh.book.BestBidOffer()
	if !bboEqual(bboBefore, bboAfter) {
		e.bus.Publish(bus.Event{
			Kind:    bus.KindBbo,
			Symbol:  symbol,
			Payload: newBboSnapshot(symbol, bboAfter, sh.seq.Current()),
		})
	}

	bidsAfter, asksAfter := sh.book.Depth(e.depth)
	if !levelsEqual(bidsBefore, bidsAfter) || !levelsEqual(asksBefore, asksAfter) {
		e.bus.Publish(bus.Event{
			Kind:   bus.KindDepth,
			Symbol: symbol,
			Payload: DepthSnapshot{
				Symbol: symbol,
				Bids:   bidsAfter,
				Asks:   asksAfter,
				Seq:    sh.seq.Current(),
				Time:   time.Now().UTC(),
			},
		})
	}
}

func bboEqual(a, b orderbook.Bbo) bool {
	return quoteEqual(a.Bid, b.Bid) && quoteEqual(a.Ask, b.Ask)
}

func quoteEqual(a, b orderbook.Quote) bool {
	if a.Ok != b.Ok {
		return false
	}
	if !a.Ok {
		return true
	}
	return a.Price.Equal(b.Price) && a.Qty.Equal(b.Qty)
}

func levelsEqual(a, b []orderbook.LevelView) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Price.Equal(b[i].Price) || !a[i].Qty.Equal(b[i].Qty) {
			return false
		}
	}
	return true
}
