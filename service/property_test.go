package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/SparshBisen/Crypto/bus"
	"github.com/SparshBisen/Crypto/domain/orderbook"
)

func drawQty(t *rapid.T, label string) decimal.Decimal {
	return decimal.New(rapid.Int64Range(1, 500).Draw(t, label), -2)
}

func drawPrice(t *rapid.T, label string, lo, hi int64) decimal.Decimal {
	return decimal.NewFromInt(rapid.Int64Range(lo, hi).Draw(t, label))
}

func bookTotal(e *MatchingEngine, symbol string) decimal.Decimal {
	total := decimal.Zero
	snap, err := e.Snapshot(symbol, 1<<20)
	if err != nil {
		return total
	}
	for _, lvl := range snap.Bids {
		total = total.Add(lvl.Qty)
	}
	for _, lvl := range snap.Asks {
		total = total.Add(lvl.Qty)
	}
	return total
}

// After any submission the book is never crossed.
func TestProperty_NoCrossedBook(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e, _ := newTestEngine()
		n := rapid.IntRange(1, 40).Draw(t, "n")

		for i := 0; i < n; i++ {
			side := orderbook.Buy
			if rapid.Bool().Draw(t, "sell") {
				side = orderbook.Sell
			}
			req := OrderRequest{
				Symbol: sym,
				Side:   side,
				Type:   orderbook.Limit,
				Price:  drawPrice(t, "price", 90, 110),
				Qty:    drawQty(t, "qty"),
			}
			if _, err := e.Submit(req); err != nil {
				t.Fatalf("submit failed: %v", err)
			}

			bbo, err := e.Bbo(sym)
			if err != nil {
				t.Fatal(err)
			}
			if bbo.BestBid != nil && bbo.BestAsk != nil {
				if bbo.BestBid.Cmp(*bbo.BestAsk) >= 0 {
					t.Fatalf("crossed book: bid %s >= ask %s", bbo.BestBid, bbo.BestAsk)
				}
			}
		}
	})
}

// Quantity is conserved: in an all-limit world every traded unit leaves the
// book on both sides, so resting total == submitted - 2×traded.
func TestProperty_QuantityConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e, _ := newTestEngine()
		n := rapid.IntRange(1, 40).Draw(t, "n")

		submitted := decimal.Zero
		traded := decimal.Zero

		for i := 0; i < n; i++ {
			side := orderbook.Buy
			if rapid.Bool().Draw(t, "sell") {
				side = orderbook.Sell
			}
			req := OrderRequest{
				Symbol: sym,
				Side:   side,
				Type:   orderbook.Limit,
				Price:  drawPrice(t, "price", 95, 105),
				Qty:    drawQty(t, "qty"),
			}
			res, err := e.Submit(req)
			if err != nil {
				t.Fatalf("submit failed: %v", err)
			}
			submitted = submitted.Add(req.Qty)
			for _, tr := range res.Trades {
				traded = traded.Add(tr.Qty)
			}

			// Per-submission accounting: filled equals the sum of fills.
			fillSum := decimal.Zero
			for _, tr := range res.Trades {
				fillSum = fillSum.Add(tr.Qty)
			}
			if !res.Filled.Equal(fillSum) {
				t.Fatalf("taker filled %s != fill sum %s", res.Filled, fillSum)
			}
		}

		want := submitted.Sub(traded.Mul(decimal.NewFromInt(2)))
		if got := bookTotal(e, sym); !got.Equal(want) {
			t.Fatalf("book total %s, want %s (submitted %s, traded %s)",
				got, want, submitted, traded)
		}
	})
}

// Price-time priority: trades walk prices best-first and makers at one price
// fill in submission order.
func TestProperty_PriceTimePriority(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e, _ := newTestEngine()

		// Build a resting ask side only, so nothing crosses while seeding.
		n := rapid.IntRange(1, 30).Draw(t, "n")
		makerSeq := make(map[string]int)
		for i := 0; i < n; i++ {
			res, err := e.Submit(OrderRequest{
				Symbol: sym,
				Side:   orderbook.Sell,
				Type:   orderbook.Limit,
				Price:  drawPrice(t, "price", 100, 104),
				Qty:    drawQty(t, "qty"),
			})
			if err != nil {
				t.Fatalf("seed failed: %v", err)
			}
			makerSeq[res.OrderID] = i
		}

		limitPrice := drawPrice(t, "limit", 100, 104)
		res, err := e.Submit(OrderRequest{
			Symbol: sym,
			Side:   orderbook.Buy,
			Type:   orderbook.Limit,
			Price:  limitPrice,
			Qty:    drawQty(t, "takerQty").Mul(decimal.NewFromInt(5)),
		})
		if err != nil {
			t.Fatalf("taker failed: %v", err)
		}

		for i := 1; i < len(res.Trades); i++ {
			prev, cur := res.Trades[i-1], res.Trades[i]
			switch prev.Price.Cmp(cur.Price) {
			case 1:
				t.Fatalf("buy taker walked prices backwards: %s then %s", prev.Price, cur.Price)
			case 0:
				if makerSeq[prev.MakerOrderID] > makerSeq[cur.MakerOrderID] {
					t.Fatalf("time priority violated at %s", cur.Price)
				}
			}
		}

		// Price improvement direction: a buy taker never pays above its
		// limit.
		for _, tr := range res.Trades {
			if tr.Price.Cmp(limitPrice) > 0 {
				t.Fatalf("trade at %s above limit %s", tr.Price, limitPrice)
			}
		}
	})
}

// A cancelled FOK is invisible: book and event log identical to
// pre-submission.
func TestProperty_FokAtomicity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e, _ := newTestEngine()

		available := decimal.Zero
		n := rapid.IntRange(1, 20).Draw(t, "n")
		for i := 0; i < n; i++ {
			qty := drawQty(t, "qty")
			if _, err := e.Submit(OrderRequest{
				Symbol: sym,
				Side:   orderbook.Sell,
				Type:   orderbook.Limit,
				Price:  drawPrice(t, "price", 100, 105),
				Qty:    qty,
			}); err != nil {
				t.Fatalf("seed failed: %v", err)
			}
			available = available.Add(qty)
		}

		before, _ := e.Snapshot(sym, 1<<20)
		tradeSub := e.Subscribe(bus.KindTrade)
		bboSub := e.Subscribe(bus.KindBbo)
		depthSub := e.Subscribe(bus.KindDepth)

		// Ask for strictly more than the whole side holds; the limit price
		// clears every level, so only quantity can make it infeasible.
		res, err := e.Submit(OrderRequest{
			Symbol: sym,
			Side:   orderbook.Buy,
			Type:   orderbook.FOK,
			Price:  decimal.NewFromInt(105),
			Qty:    available.Add(drawQty(t, "excess")),
		})
		if err != nil {
			t.Fatalf("fok failed: %v", err)
		}
		if res.Status != orderbook.Cancelled || len(res.Trades) != 0 {
			t.Fatalf("infeasible FOK must cancel cleanly, got %v", res.Status)
		}

		after, _ := e.Snapshot(sym, 1<<20)
		if len(after.Asks) != len(before.Asks) {
			t.Fatal("level count changed")
		}
		for i := range after.Asks {
			if !after.Asks[i].Price.Equal(before.Asks[i].Price) ||
				!after.Asks[i].Qty.Equal(before.Asks[i].Qty) {
				t.Fatal("book mutated by a cancelled FOK")
			}
		}
		select {
		case <-tradeSub.Events():
			t.Fatal("trade event from a cancelled FOK")
		case <-bboSub.Events():
			t.Fatal("bbo event from a cancelled FOK")
		case <-depthSub.Events():
			t.Fatal("depth event from a cancelled FOK")
		default:
		}
	})
}

// IOC orders never rest: the book total never grows from an IOC submission.
func TestProperty_IocNeverRests(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e, _ := newTestEngine()

		n := rapid.IntRange(1, 15).Draw(t, "n")
		for i := 0; i < n; i++ {
			if _, err := e.Submit(OrderRequest{
				Symbol: sym,
				Side:   orderbook.Sell,
				Type:   orderbook.Limit,
				Price:  drawPrice(t, "price", 100, 103),
				Qty:    drawQty(t, "qty"),
			}); err != nil {
				t.Fatalf("seed failed: %v", err)
			}
		}

		m := rapid.IntRange(1, 10).Draw(t, "m")
		for i := 0; i < m; i++ {
			before := bookTotal(e, sym)
			res, err := e.Submit(OrderRequest{
				Symbol: sym,
				Side:   orderbook.Buy,
				Type:   orderbook.IOC,
				Price:  drawPrice(t, "iocPrice", 98, 105),
				Qty:    drawQty(t, "iocQty"),
			})
			if err != nil {
				t.Fatalf("ioc failed: %v", err)
			}
			if res.Status == orderbook.Pending {
				t.Fatal("IOC can never be pending")
			}
			if !res.Remaining.IsZero() {
				t.Fatal("IOC never reports a resting remainder")
			}
			if after := bookTotal(e, sym); after.Cmp(before) > 0 {
				t.Fatalf("book grew across an IOC: %s -> %s", before, after)
			}
		}
	})
}

// No depth snapshot ever contains an empty level.
func TestProperty_NoEmptyLevels(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e, _ := newTestEngine()
		n := rapid.IntRange(1, 50).Draw(t, "n")
		var ids []string

		for i := 0; i < n; i++ {
			side := orderbook.Buy
			if rapid.Bool().Draw(t, "sell") {
				side = orderbook.Sell
			}
			otype := orderbook.Limit
			if rapid.Bool().Draw(t, "ioc") {
				otype = orderbook.IOC
			}
			res, err := e.Submit(OrderRequest{
				Symbol: sym,
				Side:   side,
				Type:   otype,
				Price:  drawPrice(t, "price", 95, 105),
				Qty:    drawQty(t, "qty"),
			})
			if err != nil {
				t.Fatalf("submit failed: %v", err)
			}
			ids = append(ids, res.OrderID)

			if rapid.Bool().Draw(t, "cancel") && len(ids) > 0 {
				victim := ids[rapid.IntRange(0, len(ids)-1).Draw(t, "victim")]
				e.Cancel(victim, sym)
			}

			snap, err := e.Snapshot(sym, 1<<20)
			if err != nil {
				t.Fatal(err)
			}
			for _, lvl := range append(snap.Bids, snap.Asks...) {
				if !lvl.Qty.IsPositive() {
					t.Fatalf("empty level %s in snapshot", lvl.Price)
				}
			}
		}
	})
}
