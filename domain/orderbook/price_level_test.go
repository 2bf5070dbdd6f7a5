package orderbook

import "testing"

func level(price string) *PriceLevel {
	return &PriceLevel{Price: d(price)}
}

func restingOrder(id, qty string) *Order {
	return &Order{ID: id, Qty: d(qty), Remaining: d(qty), Status: Pending}
}

func TestEnqueuePreservesFIFO(t *testing.T) {
	lvl := level("100")
	a := restingOrder("a", "1")
	b := restingOrder("b", "2")
	c := restingOrder("c", "3")
	lvl.Enqueue(a)
	lvl.Enqueue(b)
	lvl.Enqueue(c)

	if lvl.OrderCount != 3 {
		t.Fatalf("expected 3 orders, got %d", lvl.OrderCount)
	}
	if !lvl.TotalQty.Equal(d("6")) {
		t.Errorf("expected total 6, got %s", lvl.TotalQty)
	}

	for _, want := range []*Order{a, b, c} {
		if got := lvl.PopHead(); got != want {
			t.Fatalf("expected %s at head, got %v", want.ID, got)
		}
	}
	if !lvl.Empty() {
		t.Error("level should be empty after popping all orders")
	}
}

func TestRemoveMiddleOrder(t *testing.T) {
	lvl := level("100")
	a := restingOrder("a", "1")
	b := restingOrder("b", "2")
	c := restingOrder("c", "3")
	lvl.Enqueue(a)
	lvl.Enqueue(b)
	lvl.Enqueue(c)

	lvl.Remove(b)
	if !lvl.TotalQty.Equal(d("4")) {
		t.Errorf("expected total 4, got %s", lvl.TotalQty)
	}
	if b.Resting() {
		t.Error("removed order should not report resting")
	}
	if got := lvl.PopHead(); got != a {
		t.Fatalf("expected a, got %v", got)
	}
	if got := lvl.PopHead(); got != c {
		t.Fatalf("expected c after removing b, got %v", got)
	}
}

func TestRemoveTailAndHead(t *testing.T) {
	lvl := level("100")
	a := restingOrder("a", "1")
	b := restingOrder("b", "2")
	lvl.Enqueue(a)
	lvl.Enqueue(b)

	lvl.Remove(b)
	if lvl.Head() != a || lvl.tail != a {
		t.Error("tail removal should leave a as head and tail")
	}
	lvl.Remove(a)
	if !lvl.Empty() {
		t.Error("level should be empty")
	}
}

func TestDecrementHead(t *testing.T) {
	lvl := level("100")
	a := restingOrder("a", "5")
	lvl.Enqueue(a)

	lvl.DecrementHead(d("2"))
	if !a.Remaining.Equal(d("3")) {
		t.Errorf("expected remaining 3, got %s", a.Remaining)
	}
	if !lvl.TotalQty.Equal(d("3")) {
		t.Errorf("cached sum out of step: %s", lvl.TotalQty)
	}

	lvl.DecrementHead(d("3"))
	if !lvl.TotalQty.IsZero() {
		t.Errorf("expected zero total, got %s", lvl.TotalQty)
	}
	if !lvl.Empty() {
		t.Error("level with zero cached sum must report empty")
	}
}
