package orderbook

import "github.com/shopspring/decimal"

// PriceLevel is a FIFO queue of resting orders at a single price.
// TotalQty caches the sum of Remaining over the queue; it is maintained on
// every mutation so depth reads never walk the queue.
type PriceLevel struct {
	Price decimal.Decimal

	head *Order
	tail *Order

	TotalQty   decimal.Decimal
	OrderCount int
}

func (p *PriceLevel) Enqueue(o *Order) {
	if p.head == nil {
		p.head = o
		p.tail = o
	} else {
		p.tail.next = o
		o.prev = p.tail
		p.tail = o
	}
	o.level = p
	p.TotalQty = p.TotalQty.Add(o.Remaining)
	p.OrderCount++
}

func (p *PriceLevel) PopHead() *Order {
	o := p.head
	if o == nil {
		return nil
	}

	p.head = o.next
	if p.head != nil {
		p.head.prev = nil
	} else {
		p.tail = nil
	}

	o.next = nil
	o.prev = nil
	o.level = nil

	p.TotalQty = p.TotalQty.Sub(o.Remaining)
	p.OrderCount--

	return o
}

// Remove unlinks an arbitrary order in O(1) via its intrusive links.
// The order must currently be enqueued at this level.
func (p *PriceLevel) Remove(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}

	o.next = nil
	o.prev = nil
	o.level = nil

	p.TotalQty = p.TotalQty.Sub(o.Remaining)
	p.OrderCount--
}

// DecrementHead reduces the head order's remaining quantity during a partial
// fill, keeping the cached sum in step.
func (p *PriceLevel) DecrementHead(delta decimal.Decimal) {
	p.head.Remaining = p.head.Remaining.Sub(delta)
	p.TotalQty = p.TotalQty.Sub(delta)
}

func (p *PriceLevel) Empty() bool {
	return p.head == nil || !p.TotalQty.IsPositive()
}

// Read-only helper.
func (p *PriceLevel) Head() *Order {
	return p.head
}
