// Package memory provides the typed object pool the engine allocates orders
// from. Market, IOC, and FOK orders live only for the span of one submission;
// recycling them keeps the match path free of steady-state GC churn.
package memory

import "sync"

// Resettable is implemented by pooled objects that must be zeroed before
// reuse.
type Resettable interface {
	Reset()
}

// Pool is a typed wrapper over sync.Pool.
type Pool[T any] struct {
	p *sync.Pool
}

func NewPool[T any](ctor func() *T) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
	}
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

// Put returns an object to the pool, resetting it first when it knows how.
func (p *Pool[T]) Put(v *T) {
	if r, ok := any(v).(Resettable); ok {
		r.Reset()
	}
	p.p.Put(v)
}
