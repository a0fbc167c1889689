// Package pool provides a typed object pool for the buffers that travel
// between the source, the codecs and the muxer.
package pool

import (
	"sync"

	"go.uber.org/atomic"
)

type Pool[T any] struct {
	pool      sync.Pool
	resetFunc func(*T)

	Allocated atomic.Uint64
	Returned  atomic.Uint64
}

func NewPool[T any](
	allocFunc func() *T,
	resetFunc func(*T),
) *Pool[T] {
	p := &Pool[T]{
		resetFunc: resetFunc,
	}
	p.pool.New = func() any {
		p.Allocated.Inc()
		return allocFunc()
	}
	return p
}

func (p *Pool[T]) Get() *T {
	return p.pool.Get().(*T)
}

func (p *Pool[T]) Put(items ...*T) {
	for _, item := range items {
		if item == nil {
			continue
		}
		if p.resetFunc != nil {
			p.resetFunc(item)
		}
		p.Returned.Inc()
		p.pool.Put(item)
	}
}
