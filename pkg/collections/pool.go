package collections

import (
	"sync"
)

// ============================================================================
// Pool - typed sync.Pool with a reset hook
// ============================================================================

// Pool is a typed wrapper around sync.Pool. Values are reset before they are
// returned to the pool, so Get always yields a value in its initial state.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

// NewPool creates a pool. newFn builds a fresh value; reset, if not nil,
// restores a used value to its initial state on Put.
func NewPool[T any](newFn func() T, reset func(T)) *Pool[T] {
	return &Pool[T]{
		reset: reset,
		pool: sync.Pool{
			New: func() interface{} {
				return newFn()
			},
		},
	}
}

// Get takes a value from the pool, allocating one when the pool is empty.
func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put resets v and returns it to the pool.
func (p *Pool[T]) Put(v T) {
	if p.reset != nil {
		p.reset(v)
	}
	p.pool.Put(v)
}
