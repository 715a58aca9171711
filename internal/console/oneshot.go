package console

import "sync/atomic"

// oneshot is a single-use completion: fulfilled exactly once by the worker,
// awaited exactly once by the requesting caller. Double use is a programming
// error and panics.
type oneshot[T any] struct {
	ch        chan T
	fulfilled atomic.Bool
	awaited   atomic.Bool
}

func newOneshot[T any]() *oneshot[T] {
	return &oneshot[T]{ch: make(chan T, 1)}
}

func (o *oneshot[T]) fulfill(v T) {
	if !o.fulfilled.CompareAndSwap(false, true) {
		panic("console: completion fulfilled twice")
	}
	o.ch <- v
}

func (o *oneshot[T]) wait() T {
	if !o.awaited.CompareAndSwap(false, true) {
		panic("console: completion awaited twice")
	}
	return <-o.ch
}
