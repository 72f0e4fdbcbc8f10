package sio

import (
	"reflect"

	"github.com/siocore/sio/internal/sync"
)

// handlerStore keeps typed handler funcs for one reserved event.
type handlerStore[T any] struct {
	mu        sync.Mutex
	funcs     []T
	funcsOnce []T
}

func newHandlerStore[T any]() *handlerStore[T] {
	return new(handlerStore[T])
}

func (e *handlerStore[T]) on(handler T) {
	e.mu.Lock()
	e.funcs = append(e.funcs, handler)
	e.mu.Unlock()
}

func (e *handlerStore[T]) once(handler T) {
	e.mu.Lock()
	e.funcsOnce = append(e.funcsOnce, handler)
	e.mu.Unlock()
}

// off removes the given handlers, matched by function identity. With no
// arguments it removes everything.
func (e *handlerStore[T]) off(handler ...T) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(handler) == 0 {
		e.funcs = nil
		e.funcsOnce = nil
		return
	}

	ptrs := make([]uintptr, len(handler))
	for i := range handler {
		ptrs[i] = reflect.ValueOf(handler[i]).Pointer()
	}

	matches := func(h T) bool {
		p := reflect.ValueOf(h).Pointer()
		for _, ptr := range ptrs {
			if p == ptr {
				return true
			}
		}
		return false
	}

	remove := func(slice []T) []T {
		for i := len(slice) - 1; i >= 0; i-- {
			if matches(slice[i]) {
				slice = append(slice[:i], slice[i+1:]...)
			}
		}
		return slice
	}

	e.funcs = remove(e.funcs)
	e.funcsOnce = remove(e.funcsOnce)
}

func (e *handlerStore[T]) offAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.funcs = nil
	e.funcsOnce = nil
}

// getAll drains the once-handlers.
func (e *handlerStore[T]) getAll() (handlers []T) {
	e.mu.Lock()
	defer e.mu.Unlock()

	handlers = make([]T, 0, len(e.funcs)+len(e.funcsOnce))
	handlers = append(handlers, e.funcs...)
	handlers = append(handlers, e.funcsOnce...)
	e.funcsOnce = nil
	return
}

// peekAll returns every handler without draining the once-handlers.
func (e *handlerStore[T]) peekAll() (handlers []T) {
	e.mu.Lock()
	defer e.mu.Unlock()

	handlers = make([]T, 0, len(e.funcs)+len(e.funcsOnce))
	handlers = append(handlers, e.funcs...)
	handlers = append(handlers, e.funcsOnce...)
	return
}
