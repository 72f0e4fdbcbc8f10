package sio

import (
	"reflect"

	"github.com/siocore/sio/internal/sync"
)

// eventHandlerStore keeps reflection handlers keyed by event name.
type eventHandlerStore struct {
	mu         sync.Mutex
	events     map[string][]*eventHandler
	eventsOnce map[string][]*eventHandler
}

func newEventHandlerStore() *eventHandlerStore {
	return &eventHandlerStore{
		events:     make(map[string][]*eventHandler),
		eventsOnce: make(map[string][]*eventHandler),
	}
}

func (e *eventHandlerStore) on(eventName string, handler *eventHandler) {
	e.mu.Lock()
	e.events[eventName] = append(e.events[eventName], handler)
	e.mu.Unlock()
}

func (e *eventHandlerStore) once(eventName string, handler *eventHandler) {
	e.mu.Lock()
	e.eventsOnce[eventName] = append(e.eventsOnce[eventName], handler)
	e.mu.Unlock()
}

func (e *eventHandlerStore) off(eventName string, handler ...any) {
	if eventName == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(handler) == 0 {
		delete(e.events, eventName)
		delete(e.eventsOnce, eventName)
		return
	}

	remove := func(slice []*eventHandler, s int) []*eventHandler {
		return append(slice[:s], slice[s+1:]...)
	}

	for _, m := range []map[string][]*eventHandler{e.events, e.eventsOnce} {
		handlers, ok := m[eventName]
		if !ok {
			continue
		}
		for i := len(handlers) - 1; i >= 0; i-- {
			for _, h := range handler {
				// Funcs are not comparable; match by identity.
				if handlers[i].rv.Pointer() == reflect.ValueOf(h).Pointer() {
					handlers = remove(handlers, i)
					break
				}
			}
		}
		m[eventName] = handlers
	}
}

func (e *eventHandlerStore) offAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for k := range e.events {
		delete(e.events, k)
	}
	for k := range e.eventsOnce {
		delete(e.eventsOnce, k)
	}
}

// getAll drains the once-handlers of eventName.
func (e *eventHandlerStore) getAll(eventName string) (handlers []*eventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.events[eventName]
	hOnce := e.eventsOnce[eventName]
	delete(e.eventsOnce, eventName)

	handlers = make([]*eventHandler, 0, len(h)+len(hOnce))
	handlers = append(handlers, h...)
	handlers = append(handlers, hOnce...)
	return
}
