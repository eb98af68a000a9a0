package platform

import (
	"context"
	"sync"

	"github.com/haasonsaas/botkit/pkg/models"
)

// Hub fans transport callbacks out to subscribers. Adapters embed it to
// implement the subscription half of Transport.
type Hub struct {
	mu          sync.RWMutex
	nextID      int
	events      map[models.EventKind]map[int]EventHandler
	errs        map[int]func(error)
	disconnects map[int]func(error)
}

func (h *Hub) init() {
	if h.events == nil {
		h.events = make(map[models.EventKind]map[int]EventHandler)
		h.errs = make(map[int]func(error))
		h.disconnects = make(map[int]func(error))
	}
}

// OnEvent implements Transport.
func (h *Hub) OnEvent(kind models.EventKind, fn EventHandler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.init()
	h.nextID++
	id := h.nextID
	if h.events[kind] == nil {
		h.events[kind] = make(map[int]EventHandler)
	}
	h.events[kind][id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.events[kind], id)
	}
}

// OnError implements Transport.
func (h *Hub) OnError(fn func(error)) func() {
	return h.add(func() map[int]func(error) { return h.errs }, fn)
}

// OnDisconnect implements Transport.
func (h *Hub) OnDisconnect(fn func(error)) func() {
	return h.add(func() map[int]func(error) { return h.disconnects }, fn)
}

func (h *Hub) add(set func() map[int]func(error), fn func(error)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.init()
	h.nextID++
	id := h.nextID
	set()[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(set(), id)
	}
}

// Publish delivers ev to the subscribers of its kind on the calling
// goroutine.
func (h *Hub) Publish(ctx context.Context, ev *models.Event) {
	h.mu.RLock()
	subs := make([]EventHandler, 0, len(h.events[ev.Kind]))
	for _, fn := range h.events[ev.Kind] {
		subs = append(subs, fn)
	}
	h.mu.RUnlock()
	for _, fn := range subs {
		fn(ctx, ev)
	}
}

// PublishError notifies error subscribers.
func (h *Hub) PublishError(err error) {
	h.notify(func() map[int]func(error) { return h.errs }, err)
}

// PublishDisconnect notifies disconnect subscribers.
func (h *Hub) PublishDisconnect(err error) {
	h.notify(func() map[int]func(error) { return h.disconnects }, err)
}

func (h *Hub) notify(set func() map[int]func(error), err error) {
	h.mu.RLock()
	m := set()
	subs := make([]func(error), 0, len(m))
	for _, fn := range m {
		subs = append(subs, fn)
	}
	h.mu.RUnlock()
	for _, fn := range subs {
		fn(err)
	}
}

// Len returns the number of live event subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.events {
		n += len(subs)
	}
	return n
}
