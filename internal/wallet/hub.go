package wallet

import "sync"

// EventHub fans provider events out to subscribers. Provider implementations
// embed it to satisfy the Subscribe half of InjectedProvider.
type EventHub struct {
	mu       sync.Mutex
	next     uint64
	handlers map[string]map[uint64]func(ProviderEvent)
}

// Subscribe registers handler for event.
func (h *EventHub) Subscribe(event string, handler func(ProviderEvent)) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handlers == nil {
		h.handlers = make(map[string]map[uint64]func(ProviderEvent))
	}
	if h.handlers[event] == nil {
		h.handlers[event] = make(map[uint64]func(ProviderEvent))
	}
	h.next++
	id := h.next
	h.handlers[event][id] = handler

	var once sync.Once
	return SubscriptionFunc(func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.handlers[event], id)
		})
	})
}

// Publish delivers ev to every subscriber of ev.Name on the caller's
// goroutine.
func (h *EventHub) Publish(ev ProviderEvent) {
	h.mu.Lock()
	targets := make([]func(ProviderEvent), 0, len(h.handlers[ev.Name]))
	for _, fn := range h.handlers[ev.Name] {
		targets = append(targets, fn)
	}
	h.mu.Unlock()

	for _, fn := range targets {
		fn(ev)
	}
}

// SubscriberCount reports how many handlers listen for event.
func (h *EventHub) SubscriberCount(event string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers[event])
}
