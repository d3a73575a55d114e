package service

import "sync"

// ProgressEvent describes one step of a running pipeline. Events are
// fanned out to websocket subscribers and are safe to drop when a
// subscriber falls behind.
type ProgressEvent struct {
	Type    string `json:"type"`
	Stage   string `json:"stage"`
	Domain  string `json:"domain,omitempty"`
	Message string `json:"message,omitempty"`
	Done    int    `json:"done,omitempty"`
	Total   int    `json:"total,omitempty"`
}

// ProgressBus fans pipeline events out to any number of subscribers.
type ProgressBus struct {
	mu   sync.RWMutex
	subs map[chan ProgressEvent]struct{}
}

func NewProgressBus() *ProgressBus {
	return &ProgressBus{subs: make(map[chan ProgressEvent]struct{})}
}

// Subscribe registers a new listener. The returned channel is buffered;
// slow consumers miss events instead of stalling the pipeline.
func (b *ProgressBus) Subscribe() chan ProgressEvent {
	ch := make(chan ProgressEvent, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the listener and closes its channel.
func (b *ProgressBus) Unsubscribe(ch chan ProgressEvent) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers an event to every subscriber without blocking.
func (b *ProgressBus) Publish(ev ProgressEvent) {
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	b.mu.RUnlock()
}
