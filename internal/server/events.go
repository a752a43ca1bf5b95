package server

import (
	"sync"

	"github.com/leapstack-labs/mfbot-download/pkg/core"
)

// events fans finished downloads out to subscribed listeners.
type events struct {
	mu        sync.RWMutex
	listeners map[chan *core.Download]struct{}
}

func newEvents() *events {
	return &events{listeners: make(map[chan *core.Download]struct{})}
}

// Subscribe returns a channel that receives every published download.
// Callers must Unsubscribe.
func (e *events) Subscribe() chan *core.Download {
	ch := make(chan *core.Download, 8)
	e.mu.Lock()
	e.listeners[ch] = struct{}{}
	e.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a listener channel.
func (e *events) Unsubscribe(ch chan *core.Download) {
	e.mu.Lock()
	delete(e.listeners, ch)
	e.mu.Unlock()
	close(ch)
}

// Publish never blocks: a listener whose buffer is full misses the event.
func (e *events) Publish(d *core.Download) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for ch := range e.listeners {
		select {
		case ch <- d:
		default:
		}
	}
}

func (e *events) count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}
