/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package session

import "sync"

// Channel fans out session changes to currently connected listeners.
// Delivery is best-effort and at-most-once: a listener that is not
// subscribed at publish time simply misses the event and resynchronizes
// with an explicit Read on its next (re)connect.
type Channel interface {
	Publish(key Key, doc Document)
	Subscribe(key Key, fn func(Document)) (cancel func())
}

// Registry is the in-process Channel: a per-key set of handlers.
type Registry struct {
	mu   sync.Mutex
	subs map[Key]map[int]func(Document)
	next int
}

// NewRegistry returns an empty in-process channel.
func NewRegistry() *Registry {
	return &Registry{
		subs: make(map[Key]map[int]func(Document)),
	}
}

// Publish delivers doc to every handler currently subscribed to key.
func (r *Registry) Publish(key Key, doc Document) {
	r.mu.Lock()
	handlers := make([]func(Document), 0, len(r.subs[key]))
	for _, fn := range r.subs[key] {
		handlers = append(handlers, fn)
	}
	r.mu.Unlock()

	for _, fn := range handlers {
		fn(doc.clone())
	}
}

// Subscribe registers fn for key until the returned cancel is called.
func (r *Registry) Subscribe(key Key, fn func(Document)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.next
	r.next++

	if r.subs[key] == nil {
		r.subs[key] = make(map[int]func(Document))
	}
	r.subs[key][id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		delete(r.subs[key], id)
		if len(r.subs[key]) == 0 {
			delete(r.subs, key)
		}
	}
}
