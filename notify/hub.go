// Package notify provides a small named-event hub.
//
// A [Hub] is composed into every rosbridge endpoint (connection, topic, param)
// so each can register listeners, fire one-shot listeners and emit events
// without sharing a type hierarchy.
package notify

import "sync"

// Listener receives the payload passed to [Hub.Emit].
type Listener func(payload any)

// ListenerID identifies a registered listener. IDs are never reused by a Hub.
type ListenerID uint64

type entry struct {
	id   ListenerID
	fn   Listener
	once bool
}

// Hub is a named-event publish/subscribe facility.
// The zero value is ready to use. A Hub is safe for concurrent use.
type Hub struct {
	mu        sync.Mutex
	nextID    ListenerID
	listeners map[string][]entry
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{}
}

// On registers fn for every emission of name.
func (h *Hub) On(name string, fn Listener) ListenerID {
	return h.add(name, fn, false)
}

// Once registers fn for the next emission of name only.
func (h *Hub) Once(name string, fn Listener) ListenerID {
	return h.add(name, fn, true)
}

func (h *Hub) add(name string, fn Listener, once bool) ListenerID {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listeners == nil {
		h.listeners = make(map[string][]entry)
	}
	h.nextID++
	id := h.nextID
	h.listeners[name] = append(h.listeners[name], entry{id: id, fn: fn, once: once})
	return id
}

// Off removes a single listener. It reports whether the listener was registered.
func (h *Hub) Off(name string, id ListenerID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.listeners[name]
	for i, e := range list {
		if e.id == id {
			h.setLocked(name, append(list[:i:i], list[i+1:]...))
			return true
		}
	}
	return false
}

// Has reports whether the listener id is still registered under name.
func (h *Hub) Has(name string, id ListenerID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range h.listeners[name] {
		if e.id == id {
			return true
		}
	}
	return false
}

// Emit calls every listener registered under name, in registration order,
// and returns how many were called. One-shot listeners are removed before
// any listener runs, so a listener may safely re-register or emit.
func (h *Hub) Emit(name string, payload any) int {
	h.mu.Lock()
	list := h.listeners[name]
	if len(list) == 0 {
		h.mu.Unlock()
		return 0
	}
	snapshot := make([]entry, len(list))
	copy(snapshot, list)

	kept := list[:0:0]
	for _, e := range list {
		if !e.once {
			kept = append(kept, e)
		}
	}
	h.setLocked(name, kept)
	h.mu.Unlock()

	for _, e := range snapshot {
		e.fn(payload)
	}
	return len(snapshot)
}

// RemoveAllListeners drops every listener registered under the given names.
// With no names, every listener on the hub is dropped.
func (h *Hub) RemoveAllListeners(names ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(names) == 0 {
		h.listeners = nil
		return
	}
	for _, name := range names {
		delete(h.listeners, name)
	}
}

// ListenerCount returns the number of listeners registered under name.
func (h *Hub) ListenerCount(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[name])
}

func (h *Hub) setLocked(name string, list []entry) {
	if len(list) == 0 {
		delete(h.listeners, name)
		return
	}
	h.listeners[name] = list
}
