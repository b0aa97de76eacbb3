// Copyright (c) 2026 Kiscz, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package runtimevars distributes live-updatable operator variables to
// subscribers. Variables arrive as a JSON object; each publish replaces the
// whole snapshot, so readers always observe a consistent set.
package runtimevars

import (
	"encoding/json"
	"sync"
)

// Data is one immutable snapshot of runtime variables, keyed by name.
type Data map[string]interface{}

// ParseData decodes a JSON object into a snapshot.
func ParseData(text []byte) (Data, error) {
	var d Data
	if err := json.Unmarshal(text, &d); err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns the variable with the given name.
func (d Data) Get(name string) (interface{}, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d[name]
	return v, ok
}

// Callback observes a snapshot change. The old snapshot is nil on the first
// delivery to a SubscribeAndCall subscriber.
type Callback func(oldVars, newVars Data)

// Store holds the current snapshot and fans publishes out to subscribers.
type Store struct {
	mu      sync.Mutex
	current Data
	subs    map[uint64]Callback
	nextID  uint64
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{subs: make(map[uint64]Callback)}
}

// Current returns the latest snapshot, nil before the first publish.
func (s *Store) Current() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Publish installs a new snapshot and notifies every subscriber. Callbacks
// run outside the store lock; a callback may unsubscribe itself.
func (s *Store) Publish(newVars Data) {
	s.mu.Lock()
	old := s.current
	s.current = newVars
	cbs := make([]Callback, 0, len(s.subs))
	for _, cb := range s.subs {
		cbs = append(cbs, cb)
	}
	s.mu.Unlock()

	for _, cb := range cbs {
		cb(old, newVars)
	}
}

// Handle unregisters a subscription.
type Handle struct {
	store *Store
	id    uint64
	once  sync.Once
}

// Unsubscribe removes the callback. Safe to call more than once.
func (h *Handle) Unsubscribe() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.store.mu.Lock()
		delete(h.store.subs, h.id)
		h.store.mu.Unlock()
	})
}

// Subscribe registers a callback for future publishes.
func (s *Store) Subscribe(cb Callback) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = cb
	return &Handle{store: s, id: id}
}

// SubscribeAndCall registers a callback and immediately delivers the current
// snapshot to it, if one exists.
func (s *Store) SubscribeAndCall(cb Callback) *Handle {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = cb
	current := s.current
	s.mu.Unlock()

	if current != nil {
		cb(nil, current)
	}
	return &Handle{store: s, id: id}
}
