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

package proxy

import (
	"sync"
	"time"
)

// DestinationMap tracks the worker's upstream connections. The transport
// I/O itself is external; the map only carries reuse bookkeeping so a
// reconfiguration can keep live connections and reclaim the rest.
type DestinationMap struct {
	mu    sync.Mutex
	dests map[string]*destination
}

type destination struct {
	name     string
	used     bool
	lastUsed time.Time
}

func newDestinationMap() *DestinationMap {
	return &DestinationMap{dests: make(map[string]*destination)}
}

// Retain records a destination as used by the current configuration,
// creating it if needed.
func (m *DestinationMap) Retain(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dests[name]
	if !ok {
		d = &destination{name: name}
		m.dests[name] = d
	}
	d.used = true
	d.lastUsed = time.Now()
}

// MarkAllAsUnused flags every destination before a reconfiguration.
// Destinations the new config retains survive; the rest are reclaimed by
// RemoveUnused.
func (m *DestinationMap) MarkAllAsUnused() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.dests {
		d.used = false
	}
}

// RemoveUnused drops destinations no configuration retained and returns how
// many were reclaimed.
func (m *DestinationMap) RemoveUnused() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for name, d := range m.dests {
		if !d.used {
			delete(m.dests, name)
			removed++
		}
	}
	return removed
}

// ResetInactive drops destinations idle longer than the given interval and
// returns how many were reclaimed.
func (m *DestinationMap) ResetInactive(olderThan time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for name, d := range m.dests {
		if d.lastUsed.Before(cutoff) {
			delete(m.dests, name)
			removed++
		}
	}
	return removed
}

// Reset drops everything. Used at worker teardown.
func (m *DestinationMap) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dests = make(map[string]*destination)
}

// Len returns the number of tracked destinations.
func (m *DestinationMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dests)
}
