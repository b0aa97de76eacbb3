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

package awriter

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntry struct {
	mu        sync.Mutex
	performed bool
	err       error
	completed chan error
}

func newFakeEntry(err error) *fakeEntry {
	return &fakeEntry{err: err, completed: make(chan error, 1)}
}

func (e *fakeEntry) Perform() error {
	e.mu.Lock()
	e.performed = true
	e.mu.Unlock()
	return e.err
}

func (e *fakeEntry) Completed(err error) {
	e.completed <- err
}

func TestSubmitPerformsAndCompletes(t *testing.T) {
	w := New("test", 0, nil)
	require.NoError(t, w.Start())
	defer func() { require.NoError(t, w.Stop()) }()

	ok := newFakeEntry(nil)
	require.NoError(t, w.Submit(ok))
	assert.NoError(t, <-ok.completed)

	boom := errors.New("disk full")
	failing := newFakeEntry(boom)
	require.NoError(t, w.Submit(failing))
	assert.ErrorIs(t, <-failing.completed, boom)
}

func TestSubmitBeforeStart(t *testing.T) {
	w := New("test", 0, nil)
	assert.ErrorIs(t, w.Submit(newFakeEntry(nil)), ErrNotRunning)
}

func TestStopDrainsQueuedEntries(t *testing.T) {
	w := New("test", 0, nil)
	require.NoError(t, w.Start())

	entries := make([]*fakeEntry, 10)
	for i := range entries {
		entries[i] = newFakeEntry(nil)
		require.NoError(t, w.Submit(entries[i]))
	}
	require.NoError(t, w.Stop())

	for _, e := range entries {
		select {
		case <-e.completed:
		default:
			t.Fatal("entry was dropped at Stop instead of drained")
		}
	}

	assert.ErrorIs(t, w.Submit(newFakeEntry(nil)), ErrNotRunning)
}

func TestBoundedQueueRejectsWhenFull(t *testing.T) {
	w := New("stats", 1, nil)
	require.NoError(t, w.Start())
	defer func() { require.NoError(t, w.Stop()) }()

	// A blocked first entry keeps the consumer busy so the queue fills.
	gate := make(chan struct{})
	blocked := &gatedEntry{gate: gate, started: make(chan struct{}), completed: make(chan struct{})}
	require.NoError(t, w.Submit(blocked))
	<-blocked.started

	require.NoError(t, w.Submit(newFakeEntry(nil)))
	err := w.Submit(newFakeEntry(nil))
	assert.ErrorIs(t, err, ErrQueueFull)

	close(gate)
	<-blocked.completed
}

type gatedEntry struct {
	gate      chan struct{}
	started   chan struct{}
	completed chan struct{}
	once      sync.Once
}

func (e *gatedEntry) Perform() error {
	e.once.Do(func() { close(e.started) })
	<-e.gate
	return nil
}

func (e *gatedEntry) Completed(error) {
	close(e.completed)
}

func TestStopTwice(t *testing.T) {
	w := New("test", 0, nil)
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
