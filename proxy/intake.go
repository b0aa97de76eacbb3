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
	"errors"
	"time"

	"go.uber.org/atomic"
)

// ErrQueueClosed is returned when submitting to a worker that is shutting
// down.
var ErrQueueClosed = errors.New("proxy: intake queue is closed")

// EntryType discriminates intake-queue entries.
type EntryType int

// Entry types the core produces. Hosts may define their own types above
// EntryTypeHostBase.
const (
	EntryTypeRequest EntryType = iota
	EntryTypeOldConfig
	EntryTypeHostBase EntryType = 100
)

// QueueEntry is one item on a worker's intake queue.
type QueueEntry struct {
	Type EntryType

	// Request is set on EntryTypeRequest entries.
	Request *Request

	// OldConfig is set on EntryTypeOldConfig entries: a retired snapshot
	// whose last router-side reference is dropped on the loop, outside
	// any lock.
	OldConfig *Config

	// Data carries host-defined payloads.
	Data interface{}

	Priority     int
	TimeEnqueued time.Time
}

// intakeQueue feeds parsed requests and operational entries from any
// goroutine into the worker's loop. Entries already accepted when the queue
// closes are still dispatched; the loop drains rather than drops.
type intakeQueue struct {
	proxy    *Proxy
	loop     *EventLoop
	priority int
	closed   atomic.Bool
}

func newIntakeQueue(p *Proxy, loop *EventLoop, priority int) *intakeQueue {
	return &intakeQueue{proxy: p, loop: loop, priority: priority}
}

// Enqueue posts an entry to the worker loop.
func (q *intakeQueue) Enqueue(e QueueEntry) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	e.Priority = q.priority
	e.TimeEnqueued = time.Now()
	if err := q.loop.Post(func() { q.proxy.handleQueueEntry(e) }); err != nil {
		return ErrQueueClosed
	}
	return nil
}

// Close stops intake. Entries already posted still run.
func (q *intakeQueue) Close() {
	q.closed.Store(true)
}
