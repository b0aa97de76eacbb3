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

// Package awriter runs a dedicated consumer for entries that must not block
// the worker event loop, such as async-log writes and stats snapshots.
// Entries signal completion back to their producer, which marshals any
// request-state mutation onto the owning loop itself.
package awriter

import (
	"errors"
	"os"

	"go.uber.org/zap"

	"github.com/kiscz/mcrouter/internal/lifecycle"
	"github.com/kiscz/mcrouter/internal/taskqueue"
)

// ErrNotRunning is returned by Submit before Start or after Stop.
var ErrNotRunning = errors.New("awriter: writer is not running")

// ErrQueueFull is returned by Submit when a bounded writer is saturated.
var ErrQueueFull = errors.New("awriter: queue is full")

// Entry is one unit of deferred work.
type Entry interface {
	// Perform does the blocking work on the writer goroutine.
	Perform() error

	// Completed observes Perform's outcome, still on the writer goroutine.
	// Implementations that touch request state must repost to the owning
	// event loop.
	Completed(err error)
}

// Writer consumes entries on its own goroutine. A queueCapacity of zero
// means unbounded.
type Writer struct {
	name   string
	logger *zap.Logger
	queue  *taskqueue.Queue[Entry]
	once   *lifecycle.Once
	done   chan struct{}

	// spawnPid guards the join at Stop: after a fork the child must not
	// wait on a goroutine it does not own.
	spawnPid int
}

// New builds a stopped writer.
func New(name string, queueCapacity int, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		name:   name,
		logger: logger.With(zap.String("writer", name)),
		queue:  taskqueue.New[Entry](queueCapacity),
		once:   lifecycle.NewOnce(),
		done:   make(chan struct{}),
	}
}

// Start spawns the consumer goroutine.
func (w *Writer) Start() error {
	return w.once.Start(func() error {
		w.spawnPid = os.Getpid()
		go w.run()
		w.logger.Info("Started async writer.")
		return nil
	})
}

// IsRunning reports whether the writer consumes entries.
func (w *Writer) IsRunning() bool {
	return w.once.IsRunning()
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		e, ok := w.queue.Get()
		if !ok {
			return
		}
		e.Completed(e.Perform())
	}
}

// Submit queues an entry for the consumer.
func (w *Writer) Submit(e Entry) error {
	if !w.once.IsRunning() {
		return ErrNotRunning
	}
	switch err := w.queue.Put(e); err {
	case nil:
		return nil
	case taskqueue.ErrFull:
		return ErrQueueFull
	default:
		return ErrNotRunning
	}
}

// Stop closes the queue and waits for the consumer to drain it. The wait is
// skipped when the current process did not spawn the consumer.
func (w *Writer) Stop() error {
	return w.once.Stop(func() error {
		w.queue.Close()
		if os.Getpid() == w.spawnPid {
			<-w.done
		}
		w.logger.Info("Stopped async writer.")
		return nil
	})
}

// QueueLen returns the number of pending entries.
func (w *Writer) QueueLen() int {
	return w.queue.Len()
}
