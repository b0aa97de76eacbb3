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

	"github.com/kiscz/mcrouter/internal/taskqueue"
)

// ErrLoopClosed is returned by Post after Close.
var ErrLoopClosed = errors.New("proxy: event loop is closed")

// EventLoop serializes all mutation of a worker's request state onto one
// goroutine. Tasks posted from any goroutine run in FIFO order on whichever
// goroutine calls Run.
type EventLoop struct {
	tasks *taskqueue.Queue[func()]
	done  chan struct{}
}

// NewEventLoop builds a loop. The owner must call Run on a dedicated
// goroutine.
func NewEventLoop() *EventLoop {
	return &EventLoop{
		tasks: taskqueue.New[func()](0),
		done:  make(chan struct{}),
	}
}

// Run consumes tasks until Close, then drains whatever is still queued.
func (l *EventLoop) Run() {
	defer close(l.done)
	for {
		task, ok := l.tasks.Get()
		if !ok {
			return
		}
		task()
	}
}

// Post schedules f on the loop goroutine. Safe from any goroutine.
func (l *EventLoop) Post(f func()) error {
	if err := l.tasks.Put(f); err != nil {
		return ErrLoopClosed
	}
	return nil
}

// Close stops intake and waits for the loop to drain. Must not be called
// from the loop goroutine itself.
func (l *EventLoop) Close() {
	l.tasks.Close()
	<-l.done
}
