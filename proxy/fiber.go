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
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kiscz/mcrouter/api/mc"
)

// fiberRunner executes routing tasks off the worker loop. A task may block
// awaiting upstream replies; its result and teardown are marshaled back to
// the loop, where all request-state mutation happens.
type fiberRunner struct {
	pool   *ants.Pool
	loop   *EventLoop
	logger *zap.Logger
}

func newFiberRunner(size int, loop *EventLoop, logger *zap.Logger) (*fiberRunner, error) {
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	return &fiberRunner{pool: pool, loop: loop, logger: logger}, nil
}

// addTaskFinally runs task on a pool goroutine, then posts finally and
// cleanup back to the loop. The reply the task produced is consumed on the
// loop; cleanup runs there too, after finally, so that heavy teardown
// (stats finalization, retiring a stale snapshot) never runs on the task
// goroutine.
func (f *fiberRunner) addTaskFinally(
	task func() *mc.Message,
	finally func(*mc.Message),
	cleanup func(),
) {
	run := func() {
		result := task()
		if err := f.loop.Post(func() {
			defer cleanup()
			finally(result)
		}); err != nil {
			// The loop is gone; teardown must still happen.
			defer cleanup()
			finally(result)
		}
	}
	if err := f.pool.Submit(run); err != nil {
		f.logger.Error("Could not submit routing task; running inline.", zap.Error(err))
		run()
	}
}

func (f *fiberRunner) close() {
	f.pool.Release()
}
