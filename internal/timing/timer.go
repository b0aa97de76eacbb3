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

package timing

import (
	"sync"
	"time"
)

// timerSmoothingFactor governs how quickly the rolling average tracks new
// samples.
const timerSmoothingFactor = 1.0 / 16

// Timer tracks a rolling average, minimum and peak of recorded durations.
// Timers may be shared across workers; all methods are safe for concurrent
// use.
type Timer struct {
	name string

	mu  sync.Mutex
	avg *Smoother
	min time.Duration
	max time.Duration
	n   uint64
}

// NewTimer builds a named timer.
func NewTimer(name string) *Timer {
	return &Timer{
		name: name,
		avg:  NewSmoother(timerSmoothingFactor),
	}
}

// Name returns the timer's registration name.
func (t *Timer) Name() string {
	return t.name
}

// Start returns a token marking the start of a timed section.
func (t *Timer) Start() time.Time {
	return time.Now()
}

// Finish records the duration since start.
func (t *Timer) Finish(start time.Time) {
	t.Record(time.Since(start))
}

// Record folds one duration sample into the rolling stats.
func (t *Timer) Record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.avg.Insert(float64(d))
	if t.n == 0 || d < t.min {
		t.min = d
	}
	if d > t.max {
		t.max = d
	}
	t.n++
}

// Avg returns the smoothed average duration.
func (t *Timer) Avg() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.avg.Value())
}

// Min returns the smallest recorded duration, zero before any sample.
func (t *Timer) Min() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.min
}

// Max returns the largest recorded duration.
func (t *Timer) Max() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.max
}

// Count returns how many samples were recorded.
func (t *Timer) Count() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}
