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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmootherFirstSampleSeeds(t *testing.T) {
	s := NewSmoother(0.5)
	assert.Equal(t, 0.0, s.Value())
	s.Insert(100)
	assert.Equal(t, 100.0, s.Value())
}

func TestSmootherWeightsNewSamples(t *testing.T) {
	s := NewSmoother(0.25)
	s.Insert(100)
	s.Insert(200)
	// 0.25*200 + 0.75*100
	assert.InDelta(t, 125.0, s.Value(), 1e-9)
	s.Insert(200)
	assert.InDelta(t, 143.75, s.Value(), 1e-9)
}

func TestSmootherFactorEdges(t *testing.T) {
	zero := NewSmoother(0)
	zero.Insert(10)
	zero.Insert(999)
	assert.Equal(t, 10.0, zero.Value(), "factor 0 pins the first sample")

	one := NewSmoother(1)
	one.Insert(10)
	one.Insert(999)
	assert.Equal(t, 999.0, one.Value(), "factor 1 tracks the latest sample")
}

func TestSmootherRejectsBadFactor(t *testing.T) {
	assert.Panics(t, func() { NewSmoother(-0.1) })
	assert.Panics(t, func() { NewSmoother(1.1) })
}

func TestTimerMinMaxAvg(t *testing.T) {
	tm := NewTimer("rtt")
	require.Equal(t, "rtt", tm.Name())

	tm.Record(10 * time.Millisecond)
	tm.Record(30 * time.Millisecond)
	tm.Record(20 * time.Millisecond)

	assert.Equal(t, 10*time.Millisecond, tm.Min())
	assert.Equal(t, 30*time.Millisecond, tm.Max())
	assert.Equal(t, uint64(3), tm.Count())
	assert.Greater(t, tm.Avg(), time.Duration(0))
}

func TestTimerStartFinish(t *testing.T) {
	tm := NewTimer("section")
	start := tm.Start()
	time.Sleep(time.Millisecond)
	tm.Finish(start)
	assert.Equal(t, uint64(1), tm.Count())
	assert.GreaterOrEqual(t, tm.Max(), time.Millisecond)
}
