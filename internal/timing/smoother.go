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

// Package timing holds the latency instrumentation helpers used by the
// workers: an exponential smoother and a named round-trip timer.
package timing

import "fmt"

// Smoother is a scalar exponentially-weighted moving average with a fixed
// smoothing factor. The first sample seeds the value directly.
type Smoother struct {
	factor      float64
	value       float64
	seededFirst bool
}

// NewSmoother builds a smoother. The factor must be in [0, 1].
func NewSmoother(factor float64) *Smoother {
	if factor < 0 || factor > 1 {
		panic(fmt.Sprintf("timing: smoothing factor %v out of [0, 1]", factor))
	}
	return &Smoother{factor: factor}
}

// Insert records one sample.
func (s *Smoother) Insert(value float64) {
	if s.seededFirst {
		s.value = s.factor*value + (1-s.factor)*s.value
	} else {
		s.value = value
		s.seededFirst = true
	}
}

// Value returns the current smoothed value.
func (s *Smoother) Value() float64 {
	return s.value
}
