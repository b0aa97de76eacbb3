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

// Package lifecycle implements at-most-once start and stop semantics for
// long-lived components. The observable state only moves forward.
package lifecycle

import (
	"errors"

	"go.uber.org/atomic"
)

// State is a lifecycle phase.
type State int32

// Lifecycle phases, in order.
const (
	Idle State = iota
	Running
	Stopped
)

// ErrStoppedBeforeStart is returned by Start when Stop won the race.
var ErrStoppedBeforeStart = errors.New("lifecycle: stopped before starting")

// Once drives a component through Idle -> Running -> Stopped exactly once.
// The start and stop functions run at most one time each; repeat callers get
// the error recorded by the winning call.
type Once struct {
	state    atomic.Int32
	startErr atomic.Error
	stopErr  atomic.Error
}

// NewOnce returns a lifecycle controller in the Idle state.
func NewOnce() *Once {
	return &Once{}
}

// State returns the current phase.
func (o *Once) State() State {
	return State(o.state.Load())
}

// IsRunning reports whether the component started and has not stopped.
func (o *Once) IsRunning() bool {
	return o.State() == Running
}

// Start runs f if the component is Idle. Subsequent calls return the first
// call's error without running f again.
func (o *Once) Start(f func() error) error {
	if o.state.CompareAndSwap(int32(Idle), int32(Running)) {
		var err error
		if f != nil {
			err = f()
		}
		o.startErr.Store(err)
		return err
	}
	if o.State() == Stopped {
		return ErrStoppedBeforeStart
	}
	return o.startErr.Load()
}

// Stop runs f on the first call, from either the Idle or Running state.
// Stopping from Idle skips f and pre-empts any later Start.
func (o *Once) Stop(f func() error) error {
	if o.state.CompareAndSwap(int32(Idle), int32(Stopped)) {
		return nil
	}
	if o.state.CompareAndSwap(int32(Running), int32(Stopped)) {
		var err error
		if f != nil {
			err = f()
		}
		o.stopErr.Store(err)
		return err
	}
	return o.stopErr.Load()
}
