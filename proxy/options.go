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
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

const (
	defaultFiberPoolSize    = 1024
	defaultStatsQueueLength = 1024
)

// Options are the immutable per-worker settings.
type Options struct {
	// DefaultRoute is the routing prefix requests default to, of the form
	// /region/cluster/.
	DefaultRoute string

	// MaxInflightRequests bounds concurrently processed requests per
	// worker. Zero disables admission control.
	MaxInflightRequests int

	// FiberPoolSize caps the goroutines of the routing task pool.
	FiberPoolSize int

	// Sync defers reply delivery to refcount teardown instead of firing
	// the reply callback from continueSendReply.
	Sync bool

	// DisableDynamicStats skips the round-trip timers.
	DisableDynamicStats bool

	// AsynclogDisable skips starting the generic async writer.
	AsynclogDisable bool

	// StatsAsyncQueueLength bounds the stats writer queue.
	StatsAsyncQueueLength int

	// StatsLoggingInterval is the cadence of the stats logger on workers
	// that log stats. Zero disables it.
	StatsLoggingInterval time.Duration

	// ResetInactiveConnectionInterval reclaims idle upstream connections
	// on this cadence. Zero disables the timer.
	ResetInactiveConnectionInterval time.Duration

	// ConstantlyReloadConfigs suppresses the per-reconfiguration summary
	// log line.
	ConstantlyReloadConfigs bool

	// QueuePriority is recorded on the intake queue for introspection.
	QueuePriority int

	// StatsLogSink receives serialized stats snapshots from the stats
	// writer. Nil discards them.
	StatsLogSink func([]byte) error

	// OnAttached runs at the end of event-loop attachment. The router uses
	// it as its startup latch.
	OnAttached func()

	// OnQueueEntry receives intake-queue entries of types the core does
	// not know, letting the host add operational entry types.
	OnQueueEntry func(QueueEntry)

	Logger *zap.Logger
	Scope  tally.Scope
	Tracer opentracing.Tracer
}

func (o Options) withDefaults() Options {
	if o.FiberPoolSize <= 0 {
		o.FiberPoolSize = defaultFiberPoolSize
	}
	if o.StatsAsyncQueueLength <= 0 {
		o.StatsAsyncQueueLength = defaultStatsQueueLength
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Scope == nil {
		o.Scope = tally.NoopScope
	}
	if o.Tracer == nil {
		o.Tracer = opentracing.NoopTracer{}
	}
	return o
}
