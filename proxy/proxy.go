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

// Package proxy implements the per-worker engine of the routing proxy: the
// request lifecycle from intake through admission, routing-tree dispatch and
// reply delivery, the atomically swappable config snapshot, and the worker's
// stats surface.
//
// Each worker is single-threaded: an event loop goroutine owns every piece
// of per-request state. Routing runs on fiber tasks that marshal their
// results back onto the loop.
package proxy

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kiscz/mcrouter/api/mc"
	"github.com/kiscz/mcrouter/api/route"
	"github.com/kiscz/mcrouter/awriter"
	"github.com/kiscz/mcrouter/internal/timing"
)

const (
	// durationSmoothingFactor weighs new samples of the per-request
	// duration EWMA.
	durationSmoothingFactor = 1.0 / 64

	magicSeed   = 0x12345678900000
	magicPoison = 0xdeadbeefdeadbeef
)

// nextMagic hands out process-wide worker identities.
var nextMagic = atomic.NewUint64(magicSeed)

var defaultRouteRegex = regexp.MustCompile(`^/[^/]+/[^/]+/?$`)

// Proxy is one worker: an event loop, a fiber pool, an admission queue and
// an atomically swappable config snapshot.
type Proxy struct {
	magic uint64
	opts  Options

	logger   *zap.Logger
	tracer   opentracing.Tracer
	observer *observer

	loop   *EventLoop
	queue  *intakeQueue
	fibers *fiberRunner

	destinationMap *DestinationMap

	configLock sync.RWMutex
	config     *Config

	stats      statsContainer
	durationUs *timing.Smoother
	rttTimer   *timing.Timer

	rng *rand.Rand

	defaultRoute   string
	defaultRegion  string
	defaultCluster string

	// Loop-confined admission state.
	numRequestsProcessing int
	waitingRequests       []*Request

	beingDestroyed bool

	performStatsLogging bool
	genericWriter       *awriter.Writer
	statsLogWriter      *awriter.Writer
	statsLoggerStop     chan struct{}
	resetTimerStop      chan struct{}
}

// New builds a worker. A nil loop leaves the worker detached;
// AttachEventLoop must then be called exactly once before any request is
// submitted. performStatsLogging selects whether this worker runs the
// periodic stats logger.
func New(opts Options, loop *EventLoop, performStatsLogging bool) *Proxy {
	opts = opts.withDefaults()

	p := &Proxy{
		magic:               nextMagic.Inc() - 1,
		opts:                opts,
		logger:              opts.Logger,
		tracer:              opts.Tracer,
		observer:            newObserver(opts.Scope),
		destinationMap:      newDestinationMap(),
		durationUs:          timing.NewSmoother(durationSmoothingFactor),
		rng:                 rand.New(rand.NewSource(time.Now().UnixNano())),
		performStatsLogging: performStatsLogging,
	}
	p.logger = p.logger.With(zap.Uint64("proxyMagic", p.magic))

	p.setDefaultRoute(opts.DefaultRoute)

	if !opts.DisableDynamicStats {
		p.rttTimer = timing.NewTimer("proxy_rtt_timer")
	}

	p.genericWriter = awriter.New("mcrtr-awriter", 0, p.logger)
	p.statsLogWriter = awriter.New("mcrtr-statsw", opts.StatsAsyncQueueLength, p.logger)

	if loop != nil {
		p.attach(loop)
	}
	return p
}

// AttachEventLoop binds a detached worker to its loop. May be called
// exactly once.
func (p *Proxy) AttachEventLoop(loop *EventLoop) {
	if p.loop != nil {
		panic("proxy: event loop already attached")
	}
	if loop == nil {
		panic("proxy: nil event loop")
	}
	p.attach(loop)
}

func (p *Proxy) attach(loop *EventLoop) {
	p.loop = loop

	fibers, err := newFiberRunner(p.opts.FiberPoolSize, loop, p.logger)
	if err != nil {
		// Fall back to a single-slot pool so routing still has a task
		// goroutine.
		p.logger.Error("Could not build fiber pool.", zap.Error(err))
		fibers, _ = newFiberRunner(1, loop, p.logger)
	}
	p.fibers = fibers

	p.queue = newIntakeQueue(p, loop, p.opts.QueuePriority)

	if interval := p.opts.ResetInactiveConnectionInterval; interval > 0 {
		p.resetTimerStop = p.startTicker(interval, func() {
			p.destinationMap.ResetInactive(interval)
		})
	}

	if p.performStatsLogging && p.opts.StatsLoggingInterval > 0 {
		p.statsLoggerStop = p.startStatsLogger()
	}

	if p.opts.OnAttached != nil {
		p.opts.OnAttached()
	}
}

// startTicker posts fn onto the loop every interval until the returned
// channel closes.
func (p *Proxy) startTicker(interval time.Duration, fn func()) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := p.loop.Post(fn); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()
	return stop
}

// StartAwriterThreads spawns the async writer consumers: the generic
// writer only when async logging is enabled, the stats writer always. A
// spawn failure leaves the worker not partially started.
func (p *Proxy) StartAwriterThreads() error {
	if !p.opts.AsynclogDisable {
		if err := p.genericWriter.Start(); err != nil {
			p.logger.Error("Failed to start asynclog awriter thread.", zap.Error(err))
			return fmt.Errorf("start asynclog writer: %w", err)
		}
	}
	if err := p.statsLogWriter.Start(); err != nil {
		p.logger.Error("Failed to start stats log writer thread.", zap.Error(err))
		if stopErr := p.genericWriter.Stop(); stopErr != nil {
			err = multierr.Append(err, stopErr)
		}
		return fmt.Errorf("start stats log writer: %w", err)
	}
	return nil
}

// StopAwriterThreads stops both writers. The writers themselves skip the
// join when the current process did not spawn them.
func (p *Proxy) StopAwriterThreads() error {
	return multierr.Append(p.genericWriter.Stop(), p.statsLogWriter.Stop())
}

// SubmitRequest hands a request to the worker from any goroutine. The
// submitter's reference transfers with it: the worker releases it once the
// request has been admitted, and the admission paths hold their own
// references from there.
func (p *Proxy) SubmitRequest(preq *Request) error {
	return p.queue.Enqueue(QueueEntry{Type: EntryTypeRequest, Request: preq})
}

// SubmitEntry posts a host-defined operational entry to the worker loop.
func (p *Proxy) SubmitEntry(e QueueEntry) error {
	return p.queue.Enqueue(e)
}

// handleQueueEntry runs on the loop for every intake entry.
func (p *Proxy) handleQueueEntry(e QueueEntry) {
	switch e.Type {
	case EntryTypeRequest:
		p.DispatchRequest(e.Request)
		e.Request.decref()
	case EntryTypeOldConfig:
		// Dropping the entry here releases the router-side reference on
		// the loop, outside any lock. In-flight pins keep the snapshot
		// alive until their contexts release.
		p.logger.Debug("Retired old config snapshot.",
			zap.String("md5", e.OldConfig.MD5Digest()))
	default:
		if p.opts.OnQueueEntry != nil {
			p.opts.OnQueueEntry(e)
			return
		}
		p.logger.Warn("Dropped intake entry of unknown type.",
			zap.Int("entryType", int(e.Type)))
	}
}

// Shutdown tears the worker down. The event loop must have been drained of
// in-flight requests externally; the loop itself stays owned by whoever
// created it.
func (p *Proxy) Shutdown() error {
	if p.resetTimerStop != nil {
		close(p.resetTimerStop)
		p.resetTimerStop = nil
	}
	if p.statsLoggerStop != nil {
		close(p.statsLoggerStop)
		p.statsLoggerStop = nil
	}

	err := p.StopAwriterThreads()

	p.destinationMap.Reset()
	p.beingDestroyed = true
	if p.queue != nil {
		p.queue.Close()
	}
	if p.fibers != nil {
		p.fibers.close()
	}
	p.rttTimer = nil
	p.magic = magicPoison
	return err
}

// Magic returns the worker's process-wide identity.
func (p *Proxy) Magic() uint64 {
	return p.magic
}

// DefaultRoute returns the normalized routing prefix, empty if none was
// configured successfully.
func (p *Proxy) DefaultRoute() string {
	return p.defaultRoute
}

// DefaultRegion returns the region segment of the default route.
func (p *Proxy) DefaultRegion() string {
	return p.defaultRegion
}

// DefaultCluster returns the cluster segment of the default route.
func (p *Proxy) DefaultCluster() string {
	return p.defaultCluster
}

// DestinationMap exposes the worker's upstream connection bookkeeping.
func (p *Proxy) DestinationMap() *DestinationMap {
	return p.destinationMap
}

// Rand returns the worker's RNG. Loop-confined.
func (p *Proxy) Rand() *rand.Rand {
	return p.rng
}

// setDefaultRoute validates and normalizes the routing prefix. An invalid
// prefix is not set, which makes configuration fail later rather than
// serving with a bad default.
func (p *Proxy) setDefaultRoute(s string) {
	if s == "" {
		return
	}
	if !defaultRouteRegex.MatchString(s) {
		p.logger.Error("Default route should be of the form /region/cluster/.",
			zap.String("route", s))
		return
	}

	p.defaultRoute = s
	if !strings.HasSuffix(s, "/") {
		p.defaultRoute += "/"
	}

	segments := strings.Split(p.defaultRoute, "/")
	p.defaultRegion = segments[1]
	p.defaultCluster = segments[2]
}

// RegionFromRoutingPrefix extracts the region from a "/region/cluster/"
// prefix, empty if the prefix is malformed.
func RegionFromRoutingPrefix(prefix string) string {
	if prefix == "" || prefix[0] != '/' {
		return ""
	}
	regionEnd := strings.Index(prefix[1:], "/")
	if regionEnd < 0 {
		return ""
	}
	return prefix[1 : 1+regionEnd]
}

// ForEachPossibleClient walks the routing tree for a key and invokes the
// callback for every upstream client a request for that key could reach.
func (p *Proxy) ForEachPossibleClient(key string, fn func(clientName string)) {
	config := p.GetConfig()
	if config == nil || config.Root() == nil {
		return
	}
	req := &mc.Message{Op: mc.OpGet, Key: key}
	for _, child := range config.Root().CouldRouteTo(req) {
		walkPossibleClients(child, req, fn)
	}
}

func walkPossibleClients(h route.Handle, req *mc.Message, fn func(string)) {
	if dest, ok := h.(route.DestinationHandle); ok {
		fn(dest.ClientName())
	}
	for _, child := range h.CouldRouteTo(req) {
		walkPossibleClients(child, req, fn)
	}
}

// FlushRttStats copies the RTT timer's rolling average, minimum and peak
// into the stats array, in microseconds.
func (p *Proxy) FlushRttStats() {
	if p.opts.DisableDynamicStats || p.rttTimer == nil {
		return
	}
	p.stats.set(StatRttMin, p.rttTimer.Min().Microseconds())
	p.stats.set(StatRtt, p.rttTimer.Avg().Microseconds())
	p.stats.set(StatRttMax, p.rttTimer.Max().Microseconds())
}

// statsLogEntry carries one serialized stats snapshot to the stats writer.
type statsLogEntry struct {
	proxy   *Proxy
	payload []byte
}

func (e *statsLogEntry) Perform() error {
	if e.proxy.opts.StatsLogSink == nil {
		return nil
	}
	return e.proxy.opts.StatsLogSink(e.payload)
}

func (e *statsLogEntry) Completed(err error) {
	if err != nil {
		e.proxy.logger.Warn("Stats log write failed.", zap.Error(err))
	}
}

func (p *Proxy) startStatsLogger() chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(p.opts.StatsLoggingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				payload, err := json.Marshal(p.StatsSnapshot())
				if err != nil {
					continue
				}
				entry := &statsLogEntry{proxy: p, payload: payload}
				if err := p.statsLogWriter.Submit(entry); err != nil {
					p.logger.Debug("Dropped stats log snapshot.", zap.Error(err))
				}
			case <-stop:
				return
			}
		}
	}()
	return stop
}
