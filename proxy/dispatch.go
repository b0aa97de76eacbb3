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
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/kiscz/mcrouter/api/mc"
	"github.com/kiscz/mcrouter/internal/timing"
)

// onRequestTimer is shared process-wide across workers.
var (
	onRequestTimerOnce sync.Once
	onRequestTimerInst *timing.Timer
)

func onRequestTimer() *timing.Timer {
	onRequestTimerOnce.Do(func() {
		onRequestTimerInst = timing.NewTimer("router_on_request")
	})
	return onRequestTimerInst
}

// DispatchRequest admits a request: rate-limited requests join the waiting
// FIFO holding an extra reference, everything else processes immediately.
// Must run on the worker loop; external producers go through
// SubmitRequest.
func (p *Proxy) DispatchRequest(preq *Request) {
	if p.rateLimited(preq) {
		preq.incref()
		p.waitingRequests = append(p.waitingRequests, preq)
		p.stats.incr(StatReqsWaiting)
		p.observer.queue()
	} else {
		p.processRequest(preq)
	}
}

// rateLimited decides admission. Operational requests are never queued.
func (p *Proxy) rateLimited(preq *Request) bool {
	if p.opts.MaxInflightRequests == 0 {
		return false
	}

	// Always let through certain requests.
	switch preq.origReq.Op {
	case mc.OpStats, mc.OpVersion, mc.OpGetServiceInfo:
		return false
	}

	if len(p.waitingRequests) == 0 &&
		p.numRequestsProcessing < p.opts.MaxInflightRequests {
		return false
	}

	return true
}

// pump admits waiters in FIFO order while in-flight slots are free. This is
// the only mechanism for progress on queued requests.
func (p *Proxy) pump() {
	for p.numRequestsProcessing < p.opts.MaxInflightRequests &&
		len(p.waitingRequests) > 0 {
		preq := p.waitingRequests[0]
		p.waitingRequests[0] = nil
		p.waitingRequests = p.waitingRequests[1:]
		p.stats.decr(StatReqsWaiting)
		p.processRequest(preq)
		preq.decref()
	}
}

func (p *Proxy) processRequest(preq *Request) {
	if preq.processing {
		panic("proxy: request processed twice")
	}
	preq.processing = true
	p.numRequestsProcessing++
	p.stats.incr(StatReqsProcessing)
	p.observer.call()

	var timerStart time.Time
	if !p.opts.DisableDynamicStats {
		timerStart = onRequestTimer().Start()
	}

	if pair, ok := opStatTable[preq.origReq.Op]; ok {
		p.stats.incr(pair.stat)
		if pair.hasCount {
			p.stats.incr(pair.count)
		}
	} else {
		p.stats.incr(StatCmdOther)
		p.stats.incr(StatCmdOtherCount)
	}

	p.routeHandlesProcessRequest(preq)

	p.stats.incr(StatRequestSent)
	p.stats.incr(StatRequestSentCount)
	if !p.opts.DisableDynamicStats {
		onRequestTimer().Finish(timerStart)
	}
}

// routeHandlesProcessRequest hands the request to the routing tree. stats
// and get-service-info are answered synchronously on the loop; everything
// else runs on a fiber task whose reply and teardown are marshaled back
// here.
func (p *Proxy) routeHandlesProcessRequest(preq *Request) {
	switch preq.origReq.Op {
	case mc.OpStats:
		preq.sendReply(p.buildStatsReply(preq.origReq.Key))
		return

	case mc.OpGetServiceInfo:
		config := p.GetConfig()
		if config == nil {
			preq.sendReply(errorReply(preq.origReq, "not configured"))
			return
		}
		reqCtx := p.newRequestContext(preq, config)
		si := config.ServiceInfo()
		if si == nil {
			preq.sendReply(errorReply(preq.origReq, "no service info handler"))
			reqCtx.release()
			return
		}
		// The handler owns replying.
		si.HandleRequest(preq.origReq.Clone(), func(reply *mc.Message) {
			preq.sendReply(reply)
			reqCtx.release()
		})
		return
	}

	preq.incref()
	var reqCtx *requestContext
	p.fibers.addTaskFinally(
		// Fiber context: pin the current snapshot and route. The pin keeps
		// the snapshot alive for as long as routing runs.
		func() *mc.Message {
			reqCtx = p.newRequestContext(preq, p.GetConfig())
			return p.routeOnFiber(reqCtx, preq.origReq.Clone())
		},
		// Loop context: consume the result.
		func(result *mc.Message) {
			preq.sendReply(result)
			// Context teardown happens here, not on the fiber: it may
			// finalize stats and retire a stale snapshot.
			reqCtx.release()
		},
		// Balances the incref above; the request outlives both phases.
		func() {
			preq.decref()
		},
	)
}

// routeOnFiber drives the route-handle tree. Failures never propagate past
// the fiber boundary; they materialize as local_error replies naming the
// key.
func (p *Proxy) routeOnFiber(reqCtx *requestContext, req *mc.Message) (reply *mc.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			reply = errorReply(req, fmt.Sprint(rec))
		}
	}()

	if reqCtx.config == nil {
		return errorReply(req, "not configured")
	}

	span := p.tracer.StartSpan("mcrouter.route")
	span.SetTag("mc.op", req.Op.String())
	span.SetTag("mc.key", req.Key)
	defer span.Finish()
	ctx := opentracing.ContextWithSpan(context.Background(), span)

	result, err := reqCtx.config.Root().Dispatch(ctx, req)
	if err != nil {
		span.SetTag("error", true)
		return errorReply(req, err.Error())
	}
	if result == nil {
		span.SetTag("error", true)
		return errorReply(req, "route produced no reply")
	}
	result.Op = req.Op
	return result
}

func errorReply(req *mc.Message, what string) *mc.Message {
	return mc.NewReply(
		req.Op,
		mc.ResultLocalError,
		fmt.Sprintf("error routing %s: %s", req.Key, what),
	)
}

// requestContext pins a config snapshot for the lifetime of one request's
// routing. Releasing it on the loop finalizes the latency sample and drops
// the pin.
type requestContext struct {
	proxy  *Proxy
	preq   *Request
	config *Config
	start  time.Time
}

func (p *Proxy) newRequestContext(preq *Request, config *Config) *requestContext {
	return &requestContext{
		proxy:  p,
		preq:   preq,
		config: config,
		start:  time.Now(),
	}
}

// release must run on the worker loop.
func (c *requestContext) release() {
	p := c.proxy
	if !p.opts.DisableDynamicStats && p.rttTimer != nil {
		d := time.Since(c.start)
		p.durationUs.Insert(float64(d.Microseconds()))
		p.rttTimer.Record(d)
	}
	c.config = nil
	c.preq = nil
}
