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
	"strings"

	"github.com/kiscz/mcrouter/api/mc"
)

// ServiceInfoKeyPrefix marks legacy get requests that are really
// service-info queries.
const ServiceInfoKeyPrefix = "__mcrouter__."

type replyState uint8

const (
	replyStateNoReply replyState = iota
	replyStateDelayed
	replyStateReplied
)

// Request is the refcounted per-request state a worker tracks from intake
// to reply delivery. All fields are confined to the worker loop; the
// refcount is a plain integer for the same reason.
type Request struct {
	proxy *Proxy

	// origReq is the request routing sees. For legacy service-info gets it
	// is the rewritten request; the reply's op is restored before
	// delivery.
	origReq              *mc.Message
	legacyGetServiceInfo bool

	// reply is write-once.
	reply      *mc.Message
	replyState replyState
	delayReply int

	refcount   int
	processing bool

	senderID     uint64
	enqueueReply func(*Request)
	reqComplete  func(*Request)

	// Context is an opaque pointer for the front-end.
	Context interface{}
}

// NewRequest builds a request from a parsed message. Malformed requests
// fail construction with an invalid-request error and take no refcount.
// The reply-enqueue callback is mandatory.
func (p *Proxy) NewRequest(
	msg *mc.Message,
	enqueueReply func(*Request),
	context interface{},
	reqComplete func(*Request),
	senderID uint64,
) (*Request, error) {
	if enqueueReply == nil {
		panic("proxy: a reply-enqueue callback is required")
	}
	if err := mc.ValidateRequest(msg); err != nil {
		return nil, err
	}

	r := &Request{
		proxy:        p,
		refcount:     1,
		senderID:     senderID,
		enqueueReply: enqueueReply,
		reqComplete:  reqComplete,
		Context:      context,
	}

	if msg.Op == mc.OpGet && strings.HasPrefix(msg.Key, ServiceInfoKeyPrefix) {
		// Backwards compatibility: (get, "__mcrouter__.key") routes as
		// (get-service-info, "key"). The reply op is restored to get.
		r.legacyGetServiceInfo = true
		rewritten := msg.Clone()
		rewritten.Op = mc.OpGetServiceInfo
		rewritten.Key = msg.Key[len(ServiceInfoKeyPrefix):]
		r.origReq = rewritten
	} else {
		r.origReq = msg
	}

	p.stats.incr(StatRequestNumOutstanding)
	return r, nil
}

// Reply returns the delivered reply, nil until one is set.
func (r *Request) Reply() *mc.Message {
	return r.reply
}

// SenderID returns the front-end sender id.
func (r *Request) SenderID() uint64 {
	return r.senderID
}

// RoutedRequest returns the message routing sees, after any legacy
// rewrite.
func (r *Request) RoutedRequest() *mc.Message {
	return r.origReq
}

func (r *Request) incref() {
	if r.refcount <= 0 {
		panic("proxy: incref on a dead request")
	}
	r.refcount++
}

func (r *Request) decref() {
	if r.refcount <= 0 {
		panic("proxy: decref on a dead request")
	}

	if r.refcount == 1 {
		// In sync mode reply delivery was deferred to teardown.
		if r.proxy.opts.Sync && r.replyState == replyStateReplied {
			r.enqueueReply(r)
		}
		if r.reqComplete != nil {
			r.reqComplete(r)
		}
	}

	r.refcount--
	if r.refcount > 0 {
		return
	}
	r.destroy()
}

// destroy releases the last reference. Admitting the next waiter happens
// here: the in-flight slot frees only once the request is fully gone.
func (r *Request) destroy() {
	p := r.proxy
	if r.processing {
		p.numRequestsProcessing--
		p.stats.decr(StatReqsProcessing)
		p.pump()
	}
	p.stats.decr(StatRequestNumOutstanding)
}

// sendReply latches the reply. At most one terminal reply wins; a nonzero
// delayReply holds delivery in the delayed state until an external
// subsystem releases it.
func (r *Request) sendReply(newReply *mc.Message) {
	if r.reply != nil {
		panic("proxy: reply already set")
	}
	r.reply = newReply

	// Undo op munging.
	if r.legacyGetServiceInfo {
		r.reply.Op = mc.OpGet
	} else {
		r.reply.Op = r.origReq.Op
	}

	if r.replyState != replyStateNoReply {
		return
	}

	if r.delayReply == 0 {
		r.continueSendReply()
	} else {
		r.replyState = replyStateDelayed
	}
}

func (r *Request) continueSendReply() {
	r.replyState = replyStateReplied

	p := r.proxy
	if !p.opts.Sync {
		r.enqueueReply(r)
	}

	p.stats.incr(StatRequestReplied)
	p.stats.incr(StatRequestRepliedCount)
	if r.reply.Result.IsError() {
		p.stats.incr(StatRequestError)
		p.stats.incr(StatRequestErrorCount)
		p.observer.failure()
	} else {
		p.stats.incr(StatRequestSuccess)
		p.stats.incr(StatRequestSuccessCount)
		p.observer.success()
	}
	p.observer.reply()
}
