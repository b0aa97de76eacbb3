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

import "github.com/uber-go/tally"

var (
	_callsName   = "proxy_requests"
	_queuedName  = "proxy_requests_queued"
	_repliedName = "proxy_requests_replied"
	_outcomeName = "proxy_request_outcomes"
	_outcomeTag  = "outcome"
	_successTag  = "success"
	_errorTag    = "error"
)

// observer mirrors request outcomes onto a tally scope for export. The
// authoritative counters remain the worker stats array.
type observer struct {
	calls     tally.Counter
	queued    tally.Counter
	replied   tally.Counter
	successes tally.Counter
	errors    tally.Counter
}

func newObserver(scope tally.Scope) *observer {
	successScope := scope.Tagged(map[string]string{_outcomeTag: _successTag})
	errorScope := scope.Tagged(map[string]string{_outcomeTag: _errorTag})

	return &observer{
		calls:     scope.Counter(_callsName),
		queued:    scope.Counter(_queuedName),
		replied:   scope.Counter(_repliedName),
		successes: successScope.Counter(_outcomeName),
		errors:    errorScope.Counter(_outcomeName),
	}
}

func (o *observer) call() {
	o.calls.Inc(1)
}

func (o *observer) queue() {
	o.queued.Inc(1)
}

func (o *observer) reply() {
	o.replied.Inc(1)
}

func (o *observer) success() {
	o.successes.Inc(1)
}

func (o *observer) failure() {
	o.errors.Inc(1)
}
