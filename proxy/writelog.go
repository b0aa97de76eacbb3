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
	"go.uber.org/zap"
)

// WriteLogEntry defers a write to the generic async writer while holding
// the request's reply in the delayed state. Create the entry on the loop
// before the reply is produced; the writer's completion releases the
// latch.
type WriteLogEntry struct {
	proxy   *Proxy
	preq    *Request
	payload []byte
	write   func([]byte) error
}

// NewWriteLogEntry builds a delayed-reply log entry. Must run on the worker
// loop. The entry holds one request reference until completion.
func (p *Proxy) NewWriteLogEntry(preq *Request, payload []byte, write func([]byte) error) *WriteLogEntry {
	preq.incref()
	preq.delayReply++
	return &WriteLogEntry{
		proxy:   p,
		preq:    preq,
		payload: payload,
		write:   write,
	}
}

// SubmitWriteLog hands the entry to the generic async writer. A submit
// failure completes the entry immediately so the latch cannot leak.
func (p *Proxy) SubmitWriteLog(e *WriteLogEntry) error {
	err := p.genericWriter.Submit(e)
	if err != nil {
		p.completeWriteLog(e, err)
	}
	return err
}

// Perform runs the write on the writer goroutine.
func (e *WriteLogEntry) Perform() error {
	if e.write == nil {
		return nil
	}
	return e.write(e.payload)
}

// Completed reposts the outcome to the worker loop, where the latch and
// refcount live.
func (e *WriteLogEntry) Completed(err error) {
	p := e.proxy
	if postErr := p.loop.Post(func() { p.completeWriteLog(e, err) }); postErr != nil {
		// Loop already drained at teardown; the latch release is moot but
		// the refcount must still balance. Runs on the writer goroutine,
		// which at this point is the only holder.
		p.completeWriteLog(e, err)
	}
}

// completeWriteLog releases the delay-reply latch and frees the entry. A
// request held in the delayed state with delayReply == 1 resumes; larger
// delay values are not released here.
func (p *Proxy) completeWriteLog(e *WriteLogEntry, err error) {
	if err != nil {
		p.logger.Warn("Async log write failed.", zap.Error(err))
	}
	switch e.preq.replyState {
	case replyStateDelayed:
		if e.preq.delayReply == 1 {
			e.preq.continueSendReply()
		}
	case replyStateNoReply:
		// Completion beat the reply. Drop this entry's hold so the reply
		// does not park with nobody left to release it.
		e.preq.delayReply--
	}

	preq := e.preq
	e.preq = nil
	e.payload = nil
	e.write = nil
	preq.decref()
}
