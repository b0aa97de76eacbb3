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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiscz/mcrouter/api/mc"
)

func TestNewRequestRejectsMalformed(t *testing.T) {
	w := newTestWorker(t, Options{})
	rec := &replyRecorder{}

	before := w.p.StatValue(StatRequestNumOutstanding)
	_, err := w.p.NewRequest(&mc.Message{Op: mc.OpSet}, rec.enqueueReply, nil, nil, 1)
	require.Error(t, err)
	assert.True(t, mc.IsInvalidRequest(err))
	// No refcount, no outstanding bump.
	assert.Equal(t, before, w.p.StatValue(StatRequestNumOutstanding))
}

func TestNewRequestRequiresReplyCallback(t *testing.T) {
	w := newTestWorker(t, Options{})
	assert.Panics(t, func() {
		_, _ = w.p.NewRequest(&mc.Message{Op: mc.OpGet, Key: "k"}, nil, nil, nil, 1)
	})
}

func TestLegacyServiceInfoRewrite(t *testing.T) {
	w := newTestWorker(t, Options{})
	rec := &replyRecorder{}

	preq, err := w.p.NewRequest(
		&mc.Message{Op: mc.OpGet, Key: "__mcrouter__.version"},
		rec.enqueueReply, nil, rec.complete, 1)
	require.NoError(t, err)

	// Routing sees the rewritten request.
	routed := preq.RoutedRequest()
	assert.Equal(t, mc.OpGetServiceInfo, routed.Op)
	assert.Equal(t, "version", routed.Key)

	// A service-info handler answers; the outgoing reply op is restored to
	// get.
	si := &fakeServiceInfo{value: "10.0"}
	cfg := NewConfig(echoHandle("x"), nil, nil, si, ConfigDigest("cfg"))
	w.runOnLoop(t, func() {
		w.p.InstallConfig(cfg)
		w.p.DispatchRequest(preq)
		preq.decref()
	})

	require.Eventually(t, func() bool { return rec.replyCount() == 1 }, eventually, time.Millisecond)
	reply := rec.lastReply()
	assert.Equal(t, mc.OpGet, reply.Op)
	assert.Equal(t, "10.0", string(reply.Value))
	assert.Equal(t, "version", si.lastKey)
	waitStat(t, w, StatRequestNumOutstanding, 0)
}

type fakeServiceInfo struct {
	value   string
	lastKey string
}

func (s *fakeServiceInfo) HandleRequest(req *mc.Message, reply func(*mc.Message)) {
	s.lastKey = req.Key
	reply(mc.NewReply(req.Op, mc.ResultFound, s.value))
}

func TestPlainGetIsNotRewritten(t *testing.T) {
	w := newTestWorker(t, Options{})
	rec := &replyRecorder{}

	preq, err := w.p.NewRequest(&mc.Message{Op: mc.OpGet, Key: "ordinary"}, rec.enqueueReply, nil, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, mc.OpGet, preq.RoutedRequest().Op)
	assert.Equal(t, "ordinary", preq.RoutedRequest().Key)
	w.runOnLoop(t, func() { preq.decref() })
}

func TestReplyDeliveredExactlyOnce(t *testing.T) {
	w := newTestWorker(t, Options{})
	w.installRoot(t, echoHandle("v"))

	rec := &replyRecorder{}
	preq := newRequest(t, w, mc.OpGet, "k", rec)
	require.NoError(t, w.p.SubmitRequest(preq))

	require.Eventually(t, func() bool { return rec.replyCount() == 1 }, eventually, time.Millisecond)
	// Give any stray duplicate delivery a chance to surface.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, rec.replyCount())
	assert.Equal(t, 1, rec.completedCount())
}

func TestSendReplyPanicsOnSecondReply(t *testing.T) {
	w := newTestWorker(t, Options{})
	rec := &replyRecorder{}
	w.runOnLoop(t, func() {
		preq, err := w.p.NewRequest(&mc.Message{Op: mc.OpGet, Key: "k"}, rec.enqueueReply, nil, nil, 1)
		require.NoError(t, err)
		preq.sendReply(mc.NewReply(mc.OpGet, mc.ResultFound, "a"))
		assert.Panics(t, func() {
			preq.sendReply(mc.NewReply(mc.OpGet, mc.ResultFound, "b"))
		})
		preq.decref()
	})
}

func TestSyncModeDefersReplyToTeardown(t *testing.T) {
	w := newTestWorker(t, Options{Sync: true})
	rec := &replyRecorder{}

	w.runOnLoop(t, func() {
		preq, err := w.p.NewRequest(&mc.Message{Op: mc.OpGet, Key: "k"}, rec.enqueueReply, nil, rec.complete, 1)
		require.NoError(t, err)
		preq.sendReply(mc.NewReply(mc.OpGet, mc.ResultFound, "v"))

		// In sync mode the reply callback is deferred to the final decref.
		assert.Equal(t, 0, rec.replyCount())
		preq.decref()
		assert.Equal(t, 1, rec.replyCount())
		assert.Equal(t, 1, rec.completedCount())
	})
}

func TestAsyncModeDeliversReplyImmediately(t *testing.T) {
	w := newTestWorker(t, Options{})
	rec := &replyRecorder{}

	w.runOnLoop(t, func() {
		preq, err := w.p.NewRequest(&mc.Message{Op: mc.OpGet, Key: "k"}, rec.enqueueReply, nil, nil, 1)
		require.NoError(t, err)
		preq.sendReply(mc.NewReply(mc.OpGet, mc.ResultFound, "v"))
		assert.Equal(t, 1, rec.replyCount())
		preq.decref()
	})
}

func TestReplyOutcomeStats(t *testing.T) {
	w := newTestWorker(t, Options{})
	rec := &replyRecorder{}

	w.runOnLoop(t, func() {
		ok, err := w.p.NewRequest(&mc.Message{Op: mc.OpGet, Key: "a"}, rec.enqueueReply, nil, nil, 1)
		require.NoError(t, err)
		ok.sendReply(mc.NewReply(mc.OpGet, mc.ResultFound, ""))
		ok.decref()

		bad, err := w.p.NewRequest(&mc.Message{Op: mc.OpGet, Key: "b"}, rec.enqueueReply, nil, nil, 1)
		require.NoError(t, err)
		bad.sendReply(mc.NewReply(mc.OpGet, mc.ResultTimeout, ""))
		bad.decref()
	})

	assert.Equal(t, int64(2), w.p.StatValue(StatRequestReplied))
	assert.Equal(t, int64(1), w.p.StatValue(StatRequestSuccess))
	assert.Equal(t, int64(1), w.p.StatValue(StatRequestError))
}

func TestDelayReplyLatch(t *testing.T) {
	w := newTestWorker(t, Options{})
	require.NoError(t, w.p.StartAwriterThreads())

	rec := &replyRecorder{}
	gate := make(chan struct{})
	written := make(chan []byte, 1)

	w.runOnLoop(t, func() {
		preq, err := w.p.NewRequest(&mc.Message{Op: mc.OpDelete, Key: "k"}, rec.enqueueReply, nil, rec.complete, 1)
		require.NoError(t, err)

		entry := w.p.NewWriteLogEntry(preq, []byte("spool"), func(b []byte) error {
			<-gate
			written <- b
			return nil
		})
		require.NoError(t, w.p.SubmitWriteLog(entry))

		// The reply arrives while the log write is pending: it parks in
		// the delayed state instead of delivering.
		preq.sendReply(mc.NewReply(mc.OpDelete, mc.ResultDeleted, ""))
		assert.Equal(t, 0, rec.replyCount())

		preq.decref()
	})

	// Releasing the writer releases the latch.
	close(gate)
	assert.Equal(t, []byte("spool"), <-written)
	require.Eventually(t, func() bool { return rec.replyCount() == 1 }, eventually, time.Millisecond)
	require.Eventually(t, func() bool { return rec.completedCount() == 1 }, eventually, time.Millisecond)
	waitStat(t, w, StatRequestNumOutstanding, 0)
}

func TestDelayReplyReleasedOnWriteError(t *testing.T) {
	w := newTestWorker(t, Options{})
	require.NoError(t, w.p.StartAwriterThreads())

	rec := &replyRecorder{}
	gate := make(chan struct{})

	w.runOnLoop(t, func() {
		preq, err := w.p.NewRequest(&mc.Message{Op: mc.OpDelete, Key: "k"}, rec.enqueueReply, nil, nil, 1)
		require.NoError(t, err)

		entry := w.p.NewWriteLogEntry(preq, []byte("spool"), func([]byte) error {
			<-gate
			return errors.New("disk full")
		})
		require.NoError(t, w.p.SubmitWriteLog(entry))
		preq.sendReply(mc.NewReply(mc.OpDelete, mc.ResultDeleted, ""))
		preq.decref()
	})

	close(gate)
	// A failed log write still releases a request delayed with a single
	// latch holder.
	require.Eventually(t, func() bool { return rec.replyCount() == 1 }, eventually, time.Millisecond)
	waitStat(t, w, StatRequestNumOutstanding, 0)
}

func TestWriteLogSubmitFailureReleasesImmediately(t *testing.T) {
	w := newTestWorker(t, Options{})
	// Writers never started: Submit fails and the entry completes inline.
	rec := &replyRecorder{}

	w.runOnLoop(t, func() {
		preq, err := w.p.NewRequest(&mc.Message{Op: mc.OpDelete, Key: "k"}, rec.enqueueReply, nil, nil, 1)
		require.NoError(t, err)

		entry := w.p.NewWriteLogEntry(preq, nil, nil)
		require.Error(t, w.p.SubmitWriteLog(entry))

		preq.sendReply(mc.NewReply(mc.OpDelete, mc.ResultDeleted, ""))
		assert.Equal(t, 1, rec.replyCount(), "latch already released; reply flows")
		preq.decref()
	})
	waitStat(t, w, StatRequestNumOutstanding, 0)
}
