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

package mcrouter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiscz/mcrouter/api/mc"
	"github.com/kiscz/mcrouter/api/route"
	"github.com/kiscz/mcrouter/configapi"
	"github.com/kiscz/mcrouter/proxy"
)

const eventually = 5 * time.Second

// staticHandle answers every request with a fixed value.
type staticHandle struct {
	value string
}

func (h *staticHandle) Name() string { return "static" }

func (h *staticHandle) Dispatch(_ context.Context, req *mc.Message) (*mc.Message, error) {
	return mc.NewReply(req.Op, mc.ResultFound, h.value), nil
}

func (h *staticHandle) CouldRouteTo(*mc.Message) []route.Handle { return nil }

// staticBuilderFactory builds snapshots whose routes echo the config text.
func staticBuilderFactory(failOnWorker uint64) BuilderFactory {
	return func(params BuildParams) (ConfigBuilder, error) {
		return &staticBuilder{
			input:        params.Input,
			failOnWorker: failOnWorker,
		}, nil
	}
}

type staticBuilder struct {
	input        string
	failOnWorker uint64
	built        int
}

func (b *staticBuilder) BuildConfig(p *proxy.Proxy) (*proxy.Config, error) {
	b.built++
	if b.failOnWorker != 0 && p.Magic() == b.failOnWorker {
		return nil, errors.New("bad pool definition")
	}
	pools := map[string]*proxy.Pool{
		"main": proxy.NewPool("main", proxy.PoolRegular, []string{"c1", "c2"}),
	}
	clients := map[string]*proxy.Client{
		"c1": {Name: "c1", PoolName: "main"},
		"c2": {Name: "c2", PoolName: "main"},
	}
	return proxy.NewConfig(
		&staticHandle{value: b.input},
		pools,
		clients,
		nil,
		proxy.ConfigDigest(b.input),
	), nil
}

func newTestRouter(t *testing.T, cfg Config) *Router {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "test-router"
	}
	if cfg.Proxy.DefaultRoute == "" {
		cfg.Proxy.DefaultRoute = "/prn/cluster01/"
	}
	r, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, r.Start())
	t.Cleanup(func() { require.NoError(t, r.Stop()) })
	return r
}

func submitAndAwait(t *testing.T, p *proxy.Proxy, op mc.Op, key string) *mc.Message {
	t.Helper()
	var mu sync.Mutex
	var reply *mc.Message
	preq, err := p.NewRequest(&mc.Message{Op: op, Key: key}, func(r *proxy.Request) {
		mu.Lock()
		reply = r.Reply()
		mu.Unlock()
	}, nil, nil, 1)
	require.NoError(t, err)
	require.NoError(t, p.SubmitRequest(preq))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reply != nil
	}, eventually, time.Millisecond)
	return reply
}

func TestConfigureSwapsEveryWorker(t *testing.T) {
	r := newTestRouter(t, Config{
		NumProxies:     2,
		BuilderFactory: staticBuilderFactory(0),
	})

	require.NoError(t, r.Configure("v1"))
	for _, p := range r.Proxies() {
		assert.Equal(t, proxy.ConfigDigest("v1"), p.GetConfig().MD5Digest())
		assert.Equal(t, int64(2), p.StatValue(proxy.StatNumServers))
		reply := submitAndAwait(t, p, mc.OpGet, "k")
		assert.Equal(t, "v1", string(reply.Value))
	}

	require.NoError(t, r.Configure("v2"))
	for _, p := range r.Proxies() {
		assert.Equal(t, proxy.ConfigDigest("v2"), p.GetConfig().MD5Digest())
		reply := submitAndAwait(t, p, mc.OpGet, "k")
		assert.Equal(t, "v2", string(reply.Value))
	}
}

func TestConfigureIsAllOrNothing(t *testing.T) {
	r := newTestRouter(t, Config{
		NumProxies:     2,
		BuilderFactory: staticBuilderFactory(0),
	})
	require.NoError(t, r.Configure("v1"))

	// Fail the build for the second worker: neither worker swaps.
	r.cfg.BuilderFactory = staticBuilderFactory(r.Proxies()[1].Magic())
	require.Error(t, r.Configure("v2"))

	for _, p := range r.Proxies() {
		assert.Equal(t, proxy.ConfigDigest("v1"), p.GetConfig().MD5Digest())
	}
}

func TestConfigureFailsWithoutDefaultRoute(t *testing.T) {
	r := newTestRouter(t, Config{
		Proxy:          proxy.Options{DefaultRoute: "prn/cluster01"}, // invalid
		BuilderFactory: staticBuilderFactory(0),
	})
	err := r.Configure("v1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty default route")
}

func TestConfigureWithoutFactory(t *testing.T) {
	r := newTestRouter(t, Config{})
	assert.Error(t, r.Configure("v1"))
}

func TestConfigureFromProvider(t *testing.T) {
	provider := &configapi.StaticProvider{Text: "v1"}
	r := newTestRouter(t, Config{
		ConfigProvider: provider,
		BuilderFactory: staticBuilderFactory(0),
	})

	before := time.Now().Unix()
	require.NoError(t, r.ConfigureFromProvider())
	assert.GreaterOrEqual(t, r.LastConfigAttempt(), before)
	assert.Zero(t, r.ConfigFailures())

	p := r.Proxies()[0]
	assert.Equal(t, proxy.ConfigDigest("v1"), p.GetConfig().MD5Digest())
	// Success is stamped at or after the attempt.
	assert.GreaterOrEqual(t, p.StatValue(proxy.StatConfigLastSuccess), r.LastConfigAttempt())
}

func TestConfigureFromProviderFetchFailure(t *testing.T) {
	r := newTestRouter(t, Config{
		ConfigProvider: &failingProvider{},
		BuilderFactory: staticBuilderFactory(0),
	})

	require.Error(t, r.ConfigureFromProvider())
	assert.Equal(t, int64(1), r.ConfigFailures())
	// Workers keep serving on the prior snapshot; last-success untouched.
	assert.Equal(t, int64(0), r.Proxies()[0].StatValue(proxy.StatConfigLastSuccess))
}

type failingProvider struct{}

func (failingProvider) Get() (string, error) {
	return "", errors.New("config store unreachable")
}

func TestConfigureFromProviderBuildFailureCounts(t *testing.T) {
	r := newTestRouter(t, Config{
		ConfigProvider: &configapi.StaticProvider{Text: "v1"},
		BuilderFactory: func(BuildParams) (ConfigBuilder, error) {
			return nil, errors.New("parse error")
		},
	})

	require.Error(t, r.ConfigureFromProvider())
	assert.Equal(t, int64(1), r.ConfigFailures())
}

func TestInflightRequestsSurviveReconfiguration(t *testing.T) {
	r := newTestRouter(t, Config{
		NumProxies:     2,
		BuilderFactory: staticBuilderFactory(0),
	})
	require.NoError(t, r.Configure("v1"))

	// Park one request per worker mid-route.
	gates := make([]chan struct{}, 2)
	started := make(chan struct{}, 2)
	replies := make([]chan *mc.Message, 2)
	for i, p := range r.Proxies() {
		gate := make(chan struct{})
		gates[i] = gate
		replyCh := make(chan *mc.Message, 1)
		replies[i] = replyCh

		blocker := &gatedStaticHandle{value: "old", gate: gate, started: started}
		cfg := proxy.NewConfig(blocker, nil, nil, nil, proxy.ConfigDigest("blocking"))
		installOnWorker(t, p, cfg)

		preq, err := p.NewRequest(&mc.Message{Op: mc.OpGet, Key: "k"}, func(pr *proxy.Request) {
			replyCh <- pr.Reply()
		}, nil, nil, 1)
		require.NoError(t, err)
		require.NoError(t, p.SubmitRequest(preq))
	}
	<-started
	<-started

	// Reconfigure while both requests are in flight.
	require.NoError(t, r.Configure("v2"))

	for i := range gates {
		close(gates[i])
	}
	for i, p := range r.Proxies() {
		reply := <-replies[i]
		assert.Equal(t, "old", string(reply.Value), "in-flight request must finish on its pinned snapshot")

		fresh := submitAndAwait(t, p, mc.OpGet, "k2")
		assert.Equal(t, "v2", string(fresh.Value), "new requests see the new snapshot")
	}
}

type gatedStaticHandle struct {
	value   string
	gate    chan struct{}
	started chan struct{}
}

func (h *gatedStaticHandle) Name() string { return "gated" }

func (h *gatedStaticHandle) Dispatch(_ context.Context, req *mc.Message) (*mc.Message, error) {
	h.started <- struct{}{}
	<-h.gate
	return mc.NewReply(req.Op, mc.ResultFound, h.value), nil
}

func (h *gatedStaticHandle) CouldRouteTo(*mc.Message) []route.Handle { return nil }

func installOnWorker(t *testing.T, p *proxy.Proxy, cfg *proxy.Config) {
	t.Helper()
	p.InstallConfig(cfg)
}
