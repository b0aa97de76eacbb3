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
	"errors"
	"os"
	"sync"

	"github.com/opentracing/opentracing-go"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kiscz/mcrouter/configapi"
	"github.com/kiscz/mcrouter/internal/lifecycle"
	"github.com/kiscz/mcrouter/proxy"
	"github.com/kiscz/mcrouter/runtimevars"
)

// Config specifies the parameters of a Router constructed via New.
type Config struct {
	// Name identifies the router in logs.
	Name string

	// NumProxies is the worker count, one event loop each. Defaults to 1.
	NumProxies int

	// Proxy is the per-worker options template.
	Proxy proxy.Options

	// ConfigProvider fetches configuration text for
	// ConfigureFromProvider.
	ConfigProvider configapi.Provider

	// BuilderFactory turns configuration text into per-worker snapshot
	// builders.
	BuilderFactory BuilderFactory

	// RuntimeVars distributes live operator variables, e.g. to shadowing
	// policies. Created internally when nil.
	RuntimeVars *runtimevars.Store

	Logger *zap.Logger
	Scope  tally.Scope
	Tracer opentracing.Tracer
}

// Router owns a set of workers sharing a configuration source. Requests
// never cross workers; the router's job is construction, startup, and
// keeping every worker's snapshot in sync.
type Router struct {
	name string
	cfg  Config

	logger *zap.Logger

	proxies []*proxy.Proxy
	loops   []*proxy.EventLoop

	rtVars *runtimevars.Store

	once         *lifecycle.Once
	startupLatch sync.WaitGroup

	// reconfigLock serializes config building, never request processing.
	reconfigLock      sync.Mutex
	lastConfigAttempt atomic.Int64
	configFailures    atomic.Int64

	pid int
}

// New builds a Router with detached workers. Start attaches each worker to
// its own event loop.
func New(cfg Config) (*Router, error) {
	if cfg.Name == "" {
		return nil, errors.New("mcrouter: a router name is required")
	}
	if cfg.NumProxies <= 0 {
		cfg.NumProxies = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RuntimeVars == nil {
		cfg.RuntimeVars = runtimevars.NewStore()
	}

	r := &Router{
		name:   cfg.Name,
		cfg:    cfg,
		logger: cfg.Logger.With(zap.String("router", cfg.Name)),
		rtVars: cfg.RuntimeVars,
		once:   lifecycle.NewOnce(),
		pid:    os.Getpid(),
	}

	r.startupLatch.Add(cfg.NumProxies)
	for i := 0; i < cfg.NumProxies; i++ {
		opts := cfg.Proxy
		opts.Logger = r.logger
		if opts.Scope == nil {
			opts.Scope = cfg.Scope
		}
		if opts.Tracer == nil {
			opts.Tracer = cfg.Tracer
		}
		hostAttached := opts.OnAttached
		opts.OnAttached = func() {
			r.startupLatch.Done()
			if hostAttached != nil {
				hostAttached()
			}
		}
		// Worker 0 is the designated stats logger.
		r.proxies = append(r.proxies, proxy.New(opts, nil, i == 0))
	}

	return r, nil
}

// Proxies returns the router's workers in index order.
func (r *Router) Proxies() []*proxy.Proxy {
	out := make([]*proxy.Proxy, len(r.proxies))
	copy(out, r.proxies)
	return out
}

// RuntimeVars returns the router's runtime-variables store.
func (r *Router) RuntimeVars() *runtimevars.Store {
	return r.rtVars
}

// IsRunning reports whether the router started and has not stopped.
func (r *Router) IsRunning() bool {
	return r.once.IsRunning()
}

// Start spins up one event loop per worker, attaches the workers, and
// starts their writer threads. Blocks until every worker signals
// attachment.
func (r *Router) Start() error {
	return r.once.Start(func() error {
		for _, p := range r.proxies {
			loop := proxy.NewEventLoop()
			r.loops = append(r.loops, loop)
			go loop.Run()
			p.AttachEventLoop(loop)
			if err := p.StartAwriterThreads(); err != nil {
				r.stopStarted()
				return err
			}
		}
		r.startupLatch.Wait()
		r.logger.Info("Router started.", zap.Int("proxies", len(r.proxies)))
		return nil
	})
}

func (r *Router) stopStarted() {
	for _, p := range r.proxies {
		_ = p.Shutdown()
	}
	for _, loop := range r.loops {
		loop.Close()
	}
	r.loops = nil
}

// Stop tears down every worker and drains the loops. In-flight requests
// must have completed; teardown does not cancel them.
func (r *Router) Stop() error {
	return r.once.Stop(func() error {
		var errs error
		for _, p := range r.proxies {
			errs = multierr.Append(errs, p.Shutdown())
		}
		for _, loop := range r.loops {
			loop.Close()
		}
		r.loops = nil
		r.logger.Info("Router stopped.")
		return errs
	})
}

// LastConfigAttempt returns the unix time of the most recent
// ConfigureFromProvider call.
func (r *Router) LastConfigAttempt() int64 {
	return r.lastConfigAttempt.Load()
}

// ConfigFailures counts failed configuration attempts.
func (r *Router) ConfigFailures() int64 {
	return r.configFailures.Load()
}
