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
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kiscz/mcrouter/configapi"
	"github.com/kiscz/mcrouter/proxy"
	"github.com/kiscz/mcrouter/runtimevars"
)

// BuildParams is the context a snapshot builder receives. The default
// route, region and cluster come from worker 0 and are assumed uniform
// across workers.
type BuildParams struct {
	Input string

	DefaultRoute   string
	DefaultRegion  string
	DefaultCluster string

	Provider configapi.Provider
	Vars     *runtimevars.Store
	Logger   *zap.Logger
}

// ConfigBuilder produces one validated snapshot per worker. Builders come
// from the host's config layer; the router only drives the contract.
type ConfigBuilder interface {
	BuildConfig(p *proxy.Proxy) (*proxy.Config, error)
}

// BuilderFactory parses configuration text into a ConfigBuilder.
type BuilderFactory func(BuildParams) (ConfigBuilder, error)

// Configure builds a snapshot for every worker from the given
// configuration text and swaps them all in. The operation is all-or-
// nothing: if any per-worker build fails, no worker swaps.
func (r *Router) Configure(input string) error {
	if r.cfg.BuilderFactory == nil {
		return errors.New("mcrouter: no config builder factory")
	}

	p0 := r.proxies[0]
	builder, err := r.cfg.BuilderFactory(BuildParams{
		Input:          input,
		DefaultRoute:   p0.DefaultRoute(),
		DefaultRegion:  p0.DefaultRegion(),
		DefaultCluster: p0.DefaultCluster(),
		Provider:       r.cfg.ConfigProvider,
		Vars:           r.rtVars,
		Logger:         r.logger,
	})
	if err != nil {
		r.logger.Error("CRITICAL: Error creating proxy route.", zap.Error(err))
		return err
	}

	newConfigs := make([]*proxy.Config, 0, len(r.proxies))
	for _, p := range r.proxies {
		if p.DefaultRoute() == "" {
			r.logger.Error("Empty default route.")
			return errors.New("mcrouter: empty default route")
		}

		// Current connections may be reused in the new config; those
		// which are not reused will eventually be removed.
		p.DestinationMap().MarkAllAsUnused()

		cfg, err := builder.BuildConfig(p)
		if err != nil {
			r.logger.Error("CRITICAL: Error creating proxy route.", zap.Error(err))
			return fmt.Errorf("mcrouter: build config: %w", err)
		}
		newConfigs = append(newConfigs, cfg)
	}

	for i, p := range r.proxies {
		p.InstallConfig(newConfigs[i])
	}

	if !r.cfg.Proxy.ConstantlyReloadConfigs {
		r.logger.Info("Reconfigured proxies.",
			zap.Int("proxies", len(r.proxies)),
			zap.Int("clients", len(newConfigs[0].Clients())),
			zap.Int("pools", len(newConfigs[0].Pools())),
			zap.String("md5", newConfigs[0].MD5Digest()))
	}

	return nil
}

// ConfigureFromProvider fetches the configuration text from the router's
// provider and applies it. Fetch and build run under the reconfiguration
// lock; the attempt timestamp is recorded before reading so last-success
// is never older than last-attempt.
func (r *Router) ConfigureFromProvider() error {
	if r.cfg.ConfigProvider == nil {
		return errors.New("mcrouter: no config provider")
	}

	r.reconfigLock.Lock()
	defer r.reconfigLock.Unlock()

	r.lastConfigAttempt.Store(time.Now().Unix())

	input, err := r.cfg.ConfigProvider.Get()
	if err != nil {
		r.logger.Info("Can not read config.", zap.Error(err))
		r.configFailures.Inc()
		return err
	}

	if err := r.Configure(input); err != nil {
		r.configFailures.Inc()
		return err
	}
	return nil
}
