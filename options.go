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
	"time"

	"github.com/uber-go/mapdecode"

	"github.com/kiscz/mcrouter/proxy"
)

// proxyOptionsSpec is the loosely-typed attribute form of proxy.Options,
// as it appears in a parsed configuration block.
type proxyOptionsSpec struct {
	DefaultRoute                      string `config:"default-route"`
	MaxInflightRequests               int    `config:"proxy-max-inflight-requests"`
	FiberPoolSize                     int    `config:"fibers-pool-size"`
	Sync                              bool   `config:"sync"`
	DisableDynamicStats               bool   `config:"disable-dynamic-stats"`
	AsynclogDisable                   bool   `config:"asynclog-disable"`
	StatsAsyncQueueLength             int    `config:"stats-async-queue-length"`
	StatsLoggingIntervalMs            int    `config:"stats-logging-interval-ms"`
	ResetInactiveConnectionIntervalMs int    `config:"reset-inactive-connection-interval-ms"`
	ConstantlyReloadConfigs           bool   `config:"constantly-reload-configs"`
}

// DecodeProxyOptions builds worker options from a loosely-typed attribute
// map, such as a decoded JSON or YAML config block.
func DecodeProxyOptions(attrs map[string]interface{}) (proxy.Options, error) {
	var spec proxyOptionsSpec
	if err := mapdecode.Decode(&spec, attrs, mapdecode.TagName("config")); err != nil {
		return proxy.Options{}, err
	}
	return proxy.Options{
		DefaultRoute:                    spec.DefaultRoute,
		MaxInflightRequests:             spec.MaxInflightRequests,
		FiberPoolSize:                   spec.FiberPoolSize,
		Sync:                            spec.Sync,
		DisableDynamicStats:             spec.DisableDynamicStats,
		AsynclogDisable:                 spec.AsynclogDisable,
		StatsAsyncQueueLength:           spec.StatsAsyncQueueLength,
		StatsLoggingInterval:            time.Duration(spec.StatsLoggingIntervalMs) * time.Millisecond,
		ResetInactiveConnectionInterval: time.Duration(spec.ResetInactiveConnectionIntervalMs) * time.Millisecond,
		ConstantlyReloadConfigs:         spec.ConstantlyReloadConfigs,
	}, nil
}
