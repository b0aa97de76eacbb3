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
	"crypto/md5"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/kiscz/mcrouter/api/route"
)

// PoolType classifies upstream pools for server accounting.
type PoolType int

// Pool types. Only regular and regional pools contribute to num_servers.
const (
	PoolRegular PoolType = iota
	PoolRegional
	PoolMigrated
)

var poolTypeToName = map[PoolType]string{
	PoolRegular:  "regular",
	PoolRegional: "regional",
	PoolMigrated: "migrated",
}

func (t PoolType) String() string {
	if name, ok := poolTypeToName[t]; ok {
		return name
	}
	return "unknown"
}

// Pool is a named set of upstream clients plus routing policy. The policy
// itself lives in the route handles; the snapshot only carries membership.
type Pool struct {
	name    string
	typ     PoolType
	clients []string
}

// NewPool builds a pool with the given client names.
func NewPool(name string, typ PoolType, clients []string) *Pool {
	return &Pool{name: name, typ: typ, clients: clients}
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Type returns the pool type.
func (p *Pool) Type() PoolType { return p.typ }

// ClientCount returns the number of member clients.
func (p *Pool) ClientCount() int { return len(p.clients) }

// Clients returns the member client names.
func (p *Pool) Clients() []string { return p.clients }

// Client describes one upstream memcached destination.
type Client struct {
	Name        string
	PoolName    string
	Destination string
}

// Config is an immutable snapshot of the routing state: the route-handle
// tree root, the pools and clients maps, and the service-info handler.
// Snapshots are pinned by in-flight request contexts, so a retired snapshot
// lives until its last user is done with it.
type Config struct {
	root        route.Handle
	pools       map[string]*Pool
	clients     map[string]*Client
	serviceInfo route.ServiceInfo
	md5Digest   string
}

// NewConfig builds a snapshot. The maps become owned by the snapshot and
// must not be mutated afterwards.
func NewConfig(
	root route.Handle,
	pools map[string]*Pool,
	clients map[string]*Client,
	serviceInfo route.ServiceInfo,
	md5Digest string,
) *Config {
	return &Config{
		root:        root,
		pools:       pools,
		clients:     clients,
		serviceInfo: serviceInfo,
		md5Digest:   md5Digest,
	}
}

// Root returns the route-handle tree root.
func (c *Config) Root() route.Handle { return c.root }

// Pools returns the pools map.
func (c *Config) Pools() map[string]*Pool { return c.pools }

// Clients returns the clients map.
func (c *Config) Clients() map[string]*Client { return c.clients }

// ServiceInfo returns the service-info handler.
func (c *Config) ServiceInfo() route.ServiceInfo { return c.serviceInfo }

// MD5Digest returns the digest of the configuration text this snapshot was
// built from.
func (c *Config) MD5Digest() string { return c.md5Digest }

// ConfigDigest hashes configuration text for snapshot identification.
func ConfigDigest(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GetConfig returns the current snapshot. The read lock is held only for
// the pointer copy, never across routing.
func (p *Proxy) GetConfig() *Config {
	p.configLock.RLock()
	defer p.configLock.RUnlock()
	return p.config
}

// SwapConfig installs a new snapshot and returns the previous one. Swaps
// are atomic from a reader's perspective.
func (p *Proxy) SwapConfig(newConfig *Config) *Config {
	p.configLock.Lock()
	defer p.configLock.Unlock()
	old := p.config
	p.config = newConfig
	return old
}

// InstallConfig adopts a new snapshot: refreshes the num_servers stat from
// the pool membership, swaps the snapshot in, stamps config_last_success,
// and in async mode posts the retired snapshot to the intake queue so its
// last router-side reference drops on the loop, outside any lock.
func (p *Proxy) InstallConfig(cfg *Config) {
	p.stats.set(StatNumServers, 0)
	for _, pool := range cfg.Pools() {
		switch pool.Type() {
		case PoolRegular, PoolRegional:
			p.stats.add(StatNumServers, int64(pool.ClientCount()))
		}
	}

	old := p.SwapConfig(cfg)
	p.stats.set(StatConfigLastSuccess, time.Now().Unix())

	if old != nil && !p.opts.Sync && p.queue != nil {
		if err := p.queue.Enqueue(QueueEntry{Type: EntryTypeOldConfig, OldConfig: old}); err != nil {
			p.logger.Debug("Could not post old-config retirement entry.", zap.Error(err))
		}
	}
}
