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
	"fmt"
	"sort"
	"strings"

	"go.uber.org/atomic"

	"github.com/kiscz/mcrouter/api/mc"
)

// Stat indexes one per-worker counter.
type Stat int

// Per-worker stats. The outstanding, processing and waiting entries are
// gauges; num_servers, config_last_success and the rtt entries are
// overwritten on each config install or flush. Everything else is
// monotonically non-decreasing for the worker's lifetime.
const (
	StatRequestNumOutstanding Stat = iota
	StatReqsProcessing
	StatReqsWaiting
	StatNumServers
	StatConfigLastSuccess

	StatRequestSent
	StatRequestSentCount
	StatRequestReplied
	StatRequestRepliedCount
	StatRequestSuccess
	StatRequestSuccessCount
	StatRequestError
	StatRequestErrorCount

	StatCmdStats
	StatCmdStatsCount
	StatCmdGet
	StatCmdGetCount
	StatCmdMeta
	StatCmdAdd
	StatCmdAddCount
	StatCmdReplace
	StatCmdReplaceCount
	StatCmdSet
	StatCmdSetCount
	StatCmdIncr
	StatCmdIncrCount
	StatCmdDecr
	StatCmdDecrCount
	StatCmdDelete
	StatCmdDeleteCount
	StatCmdLeaseSet
	StatCmdLeaseSetCount
	StatCmdLeaseGet
	StatCmdLeaseGetCount
	StatCmdOther
	StatCmdOtherCount

	StatRtt
	StatRttMin
	StatRttMax

	statCount
)

var statNames = [statCount]string{
	StatRequestNumOutstanding: "proxy_request_num_outstanding",
	StatReqsProcessing:        "proxy_reqs_processing",
	StatReqsWaiting:           "proxy_reqs_waiting",
	StatNumServers:            "num_servers",
	StatConfigLastSuccess:     "config_last_success",
	StatRequestSent:           "request_sent",
	StatRequestSentCount:      "request_sent_count",
	StatRequestReplied:        "request_replied",
	StatRequestRepliedCount:   "request_replied_count",
	StatRequestSuccess:        "request_success",
	StatRequestSuccessCount:   "request_success_count",
	StatRequestError:          "request_error",
	StatRequestErrorCount:     "request_error_count",
	StatCmdStats:              "cmd_stats",
	StatCmdStatsCount:         "cmd_stats_count",
	StatCmdGet:                "cmd_get",
	StatCmdGetCount:           "cmd_get_count",
	StatCmdMeta:               "cmd_meta",
	StatCmdAdd:                "cmd_add",
	StatCmdAddCount:           "cmd_add_count",
	StatCmdReplace:            "cmd_replace",
	StatCmdReplaceCount:       "cmd_replace_count",
	StatCmdSet:                "cmd_set",
	StatCmdSetCount:           "cmd_set_count",
	StatCmdIncr:               "cmd_incr",
	StatCmdIncrCount:          "cmd_incr_count",
	StatCmdDecr:               "cmd_decr",
	StatCmdDecrCount:          "cmd_decr_count",
	StatCmdDelete:             "cmd_delete",
	StatCmdDeleteCount:        "cmd_delete_count",
	StatCmdLeaseSet:           "cmd_lease_set",
	StatCmdLeaseSetCount:      "cmd_lease_set_count",
	StatCmdLeaseGet:           "cmd_lease_get",
	StatCmdLeaseGetCount:      "cmd_lease_get_count",
	StatCmdOther:              "cmd_other",
	StatCmdOtherCount:         "cmd_other_count",
	StatRtt:                   "rtt",
	StatRttMin:                "rtt_min",
	StatRttMax:                "rtt_max",
}

// Name returns the stat's export name.
func (s Stat) Name() string {
	if s < 0 || s >= statCount {
		return "unknown"
	}
	return statNames[s]
}

// statsContainer is the per-worker counter array. Values are updated
// atomically so off-loop readers (stats logger, stats replies) may read
// without locks and tolerate skew.
type statsContainer struct {
	values [statCount]atomic.Int64
}

func (s *statsContainer) incr(st Stat)         { s.values[st].Inc() }
func (s *statsContainer) add(st Stat, n int64) { s.values[st].Add(n) }
func (s *statsContainer) decr(st Stat)         { s.values[st].Dec() }
func (s *statsContainer) set(st Stat, v int64) { s.values[st].Store(v) }
func (s *statsContainer) get(st Stat) int64    { return s.values[st].Load() }

// opStatTable maps ops to their stat pair. metaget has no _count variant.
type opStatPair struct {
	stat     Stat
	count    Stat
	hasCount bool
}

var opStatTable = map[mc.Op]opStatPair{
	mc.OpStats:    {StatCmdStats, StatCmdStatsCount, true},
	mc.OpGet:      {StatCmdGet, StatCmdGetCount, true},
	mc.OpMetaget:  {StatCmdMeta, 0, false},
	mc.OpAdd:      {StatCmdAdd, StatCmdAddCount, true},
	mc.OpReplace:  {StatCmdReplace, StatCmdReplaceCount, true},
	mc.OpSet:      {StatCmdSet, StatCmdSetCount, true},
	mc.OpIncr:     {StatCmdIncr, StatCmdIncrCount, true},
	mc.OpDecr:     {StatCmdDecr, StatCmdDecrCount, true},
	mc.OpDelete:   {StatCmdDelete, StatCmdDeleteCount, true},
	mc.OpLeaseSet: {StatCmdLeaseSet, StatCmdLeaseSetCount, true},
	mc.OpLeaseGet: {StatCmdLeaseGet, StatCmdLeaseGetCount, true},
}

// StatValue reads one counter. Readers tolerate skew against in-flight
// updates.
func (p *Proxy) StatValue(st Stat) int64 {
	return p.stats.get(st)
}

// StatsSnapshot copies all counters by name.
func (p *Proxy) StatsSnapshot() map[string]int64 {
	snap := make(map[string]int64, int(statCount))
	for st := Stat(0); st < statCount; st++ {
		snap[st.Name()] = p.stats.get(st)
	}
	return snap
}

// buildStatsReply renders the stats reply for a stats request. A non-empty
// group argument filters stats by name prefix; "all" or the empty string
// returns everything.
func (p *Proxy) buildStatsReply(group string) *mc.Message {
	p.FlushRttStats()

	names := make([]string, 0, int(statCount))
	for st := Stat(0); st < statCount; st++ {
		names = append(names, st.Name())
	}
	sort.Strings(names)

	snap := p.StatsSnapshot()
	var b strings.Builder
	for _, name := range names {
		if group != "" && group != "all" && !strings.HasPrefix(name, group) {
			continue
		}
		fmt.Fprintf(&b, "STAT %s %d\r\n", name, snap[name])
	}
	b.WriteString("END\r\n")

	return &mc.Message{
		Op:     mc.OpStats,
		Result: mc.ResultOK,
		Value:  []byte(b.String()),
	}
}
