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

package mc

// Op identifies a memcached operation.
type Op uint8

// Supported operations.
const (
	OpUnknown Op = iota
	OpGet
	OpSet
	OpAdd
	OpReplace
	OpAppend
	OpPrepend
	OpDelete
	OpIncr
	OpDecr
	OpMetaget
	OpLeaseGet
	OpLeaseSet
	OpStats
	OpVersion
	OpFlushAll
	OpGetServiceInfo
)

var opToName = map[Op]string{
	OpUnknown:        "unknown",
	OpGet:            "get",
	OpSet:            "set",
	OpAdd:            "add",
	OpReplace:        "replace",
	OpAppend:         "append",
	OpPrepend:        "prepend",
	OpDelete:         "delete",
	OpIncr:           "incr",
	OpDecr:           "decr",
	OpMetaget:        "metaget",
	OpLeaseGet:       "lease-get",
	OpLeaseSet:       "lease-set",
	OpStats:          "stats",
	OpVersion:        "version",
	OpFlushAll:       "flush_all",
	OpGetServiceInfo: "get-service-info",
}

func (o Op) String() string {
	if name, ok := opToName[o]; ok {
		return name
	}
	return "unknown"
}

// IsKeyed reports whether the operation addresses a single cache key and
// therefore requires a non-empty key on the request.
func (o Op) IsKeyed() bool {
	switch o {
	case OpGet, OpSet, OpAdd, OpReplace, OpAppend, OpPrepend,
		OpDelete, OpIncr, OpDecr, OpMetaget, OpLeaseGet, OpLeaseSet:
		return true
	}
	return false
}
