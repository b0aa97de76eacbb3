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

// Package route declares the route-handle surface the proxy core dispatches
// through. Handle implementations (hashing rings, failover nodes, pool
// routes) live outside the core; the core only drives this interface.
package route

import (
	"context"

	"github.com/kiscz/mcrouter/api/mc"
)

// Handle is one node of a composable routing tree. The root Handle of a
// config snapshot decides which upstream pools receive a given request.
type Handle interface {
	// Name identifies the handle for debugging and service-info output.
	Name() string

	// Dispatch routes the request and returns the reply. It runs on a fiber
	// task and may block while awaiting upstream replies. Errors are
	// materialized by the core into local_error replies; they never
	// propagate past the fiber boundary.
	Dispatch(ctx context.Context, req *mc.Message) (*mc.Message, error)

	// CouldRouteTo returns the child handles this request could reach.
	// Used for introspection only, never on the request path.
	CouldRouteTo(req *mc.Message) []Handle
}

// DestinationHandle is implemented by leaf handles bound to a single
// upstream client.
type DestinationHandle interface {
	Handle

	// ClientName identifies the upstream client this leaf sends to.
	ClientName() string
}

// ServiceInfo answers get-service-info requests against a config snapshot.
// The handler owns replying: it must invoke reply exactly once, possibly
// after the call returns.
type ServiceInfo interface {
	HandleRequest(req *mc.Message, reply func(*mc.Message))
}
