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

	"go.uber.org/fx"
)

// Module provides a started Router into the fx graph.
var Module = fx.Provide(NewFx)

// FxParams are the inputs for the fx-managed Router.
type FxParams struct {
	fx.In

	Config    Config
	Lifecycle fx.Lifecycle
}

// FxResults holds the Router provided into the graph.
type FxResults struct {
	fx.Out

	Router *Router
}

// NewFx builds a Router whose Start and Stop are bound to the fx
// application lifecycle.
func NewFx(p FxParams) (FxResults, error) {
	r, err := New(p.Config)
	if err != nil {
		return FxResults{}, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error { return r.Start() },
		OnStop:  func(context.Context) error { return r.Stop() },
	})
	return FxResults{Router: r}, nil
}
