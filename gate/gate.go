// Copyright 2026 Michael J. Fromberger. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gate implements a binary signal shared by goroutines.
//
// A [Gate] is either available or unavailable. Signalling a gate makes it
// available; waiting on a gate blocks until it is available and then takes
// it, leaving it unavailable again. Unlike a counting semaphore, signalling
// an available gate has no effect, so a gate records at most one pending
// wakeup.
package gate

import (
	"context"

	"github.com/creachadair/msync"
)

// A Gate is a binary signal. A Gate must be constructed by [New].
type Gate struct {
	f *msync.Flag[struct{}]
}

// New constructs a new gate that is initially available if avail is true,
// and otherwise unavailable.
func New(avail bool) *Gate {
	g := &Gate{f: msync.NewFlag[struct{}]()}
	if avail {
		g.f.Set(struct{}{})
	}
	return g
}

// Signal makes g available, and reports whether this changed its state.
// Signal does not block.
func (g *Gate) Signal() bool { return g.f.Set(struct{}{}) }

// Wait blocks until g is available and then takes it. If ctx ends before g
// becomes available, Wait returns ctx.Err() and g is not taken. A nil ctx
// never ends.
func (g *Gate) Wait(ctx context.Context) error {
	if ctx == nil {
		<-g.f.Ready()
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.f.Ready():
		return nil
	}
}

// TryWait takes g and reports true if it is available, or reports false
// without blocking if it is not.
func (g *Gate) TryWait() bool {
	select {
	case <-g.f.Ready():
		return true
	default:
		return false
	}
}

// Ready returns a channel that delivers a value when g is available.
// Receiving from the channel takes the gate.
func (g *Gate) Ready() <-chan struct{} { return g.f.Ready() }
