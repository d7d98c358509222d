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

package gate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/creachadair/lockstep/gate"
)

func TestInitialState(t *testing.T) {
	if g := gate.New(false); g.TryWait() {
		t.Error("TryWait on unavailable gate: got true, want false")
	}
	g := gate.New(true)
	if !g.TryWait() {
		t.Error("TryWait on available gate: got false, want true")
	}
	if g.TryWait() {
		t.Error("TryWait after take: got true, want false")
	}
}

func TestBinary(t *testing.T) {
	g := gate.New(false)
	if !g.Signal() {
		t.Error("Signal on unavailable gate: got false, want true")
	}
	// Extra signals are absorbed, not counted.
	if g.Signal() {
		t.Error("Signal on available gate: got true, want false")
	}
	if !g.TryWait() {
		t.Fatal("TryWait: got false, want true")
	}
	if g.TryWait() {
		t.Error("Second TryWait: got true, want false")
	}
}

func TestWait(t *testing.T) {
	t.Run("Wakes", func(t *testing.T) {
		g := gate.New(false)
		done := make(chan error, 1)
		go func() { done <- g.Wait(context.Background()) }()

		select {
		case err := <-done:
			t.Fatalf("Wait returned early: %v", err)
		case <-time.After(20 * time.Millisecond):
		}
		g.Signal()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Wait: unexpected error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Wait did not return after Signal")
		}
		if g.TryWait() {
			t.Error("Gate still available after Wait")
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		g := gate.New(false)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := g.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Wait: got %v, want %v", err, context.DeadlineExceeded)
		}

		// A timed-out wait must not take the gate.
		g.Signal()
		if !g.TryWait() {
			t.Error("Gate not available after timed-out Wait and Signal")
		}
	})

	t.Run("NilContext", func(t *testing.T) {
		var ctx context.Context // nil: no time limit
		g := gate.New(false)
		time.AfterFunc(10*time.Millisecond, func() { g.Signal() })
		if err := g.Wait(ctx); err != nil {
			t.Errorf("Wait: unexpected error: %v", err)
		}
		if g.TryWait() {
			t.Error("Gate still available after Wait")
		}
	})
}

func TestReady(t *testing.T) {
	a, b := gate.New(false), gate.New(false)
	b.Signal()
	select {
	case <-a.Ready():
		t.Error("Received from unavailable gate")
	case <-b.Ready():
		// OK
	case <-time.After(5 * time.Second):
		t.Fatal("No gate became ready")
	}
	if b.TryWait() {
		t.Error("Receive from Ready did not take the gate")
	}
}
