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

// Package generator turns a push-style producer routine into a pull-based
// sequence of values.
//
// A [Generator] runs its producer routine in a separate goroutine. The
// routine delivers values by calling [Generator.Put], and the consumer
// retrieves them by calling [Generator.Get]. The two sides proceed in strict
// alternation: each Put suspends the producer until the consumer asks for
// the next value, and each Get suspends the consumer until the producer has
// delivered it. There is no buffering between them.
//
// A generator supports one logical consumer. Calling Get, Kill, or Clone
// concurrently from multiple goroutines is not supported.
package generator

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync/atomic"

	"github.com/creachadair/lockstep/gate"
	"github.com/creachadair/taskgroup"
)

var (
	// ErrKilled is reported by Put, Get, and Kill on a generator that has
	// already been killed. It indicates a usage error by the caller.
	ErrKilled = errors.New("generator was killed")

	// ErrTerminated is reported to the producer routine by a Put that was
	// suspended when the generator was killed. The routine should return
	// promptly, typically by returning this error.
	ErrTerminated = errors.New("generator terminated")
)

// Func is a producer routine. It is called with the generator it feeds,
// and delivers values by calling g.Put. It ends the sequence by returning.
// An error returned by the routine is reported by [Generator.Wait].
type Func[T any] func(g *Generator[T]) error

// A Generator delivers the values put by a producer routine to a consumer.
// A Generator must be constructed by [New].
type Generator[T any] struct {
	run Func[T]

	exited chan struct{} // closed when the producer goroutine is done
	err    error         // error reported by the routine

	getSig *gate.Gate // the producer has delivered a value or finished
	putSig *gate.Gate // the consumer wants a value, or the generator was killed

	done   atomic.Bool // the routine returned normally
	killed atomic.Bool // the consumer called Kill

	// The most recent value delivered by Put. Strict alternation of the
	// producer and the consumer protects it.
	value T
}

// New constructs a generator that runs f in a new goroutine. The routine
// does not begin executing until the first call to Get. If the generator
// is killed before then, f is never called.
func New[T any](f Func[T]) *Generator[T] {
	g := &Generator[T]{
		run:    f,
		getSig: gate.New(false),
		putSig: gate.New(false),
		exited: make(chan struct{}),
	}
	task := taskgroup.Go(g.produce)

	// A goroutine observing g.exited as closed may safely read g.err.
	go func() {
		g.err = task.Wait()
		close(g.exited)
	}()
	return g
}

// produce is the body of the producer goroutine.
func (g *Generator[T]) produce() error {
	<-g.putSig.Ready()
	if g.killed.Load() {
		return nil
	}
	err := g.run(g)
	if errors.Is(err, ErrTerminated) {
		err = nil
	}

	// If the consumer killed the generator it is no longer waiting on getSig,
	// and this exit is not the end of the sequence.
	if !g.killed.Load() {
		g.done.Store(true)
		g.getSig.Signal()
	}
	return err
}

// Put delivers v to the consumer and suspends the calling routine until
// the consumer requests another value. Put must only be called by the
// producer routine of g.
//
// If the generator is killed while Put is suspended, Put reports
// ErrTerminated. If the generator was already killed, Put reports ErrKilled.
func (g *Generator[T]) Put(v T) error {
	if g.killed.Load() {
		return ErrKilled
	}
	g.value = v
	g.getSig.Signal()
	<-g.putSig.Ready()
	if g.killed.Load() {
		return ErrTerminated
	}
	return nil
}

// Get resumes the producer routine and blocks until it delivers the next
// value. Get reports io.EOF once the routine has returned, and ErrKilled if
// the generator has been killed.
func (g *Generator[T]) Get() (T, error) {
	var zero T
	if g.killed.Load() {
		return zero, ErrKilled
	} else if g.done.Load() {
		return zero, io.EOF
	}
	g.putSig.Signal()
	<-g.getSig.Ready()
	if g.done.Load() {
		return zero, io.EOF
	}
	return g.value, nil
}

// Kill terminates the generator. A producer routine suspended in Put is
// resumed and its Put reports ErrTerminated. Kill reports ErrKilled if the
// generator was already killed.
func (g *Generator[T]) Kill() error {
	if !g.killed.CompareAndSwap(false, true) {
		return ErrKilled
	}
	g.putSig.Signal()
	return nil
}

// Clone returns a new generator running the same routine as g. The clone
// starts from the beginning of the sequence in its own goroutine; it does
// not share the progress or the state of g.
func (g *Generator[T]) Clone() *Generator[T] { return New(g.run) }

// Done reports whether the producer routine has returned and the sequence
// has ended.
func (g *Generator[T]) Done() bool { return g.done.Load() }

// Killed reports whether g has been killed.
func (g *Generator[T]) Killed() bool { return g.killed.Load() }

// Wait blocks until the producer goroutine has exited and returns the error
// reported by the routine, if any. The goroutine exits once the sequence
// ends, or after the generator is killed and the routine returns.
//
// Wait does not resume the producer. Calling Wait on a generator that is
// neither finished nor killed will block forever unless ctx ends, in which
// case Wait reports ctx.Err().
func (g *Generator[T]) Wait(ctx context.Context) error {
	if ctx == nil {
		<-g.exited
		return g.err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.exited:
		return g.err
	}
}

// All returns an iterator over the remaining values of g. If the loop over
// the iterator ends before the sequence does, g is killed.
func (g *Generator[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, err := g.Get()
			if err != nil {
				return
			}
			if !yield(v) {
				g.Kill()
				return
			}
		}
	}
}
