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

// Package bqueue implements a first-in, first-out queue with an optional
// capacity bound, safe for concurrent use by multiple producers and
// consumers.
//
// Producers block in [Queue.Put] while the queue is full, and consumers
// block in [Queue.Get] while it is empty. [Queue.GetNoWait] polls without
// blocking. Blocking is coordinated by two binary gates, one recording that
// the buffer has room and one recording that an item is available to the
// next consumer. Each operation re-arms a gate only if the buffer state it
// records still holds after the operation, so that the gates never drift
// out of step with the buffer.
//
// Blocking methods take a context to bound the wait. A nil context is
// treated like context.Background: the wait does not time out.
package bqueue

import (
	"context"
	"errors"
	"sync"

	"github.com/creachadair/jrpc2/metrics"
	"github.com/creachadair/lockstep/gate"
	"github.com/creachadair/mds/queue"
	"github.com/creachadair/msync/trigger"
)

var (
	// ErrEmpty is reported by GetNoWait when no item is available.
	// It is not a failure: polling callers should expect it.
	ErrEmpty = errors.New("queue is empty")

	// ErrClosed is reported by operations on a closed queue.
	ErrClosed = errors.New("queue is closed")
)

// Options are optional settings for a [Queue]. A nil *Options is ready for
// use and provides default values.
type Options struct {
	// Name is the prefix for metric names. If empty, "queue" is used.
	Name string

	// If set, record operation counters in this collector.
	Metrics *metrics.M
}

// A Queue is a bounded FIFO queue of values of type T.
// A Queue must be constructed by [New].
type Queue[T any] struct {
	cap int // read-only after construction
	mx  counters

	notEmpty *gate.Gate    // available while an item is promised to the next consumer
	notFull  *gate.Gate    // available while the buffer has room
	drained  *trigger.Cond // signaled when a get empties the buffer
	closed   chan struct{} // closed by Close

	μ        sync.Mutex // protects the fields below
	buf      *queue.Queue[T]
	isClosed bool
}

// New constructs a new empty queue that holds at most capacity items.
// If capacity <= 0 the queue is unbounded and Put never blocks.
func New[T any](capacity int, opts *Options) *Queue[T] {
	return &Queue[T]{
		cap:      max(capacity, 0),
		mx:       opts.counters(),
		notEmpty: gate.New(false),
		notFull:  gate.New(true),
		drained:  trigger.New(),
		closed:   make(chan struct{}),
		buf:      queue.New[T](),
	}
}

// Put adds v to the end of the queue, blocking while the queue is full.
// Put reports ErrClosed if the queue is closed before v is added, or an
// error from ctx if it ends while Put is blocked.
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	if err := q.acquire(ctx, q.notFull, q.mx.putWait); err != nil {
		return err
	}
	q.μ.Lock()
	defer q.μ.Unlock()
	if q.isClosed {
		q.notFull.Signal() // pass the slot on
		return ErrClosed
	}

	wasEmpty := q.buf.IsEmpty()
	q.buf.Add(v)
	if wasEmpty {
		q.notEmpty.Signal()
	}
	if !q.fullLocked() {
		q.notFull.Signal()
	}
	q.mx.count(q.mx.put)
	q.mx.setMax(q.mx.depth, q.buf.Len())
	return nil
}

// Get removes and returns the item at the front of the queue, blocking
// while the queue is empty. Once the queue is closed, Get continues to
// return buffered items and reports ErrClosed when none remain. If ctx
// ends while Get is blocked, Get reports an error from ctx.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T
	err := q.acquire(ctx, q.notEmpty, q.mx.getWait)
	if err != nil && err != ErrClosed {
		return zero, err
	}
	q.μ.Lock()
	defer q.μ.Unlock()
	if q.buf.IsEmpty() {
		if q.isClosed {
			return zero, ErrClosed
		}
		panic("bqueue: consumer woken with an empty buffer")
	}
	return q.popLocked(), nil
}

// GetNoWait removes and returns the item at the front of the queue if one
// is available to the caller, or reports ErrEmpty without blocking.
//
// An item is not available to the caller if another consumer has already
// been woken to receive it, even though the buffer is not yet empty.
func (q *Queue[T]) GetNoWait() (T, error) {
	var zero T
	woken := q.notEmpty.TryWait()

	q.μ.Lock()
	defer q.μ.Unlock()

	// The buffer, not the gate, decides. On an open queue a consumer holding
	// the wakeup always finds an item, so woken is false here.
	if q.buf.IsEmpty() {
		if q.isClosed {
			return zero, ErrClosed
		}
		q.mx.count(q.mx.empty)
		return zero, ErrEmpty
	}
	if !woken && !q.isClosed && !q.notEmpty.TryWait() {
		// Some other consumer holds the wakeup for this item; do not steal it.
		q.mx.count(q.mx.empty)
		return zero, ErrEmpty
	}
	return q.popLocked(), nil
}

// Len reports the number of items currently in the queue.
func (q *Queue[T]) Len() int {
	q.μ.Lock()
	defer q.μ.Unlock()
	return q.buf.Len()
}

// Cap reports the capacity of the queue, or 0 if it is unbounded.
func (q *Queue[T]) Cap() int { return q.cap }

// IsEmpty reports whether the queue is currently empty.
func (q *Queue[T]) IsEmpty() bool { return q.Len() == 0 }

// IsFull reports whether the queue is currently full.
// An unbounded queue is never full.
func (q *Queue[T]) IsFull() bool {
	q.μ.Lock()
	defer q.μ.Unlock()
	return q.fullLocked()
}

// IsClosed reports whether q has been closed.
func (q *Queue[T]) IsClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

// Close closes the queue. Pending and subsequent calls to Put report
// ErrClosed. Items already in the queue remain available to Get and
// GetNoWait. Close is idempotent.
func (q *Queue[T]) Close() {
	q.μ.Lock()
	defer q.μ.Unlock()
	if !q.isClosed {
		q.isClosed = true
		close(q.closed)
	}
}

// Sync blocks until the queue is empty or ctx ends.
func (q *Queue[T]) Sync(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		// Capture the trigger before checking, so that a get that empties the
		// queue between the check and the wait is not missed.
		ready := q.drained.Ready()
		if q.IsEmpty() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ready:
			// try again
		}
	}
}

// acquire takes g, blocking if necessary. It reports ErrClosed if q is
// closed while waiting, in which case g is not taken. A nil ctx never ends.
func (q *Queue[T]) acquire(ctx context.Context, g *gate.Gate, waitMetric string) error {
	if g.TryWait() {
		return nil
	}
	q.mx.count(waitMetric)
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-g.Ready():
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// popLocked removes the front item. The caller must hold q.μ and the
// buffer must not be empty.
func (q *Queue[T]) popLocked() T {
	wasFull := q.fullLocked()
	v, _ := q.buf.Pop()
	if wasFull {
		q.notFull.Signal()
	}
	if q.buf.IsEmpty() {
		q.drained.Signal()
	} else {
		q.notEmpty.Signal()
	}
	q.mx.count(q.mx.get)
	return v
}

func (q *Queue[T]) fullLocked() bool { return q.cap > 0 && q.buf.Len() >= q.cap }
