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

// Package queuetest provides correctness tests for implementations of a
// bounded blocking queue.
package queuetest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/creachadair/lockstep/bqueue"
	"github.com/creachadair/mds/mapset"
	"github.com/creachadair/taskgroup"
	"github.com/google/go-cmp/cmp"
)

// Queue is the interface exercised by [Run]. Implementations must report
// [bqueue.ErrEmpty] from GetNoWait when no item is available, and an error
// satisfying errors.Is(err, context.DeadlineExceeded) when a blocking call
// times out.
type Queue interface {
	Put(ctx context.Context, v string) error
	Get(ctx context.Context) (string, error)
	GetNoWait(ctx context.Context) (string, error)
	Len(ctx context.Context) (int, error)
}

// Local adapts q to the [Queue] interface.
func Local(q *bqueue.Queue[string]) Queue { return local{q} }

type local struct{ q *bqueue.Queue[string] }

func (l local) Put(ctx context.Context, v string) error { return l.q.Put(ctx, v) }
func (l local) Get(ctx context.Context) (string, error) { return l.q.Get(ctx) }
func (l local) GetNoWait(_ context.Context) (string, error) { return l.q.GetNoWait() }
func (l local) Len(_ context.Context) (int, error) { return l.q.Len(), nil }

// NewQueue constructs an empty queue with the given capacity for a test.
// A capacity <= 0 requests an unbounded queue.
type NewQueue func(t *testing.T, capacity int) Queue

// How long a blocked operation must stay blocked for the test to believe it.
const settle = 50 * time.Millisecond

// Run applies the correctness tests to queues constructed by newQueue.
func Run(t *testing.T, newQueue NewQueue) {
	t.Helper()

	t.Run("FIFO", func(t *testing.T) {
		q := newQueue(t, 0)
		checkLen(t, q, 0)
		mustPut(t, q, "apple", "pear", "plum")
		checkLen(t, q, 3)
		checkGets(t, q, "apple", "pear", "plum")
		checkLen(t, q, 0)
	})

	t.Run("GetNoWait", func(t *testing.T) {
		q := newQueue(t, 4)
		checkNoWait(t, q, "", bqueue.ErrEmpty)
		mustPut(t, q, "cherry")
		checkNoWait(t, q, "cherry", nil)
		checkNoWait(t, q, "", bqueue.ErrEmpty)
	})

	t.Run("GetTimeout", func(t *testing.T) {
		q := newQueue(t, 4)
		ctx, cancel := context.WithTimeout(context.Background(), settle)
		defer cancel()
		if v, err := q.Get(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Get on empty queue: got (%q, %v), want %v", v, err, context.DeadlineExceeded)
		}
		mustPut(t, q, "quince")
		checkGets(t, q, "quince")
	})

	t.Run("Bounded", func(t *testing.T) {
		const capacity = 3
		q := newQueue(t, capacity)
		for i := range capacity {
			mustPut(t, q, strconv.Itoa(i))
		}
		ctx, cancel := context.WithTimeout(context.Background(), settle)
		defer cancel()
		if err := q.Put(ctx, "overflow"); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Put on full queue: got %v, want %v", err, context.DeadlineExceeded)
		}
		checkLen(t, q, capacity)

		// A blocked producer remains blocked until a consumer makes room.
		done := startPut(q, "3")
		checkBlocked(t, done)
		checkGets(t, q, "0")
		checkUnblocked(t, done)
		checkGets(t, q, "1", "2", "3")
	})

	t.Run("Scenario", func(t *testing.T) {
		q := newQueue(t, 2)
		mustPut(t, q, "10", "20")
		done := startPut(q, "30")
		checkBlocked(t, done)
		checkGets(t, q, "10")
		checkUnblocked(t, done)
		checkGets(t, q, "20", "30")
		checkNoWait(t, q, "", bqueue.ErrEmpty)
	})

	t.Run("BlockedGet", func(t *testing.T) {
		q := newQueue(t, 4)
		done := startGet(q)
		select {
		case r := <-done:
			t.Fatalf("Get did not block: got (%q, %v)", r.v, r.err)
		case <-time.After(settle):
			// OK, still blocked
		}

		// The item put goes to the consumer that was already waiting. Once
		// it has been delivered, nothing is left for a poller.
		mustPut(t, q, "fig")
		select {
		case r := <-done:
			if r.err != nil || r.v != "fig" {
				t.Errorf("Blocked Get: got (%q, %v), want (fig, nil)", r.v, r.err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Blocked Get did not complete")
		}
		checkNoWait(t, q, "", bqueue.ErrEmpty)
		checkLen(t, q, 0)
	})

	t.Run("Concurrent", func(t *testing.T) {
		const workers, perWorker = 8, 1000
		q := newQueue(t, 16)

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		var μ sync.Mutex
		seen := mapset.New[string]()
		var dups []string

		g := taskgroup.New(nil)
		for p := range workers {
			g.Go(func() error {
				for i := range perWorker {
					if err := q.Put(ctx, fmt.Sprintf("%d:%d", p, i)); err != nil {
						return fmt.Errorf("producer %d put %d: %w", p, i, err)
					}
				}
				return nil
			})
		}
		for c := range workers {
			g.Go(func() error {
				last := make(map[string]int) // producer → last index seen
				for range perWorker {
					v, err := q.Get(ctx)
					if err != nil {
						return fmt.Errorf("consumer %d get: %w", c, err)
					}
					p, i, err := splitItem(v)
					if err != nil {
						return err
					}
					if prev, ok := last[p]; ok && i <= prev {
						return fmt.Errorf("consumer %d: item %q after index %d", c, v, prev)
					}
					last[p] = i

					μ.Lock()
					if seen.Has(v) {
						dups = append(dups, v)
					}
					seen.Add(v)
					μ.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("Concurrent transfer: %v", err)
		}
		if len(dups) != 0 {
			t.Errorf("Duplicate items delivered: %q", dups)
		}
		if got, want := seen.Len(), workers*perWorker; got != want {
			t.Errorf("Delivered %d distinct items, want %d", got, want)
		}
		checkLen(t, q, 0)
	})
}

func splitItem(v string) (string, int, error) {
	p, idx, ok := strings.Cut(v, ":")
	if !ok {
		return "", 0, fmt.Errorf("invalid item %q", v)
	}
	i, err := strconv.Atoi(idx)
	if err != nil {
		return "", 0, fmt.Errorf("invalid item %q: %w", v, err)
	}
	return p, i, nil
}

func mustPut(t *testing.T, q Queue, vs ...string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, v := range vs {
		if err := q.Put(ctx, v); err != nil {
			t.Fatalf("Put %q: unexpected error: %v", v, err)
		}
	}
}

func checkGets(t *testing.T, q Queue, want ...string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var got []string
	for range want {
		v, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("Get: unexpected error: %v", err)
		}
		got = append(got, v)
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Get (-got, +want):\n%s", diff)
	}
}

func checkNoWait(t *testing.T, q Queue, want string, werr error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := q.GetNoWait(ctx)
	if !errorOK(err, werr) {
		t.Errorf("GetNoWait: got error %v, want %v", err, werr)
	} else if got != want {
		t.Errorf("GetNoWait: got %q, want %q", got, want)
	}
}

func checkLen(t *testing.T, q Queue, want int) {
	t.Helper()
	got, err := q.Len(context.Background())
	if err != nil {
		t.Errorf("Len: unexpected error: %v", err)
	} else if got != want {
		t.Errorf("Len: got %d, want %d", got, want)
	}
}

// startPut runs a Put of v in a separate goroutine, and returns a channel
// that delivers its result.
func startPut(q Queue, v string) <-chan error {
	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		done <- q.Put(ctx, v)
	}()
	return done
}

type getResult struct {
	v   string
	err error
}

// startGet runs a Get in a separate goroutine, and returns a channel that
// delivers its result.
func startGet(q Queue) <-chan getResult {
	done := make(chan getResult, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		v, err := q.Get(ctx)
		done <- getResult{v, err}
	}()
	return done
}

func checkBlocked(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		t.Fatalf("Put did not block (err=%v)", err)
	case <-time.After(settle):
		// OK, still blocked
	}
}

func checkUnblocked(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Blocked Put: unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Blocked Put did not complete")
	}
}

func errorOK(err, werr error) bool {
	if werr == nil {
		return err == nil
	}
	return errors.Is(err, werr)
}
