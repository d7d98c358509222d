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

// Package rpcqueue exports a bqueue.Queue via a JSON-RPC interface, and
// provides a client that delegates to such a service.
package rpcqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/code"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/lockstep/bqueue"
)

// Service implements a service that adapts RPC requests to a queue.
// Items are carried as opaque JSON values.
type Service struct {
	q     *bqueue.Queue[json.RawMessage]
	debug bool
}

// NewService constructs a Service that delegates to the given queue.
func NewService(q *bqueue.Queue[json.RawMessage], opts *ServiceOpts) Service {
	s := Service{q: q}
	opts.set(&s)
	return s
}

// ServiceOpts provides optional settings for constructing a Service.
type ServiceOpts struct {
	// Log each completed request.
	Debug bool
}

func (o *ServiceOpts) set(s *Service) {
	if o == nil {
		return
	}
	s.debug = o.Debug
}

// Methods returns a map of the service methods for s.
func (s Service) Methods() handler.Map {
	return handler.Map{
		"Put":       handler.New(s.Put),
		"Get":       handler.New(s.Get),
		"GetNoWait": handler.New(s.GetNoWait),
		"Status":    handler.New(s.Status),
	}
}

// Put handles the corresponding method of the queue.
func (s Service) Put(ctx context.Context, req *PutRequest) error {
	if len(req.Item) == 0 {
		return jrpc2.Errorf(code.InvalidParams, "missing item")
	}
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()
	err := s.q.Put(ctx, req.Item)
	s.logf("Put %d bytes: err=%v", len(req.Item), err)
	return filterErr(err)
}

// Get handles the corresponding method of the queue.
func (s Service) Get(ctx context.Context, req *GetRequest) (json.RawMessage, error) {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()
	item, err := s.q.Get(ctx)
	s.logf("Get %d bytes: err=%v", len(item), err)
	return item, filterErr(err)
}

// GetNoWait handles the corresponding method of the queue.
func (s Service) GetNoWait(ctx context.Context) (json.RawMessage, error) {
	item, err := s.q.GetNoWait()
	return item, filterErr(err)
}

// Status reports the instantaneous state of the queue.
func (s Service) Status(ctx context.Context) (*StatusReply, error) {
	return &StatusReply{
		Len:    s.q.Len(),
		Cap:    s.q.Cap(),
		Empty:  s.q.IsEmpty(),
		Full:   s.q.IsFull(),
		Closed: s.q.IsClosed(),
	}, nil
}

func (s Service) logf(msg string, args ...any) {
	if s.debug {
		log.Printf("DEBUG :: "+msg, args...)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Grace is the extra time a client waits beyond a request timeout for the
// server to report the outcome of a blocking call. An item taken by the
// server after the client gave up would otherwise be lost.
const Grace = 5 * time.Second

// MaxWait bounds the server-side timeout of a single blocking request. A
// longer wait is made of several requests, and the caller's context is
// checked between them.
const MaxWait = time.Second

// Client implements the queue operations by calling a JSON-RPC service.
// Items of type T are encoded as JSON.
type Client[T any] struct {
	cli    *jrpc2.Client
	prefix string
}

// NewClient constructs a Client that delegates through cli. The prefix is
// prepended to each method name, for example "Queue.".
func NewClient[T any](cli *jrpc2.Client, prefix string) Client[T] {
	return Client[T]{cli: cli, prefix: prefix}
}

// Put adds v to the queue, blocking while the queue is full.
func (c Client[T]) Put(ctx context.Context, v T) error {
	item, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	return c.call(ctx, "Put", func(ctx context.Context, timeout time.Duration) error {
		_, err := c.cli.Call(ctx, c.prefix+"Put", &PutRequest{Item: item, Timeout: timeout})
		return err
	})
}

// Get removes and returns the item at the front of the queue, blocking
// while the queue is empty.
func (c Client[T]) Get(ctx context.Context) (T, error) {
	var out T
	err := c.call(ctx, "Get", func(ctx context.Context, timeout time.Duration) error {
		return c.cli.CallResult(ctx, c.prefix+"Get", &GetRequest{Timeout: timeout}, &out)
	})
	return out, err
}

// GetNoWait removes and returns the front item if one is available, or
// reports bqueue.ErrEmpty.
func (c Client[T]) GetNoWait(ctx context.Context) (T, error) {
	var out T
	err := c.cli.CallResult(orBackground(ctx), c.prefix+"GetNoWait", nil, &out)
	return out, unfilterErr(err)
}

// Status reports the state of the queue.
func (c Client[T]) Status(ctx context.Context) (*StatusReply, error) {
	var rsp StatusReply
	if err := c.cli.CallResult(orBackground(ctx), c.prefix+"Status", nil, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

// Len reports the number of items in the queue.
func (c Client[T]) Len(ctx context.Context) (int, error) {
	st, err := c.Status(ctx)
	if err != nil {
		return 0, err
	}
	return st.Len, nil
}

// call invokes a blocking method as a series of requests, each with a
// server-side timeout of at most MaxWait. A request is never abandoned by
// the client before the server reports its outcome, so an item the server
// has taken or added is not lost when ctx ends; instead, ctx is checked
// each time the server reports a timeout.
func (c Client[T]) call(ctx context.Context, method string, f func(context.Context, time.Duration) error) error {
	ctx = orBackground(ctx)
	dl, hasDeadline := ctx.Deadline()
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		timeout := MaxWait
		if hasDeadline {
			timeout = min(timeout, time.Until(dl))
			if timeout <= 0 {
				return fmt.Errorf("%s: %w", method, context.DeadlineExceeded)
			}
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout+Grace)
		err := f(rctx, timeout)
		cancel()
		if code.FromError(err) != codeTimedOut {
			return unfilterErr(err)
		}
		// The server timed out without taking effect, so it is safe to retry.
	}
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
