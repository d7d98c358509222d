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

package rpcqueue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/code"
	"github.com/creachadair/lockstep/bqueue"
)

// PutRequest is the request to the Put method.
type PutRequest struct {
	Item    json.RawMessage `json:"item"`
	Timeout time.Duration   `json:"timeout,omitempty"`
}

// DisallowUnknownFields enables strict parsing for the jrpc2 package.
func (PutRequest) DisallowUnknownFields() {}

// GetRequest is the request to the Get method.
type GetRequest struct {
	Timeout time.Duration `json:"timeout,omitempty"`
}

// DisallowUnknownFields enables strict parsing for the jrpc2 package.
func (GetRequest) DisallowUnknownFields() {}

// StatusReply is the reply from the Status method.
type StatusReply struct {
	Len    int  `json:"len"`
	Cap    int  `json:"cap"`
	Empty  bool `json:"empty"`
	Full   bool `json:"full"`
	Closed bool `json:"closed"`
}

const (
	codeQueueEmpty  code.Code = -100
	codeQueueClosed code.Code = -101
	codeTimedOut    code.Code = -102
)

var (
	errQueueEmpty  = jrpc2.Errorf(codeQueueEmpty, "queue is empty")
	errQueueClosed = jrpc2.Errorf(codeQueueClosed, "queue is closed")
	errTimedOut    = jrpc2.Errorf(codeTimedOut, "operation timed out")
)

// filterErr assigns stable error codes to important queue errors so they
// will survive transit through JSON-RPC.
func filterErr(err error) error {
	switch {
	case errors.Is(err, bqueue.ErrEmpty):
		return errQueueEmpty
	case errors.Is(err, bqueue.ErrClosed):
		return errQueueClosed
	case errors.Is(err, context.DeadlineExceeded):
		return errTimedOut
	}
	return err
}

// unfilterErr converts JSON-RPC errors back into queue errors.
func unfilterErr(err error) error {
	switch code.FromError(err) {
	case codeQueueEmpty:
		return bqueue.ErrEmpty
	case codeQueueClosed:
		return bqueue.ErrClosed
	case codeTimedOut:
		return context.DeadlineExceeded
	}
	return err
}
