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

package cmdqueue_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/server"
	"github.com/creachadair/lockstep/bqueue"
	"github.com/creachadair/lockstep/bqueue/rpcqueue"
	"github.com/creachadair/lockstep/cmd/lockstep/internal/cmdqueue"
	"github.com/google/go-cmp/cmp"
)

func TestParseItems(t *testing.T) {
	got := cmdqueue.ParseItems([]string{
		`{"a":1}`, `42`, `"quoted"`, `true`, `hello`, `[1,`, ``,
	})
	var texts []string
	for _, item := range got {
		texts = append(texts, string(item))
	}
	want := []string{
		`{"a":1}`, `42`, `"quoted"`, `true`, `"hello"`, `"[1,"`, `""`,
	}
	if diff := cmp.Diff(texts, want); diff != "" {
		t.Errorf("ParseItems (-got, +want):\n%s", diff)
	}
}

func TestCommands(t *testing.T) {
	q := bqueue.New[json.RawMessage](4, nil)
	svc := rpcqueue.NewService(q, nil)
	loc := server.NewLocal(handler.ServiceMap{"Queue": svc.Methods()}, nil)
	defer loc.Close()
	c := rpcqueue.NewClient[json.RawMessage](loc.Client, "Queue.")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	items := cmdqueue.ParseItems([]string{`{"x":1}`, "plain text"})
	if err := cmdqueue.PutItems(ctx, c, items); err != nil {
		t.Fatalf("PutItems: unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := cmdqueue.PrintStatus(ctx, &buf, c); err != nil {
		t.Fatalf("PrintStatus: unexpected error: %v", err)
	}
	var st rpcqueue.StatusReply
	if err := json.Unmarshal(buf.Bytes(), &st); err != nil {
		t.Fatalf("Decoding status %q: %v", buf.String(), err)
	}
	if diff := cmp.Diff(st, rpcqueue.StatusReply{Len: 2, Cap: 4}); diff != "" {
		t.Errorf("Status (-got, +want):\n%s", diff)
	}

	buf.Reset()
	if err := cmdqueue.GetItem(ctx, &buf, c); err != nil {
		t.Fatalf("GetItem: unexpected error: %v", err)
	}
	if err := cmdqueue.PollItem(ctx, &buf, c); err != nil {
		t.Fatalf("PollItem: unexpected error: %v", err)
	}
	if got, want := buf.String(), "{\"x\":1}\n\"plain text\"\n"; got != want {
		t.Errorf("Output: got %q, want %q", got, want)
	}

	buf.Reset()
	if err := cmdqueue.PollItem(ctx, &buf, c); err == nil || !strings.Contains(err.Error(), "no item") {
		t.Errorf("PollItem on empty queue: got %v, want no item error", err)
	}
	short, stop := context.WithTimeout(ctx, 50*time.Millisecond)
	defer stop()
	if err := cmdqueue.GetItem(short, &buf, c); err == nil || !strings.Contains(err.Error(), "before timeout") {
		t.Errorf("GetItem on empty queue: got %v, want timeout error", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Unexpected output: %q", buf.String())
	}

	if err := cmdqueue.PutItems(ctx, c, nil); err != nil {
		t.Errorf("PutItems with no items: unexpected error: %v", err)
	}
}
