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

// Package cmdqueue implements the "queue" subcommand, which operates on the
// remote queue service named by the configuration.
package cmdqueue

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/lockstep/bqueue"
	"github.com/creachadair/lockstep/bqueue/rpcqueue"
	"github.com/creachadair/lockstep/cmd/lockstep/config"
)

var getFlags struct {
	Wait time.Duration
}

var Command = &command.C{
	Name: "queue",
	Help: "Operate on the remote queue service",

	Commands: []*command.C{
		{
			Name:  "put",
			Usage: "<item> ...",
			Help: `Add items to the queue, blocking while it is full.

An item that is not valid JSON is sent as a JSON string.`,

			Run: runPut,
		},
		{
			Name: "get",
			Help: "Remove and print the item at the front of the queue",

			SetFlags: func(_ *command.Env, fs *flag.FlagSet) {
				fs.DurationVar(&getFlags.Wait, "wait", 0, "Wait at most this long for an item (0 means no limit)")
			},
			Run: runGet,
		},
		{
			Name: "poll",
			Help: "Remove and print the front item if one is available",

			Run: runPoll,
		},
		{
			Name: "status",
			Help: "Print the state of the queue",

			Run: runStatus,
		},
	},
}

type client = rpcqueue.Client[json.RawMessage]

func runPut(env *command.Env, args []string) error {
	if len(args) == 0 {
		return env.Usagef("missing required <item>")
	}
	items := ParseItems(args)
	cfg := env.Config.(*config.Settings)
	return config.WithQueue(cfg.Context, cfg, func(q client) error {
		return PutItems(cfg.Context, q, items)
	})
}

func runGet(env *command.Env, args []string) error {
	if len(args) != 0 {
		return env.Usagef("extra arguments after command")
	}
	cfg := env.Config.(*config.Settings)
	ctx := cfg.Context
	if getFlags.Wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, getFlags.Wait)
		defer cancel()
	}
	return config.WithQueue(ctx, cfg, func(q client) error {
		return GetItem(ctx, env, q)
	})
}

func runPoll(env *command.Env, args []string) error {
	if len(args) != 0 {
		return env.Usagef("extra arguments after command")
	}
	cfg := env.Config.(*config.Settings)
	return config.WithQueue(cfg.Context, cfg, func(q client) error {
		return PollItem(cfg.Context, env, q)
	})
}

func runStatus(env *command.Env, args []string) error {
	if len(args) != 0 {
		return env.Usagef("extra arguments after command")
	}
	cfg := env.Config.(*config.Settings)
	return config.WithQueue(cfg.Context, cfg, func(q client) error {
		return PrintStatus(cfg.Context, env, q)
	})
}

// Queue is the view of the remote queue used by the subcommands.
// It is satisfied by rpcqueue.Client[json.RawMessage].
type Queue interface {
	Put(ctx context.Context, item json.RawMessage) error
	Get(ctx context.Context) (json.RawMessage, error)
	GetNoWait(ctx context.Context) (json.RawMessage, error)
	Status(ctx context.Context) (*rpcqueue.StatusReply, error)
}

// ParseItems converts command-line arguments to queue items. An argument
// that is valid JSON is used as written; any other argument is encoded as a
// JSON string.
func ParseItems(args []string) []json.RawMessage {
	items := make([]json.RawMessage, len(args))
	for i, arg := range args {
		if json.Valid([]byte(arg)) {
			items[i] = json.RawMessage(arg)
		} else {
			items[i], _ = json.Marshal(arg) // a string always encodes
		}
	}
	return items
}

// PutItems adds items to q in order, stopping at the first error.
func PutItems(ctx context.Context, q Queue, items []json.RawMessage) error {
	for _, item := range items {
		if err := q.Put(ctx, item); err != nil {
			return fmt.Errorf("put %s: %w", item, err)
		}
	}
	return nil
}

// GetItem removes the front item of q, waiting until one is available or
// ctx ends, and prints it to w.
func GetItem(ctx context.Context, w io.Writer, q Queue) error {
	item, err := q.Get(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.New("no item available before timeout")
	} else if err != nil {
		return err
	}
	fmt.Fprintln(w, string(item))
	return nil
}

// PollItem removes the front item of q if one is available, and prints it
// to w.
func PollItem(ctx context.Context, w io.Writer, q Queue) error {
	item, err := q.GetNoWait(ctx)
	if errors.Is(err, bqueue.ErrEmpty) {
		return errNoItem
	} else if err != nil {
		return err
	}
	fmt.Fprintln(w, string(item))
	return nil
}

var errNoItem = errors.New("no item available")

// PrintStatus prints the state of q to w as JSON.
func PrintStatus(ctx context.Context, w io.Writer, q Queue) error {
	st, err := q.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, config.ToJSON(st))
	return nil
}
