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

// Package cmdstress implements the "stress" subcommand, which runs many
// concurrent producers and consumers over a queue and verifies that every
// item is delivered exactly once.
package cmdstress

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/creachadair/atomicfile"
	"github.com/creachadair/command"
	"github.com/creachadair/jrpc2/metrics"
	"github.com/creachadair/lockstep/bqueue"
	"github.com/creachadair/lockstep/bqueue/rpcqueue"
	"github.com/creachadair/lockstep/cmd/lockstep/config"
	"github.com/creachadair/mds/mapset"
	"github.com/creachadair/taskgroup"
)

var stressFlags struct {
	Config
	Remote  bool
	Report  string
	Timeout time.Duration
}

var Command = &command.C{
	Name: "stress",
	Help: `Run concurrent producers and consumers over a queue.

Each producer puts -items distinct items, and the consumers together get
all of them. The command reports an error if any item is lost or delivered
more than once. With -remote, the queue service from the configuration is
used in place of a local queue, and -capacity is ignored.

Flags left at zero take their values from the stress section of the
configuration file, or else from built-in defaults.`,

	SetFlags: func(_ *command.Env, fs *flag.FlagSet) {
		fs.IntVar(&stressFlags.Capacity, "capacity", 0, "Local queue capacity")
		fs.IntVar(&stressFlags.Producers, "producers", 0, "Number of producers")
		fs.IntVar(&stressFlags.Consumers, "consumers", 0, "Number of consumers")
		fs.IntVar(&stressFlags.Items, "items", 0, "Number of items per producer")
		fs.BoolVar(&stressFlags.Remote, "remote", false, "Use the remote queue service")
		fs.StringVar(&stressFlags.Report, "report", "", "Write the report to this file")
		fs.DurationVar(&stressFlags.Timeout, "timeout", time.Minute, "Time limit for the run")
	},
	Run: runStress,
}

// Config describes the shape of a stress run.
type Config struct {
	Capacity  int `json:"capacity,omitempty"`
	Producers int `json:"producers"`
	Consumers int `json:"consumers"`
	Items     int `json:"items"` // per producer
}

func (c Config) withDefaults(s config.Stress) Config {
	pick := func(vals ...int) int {
		for _, v := range vals {
			if v > 0 {
				return v
			}
		}
		return 0
	}
	return Config{
		Capacity:  pick(c.Capacity, s.Capacity, 16),
		Producers: pick(c.Producers, s.Producers, 4),
		Consumers: pick(c.Consumers, s.Consumers, 4),
		Items:     pick(c.Items, s.Items, 10000),
	}
}

// Queue is the subset of queue operations used by a stress run.
// Both *bqueue.Queue[string] and rpcqueue.Client[string] satisfy it.
type Queue interface {
	Put(ctx context.Context, v string) error
	Get(ctx context.Context) (string, error)
}

// Result is the report of a stress run.
type Result struct {
	Config
	Remote bool `json:"remote,omitempty"`

	Sent       int    `json:"sent"`
	Received   int    `json:"received"`
	Duplicates int    `json:"duplicates"`
	SentSum    string `json:"sentSum"`
	RecvSum    string `json:"receivedSum"`
	Elapsed    string `json:"elapsed"`

	Counter  map[string]int64 `json:"counter,omitempty"`
	MaxValue map[string]int64 `json:"maxValue,omitempty"`
}

// Check reports an error if r shows a lost or duplicated item.
func (r *Result) Check() error {
	switch {
	case r.Duplicates != 0:
		return fmt.Errorf("%d items delivered more than once", r.Duplicates)
	case r.Received != r.Sent:
		return fmt.Errorf("sent %d items, received %d", r.Sent, r.Received)
	case r.RecvSum != r.SentSum:
		return fmt.Errorf("checksum mismatch: sent %s, received %s", r.SentSum, r.RecvSum)
	}
	return nil
}

func runStress(env *command.Env, args []string) error {
	if len(args) != 0 {
		return env.Usagef("extra arguments after command")
	}
	cfg := env.Config.(*config.Settings)
	sc := stressFlags.Config.withDefaults(cfg.Stress)

	ctx, cancel := context.WithTimeout(cfg.Context, stressFlags.Timeout)
	defer cancel()

	var res *Result
	if stressFlags.Remote {
		sc.Capacity = 0
		if err := config.WithQueue(ctx, cfg, func(q rpcqueue.Client[string]) error {
			var err error
			res, err = Run(ctx, q, sc)
			return err
		}); err != nil {
			return err
		}
		res.Remote = true
	} else {
		mx := metrics.New()
		q := bqueue.New[string](sc.Capacity, &bqueue.Options{Name: "stress", Metrics: mx})
		var err error
		res, err = Run(ctx, q, sc)
		if err != nil {
			return err
		}
		res.Counter = make(map[string]int64)
		res.MaxValue = make(map[string]int64)
		mx.Snapshot(metrics.Snapshot{Counter: res.Counter, MaxValue: res.MaxValue})
	}

	report := config.ToJSON(res)
	fmt.Fprintln(env, report)
	if stressFlags.Report != "" {
		if err := atomicfile.WriteData(stressFlags.Report, []byte(report+"\n"), 0644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}
	return res.Check()
}

// Run runs producers and consumers over q as described by c, and reports
// what was delivered. Run reports an error if any Put or Get fails; a
// delivery mismatch is recorded in the result and reported by its Check
// method.
func Run(ctx context.Context, q Queue, c Config) (*Result, error) {
	if c.Producers <= 0 || c.Consumers <= 0 || c.Items <= 0 {
		return nil, errors.New("producers, consumers, and items must be positive")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sentSum, recvSum atomic.Uint64
	var received atomic.Int64

	var μ sync.Mutex
	seen := mapset.New[string]()
	var dups int

	start := time.Now()
	g := taskgroup.New(cancel)
	for p := range c.Producers {
		g.Go(func() error {
			for i := range c.Items {
				item := fmt.Sprintf("%d:%d", p, i)
				if err := q.Put(ctx, item); err != nil {
					return fmt.Errorf("producer %d: put %q: %w", p, item, err)
				}
				sentSum.Add(xxhash.Sum64String(item))
			}
			return nil
		})
	}

	total := c.Producers * c.Items
	for i := range c.Consumers {
		n := total / c.Consumers
		if i < total%c.Consumers {
			n++
		}
		g.Go(func() error {
			for range n {
				item, err := q.Get(ctx)
				if err != nil {
					return fmt.Errorf("consumer %d: get: %w", i, err)
				}
				recvSum.Add(xxhash.Sum64String(item))
				received.Add(1)

				μ.Lock()
				if seen.Has(item) {
					dups++
				}
				seen.Add(item)
				μ.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Result{
		Config:     c,
		Sent:       total,
		Received:   int(received.Load()),
		Duplicates: dups,
		SentSum:    fmt.Sprintf("%016x", sentSum.Load()),
		RecvSum:    fmt.Sprintf("%016x", recvSum.Load()),
		Elapsed:    time.Since(start).Round(time.Millisecond).String(),
	}, nil
}
