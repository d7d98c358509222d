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

// Program lockstep demonstrates the queue and generator packages, and
// operates on a queue served by queued.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/lockstep/cmd/lockstep/config"

	// Subcommands.
	"github.com/creachadair/lockstep/cmd/lockstep/internal/cmdpi"
	"github.com/creachadair/lockstep/cmd/lockstep/internal/cmdqueue"
	"github.com/creachadair/lockstep/cmd/lockstep/internal/cmdsquash"
	"github.com/creachadair/lockstep/cmd/lockstep/internal/cmdstress"
)

var rootFlags = struct {
	Config  string
	Queue   string
	Timeout time.Duration
}{
	Config: "$HOME/.config/lockstep/config.yml",
}

// cancelRun releases the context installed by loadConfig.
var cancelRun = func() {}

func main() {
	root := &command.C{
		Name: filepath.Base(os.Args[0]),
		Usage: `[options] <command> [arguments]
help [<command>]`,
		Help: `Exercise bounded blocking queues and handoff generators.

The pi and squash commands run generator pipelines locally. The stress
command runs producers and consumers over a local queue, or over the queue
service with -remote. The queue command operates on the queue service
directly.

The queue service address is read from the configuration file, or from
-queue. Start a service with the queued program.`,

		SetFlags: func(env *command.Env, fs *flag.FlagSet) {
			if cf := os.Getenv("LOCKSTEP_CONFIG"); cf != "" {
				rootFlags.Config = cf
			}
			fs.StringVar(&rootFlags.Config, "config", rootFlags.Config, "Configuration file path")
			fs.StringVar(&rootFlags.Queue, "queue", "", "Queue service address (overrides config)")
			fs.DurationVar(&rootFlags.Timeout, "timeout", 0, "Time limit for the command (0 means no limit)")
		},
		Init: loadConfig,

		Commands: []*command.C{
			cmdpi.Command,
			cmdsquash.Command,
			cmdstress.Command,
			cmdqueue.Command,
			command.HelpCommand(nil),
		},
	}
	err := command.Run(root.NewEnv(nil), os.Args[1:])
	cancelRun()
	switch {
	case err == nil:
		return
	case errors.Is(err, command.ErrUsage):
		os.Exit(2)
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("Error: time limit (%v) exceeded: %v", rootFlags.Timeout, err)
	default:
		log.Printf("Error: %v", err)
	}
	os.Exit(1)
}

// loadConfig reads the configuration file, applies flag overrides, and
// installs the result as the configuration of env.
func loadConfig(env *command.Env) error {
	cfg, err := config.Load(os.ExpandEnv(rootFlags.Config))
	if err != nil {
		return err
	}
	if rootFlags.Queue != "" {
		cfg.QueueAddress = rootFlags.Queue
	}
	config.ExpandString(&cfg.QueueAddress)

	cfg.Context = context.Background()
	if rootFlags.Timeout > 0 {
		cfg.Context, cancelRun = context.WithTimeout(cfg.Context, rootFlags.Timeout)
	}
	env.Config = cfg
	return nil
}
