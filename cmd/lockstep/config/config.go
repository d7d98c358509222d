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

// Package config defines the configuration settings shared by the
// subcommands of the lockstep command-line tool.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/lockstep/bqueue/rpcqueue"
	yaml "gopkg.in/yaml.v3"
)

// Settings represents the stored configuration settings for the lockstep tool.
type Settings struct {
	// Context value governing the execution of the tool.
	Context context.Context `json:"-" yaml:"-"`

	// The address of the queue service, as served by queued.
	QueueAddress string `json:"queueAddress" yaml:"queue-address"`

	// The method name prefix of the queue service (default "Queue.").
	QueuePrefix string `json:"queuePrefix,omitempty" yaml:"queue-prefix"`

	// Default settings for the stress command.
	Stress Stress `json:"stress" yaml:"stress"`
}

// Stress holds default settings for the stress command.
// Zero values select the built-in defaults.
type Stress struct {
	Capacity  int `json:"capacity,omitempty" yaml:"capacity"`
	Producers int `json:"producers,omitempty" yaml:"producers"`
	Consumers int `json:"consumers,omitempty" yaml:"consumers"`
	Items     int `json:"items,omitempty" yaml:"items"`
}

// OpenQueue connects to the queue service address in the configuration.
// The caller is responsible for closing the client when it is no longer
// needed.
func (s *Settings) OpenQueue(_ context.Context) (*jrpc2.Client, error) {
	if s.QueueAddress == "" {
		return nil, errors.New("no queue service address")
	}
	conn, err := net.Dial(jrpc2.Network(s.QueueAddress))
	if err != nil {
		return nil, fmt.Errorf("dialing queue: %w", err)
	}
	ch := channel.Line(conn, conn)
	return jrpc2.NewClient(ch, nil), nil
}

// WithQueue calls f with a client for the queue service in s, carrying items
// of type T. The connection is closed after f returns. The error returned by
// f is returned by WithQueue.
func WithQueue[T any](ctx context.Context, s *Settings, f func(rpcqueue.Client[T]) error) error {
	cli, err := s.OpenQueue(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()
	return f(rpcqueue.NewClient[T](cli, s.prefix()))
}

func (s *Settings) prefix() string {
	if s.QueuePrefix == "" {
		return "Queue."
	}
	return s.QueuePrefix
}

// ExpandString calls os.ExpandEnv to expand environment variables in *s.
// The value of *s is replaced.
func ExpandString(s *string) { *s = os.ExpandEnv(*s) }

// Load reads and parses the contents of a config file from path.  If the
// specified path does not exist, an empty config is returned without error.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return new(Settings), nil
	} else if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := new(Settings)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// ToJSON converts a value to indented JSON.
func ToJSON(msg any) string {
	bits, err := json.Marshal(msg)
	if err != nil {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, bits, "", "  "); err != nil {
		return "null"
	}
	return buf.String()
}
