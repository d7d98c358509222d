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

// Program queued runs a JSON-RPC server that exports a bounded blocking
// queue of JSON values.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/creachadair/ctrl"
	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/metrics"
	"github.com/creachadair/jrpc2/server"
	"github.com/creachadair/lockstep/bqueue"
	"github.com/creachadair/lockstep/bqueue/rpcqueue"
)

var (
	listenAddr  = flag.String("listen", "", "Service address (required)")
	capacity    = flag.Int("capacity", 64, "Queue capacity (0 means unbounded)")
	concurrency = flag.Int("concurrency", 256, "Maximum number of concurrent requests")
	doDebug     = flag.Bool("debug", false, "Enable server debug logging")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: %[1]s [options] -listen <addr>

Start a JSON-RPC server that exports a bounded blocking queue of JSON values.
The server listens at the specified address, which may be a host:port or the
path of a Unix-domain socket. JSON-RPC data are exchanged via the socket,
delimited by newlines.

Methods are named Queue.Put, Queue.Get, Queue.GetNoWait, and Queue.Status.
A blocked Put or Get occupies one request slot until it completes, so the
-concurrency limit bounds the number of waiting clients.

Options:
`, filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	ctrl.Run(func() error {
		switch {
		case *listenAddr == "":
			ctrl.Exitf(1, "You must provide a non-empty -listen address")
		case *concurrency < runtime.NumCPU():
			ctrl.Exitf(1, "The -concurrency limit must be at least %d", runtime.NumCPU())
		}

		mx := metrics.New()
		q := bqueue.New[json.RawMessage](*capacity, &bqueue.Options{
			Name:    "queued",
			Metrics: mx,
		})
		defer q.Close()
		if q.Cap() > 0 {
			log.Printf("Queue capacity: %d", q.Cap())
		} else {
			log.Printf("Queue capacity: unbounded")
		}

		mx.SetLabel("queued.capacity", q.Cap())
		mx.SetLabel("queued.pid", os.Getpid())
		mx.SetLabel("queued.len", func() any { return q.Len() })
		mx.SetLabel("queued.closed", func() any { return q.IsClosed() })

		lst, closer := mustListen(*listenAddr)
		svc := rpcqueue.NewService(q, &rpcqueue.ServiceOpts{Debug: *doDebug})
		errc := make(chan error, 1)
		go func() {
			defer close(errc)
			acc := server.NetAccepter(lst, channel.Line)
			errc <- server.Loop(acc, server.Static(handler.ServiceMap{
				"Queue": svc.Methods(),
			}), &server.LoopOptions{
				ServerOptions: &jrpc2.ServerOptions{
					Concurrency: *concurrency,
					Metrics:     mx,
					StartTime:   time.Now().In(time.UTC),
				},
			})
		}()

		sig := make(chan os.Signal, 2)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			s, ok := <-sig
			if ok {
				log.Printf("Received signal: %v, closing queue and listener", s)
				q.Close()
				closer()
				signal.Reset(syscall.SIGINT, syscall.SIGTERM)
			}
		}()
		return <-errc
	})
}

// mustListen opens a listener for addr, and returns a function that closes
// the listener and removes its socket file, if any.
func mustListen(addr string) (net.Listener, func()) {
	lst, err := net.Listen(jrpc2.Network(addr))
	if err != nil {
		ctrl.Fatalf("Listen: %v", err)
	}
	log.Printf("Service: %s %q", lst.Addr().Network(), addr)
	if lst.Addr().Network() != "unix" {
		return lst, func() { lst.Close() }
	}
	os.Chmod(addr, 0600) // best-effort
	return lst, func() {
		lst.Close()
		os.Remove(addr)
	}
}
