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

package bqueue

import "github.com/creachadair/jrpc2/metrics"

// counters records queue operations in an optional metrics collector.
type counters struct {
	m *metrics.M

	put, get         string
	putWait, getWait string
	empty, depth     string
}

func (o *Options) counters() counters {
	if o == nil || o.Metrics == nil {
		return counters{}
	}
	name := o.Name
	if name == "" {
		name = "queue"
	}
	return counters{
		m:       o.Metrics,
		put:     name + ".put",
		get:     name + ".get",
		putWait: name + ".put.wait",
		getWait: name + ".get.wait",
		empty:   name + ".get.empty",
		depth:   name + ".depth",
	}
}

func (c counters) count(name string) {
	if c.m != nil {
		c.m.Count(name, 1)
	}
}

func (c counters) setMax(name string, n int) {
	if c.m != nil {
		c.m.SetMaxValue(name, int64(n))
	}
}
