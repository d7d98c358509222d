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

package generator_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/creachadair/lockstep/generator"
	"github.com/google/go-cmp/cmp"
)

// count is a routine that puts 0, 1, 2, ... until the generator is killed.
func count(g *generator.Generator[int]) error {
	for i := 0; ; i++ {
		if err := g.Put(i); err != nil {
			return err
		}
	}
}

func mustWait(t *testing.T, g *generator.Generator[int]) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := g.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("Producer goroutine did not exit")
	}
	return err
}

func takeN(t *testing.T, g *generator.Generator[int], n int) []int {
	t.Helper()
	var got []int
	for range n {
		v, err := g.Get()
		if err != nil {
			t.Fatalf("Get: unexpected error: %v", err)
		}
		got = append(got, v)
	}
	return got
}

func TestAlternation(t *testing.T) {
	var log []string
	g := generator.New(func(g *generator.Generator[int]) error {
		for _, v := range []int{1, 2, 3} {
			log = append(log, fmt.Sprint("put ", v))
			if err := g.Put(v); err != nil {
				return err
			}
		}
		log = append(log, "return")
		return nil
	})
	for range 3 {
		v, err := g.Get()
		if err != nil {
			t.Fatalf("Get: unexpected error: %v", err)
		}
		log = append(log, fmt.Sprint("get ", v))
	}
	for range 2 {
		if v, err := g.Get(); err != io.EOF {
			t.Errorf("Get after end: got (%d, %v), want %v", v, err, io.EOF)
		}
	}
	if !g.Done() {
		t.Error("Done: got false, want true")
	}
	if err := mustWait(t, g); err != nil {
		t.Errorf("Wait: unexpected error: %v", err)
	}

	want := []string{"put 1", "get 1", "put 2", "get 2", "put 3", "get 3", "return"}
	if diff := cmp.Diff(log, want); diff != "" {
		t.Errorf("Event order (-got, +want):\n%s", diff)
	}
}

func TestKill(t *testing.T) {
	t.Run("BeforeGet", func(t *testing.T) {
		var results []error
		g := generator.New(func(g *generator.Generator[int]) error {
			err := g.Put(1)
			results = append(results, err)
			return err
		})
		if err := g.Kill(); err != nil {
			t.Fatalf("Kill: unexpected error: %v", err)
		}
		if err := mustWait(t, g); err != nil {
			t.Errorf("Wait: unexpected error: %v", err)
		}
		for _, err := range results {
			if err == nil {
				t.Error("Put delivered a value after Kill")
			}
		}
		if _, err := g.Get(); !errors.Is(err, generator.ErrKilled) {
			t.Errorf("Get after Kill: got %v, want %v", err, generator.ErrKilled)
		}
	})

	t.Run("Suspended", func(t *testing.T) {
		var putErr, againErr error
		g := generator.New(func(g *generator.Generator[int]) error {
			if err := g.Put(1); err != nil {
				return err
			}
			putErr = g.Put(2)
			againErr = g.Put(3)
			return putErr
		})
		if diff := cmp.Diff(takeN(t, g, 2), []int{1, 2}); diff != "" {
			t.Errorf("Values (-got, +want):\n%s", diff)
		}
		if err := g.Kill(); err != nil {
			t.Fatalf("Kill: unexpected error: %v", err)
		}
		if err := mustWait(t, g); err != nil {
			t.Errorf("Wait: unexpected error: %v", err)
		}
		if !errors.Is(putErr, generator.ErrTerminated) {
			t.Errorf("Suspended Put: got %v, want %v", putErr, generator.ErrTerminated)
		}
		if !errors.Is(againErr, generator.ErrKilled) {
			t.Errorf("Put after Kill: got %v, want %v", againErr, generator.ErrKilled)
		}
		if g.Done() {
			t.Error("Done: got true after Kill, want false")
		}
	})

	t.Run("Twice", func(t *testing.T) {
		g := generator.New(count)
		if err := g.Kill(); err != nil {
			t.Fatalf("Kill: unexpected error: %v", err)
		}
		if err := g.Kill(); !errors.Is(err, generator.ErrKilled) {
			t.Errorf("Second Kill: got %v, want %v", err, generator.ErrKilled)
		}
		if !g.Killed() {
			t.Error("Killed: got false, want true")
		}
		mustWait(t, g)
	})
}

func TestClone(t *testing.T) {
	g := generator.New(count)
	if diff := cmp.Diff(takeN(t, g, 3), []int{0, 1, 2}); diff != "" {
		t.Errorf("Original (-got, +want):\n%s", diff)
	}

	// The clone starts over, and does not depend on the original.
	c := g.Clone()
	g.Kill()
	mustWait(t, g)

	if diff := cmp.Diff(takeN(t, c, 5), []int{0, 1, 2, 3, 4}); diff != "" {
		t.Errorf("Clone (-got, +want):\n%s", diff)
	}
	c.Kill()
	if err := mustWait(t, c); err != nil {
		t.Errorf("Wait for clone: unexpected error: %v", err)
	}
}

func TestRoutineError(t *testing.T) {
	boom := errors.New("boom")
	g := generator.New(func(g *generator.Generator[int]) error {
		if err := g.Put(7); err != nil {
			return err
		}
		return boom
	})
	if diff := cmp.Diff(takeN(t, g, 1), []int{7}); diff != "" {
		t.Errorf("Values (-got, +want):\n%s", diff)
	}
	if _, err := g.Get(); err != io.EOF {
		t.Errorf("Get at end: got %v, want %v", err, io.EOF)
	}
	if err := mustWait(t, g); !errors.Is(err, boom) {
		t.Errorf("Wait: got %v, want %v", err, boom)
	}
}

func TestAll(t *testing.T) {
	g := generator.New(count)
	var got []int
	for v := range g.All() {
		if v == 5 {
			break
		}
		got = append(got, v)
	}
	if diff := cmp.Diff(got, []int{0, 1, 2, 3, 4}); diff != "" {
		t.Errorf("Values (-got, +want):\n%s", diff)
	}
	if !g.Killed() {
		t.Error("Generator not killed after early exit from All")
	}
	if err := mustWait(t, g); err != nil {
		t.Errorf("Wait: unexpected error: %v", err)
	}

	// A finite sequence runs to completion.
	h := generator.New(func(g *generator.Generator[int]) error {
		for i := range 3 {
			if err := g.Put(i * i); err != nil {
				return err
			}
		}
		return nil
	})
	got = got[:0]
	for v := range h.All() {
		got = append(got, v)
	}
	if diff := cmp.Diff(got, []int{0, 1, 4}); diff != "" {
		t.Errorf("Values (-got, +want):\n%s", diff)
	}
	if h.Killed() {
		t.Error("Finished generator was killed")
	}
}
