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

package cmdsquash_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/creachadair/lockstep/cmd/lockstep/internal/cmdsquash"
	"github.com/google/go-cmp/cmp"
)

func TestPipeline(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  []string
	}{
		{"Empty", "", 4, nil},
		{"OneLine", "abc\n", 4, []string{"abc"}},
		{"Exact", "abcdefgh", 4, []string{"abcd", "efgh"}},
		{"Separators", "ab\ncd\nef\n", 80, []string{"ab;cd;ef"}},
		{"Blanks", "a  \t b\t\tc", 80, []string{"a b c"}},
		{"TrailingBlanks", "ab  \t", 80, []string{"ab "}},
		{"Stars", "a**b***c*d*", 80, []string{"a^b^*c*d*"}},
		{"BlankThenStars", "x \t**y", 80, []string{"x ^y"}},
		{"Mixed", "a  b\t\tc**d\nxy*z\n", 4, []string{"a b ", "c^d;", "xy*z"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := cmdsquash.Pipeline(strings.NewReader(tc.input), tc.width)
			var got []string
			for line := range out.All() {
				got = append(got, line)
			}
			if diff := cmp.Diff(got, tc.want); diff != "" {
				t.Errorf("Output (-got, +want):\n%s", diff)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := out.Wait(ctx); err != nil {
				t.Errorf("Wait: unexpected error: %v", err)
			}
		})
	}
}

func TestReadError(t *testing.T) {
	boom := errors.New("boom")
	out := cmdsquash.Pipeline(iotest.ErrReader(boom), 10)
	for line := range out.All() {
		t.Errorf("Unexpected output: %q", line)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := out.Wait(ctx); !errors.Is(err, boom) {
		t.Errorf("Wait: got %v, want %v", err, boom)
	}
}

func TestEarlyStop(t *testing.T) {
	input := strings.Repeat("lorem ipsum dolor\n", 1000)
	out := cmdsquash.Pipeline(strings.NewReader(input), 6)

	first, err := out.Get()
	if err != nil {
		t.Fatalf("Get: unexpected error: %v", err)
	}
	if want := "lorem "; first != want {
		t.Errorf("Get: got %q, want %q", first, want)
	}
	if err := out.Kill(); err != nil {
		t.Fatalf("Kill: unexpected error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := out.Wait(ctx); err != nil {
		t.Errorf("Wait: unexpected error: %v", err)
	}
}
