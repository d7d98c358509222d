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

// Package cmdsquash implements the "squash" subcommand, a text filter built
// as a pipeline of generators.
//
// The pipeline reads lines of input, and emits their characters with ";"
// between lines. Runs of blanks and tabs are squashed to a single blank, and
// each "**" is replaced by "^". The result is packed into output lines of a
// fixed width.
package cmdsquash

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/creachadair/command"
	"github.com/creachadair/lockstep/generator"
)

var squashFlags struct {
	Width int
}

var Command = &command.C{
	Name:  "squash",
	Usage: "[file]",
	Help: `Squash and repack text read from a file or stdin.

Each stage of the filter is a separate generator that pulls its input
from the stage before it.`,

	SetFlags: func(_ *command.Env, fs *flag.FlagSet) {
		fs.IntVar(&squashFlags.Width, "width", 72, "Output line width")
	},
	Run: runSquash,
}

func runSquash(env *command.Env, args []string) error {
	if len(args) > 1 {
		return env.Usagef("extra arguments after command")
	} else if squashFlags.Width <= 0 {
		return env.Usagef("the line width must be positive")
	}

	var r io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	out := Pipeline(r, squashFlags.Width)
	defer out.Kill()
	for line := range out.All() {
		fmt.Fprintln(env, line)
	}
	return out.Wait(context.Background())
}

// Pipeline constructs a generator that delivers the squashed text from r in
// lines of at most width characters.
func Pipeline(r io.Reader, width int) *generator.Generator[string] {
	lines := generator.New(readLines(r))
	chars := generator.New(splitLines(lines))
	squashed := generator.New(squash(chars))
	return generator.New(pack(squashed, width))
}

// readLines returns a routine that puts the lines of r without their line
// terminators.
func readLines(r io.Reader) generator.Func[string] {
	return func(g *generator.Generator[string]) error {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			if err := g.Put(sc.Text()); err != nil {
				return err
			}
		}
		return sc.Err()
	}
}

// splitLines returns a routine that puts the characters of each line from
// up, with ";" between consecutive lines.
func splitLines(up *generator.Generator[string]) generator.Func[rune] {
	return func(g *generator.Generator[rune]) error {
		defer up.Kill()
		for i := 0; ; i++ {
			line, err := up.Get()
			if err == io.EOF {
				return finish(up)
			} else if err != nil {
				return err
			}
			if i > 0 {
				if err := g.Put(';'); err != nil {
					return err
				}
			}
			for _, c := range line {
				if err := g.Put(c); err != nil {
					return err
				}
			}
		}
	}
}

// squash returns a routine that puts the characters from up, replacing each
// run of blanks and tabs with a single blank, and each "**" with "^".
func squash(up *generator.Generator[rune]) generator.Func[rune] {
	return func(g *generator.Generator[rune]) error {
		defer up.Kill()

		var pending rune // the next unprocessed input, if havePending
		havePending := false
		next := func() (rune, error) {
			if havePending {
				havePending = false
				return pending, nil
			}
			return up.Get()
		}
		for {
			c, err := next()
			if err == io.EOF {
				return finish(up)
			} else if err != nil {
				return err
			}

			switch c {
			case ' ', '\t':
				for {
					c, err = next()
					if err != nil || (c != ' ' && c != '\t') {
						break
					}
				}
				if err != nil && err != io.EOF {
					return err
				}
				if err == nil {
					pending, havePending = c, true
				}
				c = ' '

			case '*':
				c2, err := next()
				if err != nil && err != io.EOF {
					return err
				}
				if err == nil {
					if c2 == '*' {
						c = '^'
					} else {
						pending, havePending = c2, true
					}
				}
			}
			if err := g.Put(c); err != nil {
				return err
			}
		}
	}
}

// pack returns a routine that puts the characters from up in lines of at
// most width characters. The last line may be short.
func pack(up *generator.Generator[rune], width int) generator.Func[string] {
	return func(g *generator.Generator[string]) error {
		defer up.Kill()
		buf := make([]rune, 0, width)
		for {
			c, err := up.Get()
			if err == io.EOF {
				if len(buf) != 0 {
					if err := g.Put(string(buf)); err != nil {
						return err
					}
				}
				return finish(up)
			} else if err != nil {
				return err
			}
			buf = append(buf, c)
			if len(buf) == width {
				if err := g.Put(string(buf)); err != nil {
					return err
				}
				buf = buf[:0]
			}
		}
	}
}

// finish reports the error, if any, from an upstream generator that has
// reached the end of its sequence.
func finish[T any](up *generator.Generator[T]) error {
	if err := up.Wait(context.Background()); err != nil {
		return fmt.Errorf("upstream: %w", err)
	}
	return nil
}
