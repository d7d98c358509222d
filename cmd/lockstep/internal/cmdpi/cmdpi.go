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

// Package cmdpi implements the "pi" subcommand, which prints the decimal
// digits of π computed by a generator.
package cmdpi

import (
	"errors"
	"flag"
	"fmt"
	"math/big"

	"github.com/creachadair/command"
	"github.com/creachadair/lockstep/generator"
)

var piFlags struct {
	Digits int
	Clone  int
}

var Command = &command.C{
	Name: "pi",
	Help: `Print the digits of pi computed by a generator.

With -clone K, print K digits, then clone the generator and kill the
original. The clone starts again from the first digit.`,

	SetFlags: func(_ *command.Env, fs *flag.FlagSet) {
		fs.IntVar(&piFlags.Digits, "n", 50, "Number of digits to print")
		fs.IntVar(&piFlags.Clone, "clone", 0, "Switch to a clone after this many digits")
	},
	Run: runPi,
}

func runPi(env *command.Env, args []string) error {
	if len(args) != 0 {
		return env.Usagef("extra arguments after command")
	} else if piFlags.Digits <= 0 {
		return env.Usagef("the digit count must be positive")
	}

	g := generator.New(Digits)
	if k := piFlags.Clone; k > 0 {
		if err := printDigits(env, g, k); err != nil {
			return err
		}
		h := g.Clone()
		g.Kill()
		g = h
	}
	defer g.Kill()
	return printDigits(env, g, piFlags.Digits)
}

func printDigits(env *command.Env, g *generator.Generator[int], n int) error {
	for range n {
		d, err := g.Get()
		if err != nil {
			return fmt.Errorf("get digit: %w", err)
		}
		fmt.Fprint(env, d)
	}
	fmt.Fprintln(env)
	return nil
}

// Digits is a generator routine that puts the decimal digits of π, starting
// with 3. It runs until the generator is killed.
//
// Each step refines a pair of continued-fraction convergents a/b and
// a1/b1, and emits the digits on which they agree.
func Digits(g *generator.Generator[int]) error {
	var (
		k  = big.NewInt(2)
		a  = big.NewInt(4)
		b  = big.NewInt(1)
		a1 = big.NewInt(12)
		b1 = big.NewInt(4)

		one = big.NewInt(1)
		ten = big.NewInt(10)

		p, q, t, d, d1 big.Int
	)
	for {
		p.Mul(k, k)
		q.Lsh(k, 1).Add(&q, one)
		k.Add(k, one)

		na := new(big.Int).Mul(&p, a)
		na.Add(na, t.Mul(&q, a1))
		nb := new(big.Int).Mul(&p, b)
		nb.Add(nb, t.Mul(&q, b1))
		a, b, a1, b1 = a1, b1, na, nb

		d.Quo(a, b)
		d1.Quo(a1, b1)
		for d.Cmp(&d1) == 0 {
			if err := g.Put(int(d.Int64())); err != nil {
				if errors.Is(err, generator.ErrTerminated) {
					return nil
				}
				return err
			}
			a.Mul(a.Mod(a, b), ten)
			a1.Mul(a1.Mod(a1, b1), ten)
			d.Quo(a, b)
			d1.Quo(a1, b1)
		}
	}
}
