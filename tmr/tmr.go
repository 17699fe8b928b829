// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package tmr implements triple modular redundancy: a value stored as three
// copies and read by majority vote.
package tmr

import (
	"fmt"
	"log/slog"

	selfheal "github.com/saschpe/self-healing-sub000"
	"github.com/saschpe/self-healing-sub000/internal/unsafeview"
)

var (
	ErrTriplicateMismatch = selfheal.ErrTriplicateMismatch
	ErrParentMismatch     = selfheal.ErrParentMismatch
	ErrInvariantViolation = selfheal.ErrInvariantViolation
)

const component = "tmr"

// Vote is the outcome of comparing the three copies.
type Vote uint8

const (
	Unanimous Vote = iota // all three copies agree
	Dissent               // one copy disagrees with the other two
	Split                 // all three copies differ
)

func (vote Vote) String() string {
	switch vote {
	case Unanimous:
		return "unanimous"
	case Dissent:
		return "dissent"
	case Split:
		return "split"
	default:
		return fmt.Sprintf("Vote(%d)", uint8(vote))
	}
}

// Value holds three copies of V. Copies are compared with ==, so pointers
// and handles compare bitwise. The zero Value holds three zero copies.
type Value[V comparable] struct {
	v [3]V
}

// New returns a Value holding val.
func New[V comparable](val V) (t Value[V]) {
	t.Set(val)
	return
}

// Set overwrites all three copies.
func (t *Value[V]) Set(val V) {
	t.v[0], t.v[1], t.v[2] = val, val, val
}

// Check votes without modifying the copies. On Dissent, dissenter is the
// index of the outvoted copy and val the majority.
func (t *Value[V]) Check() (val V, vote Vote, dissenter int) {
	a, b, c := t.v[0], t.v[1], t.v[2]
	switch {
	case a == b && b == c:
		return a, Unanimous, -1
	case a == b:
		return a, Dissent, 2
	case a == c:
		return a, Dissent, 1
	case b == c:
		return b, Dissent, 0
	default:
		return val, Split, -1
	}
}

// Get reads under selfheal.Default.
func (t *Value[V]) Get() (V, error) {
	return t.Read(nil)
}

// Read returns the majority value. A single dissenting copy is overwritten
// with the majority, unless policy disables fixing checks, in which case the
// dissent is reported as ErrTriplicateMismatch. Three distinct copies always
// fail with ErrTriplicateMismatch.
func (t *Value[V]) Read(policy *selfheal.Policy) (val V, err error) {
	val, vote, dissenter := t.Check()
	switch vote {
	case Unanimous:
		return
	case Dissent:
		policy = policy.Or()
		if !policy.FixingChecks {
			err = policy.Detected(component, fmt.Errorf("copy %d dissents: %w", dissenter, ErrTriplicateMismatch))
			return
		}
		t.v[dissenter] = val
		policy.Fixed(component, vote.String(), slog.Int("copy", dissenter))
		return
	default:
		err = policy.Or().Detected(component, fmt.Errorf("three distinct copies: %w", ErrTriplicateMismatch))
		return
	}
}

// Verify reads and discards the value, repairing a dissent as Read does.
func (t *Value[V]) Verify(policy *selfheal.Policy) error {
	_, err := t.Read(policy)
	return err
}

// Valid reports whether the value can be read under policy.
func (t *Value[V]) Valid(policy *selfheal.Policy) bool {
	return t.Verify(policy) == nil
}

// Expect asserts want as the authoritative value: any disagreement, even a
// three-way split, is silently overwritten with want. With fixing checks
// disabled, a disagreement is reported as ErrInvariantViolation instead.
func (t *Value[V]) Expect(want V, policy *selfheal.Policy) error {
	return t.expect(want, policy, ErrInvariantViolation)
}

// expect is Expect reporting a disagreement as kind.
func (t *Value[V]) expect(want V, policy *selfheal.Policy, kind error) error {
	if t.v[0] == want && t.v[1] == want && t.v[2] == want {
		return nil
	}
	policy = policy.Or()
	if !policy.FixingChecks {
		return policy.Detected(component, fmt.Errorf("stored triple disagrees with expectation: %w", kind))
	}
	t.Set(want)
	policy.Fixed(component, "expectation")
	return nil
}

// Memory returns the three copies as raw regions for fault injection.
func (t *Value[V]) Memory() [][]byte {
	return [][]byte{
		unsafeview.Value(&t.v[0]),
		unsafeview.Value(&t.v[1]),
		unsafeview.Value(&t.v[2]),
	}
}
