// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package iterator

import "iter"

// The algorithms below merge two sequences sorted by cmp and follow multiset
// semantics: an element occurring m times in a and n times in b occurs
// max(m,n) times in the union, min(m,n) times in the intersection, m-n times
// (if positive) in the difference and |m-n| times in the symmetric difference.
// Ties take the element from a.

// Union merges a and b, keeping the larger multiplicity of each element.
func Union[T any](a, b iter.Seq[T], cmp func(T, T) int) iter.Seq[T] {
	return merge(a, b, cmp, true, true, true)
}

// Intersection keeps the smaller multiplicity of each element.
func Intersection[T any](a, b iter.Seq[T], cmp func(T, T) int) iter.Seq[T] {
	return merge(a, b, cmp, false, false, true)
}

// Difference keeps the occurrences in a not matched by b.
func Difference[T any](a, b iter.Seq[T], cmp func(T, T) int) iter.Seq[T] {
	return merge(a, b, cmp, true, false, false)
}

// SymmetricDifference keeps the unmatched occurrences of both.
func SymmetricDifference[T any](a, b iter.Seq[T], cmp func(T, T) int) iter.Seq[T] {
	return merge(a, b, cmp, true, true, false)
}

// merge walks both sequences in lockstep. onlyA and onlyB decide whether an
// unmatched element of a or b is kept, same whether a matched pair is kept
// (once).
func merge[T any](a, b iter.Seq[T], cmp func(T, T) int, onlyA, onlyB, same bool) iter.Seq[T] {
	return func(yield func(T) bool) {
		nextA, stopA := iter.Pull(a)
		defer stopA()
		nextB, stopB := iter.Pull(b)
		defer stopB()

		va, okA := nextA()
		vb, okB := nextB()
		for okA && okB {
			switch c := cmp(va, vb); {
			case c < 0:
				if onlyA && !yield(va) {
					return
				}
				va, okA = nextA()
			case c > 0:
				if onlyB && !yield(vb) {
					return
				}
				vb, okB = nextB()
			default:
				if same && !yield(va) {
					return
				}
				va, okA = nextA()
				vb, okB = nextB()
			}
		}
		for ; okA && onlyA; va, okA = nextA() {
			if !yield(va) {
				return
			}
		}
		for ; okB && onlyB; vb, okB = nextB() {
			if !yield(vb) {
				return
			}
		}
	}
}
