// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package multiset implements an ordered multiset as a B+ tree whose nodes
// are checksummed blocks and whose links are triple redundant.
package multiset

import (
	"cmp"
	"fmt"
	"iter"

	selfheal "github.com/saschpe/self-healing-sub000"
	"github.com/saschpe/self-healing-sub000/internal/unsafeview"
	"github.com/saschpe/self-healing-sub000/tmr"
)

var (
	ErrOutOfRange         = selfheal.ErrOutOfRange
	ErrParentMismatch     = selfheal.ErrParentMismatch
	ErrInvariantViolation = selfheal.ErrInvariantViolation
)

// MinFanout is the smallest fanout WithFanout accepts.
const MinFanout = 4

// Fanout returns the default node capacity for K: enough slots for roughly
// 256 bytes of keys, and never fewer than 8.
func Fanout[K any]() int {
	return max(8, 256/max(unsafeview.Size[K](), 1))
}

// Multiset is an ordered multiset of K kept in a B+ tree.
//
// Leaves hold up to S sorted keys in a checksummed block and are threaded
// into a doubly linked sibling chain. Branches hold up to S triple-redundant
// child handles and one separator fewer. Every node other than the root
// holds at least S/2 keys (children for branches); a root branch has at
// least two children. For every branch, the keys
// under child i are no greater than separator i, which is no greater than
// the keys under child i+1.
//
// Not thread-safe: reads repair what they can in place. Any insertion or
// removal invalidates iterators.
//
// Example usage:
//
//	m := multiset.New[int]()
//	m.Insert(3)
//	m.Insert(1)
//	m.Insert(3)
//	n, err := m.Count(3) // n == 2
//
//	for key := range m.Items {
//		fmt.Println(key)
//	}
type Multiset[K comparable] struct {
	compare func(a, b K) int
	fanout  int
	policy  *selfheal.Policy

	leaves       []*leaf[K]
	freeLeaves   []handle
	branches     []*branch[K]
	freeBranches []handle

	root   tmr.Value[handle]
	height tmr.Value[int] // branch levels above the leaves
	size   tmr.Value[int]
}

type options struct {
	fanout int
	policy *selfheal.Policy
}

// Option configures a Multiset.
type Option func(*options)

// WithFanout sets the node capacity S. Values below MinFanout are raised to
// MinFanout.
func WithFanout(n int) Option {
	return func(o *options) { o.fanout = max(n, MinFanout) }
}

// WithPolicy sets the recovery policy. Nil selects selfheal.Default.
func WithPolicy(policy *selfheal.Policy) Option {
	return func(o *options) { o.policy = policy }
}

// New returns an empty multiset ordered by cmp.Compare.
func New[K cmp.Ordered](opts ...Option) *Multiset[K] {
	return NewFunc(cmp.Compare[K], opts...)
}

// NewFunc returns an empty multiset ordered by compare, which must define a
// strict weak order returning a negative, zero or positive result.
func NewFunc[K comparable](compare func(a, b K) int, opts ...Option) *Multiset[K] {
	o := options{fanout: Fanout[K]()}
	for _, opt := range opts {
		opt(&o)
	}
	m := &Multiset[K]{
		compare: compare,
		fanout:  o.fanout,
		policy:  o.policy.Or(),
	}
	m.reset()
	return m
}

// NewFrom returns a multiset ordered by cmp.Compare holding every key of keys.
func NewFrom[K cmp.Ordered](keys iter.Seq[K], opts ...Option) (*Multiset[K], error) {
	m := New[K](opts...)
	if _, err := m.InsertAll(keys); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Multiset[K]) reset() {
	m.leaves = []*leaf[K]{nil}
	m.branches = []*branch[K]{nil}
	m.freeLeaves = nil
	m.freeBranches = nil
	m.root.Set(m.newLeaf(nil, 0))
	m.height.Set(0)
	m.size.Set(0)
}

// Comparator returns the ordering function.
func (m *Multiset[K]) Comparator() func(a, b K) int {
	return m.compare
}

// FanoutSize returns the node capacity S.
func (m *Multiset[K]) FanoutSize() int {
	return m.fanout
}

// Policy returns the recovery policy of the multiset.
func (m *Multiset[K]) Policy() *selfheal.Policy {
	return m.policy
}

// Len returns the number of keys, counting duplicates.
func (m *Multiset[K]) Len() (int, error) {
	size, err := m.size.Read(m.policy)
	if err != nil {
		return 0, fmt.Errorf("multiset size: %w", err)
	}
	return size, nil
}

// Empty reports whether the multiset holds no keys.
func (m *Multiset[K]) Empty() (bool, error) {
	size, err := m.Len()
	return size == 0, err
}

// Height returns the number of levels; a lone root leaf has height 1.
func (m *Multiset[K]) Height() (int, error) {
	_, height, err := m.top()
	return height + 1, err
}

// Clear removes every key.
func (m *Multiset[K]) Clear() {
	m.reset()
}

// Swap exchanges the contents of m and other in O(1).
func (m *Multiset[K]) Swap(other *Multiset[K]) {
	*m, *other = *other, *m
}

// Clone returns a copy of m with the same ordering, fanout and policy.
func (m *Multiset[K]) Clone() (*Multiset[K], error) {
	clone := NewFunc(m.compare, WithFanout(m.fanout), WithPolicy(m.policy))
	it := m.Begin()
	for ; it.Valid(); it.Next() {
		if _, err := clone.Insert(it.Key()); err != nil {
			return nil, err
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return clone, nil
}

// Items yields the keys in ascending order. It stops at the first integrity
// error; use a cursor to observe the error.
func (m *Multiset[K]) Items(yield func(K) bool) {
	for it := m.Begin(); it.Valid(); it.Next() {
		if !yield(it.Key()) {
			return
		}
	}
}

// Backward yields the keys in descending order. It stops at the first
// integrity error.
func (m *Multiset[K]) Backward(yield func(K) bool) {
	it := m.End()
	for it.SeekLast(); it.Valid(); it.Prev() {
		if !yield(it.Key()) {
			return
		}
	}
}

func (m *Multiset[K]) top() (root handle, height int, err error) {
	if root, err = m.root.Read(m.policy); err != nil {
		err = fmt.Errorf("multiset root: %w", err)
		return
	}
	if height, err = m.height.Read(m.policy); err != nil {
		err = fmt.Errorf("multiset height: %w", err)
	}
	return
}

func (m *Multiset[K]) isRoot(h handle, level int) (bool, error) {
	root, height, err := m.top()
	return root == h && height == level, err
}
