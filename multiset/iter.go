// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package multiset

import (
	"github.com/saschpe/self-healing-sub000/iterator"
)

// Iter is a bidirectional cursor over a Multiset, positioned on a slot of a
// leaf. The end position, one past the last key, is not Valid.
//
// Any insertion or removal on the multiset invalidates the cursor.
type Iter[K comparable] struct {
	m   *Multiset[K]
	h   handle
	pos int
	key K
	err error
}

var _ iterator.Cursor[int] = (*Iter[int])(nil)

// Begin returns a cursor on the smallest key, or End when empty.
func (m *Multiset[K]) Begin() *Iter[K] {
	it := m.End()
	it.SeekFirst()
	return it
}

// End returns the position one past the largest key.
func (m *Multiset[K]) End() *Iter[K] {
	return &Iter[K]{m: m}
}

// Find returns a cursor on the first key equal to key, or End.
func (m *Multiset[K]) Find(key K) *Iter[K] {
	it := m.LowerBound(key)
	if it.Valid() && m.compare(it.key, key) != 0 {
		it.h, it.pos = 0, 0
	}
	return it
}

// LowerBound returns a cursor on the first key not less than key.
func (m *Multiset[K]) LowerBound(key K) *Iter[K] {
	return m.bound(key, false)
}

// UpperBound returns a cursor on the first key greater than key.
func (m *Multiset[K]) UpperBound(key K) *Iter[K] {
	return m.bound(key, true)
}

// EqualRange returns the half-open range of keys equal to key.
func (m *Multiset[K]) EqualRange(key K) (first, last *Iter[K]) {
	return m.LowerBound(key), m.UpperBound(key)
}

// Count returns the number of keys equal to key.
func (m *Multiset[K]) Count(key K) (n int, err error) {
	it := m.LowerBound(key)
	for ; it.Valid() && m.compare(it.key, key) == 0; it.Next() {
		n++
	}
	return n, it.Error()
}

// Contains reports whether key is present.
func (m *Multiset[K]) Contains(key K) (bool, error) {
	it := m.Find(key)
	return it.Valid(), it.Error()
}

func (m *Multiset[K]) bound(key K, upper bool) *Iter[K] {
	it := m.End()
	h, err := m.descend(key, upper)
	if err != nil {
		it.fail(err)
		return it
	}
	keys, err := m.leaves[h].load(m.policy)
	if err != nil {
		it.fail(err)
		return it
	}
	it.h, it.pos = h, m.search(keys, key, upper)
	it.settle()
	return it
}

// descend walks from the root to the leaf that would hold key, re-asserting
// each child's parent link on the way.
func (m *Multiset[K]) descend(key K, upper bool) (handle, error) {
	h, height, err := m.top()
	if err != nil {
		return 0, err
	}
	for level := height; level > 0; level-- {
		branch, err := m.branch(h)
		if err != nil {
			return 0, err
		}
		seps, children, err := branch.load(m.policy)
		if err != nil {
			return 0, err
		}
		child := children[m.search(seps, key, upper)]
		if err = m.expectParent(child, level-1, h); err != nil {
			return 0, err
		}
		h = child
	}
	if _, err = m.leaf(h); err != nil {
		return 0, err
	}
	return h, nil
}

// edge descends along the first or last children to a leaf.
func (m *Multiset[K]) edge(last bool) (handle, error) {
	h, height, err := m.top()
	if err != nil {
		return 0, err
	}
	for level := height; level > 0; level-- {
		branch, err := m.branch(h)
		if err != nil {
			return 0, err
		}
		_, children, err := branch.load(m.policy)
		if err != nil {
			return 0, err
		}
		child := children[0]
		if last {
			child = children[len(children)-1]
		}
		if err = m.expectParent(child, level-1, h); err != nil {
			return 0, err
		}
		h = child
	}
	if _, err = m.leaf(h); err != nil {
		return 0, err
	}
	return h, nil
}

// Valid reports whether the cursor is positioned on a key.
func (it *Iter[K]) Valid() bool {
	return it.err == nil && it.h != 0
}

// Error returns the integrity error that stopped the cursor, if any.
func (it *Iter[K]) Error() error {
	return it.err
}

// Key returns the key under the cursor.
func (it *Iter[K]) Key() K {
	return it.key
}

// Val returns the key under the cursor.
func (it *Iter[K]) Val() K {
	return it.key
}

// Equal reports whether both cursors sit on the same position. All end
// positions of one multiset are equal.
func (it *Iter[K]) Equal(other *Iter[K]) bool {
	return it.m == other.m && it.h == other.h && it.pos == other.pos
}

// Clone returns an independent copy of the cursor.
func (it *Iter[K]) Clone() *Iter[K] {
	clone := *it
	return &clone
}

// SeekFirst positions the cursor on the smallest key.
func (it *Iter[K]) SeekFirst() bool {
	it.reset()
	h, err := it.m.edge(false)
	if err != nil {
		return it.fail(err)
	}
	it.h = h
	return it.settle()
}

// SeekLast positions the cursor on the largest key.
func (it *Iter[K]) SeekLast() bool {
	it.reset()
	h, err := it.m.edge(true)
	if err != nil {
		return it.fail(err)
	}
	keys, err := it.m.leaves[h].load(it.m.policy)
	if err != nil {
		return it.fail(err)
	}
	if len(keys) == 0 {
		return false
	}
	it.h, it.pos, it.key = h, len(keys)-1, keys[len(keys)-1]
	return true
}

// Next advances to the following key in the leaf chain.
func (it *Iter[K]) Next() bool {
	if !it.Valid() {
		return false
	}
	it.pos++
	return it.settle()
}

// Prev steps back to the preceding key in the leaf chain.
func (it *Iter[K]) Prev() bool {
	if !it.Valid() {
		return false
	}
	if it.pos > 0 {
		it.pos--
		return it.load()
	}
	for {
		leaf, err := it.m.leaf(it.h)
		if err != nil {
			return it.fail(err)
		}
		if it.h, err = leaf.link.Prev(it.m.policy); err != nil {
			return it.fail(err)
		}
		if it.h == 0 {
			it.pos = 0
			return false
		}
		keys, err := it.m.leaves[it.h].load(it.m.policy)
		if err != nil {
			return it.fail(err)
		}
		if len(keys) > 0 {
			it.pos, it.key = len(keys)-1, keys[len(keys)-1]
			return true
		}
	}
}

// settle moves a position past the end of its leaf to the start of the
// next non-empty leaf and loads the key.
func (it *Iter[K]) settle() bool {
	for it.h != 0 {
		leaf, err := it.m.leaf(it.h)
		if err != nil {
			return it.fail(err)
		}
		keys, err := leaf.load(it.m.policy)
		if err != nil {
			return it.fail(err)
		}
		if it.pos < len(keys) {
			it.key = keys[it.pos]
			return true
		}
		if it.h, err = leaf.link.Next(it.m.policy); err != nil {
			return it.fail(err)
		}
		it.pos = 0
	}
	return false
}

func (it *Iter[K]) load() bool {
	leaf, err := it.m.leaf(it.h)
	if err != nil {
		return it.fail(err)
	}
	keys, err := leaf.load(it.m.policy)
	if err != nil {
		return it.fail(err)
	}
	if it.pos >= len(keys) {
		return it.fail(ErrOutOfRange)
	}
	it.key = keys[it.pos]
	return true
}

func (it *Iter[K]) fail(err error) bool {
	it.h, it.pos, it.err = 0, 0, err
	return false
}

func (it *Iter[K]) reset() {
	var zero K
	it.h, it.pos, it.key, it.err = 0, 0, zero, nil
}
