// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package multiset

import (
	"fmt"
	"iter"
	"slices"

	"github.com/saschpe/self-healing-sub000/internal/assert"
)

// Insert adds key after any equal keys and returns a cursor on it.
func (m *Multiset[K]) Insert(key K) (*Iter[K], error) {
	size, err := m.Len()
	if err != nil {
		return nil, err
	}
	h, err := m.descend(key, true)
	if err != nil {
		return nil, err
	}
	leaf := m.leaves[h]
	keys, err := leaf.load(m.policy)
	if err != nil {
		return nil, err
	}
	pos := m.search(keys, key, true)
	keys = slices.Insert(keys, pos, key)

	it := &Iter[K]{m: m, h: h, pos: pos, key: key}
	if len(keys) <= m.fanout {
		err = leaf.store(keys)
	} else {
		var right handle
		lc := (len(keys) + 1) / 2
		right, err = m.splitLeaf(h, keys, lc)
		if pos >= lc {
			it.h, it.pos = right, pos-lc
		}
	}
	if err != nil {
		return nil, err
	}
	m.size.Set(size + 1)
	assert.Valid("Insert", m.Validate)
	return it, nil
}

// InsertAll inserts every key of keys and returns how many were inserted.
func (m *Multiset[K]) InsertAll(keys iter.Seq[K]) (n int, err error) {
	for key := range keys {
		if _, err = m.Insert(key); err != nil {
			return
		}
		n++
	}
	return
}

// splitLeaf keeps keys[:lc] in leaf h, moves the rest to a new right
// sibling and hands the separator up.
func (m *Multiset[K]) splitLeaf(h handle, keys []K, lc int) (right handle, err error) {
	leaf := m.leaves[h]
	parent, err := leaf.parent.Get(m.policy)
	if err != nil {
		return
	}
	next, err := leaf.link.Next(m.policy)
	if err != nil {
		return
	}
	if err = leaf.store(keys[:lc]); err != nil {
		return
	}

	right = m.newLeaf(keys[lc:], parent)
	m.leaves[right].link.Set(next, h)
	leaf.link.SetNext(right)
	if next != 0 {
		after, err := m.leaf(next)
		if err != nil {
			return right, err
		}
		after.link.SetPrev(right)
	}
	return right, m.insertParent(0, h, keys[lc-1], right)
}

// insertParent links right into the parent of left, found at level, with
// sep between them. A parent that overflows is split in turn; a root split
// grows the tree.
func (m *Multiset[K]) insertParent(level int, left handle, sep K, right handle) error {
	root, err := m.isRoot(left, level)
	if err != nil {
		return err
	}
	if root {
		top := m.newBranch([]K{sep}, []handle{left, right}, 0)
		if err = m.setParent(left, level, top); err != nil {
			return err
		}
		if err = m.setParent(right, level, top); err != nil {
			return err
		}
		m.root.Set(top)
		m.height.Set(level + 1)
		return nil
	}

	p, branch, seps, children, i, err := m.parentOf(left, level)
	if err != nil {
		return err
	}
	if err = m.setParent(right, level, p); err != nil {
		return err
	}
	seps = slices.Insert(seps, i, sep)
	children = slices.Insert(children, i+1, right)
	if len(children) <= m.fanout {
		return branch.store(seps, children)
	}

	grand, err := branch.parent.Get(m.policy)
	if err != nil {
		return fmt.Errorf("parent of branch %d: %w", p, err)
	}
	lc := (len(children) + 1) / 2
	promoted := seps[lc-1]
	if err = branch.store(seps[:lc-1], children[:lc]); err != nil {
		return err
	}
	sibling := m.newBranch(seps[lc:], children[lc:], grand)
	for _, child := range children[lc:] {
		if err = m.setParent(child, level, sibling); err != nil {
			return err
		}
	}
	return m.insertParent(level+1, p, promoted, sibling)
}
