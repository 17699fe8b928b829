// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package multiset

import (
	"errors"
	"fmt"
	"slices"

	"github.com/saschpe/self-healing-sub000/internal/assert"
)

// Erase removes every key equal to key and returns how many were removed.
func (m *Multiset[K]) Erase(key K) (n int, err error) {
	for {
		it := m.LowerBound(key)
		if err = it.Error(); err != nil {
			return
		}
		if !it.Valid() || m.compare(it.key, key) != 0 {
			return
		}
		if err = m.erase(it.h, it.pos); err != nil {
			return
		}
		n++
	}
}

// EraseAt removes the key under it and returns a cursor on the key that
// followed it.
func (m *Multiset[K]) EraseAt(it *Iter[K]) (*Iter[K], error) {
	if !it.Valid() || it.m != m {
		return nil, fmt.Errorf("erase at invalid cursor: %w", ErrOutOfRange)
	}
	key := it.key
	skip, err := m.offset(it)
	if err != nil {
		return nil, err
	}
	if err = m.erase(it.h, it.pos); err != nil {
		return nil, err
	}
	return m.seek(key, skip), nil
}

// EraseRange removes the keys in [first, last) and returns how many were
// removed. last may be End.
func (m *Multiset[K]) EraseRange(first, last *Iter[K]) (n int, err error) {
	if first.m != m || last.m != m {
		err = fmt.Errorf("erase range of another multiset: %w", ErrOutOfRange)
		return
	}
	if err = errors.Join(first.Error(), last.Error()); err != nil {
		return
	}
	var count int
	walk := first.Clone()
	for ; !walk.Equal(last); count++ {
		if !walk.Valid() {
			err = fmt.Errorf("erase range: last precedes first: %w", ErrOutOfRange)
			return
		}
		walk.Next()
	}
	if err = walk.Error(); err != nil {
		return
	}
	for it := first; n < count; n++ {
		if it, err = m.EraseAt(it); err != nil {
			return
		}
		if err = it.Error(); err != nil {
			return
		}
	}
	return
}

// offset returns how many keys equal to the key under it precede it.
func (m *Multiset[K]) offset(it *Iter[K]) (n int, err error) {
	back := it.Clone()
	for back.Prev() && m.compare(back.key, it.key) == 0 {
		n++
	}
	return n, back.Error()
}

// seek returns a cursor skip keys past the first key not less than key.
func (m *Multiset[K]) seek(key K, skip int) *Iter[K] {
	it := m.LowerBound(key)
	for ; skip > 0 && it.Valid(); skip-- {
		it.Next()
	}
	return it
}

// erase removes slot pos of leaf h and rebalances.
func (m *Multiset[K]) erase(h handle, pos int) error {
	size, err := m.Len()
	if err != nil {
		return err
	}
	leaf, err := m.leaf(h)
	if err != nil {
		return err
	}
	keys, err := leaf.load(m.policy)
	if err != nil {
		return err
	}
	if pos < 0 || pos >= len(keys) {
		return fmt.Errorf("erase slot %d of %d: %w", pos, len(keys), ErrOutOfRange)
	}
	keys = slices.Delete(keys, pos, pos+1)
	if err = leaf.store(keys); err != nil {
		return err
	}
	m.size.Set(size - 1)
	if err = m.rebalanceLeaf(h, len(keys)); err != nil {
		return err
	}
	assert.Valid("Erase", m.Validate)
	return nil
}

// rebalanceLeaf refills an underfull leaf from a sibling under the same
// parent, or merges it with one.
func (m *Multiset[K]) rebalanceLeaf(h handle, count int) error {
	half := m.fanout / 2
	if count >= half {
		return nil
	}
	root, err := m.isRoot(h, 0)
	if err != nil || root {
		return err
	}
	p, parent, seps, children, i, err := m.parentOf(h, 0)
	if err != nil {
		return err
	}
	leaf := m.leaves[h]
	keys, err := leaf.load(m.policy)
	if err != nil {
		return err
	}

	if i > 0 {
		left, lkeys, err := m.loadLeaf(children[i-1])
		if err != nil {
			return err
		}
		if len(lkeys) > half {
			last := len(lkeys) - 1
			keys = slices.Insert(keys, 0, lkeys[last])
			lkeys = lkeys[:last]
			seps[i-1] = lkeys[last-1]
			return errors.Join(left.store(lkeys), leaf.store(keys), parent.store(seps, children))
		}
	}
	if i < len(children)-1 {
		right, rkeys, err := m.loadLeaf(children[i+1])
		if err != nil {
			return err
		}
		if len(rkeys) > half {
			keys = append(keys, rkeys[0])
			seps[i] = rkeys[0]
			rkeys = rkeys[1:]
			return errors.Join(right.store(rkeys), leaf.store(keys), parent.store(seps, children))
		}
	}

	k := i
	if i > 0 {
		k = i - 1
	}
	return m.mergeLeaves(p, seps, children, k)
}

// mergeLeaves folds child k+1 of branch p into child k.
func (m *Multiset[K]) mergeLeaves(p handle, seps []K, children []handle, k int) error {
	lh, rh := children[k], children[k+1]
	left, lkeys, err := m.loadLeaf(lh)
	if err != nil {
		return err
	}
	right, rkeys, err := m.loadLeaf(rh)
	if err != nil {
		return err
	}
	next, err := right.link.Next(m.policy)
	if err != nil {
		return err
	}
	if err = left.store(slices.Concat(lkeys, rkeys)); err != nil {
		return err
	}
	left.link.SetNext(next)
	if next != 0 {
		after, err := m.leaf(next)
		if err != nil {
			return err
		}
		after.link.SetPrev(lh)
	}
	m.freeLeaf(rh)

	seps = slices.Delete(seps, k, k+1)
	children = slices.Delete(children, k+1, k+2)
	if err = m.branches[p].store(seps, children); err != nil {
		return err
	}
	return m.rebalanceBranch(p, 1, seps, children)
}

// rebalanceBranch collapses a root with a single child, or refills an
// underfull branch at level by rotating through its parent, or merges it
// with a sibling.
func (m *Multiset[K]) rebalanceBranch(h handle, level int, seps []K, children []handle) error {
	root, err := m.isRoot(h, level)
	if err != nil {
		return err
	}
	if root {
		if len(children) > 1 {
			return nil
		}
		if err = m.setParent(children[0], level-1, 0); err != nil {
			return err
		}
		m.root.Set(children[0])
		m.height.Set(level - 1)
		m.freeBranch(h)
		return nil
	}
	half := m.fanout / 2
	if len(children) >= half {
		return nil
	}

	p, parent, pseps, pchildren, i, err := m.parentOf(h, level)
	if err != nil {
		return err
	}
	branch := m.branches[h]

	if i > 0 {
		left, lseps, lchildren, err := m.loadBranch(pchildren[i-1])
		if err != nil {
			return err
		}
		if len(lchildren) > half {
			moved := lchildren[len(lchildren)-1]
			seps = slices.Insert(seps, 0, pseps[i-1])
			children = slices.Insert(children, 0, moved)
			pseps[i-1] = lseps[len(lseps)-1]
			lseps, lchildren = lseps[:len(lseps)-1], lchildren[:len(lchildren)-1]
			return errors.Join(
				left.store(lseps, lchildren),
				branch.store(seps, children),
				parent.store(pseps, pchildren),
				m.setParent(moved, level-1, h),
			)
		}
	}
	if i < len(pchildren)-1 {
		right, rseps, rchildren, err := m.loadBranch(pchildren[i+1])
		if err != nil {
			return err
		}
		if len(rchildren) > half {
			moved := rchildren[0]
			seps = append(seps, pseps[i])
			children = append(children, moved)
			pseps[i] = rseps[0]
			rseps, rchildren = rseps[1:], rchildren[1:]
			return errors.Join(
				right.store(rseps, rchildren),
				branch.store(seps, children),
				parent.store(pseps, pchildren),
				m.setParent(moved, level-1, h),
			)
		}
	}

	k := i
	if i > 0 {
		k = i - 1
	}
	lh, rh := pchildren[k], pchildren[k+1]
	left, lseps, lchildren, err := m.loadBranch(lh)
	if err != nil {
		return err
	}
	_, rseps, rchildren, err := m.loadBranch(rh)
	if err != nil {
		return err
	}
	lseps = slices.Concat(lseps, []K{pseps[k]}, rseps)
	lchildren = slices.Concat(lchildren, rchildren)
	if err = left.store(lseps, lchildren); err != nil {
		return err
	}
	for _, child := range rchildren {
		if err = m.setParent(child, level-1, lh); err != nil {
			return err
		}
	}
	m.freeBranch(rh)

	pseps = slices.Delete(pseps, k, k+1)
	pchildren = slices.Delete(pchildren, k+1, k+2)
	if err = parent.store(pseps, pchildren); err != nil {
		return err
	}
	return m.rebalanceBranch(p, level+1, pseps, pchildren)
}

func (m *Multiset[K]) loadLeaf(h handle) (*leaf[K], []K, error) {
	leaf, err := m.leaf(h)
	if err != nil {
		return nil, nil, err
	}
	keys, err := leaf.load(m.policy)
	return leaf, keys, err
}

func (m *Multiset[K]) loadBranch(h handle) (*branch[K], []K, []handle, error) {
	branch, err := m.branch(h)
	if err != nil {
		return nil, nil, nil, err
	}
	seps, children, err := branch.load(m.policy)
	return branch, seps, children, err
}
