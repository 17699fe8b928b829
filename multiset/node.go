// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package multiset

import (
	"fmt"
	"sort"

	selfheal "github.com/saschpe/self-healing-sub000"
	"github.com/saschpe/self-healing-sub000/block"
	"github.com/saschpe/self-healing-sub000/internal/assert"
	"github.com/saschpe/self-healing-sub000/tmr"
)

// handle indexes the leaf or branch arena, depending on the level it is
// found at; 0 is "no node".
type handle uint32

type leaf[K comparable] struct {
	keys   *block.Block[K]
	count  tmr.Value[int]
	link   tmr.Sibling[handle]
	parent tmr.Parent[handle]
}

// load returns a validated copy of the live keys.
func (leaf *leaf[K]) load(policy *selfheal.Policy) ([]K, error) {
	count, err := leaf.count.Read(policy)
	if err != nil {
		return nil, fmt.Errorf("leaf count: %w", err)
	}
	if count < 0 || count > leaf.keys.Len() {
		return nil, fmt.Errorf("leaf count %d of %d: %w", count, leaf.keys.Len(), ErrInvariantViolation)
	}
	keys, err := leaf.keys.Values()
	if err != nil {
		return nil, fmt.Errorf("leaf keys: %w", err)
	}
	return keys[:count], nil
}

func (leaf *leaf[K]) store(keys []K) error {
	assert.True("leaf.store", len(keys) <= leaf.keys.Len(), "%d keys in %d slots", len(keys), leaf.keys.Len())
	err := leaf.keys.Update(func(data []K) {
		n := copy(data, keys)
		clear(data[n:])
	})
	if err != nil {
		return fmt.Errorf("leaf keys: %w", err)
	}
	leaf.count.Set(len(keys))
	return nil
}

type branch[K comparable] struct {
	seps     *block.Block[K]
	count    tmr.Value[int] // children
	children []tmr.Value[handle]
	parent   tmr.Parent[handle]
}

// load returns validated copies of the separators and child handles.
func (branch *branch[K]) load(policy *selfheal.Policy) (seps []K, children []handle, err error) {
	count, err := branch.count.Read(policy)
	if err != nil {
		err = fmt.Errorf("branch count: %w", err)
		return
	}
	if count < 1 || count > len(branch.children) {
		err = fmt.Errorf("branch count %d of %d: %w", count, len(branch.children), ErrInvariantViolation)
		return
	}
	if seps, err = branch.seps.Values(); err != nil {
		err = fmt.Errorf("branch separators: %w", err)
		return
	}
	seps = seps[:count-1]
	children = make([]handle, count)
	for i := range children {
		if children[i], err = branch.children[i].Read(policy); err != nil {
			err = fmt.Errorf("branch child %d: %w", i, err)
			return
		}
	}
	return
}

func (branch *branch[K]) store(seps []K, children []handle) error {
	assert.True("branch.store", len(seps)+1 == len(children), "%d separators for %d children", len(seps), len(children))
	err := branch.seps.Update(func(data []K) {
		n := copy(data, seps)
		clear(data[n:])
	})
	if err != nil {
		return fmt.Errorf("branch separators: %w", err)
	}
	for i := range branch.children {
		var child handle
		if i < len(children) {
			child = children[i]
		}
		branch.children[i].Set(child)
	}
	branch.count.Set(len(children))
	return nil
}

// search returns the index of the first key not less than key, or with
// upper set, the first key greater than key.
func (m *Multiset[K]) search(keys []K, key K, upper bool) int {
	if upper {
		return sort.Search(len(keys), func(i int) bool { return m.compare(keys[i], key) > 0 })
	}
	return sort.Search(len(keys), func(i int) bool { return m.compare(keys[i], key) >= 0 })
}

func (m *Multiset[K]) newLeaf(keys []K, parent handle) (h handle) {
	leaf := &leaf[K]{keys: block.NewFrom(m.fanout, keys, m.policy)}
	leaf.count.Set(len(keys))
	leaf.link.Set(0, 0)
	leaf.parent.Set(parent)
	if n := len(m.freeLeaves); n > 0 {
		h = m.freeLeaves[n-1]
		m.freeLeaves = m.freeLeaves[:n-1]
		m.leaves[h] = leaf
		return
	}
	h = handle(len(m.leaves))
	m.leaves = append(m.leaves, leaf)
	return
}

func (m *Multiset[K]) newBranch(seps []K, children []handle, parent handle) (h handle) {
	branch := &branch[K]{
		seps:     block.NewFrom(m.fanout-1, seps, m.policy),
		children: make([]tmr.Value[handle], m.fanout),
	}
	for i, child := range children {
		branch.children[i].Set(child)
	}
	branch.count.Set(len(children))
	branch.parent.Set(parent)
	if n := len(m.freeBranches); n > 0 {
		h = m.freeBranches[n-1]
		m.freeBranches = m.freeBranches[:n-1]
		m.branches[h] = branch
		return
	}
	h = handle(len(m.branches))
	m.branches = append(m.branches, branch)
	return
}

func (m *Multiset[K]) freeLeaf(h handle) {
	m.leaves[h] = nil
	m.freeLeaves = append(m.freeLeaves, h)
}

func (m *Multiset[K]) freeBranch(h handle) {
	m.branches[h] = nil
	m.freeBranches = append(m.freeBranches, h)
}

func (m *Multiset[K]) leaf(h handle) (*leaf[K], error) {
	if h == 0 || int(h) >= len(m.leaves) || m.leaves[h] == nil {
		return nil, fmt.Errorf("leaf handle %d: %w", h, ErrInvariantViolation)
	}
	return m.leaves[h], nil
}

func (m *Multiset[K]) branch(h handle) (*branch[K], error) {
	if h == 0 || int(h) >= len(m.branches) || m.branches[h] == nil {
		return nil, fmt.Errorf("branch handle %d: %w", h, ErrInvariantViolation)
	}
	return m.branches[h], nil
}

// parentLink returns the parent link of the node h found at level.
func (m *Multiset[K]) parentLink(h handle, level int) (*tmr.Parent[handle], error) {
	if level == 0 {
		leaf, err := m.leaf(h)
		if err != nil {
			return nil, err
		}
		return &leaf.parent, nil
	}
	branch, err := m.branch(h)
	if err != nil {
		return nil, err
	}
	return &branch.parent, nil
}

func (m *Multiset[K]) setParent(h handle, level int, parent handle) error {
	link, err := m.parentLink(h, level)
	if err != nil {
		return err
	}
	link.Set(parent)
	return nil
}

func (m *Multiset[K]) expectParent(h handle, level int, parent handle) error {
	link, err := m.parentLink(h, level)
	if err != nil {
		return err
	}
	if err = link.Expect(parent, m.policy); err != nil {
		return fmt.Errorf("parent of node %d: %w", h, err)
	}
	return nil
}

// parentOf climbs from h to its parent branch and loads it. It fails with
// ErrParentMismatch when the parent does not list h among its children.
func (m *Multiset[K]) parentOf(h handle, level int) (p handle, pb *branch[K], seps []K, children []handle, i int, err error) {
	link, err := m.parentLink(h, level)
	if err != nil {
		return
	}
	if p, err = link.Get(m.policy); err != nil {
		err = fmt.Errorf("parent of node %d: %w", h, err)
		return
	}
	if pb, err = m.branch(p); err != nil {
		return
	}
	if seps, children, err = pb.load(m.policy); err != nil {
		return
	}
	for i = range children {
		if children[i] == h {
			return
		}
	}
	err = fmt.Errorf("branch %d does not list node %d: %w", p, h, ErrParentMismatch)
	return
}
