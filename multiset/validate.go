// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package multiset

import "fmt"

type walk struct {
	leaves   []handle
	branches int
	keys     int
}

// Validate checks the whole tree: every node's checksums, parent links
// against the branch that lists the node, sibling links against the in-order
// leaf sequence, key order within nodes and against the separators above
// them, occupancy and the size. Divergent redundant links are rewritten when
// the policy allows repairs.
func (m *Multiset[K]) Validate() error {
	root, height, err := m.top()
	if err != nil {
		return err
	}
	size, err := m.Len()
	if err != nil {
		return err
	}
	if height < 0 {
		return fmt.Errorf("height %d: %w", height, ErrInvariantViolation)
	}

	var w walk
	if err = m.validateNode(root, height, 0, nil, nil, true, &w); err != nil {
		return err
	}

	for i, h := range w.leaves {
		var prev, next handle
		if i > 0 {
			prev = w.leaves[i-1]
		}
		if i+1 < len(w.leaves) {
			next = w.leaves[i+1]
		}
		if err = m.leaves[h].link.Expect(next, prev, m.policy); err != nil {
			return fmt.Errorf("sibling links of leaf %d: %w", h, err)
		}
	}

	if w.keys != size {
		return fmt.Errorf("%d keys in leaves, size %d: %w", w.keys, size, ErrInvariantViolation)
	}
	if live := m.live(); live != len(w.leaves)+w.branches {
		return fmt.Errorf("%d live nodes, %d reachable: %w", live, len(w.leaves)+w.branches, ErrInvariantViolation)
	}
	return nil
}

// Valid reports whether Validate succeeds.
func (m *Multiset[K]) Valid() bool {
	return m.Validate() == nil
}

func (m *Multiset[K]) validateNode(h handle, level int, parent handle, lo, hi *K, root bool, w *walk) error {
	half := m.fanout / 2
	if level == 0 {
		leaf, err := m.leaf(h)
		if err != nil {
			return err
		}
		if err = leaf.keys.Validate(); err != nil {
			return fmt.Errorf("leaf %d: %w", h, err)
		}
		if err = leaf.parent.Expect(parent, m.policy); err != nil {
			return fmt.Errorf("parent of leaf %d: %w", h, err)
		}
		keys, err := leaf.load(m.policy)
		if err != nil {
			return fmt.Errorf("leaf %d: %w", h, err)
		}
		if !root && len(keys) < half {
			return fmt.Errorf("leaf %d holds %d keys, minimum %d: %w", h, len(keys), half, ErrInvariantViolation)
		}
		if err = m.ordered(keys, lo, hi); err != nil {
			return fmt.Errorf("leaf %d: %w", h, err)
		}
		w.leaves = append(w.leaves, h)
		w.keys += len(keys)
		return nil
	}

	branch, err := m.branch(h)
	if err != nil {
		return err
	}
	if err = branch.seps.Validate(); err != nil {
		return fmt.Errorf("branch %d: %w", h, err)
	}
	if err = branch.parent.Expect(parent, m.policy); err != nil {
		return fmt.Errorf("parent of branch %d: %w", h, err)
	}
	seps, children, err := branch.load(m.policy)
	if err != nil {
		return fmt.Errorf("branch %d: %w", h, err)
	}
	for i := len(children); i < len(branch.children); i++ {
		if err = branch.children[i].Expect(0, m.policy); err != nil {
			return fmt.Errorf("unused child slot %d of branch %d: %w", i, h, err)
		}
	}
	minimum := half
	if root {
		minimum = 2
	}
	if len(children) < minimum {
		return fmt.Errorf("branch %d holds %d children, minimum %d: %w", h, len(children), minimum, ErrInvariantViolation)
	}
	if err = m.ordered(seps, lo, hi); err != nil {
		return fmt.Errorf("branch %d: %w", h, err)
	}
	w.branches++

	for i, child := range children {
		clo, chi := lo, hi
		if i > 0 {
			clo = &seps[i-1]
		}
		if i < len(seps) {
			chi = &seps[i]
		}
		if err = m.validateNode(child, level-1, h, clo, chi, false, w); err != nil {
			return err
		}
	}
	return nil
}

// ordered checks that keys are non-decreasing and within [lo, hi].
func (m *Multiset[K]) ordered(keys []K, lo, hi *K) error {
	for i, key := range keys {
		if i > 0 && m.compare(keys[i-1], key) > 0 {
			return fmt.Errorf("keys %d and %d out of order: %w", i-1, i, ErrInvariantViolation)
		}
		if lo != nil && m.compare(key, *lo) < 0 || hi != nil && m.compare(key, *hi) > 0 {
			return fmt.Errorf("key %d outside separator bounds: %w", i, ErrInvariantViolation)
		}
	}
	return nil
}

func (m *Multiset[K]) live() (n int) {
	for _, leaf := range m.leaves {
		if leaf != nil {
			n++
		}
	}
	for _, branch := range m.branches {
		if branch != nil {
			n++
		}
	}
	return
}

// Memory returns the raw regions of the header and of every live node. The
// slices alias the multiset and exist for fault injection.
func (m *Multiset[K]) Memory() [][]byte {
	var regions [][]byte
	regions = append(regions, m.root.Memory()...)
	regions = append(regions, m.height.Memory()...)
	regions = append(regions, m.size.Memory()...)
	for _, leaf := range m.leaves {
		if leaf == nil {
			continue
		}
		regions = append(regions, leaf.keys.Memory()...)
		regions = append(regions, leaf.count.Memory()...)
		regions = append(regions, leaf.link.Memory()...)
		regions = append(regions, leaf.parent.Memory()...)
	}
	for _, branch := range m.branches {
		if branch == nil {
			continue
		}
		regions = append(regions, branch.seps.Memory()...)
		regions = append(regions, branch.count.Memory()...)
		for i := range branch.children {
			regions = append(regions, branch.children[i].Memory()...)
		}
		regions = append(regions, branch.parent.Memory()...)
	}
	return regions
}
