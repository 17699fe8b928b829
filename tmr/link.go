// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package tmr

import (
	"fmt"

	selfheal "github.com/saschpe/self-healing-sub000"
)

// Handle is the constraint for link targets: arena indices or other opaque,
// bitwise-comparable references. The zero value means "none".
type Handle interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Parent is a non-owning, triple-redundant back reference to a parent.
type Parent[H Handle] struct {
	parent Value[H]
}

// Set points the link at parent.
func (link *Parent[H]) Set(parent H) {
	link.parent.Set(parent)
}

// Get returns the parent by majority vote.
func (link *Parent[H]) Get(policy *selfheal.Policy) (H, error) {
	parent, err := link.parent.Read(policy)
	if err != nil {
		return parent, fmt.Errorf("parent link: %w", err)
	}
	return parent, nil
}

// Verify checks the triple without an authoritative parent.
func (link *Parent[H]) Verify(policy *selfheal.Policy) error {
	_, err := link.Get(policy)
	return err
}

// Expect re-asserts parent as the true parent, overwriting a divergent
// triple. It fails with ErrParentMismatch when fixing checks are disabled
// and the link disagrees.
func (link *Parent[H]) Expect(parent H, policy *selfheal.Policy) error {
	if err := link.parent.expect(parent, policy, ErrParentMismatch); err != nil {
		return fmt.Errorf("parent link: %w", err)
	}
	return nil
}

func (link *Parent[H]) Memory() [][]byte {
	return link.parent.Memory()
}

// Sibling is a pair of non-owning, triple-redundant side references.
type Sibling[H Handle] struct {
	next Value[H]
	prev Value[H]
}

// Set points the link at next and prev.
func (link *Sibling[H]) Set(next, prev H) {
	link.next.Set(next)
	link.prev.Set(prev)
}

func (link *Sibling[H]) SetNext(next H) {
	link.next.Set(next)
}

func (link *Sibling[H]) SetPrev(prev H) {
	link.prev.Set(prev)
}

// Next returns the next sibling by majority vote.
func (link *Sibling[H]) Next(policy *selfheal.Policy) (H, error) {
	next, err := link.next.Read(policy)
	if err != nil {
		return next, fmt.Errorf("next link: %w", err)
	}
	return next, nil
}

// Prev returns the previous sibling by majority vote.
func (link *Sibling[H]) Prev(policy *selfheal.Policy) (H, error) {
	prev, err := link.prev.Read(policy)
	if err != nil {
		return prev, fmt.Errorf("prev link: %w", err)
	}
	return prev, nil
}

// Verify checks both triples without authoritative neighbours.
func (link *Sibling[H]) Verify(policy *selfheal.Policy) error {
	if _, err := link.Next(policy); err != nil {
		return err
	}
	_, err := link.Prev(policy)
	return err
}

// Expect re-asserts next and prev, overwriting divergent triples. With fixing
// checks disabled a disagreement is a broken chain, ErrInvariantViolation.
func (link *Sibling[H]) Expect(next, prev H, policy *selfheal.Policy) error {
	if err := link.next.Expect(next, policy); err != nil {
		return fmt.Errorf("next link: %w", err)
	}
	if err := link.prev.Expect(prev, policy); err != nil {
		return fmt.Errorf("prev link: %w", err)
	}
	return nil
}

func (link *Sibling[H]) Memory() [][]byte {
	return append(link.next.Memory(), link.prev.Memory()...)
}
