// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package block provides a fixed-capacity array guarded by two checksums.
//
// The payload of a Block is surrounded by a leading and a trailing 32-bit
// checksum. Every read validates the payload first:
//
//	c1==sum  c2==sum  c1==c2   outcome
//	  T        T        T      clean
//	  T        F        F      c2 flipped, healed from c1
//	  F        T        F      c1 flipped, healed from c2
//	  F        F        T      payload corrupt (ErrDataCorrupt)
//	  F        F        F      unrecoverable (ErrChecksumMismatch)
//
// Mutation goes through Ref or the bulk methods, which refresh both checksums
// once the write completes.
package block

import (
	"fmt"
	"log/slog"

	selfheal "github.com/saschpe/self-healing-sub000"
	"github.com/saschpe/self-healing-sub000/internal/unsafeview"
)

var (
	ErrOutOfRange         = selfheal.ErrOutOfRange
	ErrDataCorrupt        = selfheal.ErrDataCorrupt
	ErrChecksumMismatch   = selfheal.ErrChecksumMismatch
	ErrInvariantViolation = selfheal.ErrInvariantViolation
)

const component = "block"

// Block is a fixed-capacity array of T guarded by two identical checksums.
// Not thread-safe: validating reads may repair the block in place.
//
// T must be a plain value type without pointers or padding; the checksum is
// taken over the raw bytes of the payload.
//
// Example usage:
//
//	b := block.New(16, 0, nil)
//	b.Set(2, 4)
//	v, err := b.Get(2) // v == 4
//	ok := b.Valid()    // true
type Block[T comparable] struct {
	c1     uint32
	data   []T
	c2     uint32
	policy *selfheal.Policy
}

// New returns a block of n elements set to fill with fresh checksums.
// A zero-length block carries no checksums and every access fails.
// A nil policy selects selfheal.Default.
func New[T comparable](n int, fill T, policy *selfheal.Policy) *Block[T] {
	block := &Block[T]{policy: policy.Or()}
	if n > 0 {
		block.data = make([]T, n)
		block.Fill(fill)
	}
	return block
}

// NewFrom returns a block of n elements whose leading elements are copied
// from vals; the rest are zero. Extra values beyond n are ignored.
func NewFrom[T comparable](n int, vals []T, policy *selfheal.Policy) *Block[T] {
	block := &Block[T]{policy: policy.Or()}
	if n > 0 {
		block.data = make([]T, n)
		copy(block.data, vals)
		block.refresh()
	}
	return block
}

// Policy returns the policy the block validates with.
func (block *Block[T]) Policy() *selfheal.Policy {
	return block.policy
}

// Len returns the fixed capacity of the block.
func (block *Block[T]) Len() int {
	return len(block.data)
}

// At returns a write handle to element i after validating the block.
// The handle refreshes the checksums on every write.
func (block *Block[T]) At(i int) (ref Ref[T], err error) {
	if err = block.rangecheck(i); err != nil {
		return
	}
	if err = block.Validate(); err != nil {
		return
	}
	ref = Ref[T]{elem: &block.data[i], owner: block}
	return
}

// Get returns element i after validating the block.
func (block *Block[T]) Get(i int) (val T, err error) {
	if err = block.rangecheck(i); err != nil {
		return
	}
	if err = block.Validate(); err != nil {
		return
	}
	val = block.data[i]
	return
}

// Set overwrites element i after validating the block.
func (block *Block[T]) Set(i int, val T) (err error) {
	ref, err := block.At(i)
	if err != nil {
		return
	}
	ref.Set(val)
	return
}

// Front returns the first element.
func (block *Block[T]) Front() (T, error) {
	return block.Get(0)
}

// Back returns the last element.
func (block *Block[T]) Back() (T, error) {
	return block.Get(len(block.data) - 1)
}

// Fill overwrites every element with val and refreshes the checksums once.
func (block *Block[T]) Fill(val T) {
	for i := range block.data {
		block.data[i] = val
	}
	block.refresh()
}

// Assign overwrites the leading len(vals) elements. The remaining elements
// are kept, so the block is validated first.
func (block *Block[T]) Assign(vals []T) (err error) {
	if len(vals) > len(block.data) {
		return fmt.Errorf("assign %d values to %d slots: %w", len(vals), len(block.data), ErrOutOfRange)
	}
	return block.Update(func(data []T) { copy(data, vals) })
}

// Update validates the block, lets fn mutate the payload in place and
// refreshes the checksums once. fn must not retain data.
func (block *Block[T]) Update(fn func(data []T)) (err error) {
	if len(block.data) == 0 {
		return
	}
	if err = block.Validate(); err != nil {
		return
	}
	fn(block.data)
	block.refresh()
	return
}

// View validates the block and passes the payload to fn read-only.
// fn must neither modify nor retain data.
func (block *Block[T]) View(fn func(data []T)) (err error) {
	if err = block.Validate(); err != nil {
		return
	}
	fn(block.data)
	return
}

// Values returns a validated copy of the payload.
func (block *Block[T]) Values() (vals []T, err error) {
	err = block.View(func(data []T) { vals = append([]T(nil), data...) })
	return
}

// Items iterates all elements of a validated block. Nothing is yielded when
// validation fails; call Validate to learn why.
func (block *Block[T]) Items(yield func(int, T) bool) {
	if block.Validate() != nil {
		return
	}
	for i, val := range block.data {
		if !yield(i, val) {
			return
		}
	}
}

// Swap exchanges payloads and both checksums with other.
// Refs previously taken from either block must not be used afterwards.
func (block *Block[T]) Swap(other *Block[T]) (err error) {
	if len(block.data) != len(other.data) {
		return fmt.Errorf("swap blocks of %d and %d elements: %w", len(block.data), len(other.data), ErrInvariantViolation)
	}
	block.data, other.data = other.data, block.data
	block.c1, other.c1 = other.c1, block.c1
	block.c2, other.c2 = other.c2, block.c2
	return
}

// Equal validates both blocks and compares their payloads.
func (block *Block[T]) Equal(other *Block[T]) (bool, error) {
	if err := block.Validate(); err != nil {
		return false, err
	}
	if err := other.Validate(); err != nil {
		return false, err
	}
	if len(block.data) != len(other.data) {
		return false, nil
	}
	for i := range block.data {
		if block.data[i] != other.data[i] {
			return false, nil
		}
	}
	return true, nil
}

// Checksums returns the stored leading and trailing checksums.
func (block *Block[T]) Checksums() (c1, c2 uint32) {
	return block.c1, block.c2
}

// Memory returns the raw regions of the block in layout order: leading
// checksum, payload, trailing checksum. The slices alias the block and exist
// for fault injection. A zero-length block has no regions.
func (block *Block[T]) Memory() [][]byte {
	if len(block.data) == 0 {
		return nil
	}
	return [][]byte{
		unsafeview.Value(&block.c1),
		unsafeview.Slice(block.data),
		unsafeview.Value(&block.c2),
	}
}

func (block *Block[T]) rangecheck(i int) error {
	if i < 0 || i >= len(block.data) {
		return fmt.Errorf("index %d of %d: %w", i, len(block.data), ErrOutOfRange)
	}
	return nil
}

func (block *Block[T]) sum() uint32 {
	return block.policy.Sum(unsafeview.Slice(block.data))
}

func (block *Block[T]) refresh() {
	if len(block.data) == 0 {
		return
	}
	block.c1 = block.sum()
	block.c2 = block.c1
}

func (block *Block[T]) attrs() []slog.Attr {
	return []slog.Attr{slog.Int("len", len(block.data))}
}
