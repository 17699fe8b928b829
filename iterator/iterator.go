// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package iterator defines the cursor contract shared by the containers and
// generic algorithms over sorted sequences.
package iterator

import "iter"

// Cursor represents a position over an ordered container of T.
// The cursor maintains a current position and can be moved forward or
// backward through the container.
//
// Usage:
//
//	for c.SeekFirst(); c.Valid(); c.Next() {
//	    val := c.Val()
//	    // process val
//	}
//	if err := c.Error(); err != nil {
//	    // handle error
//	}
type Cursor[T any] interface {
	// Valid returns true if positioned at an element.
	// Returns false when not positioned; check Error() to distinguish the cause.
	Valid() bool

	// Error returns the integrity error that stopped the cursor, if any.
	// Returns nil when not positioned due to normal conditions (initial state,
	// boundary reached, empty container). Returns non-nil for uncorrectable
	// corruption found while moving.
	Error() error

	// Val returns the element at the current position.
	// Behavior is undefined if Valid() returns false.
	Val() T

	// Next advances to the next element. Returns false at the end or on error.
	Next() bool

	// Prev moves to the previous element. Returns false at the beginning or on error.
	Prev() bool

	// SeekFirst positions at the first element.
	// Returns false if the container is empty or an error occurred.
	SeekFirst() bool

	// SeekLast positions at the last element.
	// Returns false if the container is empty or an error occurred.
	SeekLast() bool
}

// Forward yields the elements from the first to the last. It stops at the
// first error; check c.Error() after the loop.
func Forward[T any](c Cursor[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		for c.SeekFirst(); c.Valid(); c.Next() {
			if !yield(c.Val()) {
				return
			}
		}
	}
}

// Backward yields the elements from the last to the first. It stops at the
// first error; check c.Error() after the loop.
func Backward[T any](c Cursor[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		for c.SeekLast(); c.Valid(); c.Prev() {
			if !yield(c.Val()) {
				return
			}
		}
	}
}
