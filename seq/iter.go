// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package seq

import (
	"github.com/saschpe/self-healing-sub000/block"
	"github.com/saschpe/self-healing-sub000/iterator"
)

// Iter is a bidirectional cursor over a Sequence. It is a (chunk, offset)
// pair; a fresh cursor is not positioned until a Seek call.
//
// Any insertion or removal on the sequence invalidates the cursor.
type Iter[T comparable] struct {
	seq *Sequence[T]
	h   handle
	off int
	pos int
	val T
	err error
}

var _ iterator.Cursor[int] = (*Iter[int])(nil)

// Iter returns an unpositioned cursor over s.
func (s *Sequence[T]) Iter() *Iter[T] {
	return &Iter[T]{seq: s}
}

// Valid reports whether the cursor is positioned on an element.
func (it *Iter[T]) Valid() bool {
	return it.err == nil && it.h != 0
}

// Error returns the integrity error that stopped the cursor, if any.
func (it *Iter[T]) Error() error {
	return it.err
}

// Val returns the element under the cursor, read when the cursor moved.
func (it *Iter[T]) Val() T {
	return it.val
}

// Pos returns the index of the element under the cursor.
func (it *Iter[T]) Pos() int {
	return it.pos
}

// Ref returns a write handle to the element under the cursor.
func (it *Iter[T]) Ref() (block.Ref[T], error) {
	c, err := it.seq.chunk(it.h)
	if err != nil {
		return block.Ref[T]{}, err
	}
	return c.block.At(it.off)
}

// Equal reports whether both cursors sit on the same slot.
func (it *Iter[T]) Equal(other *Iter[T]) bool {
	return it.seq == other.seq && it.h == other.h && it.off == other.off
}

// Seek positions the cursor on element i.
func (it *Iter[T]) Seek(i int) bool {
	it.reset()
	size, err := it.seq.Len()
	if err != nil {
		return it.fail(err)
	}
	if i < 0 || i >= size {
		return false
	}
	h, off, err := it.seq.locate(i)
	if err != nil {
		return it.fail(err)
	}
	it.h, it.off, it.pos = h, off, i
	return it.load()
}

// SeekFirst positions the cursor on the first element.
func (it *Iter[T]) SeekFirst() bool {
	return it.Seek(0)
}

// SeekLast positions the cursor on the last element.
func (it *Iter[T]) SeekLast() bool {
	size, err := it.seq.Len()
	if err != nil {
		it.reset()
		return it.fail(err)
	}
	return it.Seek(size - 1)
}

// Next advances to the following element.
func (it *Iter[T]) Next() bool {
	if !it.Valid() {
		return false
	}
	size, err := it.seq.Len()
	if err != nil {
		return it.fail(err)
	}
	if it.pos+1 >= size {
		it.h = 0
		return false
	}
	it.pos++
	if it.off+1 < it.seq.chunkSize {
		it.off++
		return it.load()
	}
	c, err := it.seq.chunk(it.h)
	if err != nil {
		return it.fail(err)
	}
	if it.h, err = c.link.Next(it.seq.policy); err != nil {
		return it.fail(err)
	}
	it.off = 0
	return it.load()
}

// Prev steps back to the preceding element.
func (it *Iter[T]) Prev() bool {
	if !it.Valid() {
		return false
	}
	if it.pos == 0 {
		it.h = 0
		return false
	}
	it.pos--
	if it.off > 0 {
		it.off--
		return it.load()
	}
	c, err := it.seq.chunk(it.h)
	if err != nil {
		return it.fail(err)
	}
	if it.h, err = c.link.Prev(it.seq.policy); err != nil {
		return it.fail(err)
	}
	it.off = it.seq.chunkSize - 1
	return it.load()
}

func (it *Iter[T]) load() bool {
	c, err := it.seq.chunk(it.h)
	if err != nil {
		return it.fail(err)
	}
	if it.val, err = c.block.Get(it.off); err != nil {
		return it.fail(err)
	}
	return true
}

func (it *Iter[T]) fail(err error) bool {
	it.h, it.err = 0, err
	return false
}

func (it *Iter[T]) reset() {
	var zero T
	it.h, it.off, it.pos, it.val, it.err = 0, 0, 0, zero, nil
}
