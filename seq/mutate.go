// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package seq

import (
	"fmt"
	"slices"

	"github.com/saschpe/self-healing-sub000/internal/assert"
)

// PushBack appends val, adding a chunk when the tail chunk is full.
func (s *Sequence[T]) PushBack(val T) error {
	size, err := s.Len()
	if err != nil {
		return err
	}
	capacity, err := s.Cap()
	if err != nil {
		return err
	}
	if size == capacity {
		if _, err = s.appendChunk([]T{val}); err != nil {
			return err
		}
	} else {
		h, off, err := s.locate(size)
		if err != nil {
			return err
		}
		if err = s.chunks[h].block.Set(off, val); err != nil {
			return err
		}
	}
	s.size.Set(size + 1)
	assert.Valid("PushBack", s.Validate)
	return nil
}

// PopBack removes the last element and frees chunks left unused. At least
// one chunk always remains.
func (s *Sequence[T]) PopBack() error {
	size, err := s.Len()
	if err != nil {
		return err
	}
	if size == 0 {
		return fmt.Errorf("pop from empty sequence: %w", ErrOutOfRange)
	}
	h, off, err := s.locate(size - 1)
	if err != nil {
		return err
	}
	var zero T
	if err = s.chunks[h].block.Set(off, zero); err != nil {
		return err
	}
	s.size.Set(size - 1)
	if err = s.trim(size - 1); err != nil {
		return err
	}
	assert.Valid("PopBack", s.Validate)
	return nil
}

// Insert places val at pos, shifting later elements right. pos may equal
// the length.
func (s *Sequence[T]) Insert(pos int, val T) error {
	return s.InsertRange(pos, []T{val})
}

// InsertRange places vals at pos, shifting later elements right.
func (s *Sequence[T]) InsertRange(pos int, vals []T) error {
	if len(vals) == 0 {
		return s.boundcheck(pos, 0)
	}
	return s.splice("InsertRange", pos, 0, vals)
}

// Erase removes the element at pos, shifting later elements left.
func (s *Sequence[T]) Erase(pos int) error {
	size, err := s.Len()
	if err != nil {
		return err
	}
	if pos < 0 || pos >= size {
		return fmt.Errorf("erase %d of %d: %w", pos, size, ErrOutOfRange)
	}
	return s.splice("Erase", pos, 1, nil)
}

// EraseRange removes the elements [first, last).
func (s *Sequence[T]) EraseRange(first, last int) error {
	if last < first {
		return fmt.Errorf("erase range [%d, %d): %w", first, last, ErrOutOfRange)
	}
	return s.splice("EraseRange", first, last-first, nil)
}

// Resize grows the sequence to n elements with copies of fill, or shrinks
// it to its first n elements.
func (s *Sequence[T]) Resize(n int, fill T) error {
	if n < 0 {
		return fmt.Errorf("resize to %d: %w", n, ErrOutOfRange)
	}
	size, err := s.Len()
	if err != nil {
		return err
	}
	if n >= size {
		vals := make([]T, n-size)
		for i := range vals {
			vals[i] = fill
		}
		return s.splice("Resize", size, 0, vals)
	}
	return s.splice("Resize", n, size-n, nil)
}

// Reserve adds empty chunks until the capacity holds at least n elements.
func (s *Sequence[T]) Reserve(n int) error {
	for {
		capacity, err := s.Cap()
		if err != nil {
			return err
		}
		if capacity >= n {
			return nil
		}
		if _, err = s.appendChunk(nil); err != nil {
			return err
		}
	}
}

// Clear removes every element, keeping a single chunk.
func (s *Sequence[T]) Clear() error {
	size, err := s.Len()
	if err != nil {
		return err
	}
	return s.splice("Clear", 0, size, nil)
}

func (s *Sequence[T]) boundcheck(pos, del int) error {
	size, err := s.Len()
	if err != nil {
		return err
	}
	if pos < 0 || del < 0 || pos+del > size {
		return fmt.Errorf("range [%d, %d) of %d: %w", pos, pos+del, size, ErrOutOfRange)
	}
	return nil
}

// splice replaces the del elements at pos with ins. Elements after the
// removed range are shifted, chunks are added or freed as needed and every
// touched chunk refreshes its checksums once.
func (s *Sequence[T]) splice(method string, pos, del int, ins []T) error {
	if err := s.boundcheck(pos, del); err != nil {
		return err
	}
	size, _ := s.Len()
	chain, err := s.chain()
	if err != nil {
		return err
	}
	rest, err := s.collect(chain, pos+del, size)
	if err != nil {
		return err
	}

	cs := s.chunkSize
	n := pos + len(ins) + len(rest)
	need := max(1, (n+cs-1)/cs)
	for len(chain) < need {
		h, err := s.appendChunk(nil)
		if err != nil {
			return err
		}
		chain = append(chain, h)
	}

	src := slices.Concat(ins, rest)
	end := max(size, n)
	var zero T
	for b := pos / cs; b < need && b*cs < end; b++ {
		base := b * cs
		err := s.chunks[chain[b]].block.Update(func(data []T) {
			for j := max(pos-base, 0); j < cs && base+j < end; j++ {
				if k := base + j - pos; k < len(src) {
					data[j] = src[k]
				} else {
					data[j] = zero
				}
			}
		})
		if err != nil {
			return fmt.Errorf("chunk %d: %w", b, err)
		}
	}

	s.size.Set(n)
	if n < size {
		if err = s.trim(n); err != nil {
			return err
		}
	}
	assert.Valid(method, s.Validate)
	return nil
}

// trim frees trailing chunks not needed for size elements.
func (s *Sequence[T]) trim(size int) error {
	keep := max(1, (size+s.chunkSize-1)/s.chunkSize)
	for {
		count, err := s.count.Read(s.policy)
		if err != nil {
			return err
		}
		if count <= keep {
			return nil
		}
		if err = s.releaseTail(count); err != nil {
			return err
		}
	}
}

func (s *Sequence[T]) appendChunk(vals []T) (handle, error) {
	tail, err := s.tail.Read(s.policy)
	if err != nil {
		return 0, fmt.Errorf("sequence tail: %w", err)
	}
	count, err := s.count.Read(s.policy)
	if err != nil {
		return 0, fmt.Errorf("sequence chunk count: %w", err)
	}
	last, err := s.chunk(tail)
	if err != nil {
		return 0, err
	}

	h := s.alloc(vals)
	s.chunks[h].link.Set(0, tail)
	last.link.SetNext(h)
	s.tail.Set(h)
	s.count.Set(count + 1)
	return h, nil
}

func (s *Sequence[T]) releaseTail(count int) error {
	tail, err := s.tail.Read(s.policy)
	if err != nil {
		return fmt.Errorf("sequence tail: %w", err)
	}
	c, err := s.chunk(tail)
	if err != nil {
		return err
	}
	prev, err := c.link.Prev(s.policy)
	if err != nil {
		return err
	}
	p, err := s.chunk(prev)
	if err != nil {
		return fmt.Errorf("release last chunk: %w", err)
	}

	p.link.SetNext(0)
	s.tail.Set(prev)
	s.count.Set(count - 1)
	s.release(tail)
	return nil
}
