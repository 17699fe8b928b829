// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package seq

import "fmt"

// Validate walks the whole chain. Every chunk must pass its checksums, link
// back to this sequence and to its predecessor; chunk count, tail and length
// must agree with the chain. Redundant links that disagree with the chain are
// rewritten when the policy allows repairs.
func (s *Sequence[T]) Validate() error {
	head, err := s.head.Read(s.policy)
	if err != nil {
		return fmt.Errorf("sequence head: %w", err)
	}
	tail, err := s.tail.Read(s.policy)
	if err != nil {
		return fmt.Errorf("sequence tail: %w", err)
	}
	count, err := s.count.Read(s.policy)
	if err != nil {
		return fmt.Errorf("sequence chunk count: %w", err)
	}
	size, err := s.size.Read(s.policy)
	if err != nil {
		return fmt.Errorf("sequence size: %w", err)
	}
	if count < 1 {
		return fmt.Errorf("sequence without chunks: %w", ErrInvariantViolation)
	}

	n, prev := 0, handle(0)
	for h := head; h != 0; n++ {
		if n == count {
			return fmt.Errorf("chain longer than %d chunks: %w", count, ErrInvariantViolation)
		}
		c, err := s.chunk(h)
		if err != nil {
			return err
		}
		if err = c.block.Validate(); err != nil {
			return fmt.Errorf("chunk %d: %w", n, err)
		}
		if err = c.parent.Expect(s.id, s.policy); err != nil {
			return fmt.Errorf("chunk %d parent: %w", n, err)
		}
		next, err := c.link.Next(s.policy)
		if err != nil {
			return fmt.Errorf("chunk %d next: %w", n, err)
		}
		if err = c.link.Expect(next, prev, s.policy); err != nil {
			return fmt.Errorf("chunk %d prev: %w", n, err)
		}
		prev, h = h, next
	}
	if n != count {
		return fmt.Errorf("chain of %d chunks, count %d: %w", n, count, ErrInvariantViolation)
	}
	if prev != tail {
		return fmt.Errorf("chain ends at %d, tail %d: %w", prev, tail, ErrInvariantViolation)
	}
	if size > count*s.chunkSize {
		return fmt.Errorf("size %d exceeds capacity %d: %w", size, count*s.chunkSize, ErrInvariantViolation)
	}
	return nil
}

// Valid reports whether Validate succeeds.
func (s *Sequence[T]) Valid() bool {
	return s.Validate() == nil
}

// Memory returns the raw regions of the sequence header followed by the
// regions of every live chunk. The slices alias the sequence and exist for
// fault injection.
func (s *Sequence[T]) Memory() [][]byte {
	var regions [][]byte
	regions = append(regions, s.head.Memory()...)
	regions = append(regions, s.tail.Memory()...)
	regions = append(regions, s.count.Memory()...)
	regions = append(regions, s.size.Memory()...)
	for _, c := range s.chunks {
		if c == nil {
			continue
		}
		regions = append(regions, c.block.Memory()...)
		regions = append(regions, c.parent.Memory()...)
		regions = append(regions, c.link.Memory()...)
	}
	return regions
}
