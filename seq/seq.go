// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package seq provides a dynamic sequence stored as a doubly linked chain of
// checksummed blocks.
package seq

import (
	"fmt"
	"iter"
	"sync/atomic"

	selfheal "github.com/saschpe/self-healing-sub000"
	"github.com/saschpe/self-healing-sub000/block"
	"github.com/saschpe/self-healing-sub000/tmr"
)

var (
	ErrOutOfRange         = selfheal.ErrOutOfRange
	ErrInvariantViolation = selfheal.ErrInvariantViolation
)

// DefaultChunkSize is the number of elements per block.
const DefaultChunkSize = 64

// handle indexes the chunk arena; 0 is "no chunk".
type handle uint32

type chunk[T comparable] struct {
	block  *block.Block[T]
	parent tmr.Parent[uint64]
	link   tmr.Sibling[handle]
}

var sequences atomic.Uint64

// Sequence is a dynamic array of T kept in fixed-size checksummed chunks.
// Elements are packed: element i lives in chunk i/ChunkSize at offset
// i%ChunkSize. The chain head, tail, chunk count and length are triple
// redundant; every chunk links back to its sequence and to its neighbours.
//
// Not thread-safe. Any insertion or removal invalidates iterators and Refs.
//
// Example usage:
//
//	s := seq.NewFrom(slices.Values([]int{1, 2, 3}))
//	s.PushBack(4)
//	v, err := s.Get(3) // v == 4
type Sequence[T comparable] struct {
	id     uint64
	chunks []*chunk[T]
	free   []handle

	head  tmr.Value[handle]
	tail  tmr.Value[handle]
	count tmr.Value[int]
	size  tmr.Value[int]

	chunkSize int
	policy    *selfheal.Policy
}

type options struct {
	chunkSize int
	policy    *selfheal.Policy
}

// Option configures a Sequence.
type Option func(*options)

// WithChunkSize sets the number of elements per chunk. Values below 1 are
// ignored.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithPolicy sets the recovery policy. Nil selects selfheal.Default.
func WithPolicy(policy *selfheal.Policy) Option {
	return func(o *options) { o.policy = policy }
}

// New returns an empty sequence holding one empty chunk.
func New[T comparable](opts ...Option) *Sequence[T] {
	o := options{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Sequence[T]{
		id:        sequences.Add(1),
		chunks:    []*chunk[T]{nil},
		chunkSize: o.chunkSize,
		policy:    o.policy.Or(),
	}
	h := s.alloc(nil)
	s.chunks[h].link.Set(0, 0)
	s.head.Set(h)
	s.tail.Set(h)
	s.count.Set(1)
	s.size.Set(0)
	return s
}

// NewFilled returns a sequence of n copies of val.
func NewFilled[T comparable](n int, val T, opts ...Option) *Sequence[T] {
	vals := make([]T, max(n, 0))
	for i := range vals {
		vals[i] = val
	}
	return build(vals, opts)
}

// NewFrom returns a sequence holding the values of vals in order.
func NewFrom[T comparable](vals iter.Seq[T], opts ...Option) *Sequence[T] {
	var all []T
	for val := range vals {
		all = append(all, val)
	}
	return build(all, opts)
}

func build[T comparable](vals []T, opts []Option) *Sequence[T] {
	s := New[T](opts...)
	if len(vals) == 0 {
		return s
	}
	cs := s.chunkSize
	first := s.chunks[s.mustHead()]
	first.block = block.NewFrom(cs, vals, s.policy)
	prev := s.mustHead()
	for base := cs; base < len(vals); base += cs {
		h := s.alloc(vals[base:min(base+cs, len(vals))])
		s.chunks[h].link.Set(0, prev)
		s.chunks[prev].link.SetNext(h)
		prev = h
	}
	s.tail.Set(prev)
	s.count.Set(len(s.chunks) - 1)
	s.size.Set(len(vals))
	return s
}

// mustHead is only used on a sequence under construction.
func (s *Sequence[T]) mustHead() handle {
	h, _, _ := s.head.Check()
	return h
}

// ChunkSize returns the number of elements per chunk.
func (s *Sequence[T]) ChunkSize() int {
	return s.chunkSize
}

// Policy returns the recovery policy of the sequence.
func (s *Sequence[T]) Policy() *selfheal.Policy {
	return s.policy
}

// Len returns the number of elements.
func (s *Sequence[T]) Len() (int, error) {
	size, err := s.size.Read(s.policy)
	if err != nil {
		return 0, fmt.Errorf("sequence size: %w", err)
	}
	return size, nil
}

// Cap returns the number of chunks times the chunk size.
func (s *Sequence[T]) Cap() (int, error) {
	count, err := s.count.Read(s.policy)
	if err != nil {
		return 0, fmt.Errorf("sequence chunk count: %w", err)
	}
	return count * s.chunkSize, nil
}

// Empty reports whether the sequence has no elements.
func (s *Sequence[T]) Empty() (bool, error) {
	size, err := s.Len()
	return size == 0, err
}

// At returns a write handle to element i.
func (s *Sequence[T]) At(i int) (ref block.Ref[T], err error) {
	c, off, err := s.element(i)
	if err != nil {
		return
	}
	return c.block.At(off)
}

// Get returns element i.
func (s *Sequence[T]) Get(i int) (val T, err error) {
	c, off, err := s.element(i)
	if err != nil {
		return
	}
	return c.block.Get(off)
}

// Set overwrites element i.
func (s *Sequence[T]) Set(i int, val T) error {
	c, off, err := s.element(i)
	if err != nil {
		return err
	}
	return c.block.Set(off, val)
}

// Front returns the first element.
func (s *Sequence[T]) Front() (T, error) {
	return s.Get(0)
}

// Back returns the last element.
func (s *Sequence[T]) Back() (val T, err error) {
	size, err := s.Len()
	if err != nil {
		return
	}
	return s.Get(size - 1)
}

// Values returns a validated copy of all elements.
func (s *Sequence[T]) Values() ([]T, error) {
	size, err := s.Len()
	if err != nil {
		return nil, err
	}
	chain, err := s.chain()
	if err != nil {
		return nil, err
	}
	return s.collect(chain, 0, size)
}

// Items yields index and value of every element in order. It stops at the
// first integrity error; use Iter or Values to observe the error.
func (s *Sequence[T]) Items(yield func(int, T) bool) {
	vals, err := s.Values()
	if err != nil {
		return
	}
	for i, val := range vals {
		if !yield(i, val) {
			return
		}
	}
}

// Backward yields index and value of every element from the last to the
// first. It stops at the first integrity error.
func (s *Sequence[T]) Backward(yield func(int, T) bool) {
	vals, err := s.Values()
	if err != nil {
		return
	}
	for i := len(vals) - 1; i >= 0; i-- {
		if !yield(i, vals[i]) {
			return
		}
	}
}

// Swap exchanges the contents of s and other in O(1).
func (s *Sequence[T]) Swap(other *Sequence[T]) {
	*s, *other = *other, *s
}

func (s *Sequence[T]) element(i int) (c *chunk[T], off int, err error) {
	size, err := s.Len()
	if err != nil {
		return
	}
	if i < 0 || i >= size {
		err = fmt.Errorf("index %d of %d: %w", i, size, ErrOutOfRange)
		return
	}
	h, off, err := s.locate(i)
	if err != nil {
		return
	}
	c, err = s.chunk(h)
	return
}

// locate walks the chain to the chunk holding slot i, from whichever end is
// closer.
func (s *Sequence[T]) locate(i int) (h handle, off int, err error) {
	count, err := s.count.Read(s.policy)
	if err != nil {
		return
	}
	b, off := i/s.chunkSize, i%s.chunkSize
	if b >= count {
		err = fmt.Errorf("slot %d beyond %d chunks: %w", i, count, ErrOutOfRange)
		return
	}

	var c *chunk[T]
	if b < count/2 {
		if h, err = s.head.Read(s.policy); err != nil {
			return
		}
		for range b {
			if c, err = s.chunk(h); err != nil {
				return
			}
			if h, err = c.link.Next(s.policy); err != nil {
				return
			}
		}
	} else {
		if h, err = s.tail.Read(s.policy); err != nil {
			return
		}
		for range count - 1 - b {
			if c, err = s.chunk(h); err != nil {
				return
			}
			if h, err = c.link.Prev(s.policy); err != nil {
				return
			}
		}
	}
	_, err = s.chunk(h)
	return
}

func (s *Sequence[T]) chunk(h handle) (*chunk[T], error) {
	if h == 0 || int(h) >= len(s.chunks) || s.chunks[h] == nil {
		return nil, fmt.Errorf("chunk handle %d: %w", h, ErrInvariantViolation)
	}
	return s.chunks[h], nil
}

// chain returns the chunk handles from head to tail.
func (s *Sequence[T]) chain() ([]handle, error) {
	head, err := s.head.Read(s.policy)
	if err != nil {
		return nil, fmt.Errorf("sequence head: %w", err)
	}
	tail, err := s.tail.Read(s.policy)
	if err != nil {
		return nil, fmt.Errorf("sequence tail: %w", err)
	}
	count, err := s.count.Read(s.policy)
	if err != nil {
		return nil, fmt.Errorf("sequence chunk count: %w", err)
	}

	chain := make([]handle, 0, count)
	for h := head; h != 0; {
		if len(chain) == count {
			return nil, fmt.Errorf("chain longer than %d chunks: %w", count, ErrInvariantViolation)
		}
		c, err := s.chunk(h)
		if err != nil {
			return nil, err
		}
		chain = append(chain, h)
		if h, err = c.link.Next(s.policy); err != nil {
			return nil, err
		}
	}
	if len(chain) != count || chain[len(chain)-1] != tail {
		return nil, fmt.Errorf("chain of %d chunks does not end at tail: %w", len(chain), ErrInvariantViolation)
	}
	return chain, nil
}

// collect copies the elements [from, to) out of the chain.
func (s *Sequence[T]) collect(chain []handle, from, to int) ([]T, error) {
	vals := make([]T, 0, max(to-from, 0))
	cs := s.chunkSize
	for b := from / cs; b < len(chain) && b*cs < to; b++ {
		base := b * cs
		lo, hi := max(from-base, 0), min(to-base, cs)
		err := s.chunks[chain[b]].block.View(func(data []T) {
			vals = append(vals, data[lo:hi]...)
		})
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", b, err)
		}
	}
	return vals, nil
}

func (s *Sequence[T]) alloc(vals []T) (h handle) {
	c := &chunk[T]{block: block.NewFrom(s.chunkSize, vals, s.policy)}
	c.parent.Set(s.id)
	if n := len(s.free); n > 0 {
		h = s.free[n-1]
		s.free = s.free[:n-1]
		s.chunks[h] = c
		return
	}
	h = handle(len(s.chunks))
	s.chunks = append(s.chunks, c)
	return
}

func (s *Sequence[T]) release(h handle) {
	s.chunks[h] = nil
	s.free = append(s.free, h)
}
