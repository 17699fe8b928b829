// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package block

type refresher interface {
	refresh()
}

// Ref is a write handle to one element of a Block. Every write refreshes the
// owning block's checksums exactly once, after the element is stored; reads
// never do. Copying a Ref copies the handle, not the element.
//
// A Ref is only produced by a validating accessor and must not outlive the
// next structural change of its container.
type Ref[T any] struct {
	elem  *T
	owner refresher
}

// Get returns the element.
func (ref Ref[T]) Get() T {
	return *ref.elem
}

// Set stores val.
func (ref Ref[T]) Set(val T) {
	*ref.elem = val
	ref.owner.refresh()
}

// Update stores fn applied to the current element and returns the new value.
func (ref Ref[T]) Update(fn func(T) T) T {
	val := fn(*ref.elem)
	ref.Set(val)
	return val
}

// Number is the set of element types the arithmetic helpers accept.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64
}

// Add adds delta to the element behind ref.
func Add[T Number](ref Ref[T], delta T) T {
	return ref.Update(func(v T) T { return v + delta })
}

// Sub subtracts delta from the element behind ref.
func Sub[T Number](ref Ref[T], delta T) T {
	return ref.Update(func(v T) T { return v - delta })
}

// Mul multiplies the element behind ref by factor.
func Mul[T Number](ref Ref[T], factor T) T {
	return ref.Update(func(v T) T { return v * factor })
}

// Inc increments the element behind ref.
func Inc[T Number](ref Ref[T]) T {
	return Add(ref, 1)
}

// Dec decrements the element behind ref.
func Dec[T Number](ref Ref[T]) T {
	return Sub(ref, 1)
}
