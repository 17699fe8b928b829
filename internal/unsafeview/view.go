// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package unsafeview exposes the backing memory of plain values as bytes.
//
// Element types must be free of pointers and padding: checksums are taken
// over every byte of the value.
package unsafeview

import "unsafe"

// Slice returns the bytes backing s. The result aliases s.
func Slice[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero)))
}

// Value returns the bytes backing *p. The result aliases *p.
func Value[T any](p *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), unsafe.Sizeof(*p))
}

// Size is unsafe.Sizeof for a type parameter.
func Size[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}
