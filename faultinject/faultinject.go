// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package faultinject flips bits in the raw memory of containers and measures
// how the containers respond.
//
// A container exposes its memory as an ordered list of regions (see the
// Memory methods of block.Block, tmr.Value, seq.Sequence, multiset.Multiset).
// Bit offsets address the concatenation of those regions.
package faultinject

import (
	"fmt"
)

// Target is a container under fault injection.
type Target interface {
	// Memory returns the regions that faults may land in. The slices must
	// alias the live container.
	Memory() [][]byte
	// Validate runs the container's integrity check, repairing what it can.
	Validate() error
}

// Bits returns the total number of addressable bits in regions.
func Bits(regions [][]byte) int {
	var n int
	for _, region := range regions {
		n += len(region) * 8
	}
	return n
}

// Flip inverts bit of the concatenated regions.
func Flip(regions [][]byte, bit int) {
	if bit < 0 {
		panic(fmt.Sprintf("faultinject: negative bit %d", bit))
	}
	for _, region := range regions {
		if size := len(region) * 8; bit >= size {
			bit -= size
			continue
		}
		region[bit/8] ^= 1 << (bit % 8)
		return
	}
	panic(fmt.Sprintf("faultinject: bit %d out of range", bit))
}

// Burst inverts length consecutive bits starting at start, wrapping around
// the end of the concatenated regions.
func Burst(regions [][]byte, start, length int) {
	total := Bits(regions)
	for i := range length {
		Flip(regions, (start+i)%total)
	}
}

// Outcome is the result of one injected fault.
type Outcome uint8

const (
	Repaired Outcome = iota // validation passed and the contents are intact
	Detected                // validation reported an error
	Missed                  // validation passed but the contents changed
)

func (outcome Outcome) String() string {
	switch outcome {
	case Repaired:
		return "repaired"
	case Detected:
		return "detected"
	case Missed:
		return "missed"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(outcome))
	}
}

// Judge validates target after a fault and compares it with the expected
// contents using intact.
func Judge[T Target](target T, intact func(T) bool) Outcome {
	if target.Validate() != nil {
		return Detected
	}
	if intact(target) {
		return Repaired
	}
	return Missed
}

// Exhaustive flips every bit of a freshly built target once and tallies the
// outcomes. build is called once per bit.
func Exhaustive[T Target](build func() T, intact func(T) bool) Report {
	report := newReport()
	total := Bits(build().Memory())
	for bit := range total {
		target := build()
		Flip(target.Memory(), bit)
		report.add(Judge(target, intact), uint32(bit))
	}
	return report
}
