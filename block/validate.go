// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package block

import (
	"fmt"

	"github.com/saschpe/self-healing-sub000/internal/unsafeview"
)

// Status classifies the checksums of a block against its payload.
type Status uint8

const (
	Clean           Status = iota // c1 == c2 == sum
	LeadingFlipped                // c1 disagrees, c2 matches the payload
	TrailingFlipped               // c2 disagrees, c1 matches the payload
	PayloadCorrupt                // c1 == c2, both disagree with the payload
	Mismatch                      // c1, c2 and the payload sum all differ
)

func (status Status) String() string {
	switch status {
	case Clean:
		return "clean"
	case LeadingFlipped:
		return "leading checksum flipped"
	case TrailingFlipped:
		return "trailing checksum flipped"
	case PayloadCorrupt:
		return "payload corrupt"
	case Mismatch:
		return "checksum mismatch"
	default:
		return fmt.Sprintf("Status(%d)", uint8(status))
	}
}

// Check classifies the block without modifying it.
func (block *Block[T]) Check() Status {
	if len(block.data) == 0 {
		return Clean
	}
	c3 := block.sum()
	switch ok1, ok2 := block.c1 == c3, block.c2 == c3; {
	case ok1 && ok2:
		return Clean
	case ok1:
		return TrailingFlipped
	case ok2:
		return LeadingFlipped
	case block.c1 == block.c2:
		return PayloadCorrupt
	default:
		return Mismatch
	}
}

// Repair applies the fix for status as returned by Check. Flipped checksums
// are healed from their twin; a corrupt payload is healed only with advanced
// recovery enabled. Repair ignores FixingChecks: calling it is the decision.
func (block *Block[T]) Repair(status Status) error {
	switch status {
	case Clean:
		return nil
	case LeadingFlipped:
		block.c1 = block.c2
		block.policy.Fixed(component, status.String(), block.attrs()...)
		return nil
	case TrailingFlipped:
		block.c2 = block.c1
		block.policy.Fixed(component, status.String(), block.attrs()...)
		return nil
	case PayloadCorrupt:
		if block.policy.AdvancedRecovery {
			if bit, ok := block.recoverBit(); ok {
				block.policy.BitRepaired(component, bit)
				return nil
			}
		}
		return block.policy.Detected(component, fmt.Errorf("block payload: %w", ErrDataCorrupt), block.attrs()...)
	default:
		return block.policy.Detected(component, fmt.Errorf("block c1=%08x c2=%08x: %w", block.c1, block.c2, ErrChecksumMismatch), block.attrs()...)
	}
}

// Validate checks the block and, if the policy allows, heals recoverable
// faults. With FixingChecks off a flipped checksum is reported as
// ErrChecksumMismatch and the block is left untouched.
func (block *Block[T]) Validate() error {
	status := block.Check()
	if status == Clean {
		return nil
	}
	if !block.policy.FixingChecks {
		switch status {
		case LeadingFlipped, TrailingFlipped:
			return block.policy.Detected(component, fmt.Errorf("block %s: %w", status, ErrChecksumMismatch), block.attrs()...)
		case PayloadCorrupt:
			return block.policy.Detected(component, fmt.Errorf("block payload: %w", ErrDataCorrupt), block.attrs()...)
		}
	}
	return block.Repair(status)
}

// Valid reports whether the block validated, possibly after a silent repair.
func (block *Block[T]) Valid() bool {
	return block.Validate() == nil
}

// recoverBit looks for the single payload bit whose flip makes the payload
// match the agreed checksum. The payload is unchanged when none exists.
func (block *Block[T]) recoverBit() (bit int, ok bool) {
	payload := unsafeview.Slice(block.data)
	want := block.c1
	for bit = 0; bit < len(payload)*8; bit++ {
		mask := byte(1) << (bit % 8)
		if block.policy.LegacyBitStride {
			mask = byte(2 << (bit % 8))
		}
		if mask == 0 {
			continue
		}
		payload[bit/8] ^= mask
		if block.policy.Sum(payload) == want {
			return bit, true
		}
		payload[bit/8] ^= mask
	}
	return -1, false
}
