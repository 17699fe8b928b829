// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package selfheal defines the shared fault model for in-memory containers that
// detect and repair silent data corruption.
//
// The containers live in sub-packages:
//   - block: fixed-capacity array guarded by two CRC-32 checksums
//   - tmr: triple-redundant values and the parent/sibling links built on them
//   - seq: dynamic sequence stored as a chain of checksummed blocks
//   - multiset: ordered multiset realized as a B+ tree of checksummed leaves
//
// Every container reads through a validating path. Single checksum flips and
// single dissenting TMR copies are repaired in place and counted in Stats; all
// other faults surface as one of the sentinel errors below. A container is never
// rolled back: on error it stays in the state in which the fault was found.
//
// Containers are single-owner. Validating reads may write (silent repair), so
// even concurrent readers need an external lock.
package selfheal
