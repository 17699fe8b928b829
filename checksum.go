// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package selfheal

import (
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// ChecksumFunc computes the 32-bit integrity sum of a block payload.
type ChecksumFunc func(data []byte) uint32

const (
	ChecksumCRC32   = "crc32"
	ChecksumCRC32C  = "crc32c"
	ChecksumMurmur3 = "murmur3"
	ChecksumXXHash  = "xxhash"
)

var castagnoliCrcTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32 is the default block checksum (IEEE polynomial).
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// CRC32C uses the Castagnoli polynomial.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliCrcTable)
}

// Murmur3 is the 32-bit MurmurHash3 of data with seed 0.
func Murmur3(data []byte) uint32 {
	return murmur3.Sum32(data)
}

// XXHash folds the 64-bit xxHash of data to 32 bits.
func XXHash(data []byte) uint32 {
	sum := xxhash.Sum64(data)
	return uint32(sum) ^ uint32(sum>>32)
}

var checksums = map[string]ChecksumFunc{
	ChecksumCRC32:   CRC32,
	ChecksumCRC32C:  CRC32C,
	ChecksumMurmur3: Murmur3,
	ChecksumXXHash:  XXHash,
}

// Checksum looks up a checksum algorithm by name. The empty name selects CRC32.
func Checksum(name string) (ChecksumFunc, error) {
	if name == "" {
		return CRC32, nil
	}
	sum, ok := checksums[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChecksum, name)
	}
	return sum, nil
}

// Checksums lists the registered algorithm names in sorted order.
func Checksums() []string {
	names := make([]string, 0, len(checksums))
	for name := range checksums {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
