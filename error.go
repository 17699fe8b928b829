// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package selfheal

import "errors"

var (
	ErrOutOfRange         = errors.New("out of range")
	ErrDataCorrupt        = errors.New("data corrupt")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrTriplicateMismatch = errors.New("triplicate mismatch")
	ErrParentMismatch     = errors.New("parent mismatch")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrUnknownChecksum    = errors.New("unknown checksum")
	ErrInvalidConfig      = errors.New("invalid config")
)

var kinds = [...]struct {
	err  error
	name string
}{
	{ErrOutOfRange, "OutOfRange"},
	{ErrDataCorrupt, "DataCorrupt"},
	{ErrChecksumMismatch, "ChecksumMismatch"},
	{ErrTriplicateMismatch, "TriplicateMismatch"},
	{ErrParentMismatch, "ParentMismatch"},
	{ErrInvariantViolation, "InvariantViolation"},
}

// Kind returns the taxonomy name of err ("DataCorrupt", "ParentMismatch", ...),
// "" for nil and "Unknown" for errors outside the taxonomy.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Unknown"
}
