// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package selfheal

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Policy carries the recovery knobs shared by every block, TMR value and
// container built with it. A Policy may be shared across containers; it is
// never mutated by them, except for its Stats counters.
//
// A nil *Policy means Default.
type Policy struct {
	// AdvancedRecovery enables the exhaustive single-bit payload repair.
	// It applies only when FixingChecks is set.
	AdvancedRecovery bool

	// FixingChecks lets validation heal recoverable faults in place.
	// When unset, a recoverable checksum fault is reported as
	// ErrChecksumMismatch and a dissenting TMR copy as ErrTriplicateMismatch.
	FixingChecks bool

	// LegacyBitStride makes advanced recovery probe bits with the historical
	// mask 2<<bit instead of 1<<bit (bit 0 of every byte is never tried).
	LegacyBitStride bool

	// Checksum is the block integrity sum. Nil selects CRC32.
	Checksum ChecksumFunc

	// Logger receives repair and detection events. Nil discards them.
	Logger *slog.Logger

	// Stats counts repair events. Nil discards them.
	Stats *Stats
}

// Default is used wherever a nil *Policy is supplied.
var Default = &Policy{FixingChecks: true, Stats: new(Stats)}

var discard = slog.New(slog.DiscardHandler)

// Or returns p, or Default when p is nil.
func (p *Policy) Or() *Policy {
	if p == nil {
		return Default
	}
	return p
}

// Sum computes the configured checksum over data.
func (p *Policy) Sum(data []byte) uint32 {
	if p == nil || p.Checksum == nil {
		return CRC32(data)
	}
	return p.Checksum(data)
}

func (p *Policy) logger() *slog.Logger {
	if p.Logger == nil {
		return discard
	}
	return p.Logger
}

// Fixed records one silent repair performed by component.
func (p *Policy) Fixed(component, fault string, attrs ...slog.Attr) {
	p = p.Or()
	if p.Stats != nil {
		p.Stats.silentFixes.Add(1)
	}
	p.log(slog.LevelDebug, "silent repair", component, fault, attrs)
}

// BitRepaired records one payload bit flip corrected by advanced recovery.
func (p *Policy) BitRepaired(component string, bit int) {
	p = p.Or()
	if p.Stats != nil {
		p.Stats.bitRepairs.Add(1)
		p.Stats.silentFixes.Add(1)
	}
	p.log(slog.LevelDebug, "payload bit repaired", component, "DataCorrupt", []slog.Attr{slog.Int("bit", bit)})
}

// Detected records an uncorrectable fault and returns err unchanged.
func (p *Policy) Detected(component string, err error, attrs ...slog.Attr) error {
	p = p.Or()
	if p.Stats != nil {
		p.Stats.detected.Add(1)
	}
	p.log(slog.LevelWarn, "uncorrectable fault", component, Kind(err), attrs)
	return err
}

func (p *Policy) log(level slog.Level, msg, component, fault string, attrs []slog.Attr) {
	logger := p.logger()
	ctx := context.Background()
	if !logger.Enabled(ctx, level) {
		return
	}
	attrs = append(attrs, slog.String("component", component), slog.String("kind", fault))
	logger.LogAttrs(ctx, level, msg, attrs...)
}

// Stats counts fault events. It is safe for concurrent use, so one Stats may
// back containers owned by different goroutines.
type Stats struct {
	silentFixes atomic.Uint64
	bitRepairs  atomic.Uint64
	detected    atomic.Uint64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	SilentFixes uint64
	BitRepairs  uint64
	Detected    uint64
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		SilentFixes: s.silentFixes.Load(),
		BitRepairs:  s.bitRepairs.Load(),
		Detected:    s.detected.Load(),
	}
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.silentFixes.Store(0)
	s.bitRepairs.Store(0)
	s.detected.Store(0)
}
