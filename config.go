// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package selfheal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the file form of a Policy plus the container shape knobs.
//
//	advanced_recovery: false
//	fixing_checks: true
//	checksum: crc32
//	chunk_size: 64
//	fanout: 0        # 0 derives max(8, 256/sizeof(K))
//	log_level: info
type Config struct {
	AdvancedRecovery bool   `yaml:"advanced_recovery"`
	FixingChecks     bool   `yaml:"fixing_checks"`
	LegacyBitStride  bool   `yaml:"legacy_bit_stride"`
	Checksum         string `yaml:"checksum"`
	ChunkSize        int    `yaml:"chunk_size"`
	Fanout           int    `yaml:"fanout"`
	LogLevel         string `yaml:"log_level"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		FixingChecks: true,
		Checksum:     ChecksumCRC32,
		ChunkSize:    64,
		LogLevel:     "info",
	}
}

// LoadConfig decodes YAML from r over DefaultConfig and validates the result.
// An empty document yields the defaults.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first out-of-domain field.
func (cfg Config) Validate() error {
	if _, err := Checksum(cfg.Checksum); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size %d <= 0", ErrInvalidConfig, cfg.ChunkSize)
	}
	if cfg.Fanout != 0 && cfg.Fanout < 4 {
		return fmt.Errorf("%w: fanout %d < 4", ErrInvalidConfig, cfg.Fanout)
	}
	if _, err := cfg.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (cfg Config) Level() (level slog.Level, err error) {
	if cfg.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err = level.UnmarshalText([]byte(strings.ToLower(cfg.LogLevel))); err != nil {
		err = fmt.Errorf("%w: log_level %q", ErrInvalidConfig, cfg.LogLevel)
	}
	return
}

// Policy builds a Policy with fresh Stats. A nil logger discards events.
func (cfg Config) Policy(logger *slog.Logger) (*Policy, error) {
	sum, err := Checksum(cfg.Checksum)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Policy{
		AdvancedRecovery: cfg.AdvancedRecovery,
		FixingChecks:     cfg.FixingChecks,
		LegacyBitStride:  cfg.LegacyBitStride,
		Checksum:         sum,
		Logger:           logger,
		Stats:            new(Stats),
	}, nil
}
