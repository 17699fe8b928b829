package selfheal

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)

	cfg, err = LoadConfig(strings.NewReader(`
advanced_recovery: true
fixing_checks: false
checksum: xxhash
chunk_size: 16
fanout: 8
log_level: DEBUG
`))
	require.NoError(t, err)
	require.Equal(t, Config{
		AdvancedRecovery: true,
		Checksum:         ChecksumXXHash,
		ChunkSize:        16,
		Fanout:           8,
		LogLevel:         "DEBUG",
	}, cfg)
	level, err := cfg.Level()
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, level)

	policy, err := cfg.Policy(nil)
	require.NoError(t, err)
	require.True(t, policy.AdvancedRecovery)
	require.False(t, policy.FixingChecks)
	require.NotNil(t, policy.Stats)
	require.Equal(t, XXHash([]byte("x")), policy.Sum([]byte("x")))
}

func TestLoadConfigInvalid(t *testing.T) {
	for _, doc := range []string{
		"chunk_size: 0",
		"fanout: 3",
		"checksum: sha1",
		"log_level: loud",
		"fixng_checks: true",
		"chunk_size: [1]",
	} {
		_, err := LoadConfig(strings.NewReader(doc))
		require.ErrorIs(t, err, ErrInvalidConfig, doc)
	}
}

func TestPolicyEvents(t *testing.T) {
	var buf bytes.Buffer
	policy := &Policy{
		FixingChecks: true,
		Logger:       slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Stats:        new(Stats),
	}

	policy.Fixed("tmr", "dissent", slog.Int("copy", 2))
	policy.BitRepaired("block", 17)
	err := policy.Detected("block", ErrChecksumMismatch)
	require.ErrorIs(t, err, ErrChecksumMismatch)

	require.Equal(t, Snapshot{SilentFixes: 2, BitRepairs: 1, Detected: 1}, policy.Stats.Snapshot())
	logs := buf.String()
	require.Contains(t, logs, "level=DEBUG msg=\"silent repair\" copy=2 component=tmr kind=dissent")
	require.Contains(t, logs, "bit=17")
	require.Contains(t, logs, "level=WARN msg=\"uncorrectable fault\" component=block kind=ChecksumMismatch")

	policy.Stats.Reset()
	require.Equal(t, Snapshot{}, policy.Stats.Snapshot())

	// Without logger and stats events are dropped.
	quiet := &Policy{}
	quiet.Fixed("tmr", "dissent")
	require.NoError(t, quiet.Detected("block", nil))
}
