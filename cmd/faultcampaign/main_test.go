package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	selfheal "github.com/saschpe/self-healing-sub000"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestBlockExhaustive(t *testing.T) {
	out, logs, err := execute(t, "block", "--exhaustive", "--size", "4")
	require.NoError(t, err)
	require.Contains(t, out, "target=block trials=192 repaired=64 detected=128 missed=0")
	require.Contains(t, logs, "campaign started")
}

func TestTMRCampaign(t *testing.T) {
	out, _, err := execute(t, "tmr", "--trials", "2000", "--workers", "2", "--seed", "7")
	require.NoError(t, err)
	require.Contains(t, out, "target=tmr trials=2000 repaired=2000 detected=0 missed=0")
}

func TestSeqAndMultisetNeverMissSingleFlips(t *testing.T) {
	for _, name := range []string{"seq", "multiset"} {
		out, _, err := execute(t, name, "--trials", "300", "--size", "40")
		require.NoError(t, err)
		require.Contains(t, out, "target="+name+" trials=300 ")
		require.Contains(t, out, " missed=0 ")
	}
}

func TestBurst(t *testing.T) {
	out, _, err := execute(t, "multiset", "--trials", "200", "--burst", "3", "--size", "20")
	require.NoError(t, err)
	require.Contains(t, out, "target=multiset trials=200 ")
}

func TestMetricsOutput(t *testing.T) {
	out, _, err := execute(t, "block", "--exhaustive", "--size", "2", "--metrics")
	require.NoError(t, err)
	require.Contains(t, out, `selfheal_fault_trials_total{outcome="detected",target="block"} 64`)
	require.Contains(t, out, `selfheal_fault_trials_total{outcome="repaired",target="block"} 64`)
	require.Contains(t, out, "selfheal_detected_total 64")
	require.Contains(t, out, "selfheal_silent_fixes_total 64")
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("advanced_recovery: true\nlog_level: error\n"), 0o600))

	out, logs, err := execute(t, "block", "--exhaustive", "--size", "2", "--config", path)
	require.NoError(t, err)
	require.Contains(t, out, "trials=128 repaired=128 detected=0 missed=0")
	require.Empty(t, logs)

	out, _, err = execute(t, "block", "--exhaustive", "--size", "2", "--config", path, "--advanced=false")
	require.NoError(t, err)
	require.Contains(t, out, "trials=128 repaired=64 detected=64 missed=0")
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: 0\n"), 0o600))

	_, _, err := execute(t, "seq", "--config", path)
	require.ErrorIs(t, err, selfheal.ErrInvalidConfig)

	_, _, err = execute(t, "seq", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
