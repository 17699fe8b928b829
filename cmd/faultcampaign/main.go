// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// faultcampaign injects bit flips into the self-healing containers and
// reports how many faults were repaired, detected or missed.
//
// Usage:
//
//	faultcampaign block                      # 10000 random single-bit trials
//	faultcampaign tmr --trials 50000 --size 1000
//	faultcampaign seq --burst 4              # flip 4 consecutive bits per trial
//	faultcampaign multiset --exhaustive      # flip every bit once
//	faultcampaign block --config policy.yaml --metrics
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	selfheal "github.com/saschpe/self-healing-sub000"
	"github.com/saschpe/self-healing-sub000/faultinject"
	"github.com/saschpe/self-healing-sub000/metrics"
	"github.com/spf13/cobra"
)

const namespace = "selfheal"

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type options struct {
	config     string
	trials     int
	workers    int
	seed       uint64
	burst      int
	size       int
	advanced   bool
	exhaustive bool
	metrics    bool
}

// env is what a target needs to run once flags and config are resolved.
type env struct {
	cfg        selfheal.Config
	policy     *selfheal.Policy
	campaign   faultinject.Campaign
	size       int
	exhaustive bool
}

func newRootCommand() *cobra.Command {
	var opts options
	root := &cobra.Command{
		Use:          "faultcampaign",
		Short:        "Inject bit flips into self-healing containers",
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.config, "config", "", "YAML policy file")
	flags.IntVar(&opts.trials, "trials", 10000, "number of random trials")
	flags.IntVar(&opts.workers, "workers", 0, "parallel workers (0 = GOMAXPROCS)")
	flags.Uint64Var(&opts.seed, "seed", 1, "seed of the per-worker generators")
	flags.IntVar(&opts.burst, "burst", 1, "consecutive bits flipped per trial")
	flags.IntVar(&opts.size, "size", 0, "elements per target (0 = target default)")
	flags.BoolVar(&opts.advanced, "advanced", false, "enable advanced single-bit payload recovery")
	flags.BoolVar(&opts.exhaustive, "exhaustive", false, "flip every bit once instead of random trials")
	flags.BoolVar(&opts.metrics, "metrics", false, "print Prometheus metrics after the run")

	for _, target := range targets {
		root.AddCommand(&cobra.Command{
			Use:   target.name,
			Short: target.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, &opts, target)
			},
		})
	}
	return root
}

func run(cmd *cobra.Command, opts *options, target target) error {
	cfg, err := loadConfig(opts.config)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("advanced") {
		cfg.AdvancedRecovery = opts.advanced
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	policy, err := cfg.Policy(logger)
	if err != nil {
		return err
	}

	e := &env{
		cfg:    cfg,
		policy: policy,
		campaign: faultinject.Campaign{
			Trials:  opts.trials,
			Burst:   opts.burst,
			Workers: opts.workers,
			Seed:    opts.seed,
		},
		size:       opts.size,
		exhaustive: opts.exhaustive,
	}
	if e.size <= 0 {
		e.size = target.size
	}

	logger.Info("campaign started",
		slog.String("target", target.name),
		slog.Int("size", e.size),
		slog.Bool("exhaustive", e.exhaustive),
		slog.Int("trials", opts.trials),
		slog.Int("burst", opts.burst))
	report, err := target.run(cmd.Context(), e)
	if err != nil {
		return fmt.Errorf("%s campaign: %w", target.name, err)
	}
	logger.Info("campaign finished", slog.String("target", target.name), slog.Int("failed_bits", int(report.Failed.GetCardinality())))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "target=%s %s\n", target.name, report)
	if !opts.metrics {
		return nil
	}
	return writeMetrics(out, target.name, report, policy.Stats)
}

func loadConfig(path string) (selfheal.Config, error) {
	if path == "" {
		return selfheal.DefaultConfig(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return selfheal.Config{}, err
	}
	defer f.Close()
	return selfheal.LoadConfig(f)
}

func writeMetrics(w io.Writer, name string, report faultinject.Report, stats *selfheal.Stats) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewCollector(namespace, stats)); err != nil {
		return err
	}
	outcomes, err := metrics.NewOutcomes(reg, namespace)
	if err != nil {
		return err
	}
	outcomes.Observe(name, report)

	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		if _, err = expfmt.MetricFamilyToText(w, family); err != nil {
			return err
		}
	}
	return nil
}
