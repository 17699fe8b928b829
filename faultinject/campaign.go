// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package faultinject

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Campaign runs random fault trials. Each trial builds its own target, so
// workers never share a container.
type Campaign struct {
	Trials  int    // number of trials
	Burst   int    // bits flipped per trial; 0 or 1 flips a single bit
	Workers int    // parallel workers; 0 uses GOMAXPROCS
	Seed    uint64 // seeds the per-worker generators
}

// Run executes the campaign. It stops early when ctx is done.
func Run[T Target](ctx context.Context, campaign Campaign, build func() T, intact func(T) bool) (Report, error) {
	if campaign.Trials < 0 {
		return Report{}, fmt.Errorf("faultinject: %d trials", campaign.Trials)
	}
	workers := campaign.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, max(campaign.Trials, 1))
	burst := max(campaign.Burst, 1)

	reports := make([]Report, workers)
	group, ctx := errgroup.WithContext(ctx)
	for w := range workers {
		trials := campaign.Trials / workers
		if w < campaign.Trials%workers {
			trials++
		}
		group.Go(func() error {
			rng := rand.New(rand.NewPCG(campaign.Seed, uint64(w)))
			report := newReport()
			for range trials {
				if err := ctx.Err(); err != nil {
					return err
				}
				target := build()
				regions := target.Memory()
				total := Bits(regions)
				if total == 0 {
					return fmt.Errorf("faultinject: target has no memory")
				}
				start := rng.IntN(total)
				Burst(regions, start, burst)
				report.add(Judge(target, intact), uint32(start))
			}
			reports[w] = report
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Report{}, err
	}

	total := newReport()
	for _, report := range reports {
		total.merge(report)
	}
	return total, nil
}
