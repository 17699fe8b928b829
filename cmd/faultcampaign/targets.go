// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"slices"

	selfheal "github.com/saschpe/self-healing-sub000"
	"github.com/saschpe/self-healing-sub000/block"
	"github.com/saschpe/self-healing-sub000/faultinject"
	"github.com/saschpe/self-healing-sub000/multiset"
	"github.com/saschpe/self-healing-sub000/seq"
	"github.com/saschpe/self-healing-sub000/tmr"
)

type target struct {
	name  string
	short string
	size  int
	run   func(ctx context.Context, e *env) (faultinject.Report, error)
}

var targets = []target{
	{"block", "Checksummed block of uint32", 16, runBlock},
	{"tmr", "Array of triple-redundant int32", 1000, runTMR},
	{"seq", "Chunked sequence of uint32", 256, runSeq},
	{"multiset", "B+ tree multiset of int32", 256, runMultiset},
}

func drive[T faultinject.Target](ctx context.Context, e *env, build func() T, intact func(T) bool) (faultinject.Report, error) {
	if e.exhaustive {
		return faultinject.Exhaustive(build, intact), nil
	}
	return faultinject.Run(ctx, e.campaign, build, intact)
}

// pattern returns n distinct, scattered values.
func pattern(n int) []uint32 {
	vals := make([]uint32, n)
	for i := range vals {
		vals[i] = uint32(i) * 2654435761
	}
	return vals
}

func runBlock(ctx context.Context, e *env) (faultinject.Report, error) {
	want := pattern(e.size)
	build := func() *block.Block[uint32] {
		return block.NewFrom(len(want), want, e.policy)
	}
	intact := func(b *block.Block[uint32]) bool {
		vals, err := b.Values()
		return err == nil && slices.Equal(vals, want)
	}
	return drive(ctx, e, build, intact)
}

// votes is an array of TMR values validated as one target.
type votes struct {
	vals   []tmr.Value[int32]
	policy *selfheal.Policy
}

func (v *votes) Memory() (regions [][]byte) {
	for i := range v.vals {
		regions = append(regions, v.vals[i].Memory()...)
	}
	return
}

func (v *votes) Validate() error {
	for i := range v.vals {
		if err := v.vals[i].Verify(v.policy); err != nil {
			return err
		}
	}
	return nil
}

func runTMR(ctx context.Context, e *env) (faultinject.Report, error) {
	build := func() *votes {
		v := &votes{vals: make([]tmr.Value[int32], e.size), policy: e.policy}
		for i := range v.vals {
			v.vals[i].Set(int32(i))
		}
		return v
	}
	intact := func(v *votes) bool {
		for i := range v.vals {
			if val, _, _ := v.vals[i].Check(); val != int32(i) {
				return false
			}
		}
		return true
	}
	return drive(ctx, e, build, intact)
}

func runSeq(ctx context.Context, e *env) (faultinject.Report, error) {
	want := pattern(e.size)
	build := func() *seq.Sequence[uint32] {
		return seq.NewFrom(slices.Values(want), seq.WithChunkSize(e.cfg.ChunkSize), seq.WithPolicy(e.policy))
	}
	intact := func(s *seq.Sequence[uint32]) bool {
		vals, err := s.Values()
		return err == nil && slices.Equal(vals, want)
	}
	return drive(ctx, e, build, intact)
}

func runMultiset(ctx context.Context, e *env) (faultinject.Report, error) {
	keys := make([]int32, e.size)
	for i := range keys {
		keys[i] = int32(i % (e.size/2 + 1))
	}
	opts := []multiset.Option{multiset.WithPolicy(e.policy)}
	if e.cfg.Fanout != 0 {
		opts = append(opts, multiset.WithFanout(e.cfg.Fanout))
	}
	want := slices.Sorted(slices.Values(keys))

	// Building a fresh tree cannot fail.
	build := func() *multiset.Multiset[int32] {
		m, err := multiset.NewFrom(slices.Values(keys), opts...)
		if err != nil {
			panic(err)
		}
		return m
	}
	intact := func(m *multiset.Multiset[int32]) bool {
		return slices.Equal(slices.Collect(m.Items), want)
	}
	return drive(ctx, e, build, intact)
}
