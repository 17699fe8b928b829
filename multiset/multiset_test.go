package multiset

import (
	"math/rand/v2"
	"slices"
	"testing"

	selfheal "github.com/saschpe/self-healing-sub000"
	"github.com/saschpe/self-healing-sub000/faultinject"
	"github.com/saschpe/self-healing-sub000/iterator"
	"github.com/saschpe/self-healing-sub000/tmr"
	"github.com/stretchr/testify/require"
)

func testPolicy() *selfheal.Policy {
	return &selfheal.Policy{FixingChecks: true, Stats: new(selfheal.Stats)}
}

var scenarioA = []int{4, 1, 1, 1, 1, 1, 0, 5, 1, 0}
var scenarioB = []int{4, 4, 2, 4, 2, 4, 0, 1, 5, 5}

func requireKeys[K comparable](t *testing.T, m *Multiset[K], want []K) {
	t.Helper()
	require.NoError(t, m.Validate())
	got := slices.Collect(m.Items)
	if len(want) == 0 {
		require.Empty(t, got)
	} else {
		require.Equal(t, want, got)
	}
	size, err := m.Len()
	require.NoError(t, err)
	require.Equal(t, len(want), size)
}

func TestMultisetScenario(t *testing.T) {
	for _, fanout := range []int{MinFanout, Fanout[int]()} {
		m := New[int](WithFanout(fanout), WithPolicy(testPolicy()))
		n, err := m.InsertAll(slices.Values(scenarioA))
		require.NoError(t, err)
		require.Equal(t, len(scenarioA), n)
		requireKeys(t, m, []int{0, 0, 1, 1, 1, 1, 1, 1, 4, 5})

		count, err := m.Count(1)
		require.NoError(t, err)
		require.Equal(t, 6, count)

		lower := m.LowerBound(1)
		require.True(t, lower.Valid())
		require.Equal(t, 1, lower.Key())
		before := lower.Clone()
		require.True(t, before.Prev())
		require.Equal(t, 0, before.Key(), "lower bound is the first 1")

		upper := m.UpperBound(1)
		require.True(t, upper.Valid())
		require.Equal(t, 4, upper.Key())
		before = upper.Clone()
		require.True(t, before.Prev())
		require.Equal(t, 1, before.Key(), "upper bound is past the last 1")

		first, last := m.EqualRange(1)
		require.True(t, first.Equal(lower))
		require.True(t, last.Equal(upper))
		var ones int
		for it := first; !it.Equal(last); it.Next() {
			require.Equal(t, 1, it.Key())
			ones++
		}
		require.Equal(t, 6, ones)
	}
}

func TestMultisetSetAlgebra(t *testing.T) {
	a, err := NewFrom(slices.Values(scenarioA), WithFanout(MinFanout))
	require.NoError(t, err)
	b, err := NewFrom(slices.Values(scenarioB), WithFanout(MinFanout))
	require.NoError(t, err)
	compare := a.Comparator()

	require.Equal(t,
		[]int{0, 0, 1, 1, 1, 1, 1, 1, 2, 2, 4, 4, 4, 4, 5, 5},
		slices.Collect(iterator.Union(a.Items, b.Items, compare)))
	require.Equal(t,
		[]int{0, 1, 4, 5},
		slices.Collect(iterator.Intersection(a.Items, b.Items, compare)))
	require.Equal(t,
		[]int{0, 1, 1, 1, 1, 1},
		slices.Collect(iterator.Difference(a.Items, b.Items, compare)))
}

func TestMultisetFind(t *testing.T) {
	m, err := NewFrom(slices.Values([]int{5, 3, 9, 3}), WithPolicy(testPolicy()))
	require.NoError(t, err)

	it := m.Find(3)
	require.True(t, it.Valid())
	require.Equal(t, 3, it.Key())
	require.True(t, m.Find(4).Equal(m.End()))
	require.True(t, m.LowerBound(10).Equal(m.End()))
	require.NoError(t, m.Find(4).Error())

	ok, err := m.Contains(9)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = m.Contains(1)
	require.NoError(t, err)
	require.False(t, ok)

	count, err := m.Count(7)
	require.NoError(t, err)
	require.Zero(t, count)

	begin := m.Begin()
	require.Equal(t, 3, begin.Key())
	require.False(t, begin.Prev())
	require.NoError(t, begin.Error())
}

func TestMultisetEmpty(t *testing.T) {
	m := New[uint16](WithPolicy(testPolicy()))

	empty, err := m.Empty()
	require.NoError(t, err)
	require.True(t, empty)
	require.True(t, m.Begin().Equal(m.End()))
	require.False(t, m.End().SeekLast())
	require.Empty(t, slices.Collect(m.Backward))

	n, err := m.Erase(1)
	require.NoError(t, err)
	require.Zero(t, n)
	_, err = m.EraseAt(m.End())
	require.ErrorIs(t, err, ErrOutOfRange)

	height, err := m.Height()
	require.NoError(t, err)
	require.Equal(t, 1, height)
}

func TestMultisetErase(t *testing.T) {
	m, err := NewFrom(slices.Values(scenarioA), WithFanout(MinFanout), WithPolicy(testPolicy()))
	require.NoError(t, err)

	n, err := m.Erase(1)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	requireKeys(t, m, []int{0, 0, 4, 5})

	next, err := m.EraseAt(m.Find(4))
	require.NoError(t, err)
	require.Equal(t, 5, next.Key())
	requireKeys(t, m, []int{0, 0, 5})

	first, last := m.EqualRange(0)
	n, err = m.EraseRange(first, last)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	requireKeys(t, m, []int{5})

	n, err = m.EraseRange(m.Begin(), m.End())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	requireKeys(t, m, nil)
}

func TestMultisetEraseAmongDuplicates(t *testing.T) {
	m := New[int](WithFanout(MinFanout), WithPolicy(testPolicy()))
	var want []int
	for key := range 5 {
		for range 7 {
			_, err := m.Insert(key)
			require.NoError(t, err)
			want = append(want, key)
		}
	}

	// position returns how many keys precede it.
	position := func(it *Iter[int]) (n int) {
		for walk := m.Begin(); !walk.Equal(it); walk.Next() {
			require.True(t, walk.Valid())
			n++
		}
		return
	}

	it := m.Begin()
	for range 17 {
		require.True(t, it.Next())
	}
	require.Equal(t, 2, it.Key())
	next, err := m.EraseAt(it)
	require.NoError(t, err)
	want = slices.Delete(want, 17, 18)
	require.Equal(t, 17, position(next))
	require.Equal(t, want[17], next.Key())
	requireKeys(t, m, want)

	first := m.Begin()
	for range 5 {
		require.True(t, first.Next())
	}
	last := first.Clone()
	for range 20 {
		require.True(t, last.Next())
	}
	_, err = m.EraseRange(last, first)
	require.ErrorIs(t, err, ErrOutOfRange)
	requireKeys(t, m, want)

	n, err := m.EraseRange(first, last)
	require.NoError(t, err)
	require.Equal(t, 20, n)
	want = slices.Delete(want, 5, 25)
	requireKeys(t, m, want)
}

func TestMultisetDeepTree(t *testing.T) {
	policy := testPolicy()
	m := New[int32](WithFanout(MinFanout), WithPolicy(policy))
	want := make([]int32, 1000)
	for i := range want {
		want[i] = int32(i)
		_, err := m.Insert(int32(i))
		require.NoError(t, err)
	}
	requireKeys(t, m, want)
	height, err := m.Height()
	require.NoError(t, err)
	require.Greater(t, height, 4)

	rng := rand.New(rand.NewPCG(3, 4))
	rng.Shuffle(len(want), func(i, j int) { want[i], want[j] = want[j], want[i] })
	for i, key := range want {
		n, err := m.Erase(key)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		if i%97 == 0 {
			require.NoError(t, m.Validate())
		}
	}
	requireKeys(t, m, nil)
	height, err = m.Height()
	require.NoError(t, err)
	require.Equal(t, 1, height)
	require.Equal(t, 1, m.live())
	require.Zero(t, policy.Stats.Snapshot().SilentFixes)
}

func TestMultisetRandomOps(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	m := New[int](WithFanout(5), WithPolicy(testPolicy()))
	var want []int

	for step := range 3000 {
		key := rng.IntN(64)
		switch op := rng.IntN(10); {
		case op < 5:
			it, err := m.Insert(key)
			require.NoError(t, err)
			require.Equal(t, key, it.Key())
			pos, _ := slices.BinarySearch(want, key+1)
			want = slices.Insert(want, pos, key)
		case op < 7:
			n, err := m.Erase(key)
			require.NoError(t, err)
			lo, _ := slices.BinarySearch(want, key)
			hi, _ := slices.BinarySearch(want, key+1)
			require.Equal(t, hi-lo, n)
			want = slices.Delete(want, lo, hi)
		case op < 9 && len(want) > 0:
			rank := rng.IntN(len(want))
			it := m.Begin()
			for range rank {
				require.True(t, it.Next())
			}
			next, err := m.EraseAt(it)
			require.NoError(t, err)
			want = slices.Delete(want, rank, rank+1)
			if rank < len(want) {
				require.Equal(t, want[rank], next.Key())
			} else {
				require.False(t, next.Valid())
			}
		case op == 9:
			lo, hi := rng.IntN(64), rng.IntN(64)
			first, last := m.LowerBound(min(lo, hi)), m.UpperBound(max(lo, hi))
			n, err := m.EraseRange(first, last)
			require.NoError(t, err)
			from, _ := slices.BinarySearch(want, min(lo, hi))
			to, _ := slices.BinarySearch(want, max(lo, hi)+1)
			require.Equal(t, to-from, n)
			want = slices.Delete(want, from, to)
		}
		if step%100 == 0 {
			requireKeys(t, m, want)
		}
	}
	requireKeys(t, m, want)
	for _, key := range []int{0, 13, 63} {
		lo, _ := slices.BinarySearch(want, key)
		hi, _ := slices.BinarySearch(want, key+1)
		count, err := m.Count(key)
		require.NoError(t, err)
		require.Equal(t, hi-lo, count)
	}
}

func TestMultisetIteration(t *testing.T) {
	m, err := NewFrom(slices.Values([]int{7, 3, 5, 1, 9, 3, 8, 2, 6, 4}), WithFanout(MinFanout))
	require.NoError(t, err)

	require.Equal(t, []int{1, 2, 3, 3, 4, 5, 6, 7, 8, 9}, slices.Collect(iterator.Forward(m.Begin())))
	require.Equal(t, []int{9, 8, 7, 6, 5, 4, 3, 3, 2, 1}, slices.Collect(iterator.Backward(m.End())))
	require.Equal(t, []int{9, 8, 7, 6, 5, 4, 3, 3, 2, 1}, slices.Collect(m.Backward))

	var seen []int
	for key := range m.Items {
		if key > 4 {
			break
		}
		seen = append(seen, key)
	}
	require.Equal(t, []int{1, 2, 3, 3, 4}, seen)
}

func TestMultisetComparator(t *testing.T) {
	desc := func(a, b int) int { return b - a }
	m := NewFunc(desc, WithFanout(MinFanout))
	_, err := m.InsertAll(slices.Values([]int{2, 5, 1, 4, 3, 5}))
	require.NoError(t, err)
	requireKeys(t, m, []int{5, 5, 4, 3, 2, 1})
	require.Equal(t, 4, m.UpperBound(5).Key())
}

func TestMultisetFanout(t *testing.T) {
	require.Equal(t, 64, Fanout[int32]())
	require.Equal(t, 32, Fanout[int64]())
	require.Equal(t, 8, Fanout[[64]byte]())
	require.Equal(t, 256, Fanout[struct{}]())
	require.Equal(t, MinFanout, New[int](WithFanout(2)).FanoutSize())
}

func TestMultisetSwapCloneClear(t *testing.T) {
	a, err := NewFrom(slices.Values([]int{1, 2, 3}))
	require.NoError(t, err)
	b, err := NewFrom(slices.Values([]int{9}))
	require.NoError(t, err)

	a.Swap(b)
	requireKeys(t, a, []int{9})
	requireKeys(t, b, []int{1, 2, 3})
	a.Swap(b)
	requireKeys(t, a, []int{1, 2, 3})

	clone, err := a.Clone()
	require.NoError(t, err)
	_, err = clone.Insert(4)
	require.NoError(t, err)
	requireKeys(t, clone, []int{1, 2, 3, 4})
	requireKeys(t, a, []int{1, 2, 3})

	a.Clear()
	requireKeys(t, a, nil)
	requireKeys(t, clone, []int{1, 2, 3, 4})
}

// build returns a three-level tree of the keys 0..n-1.
func build(t *testing.T, n int, policy *selfheal.Policy) *Multiset[int32] {
	t.Helper()
	m := New[int32](WithFanout(MinFanout), WithPolicy(policy))
	for i := range n {
		_, err := m.Insert(int32(i))
		require.NoError(t, err)
	}
	return m
}

func TestMultisetLinkRepair(t *testing.T) {
	policy := testPolicy()
	m := build(t, 40, policy)
	want := slices.Collect(m.Items)
	height, err := m.Height()
	require.NoError(t, err)
	require.Greater(t, height, 2)

	m.root.Memory()[1][0] ^= 1
	m.leaves[2].parent.Memory()[0][0] ^= 2
	m.leaves[3].link.Memory()[2][1] ^= 1
	m.leaves[4].link.Memory()[3][0] ^= 8
	m.branches[1].children[0].Memory()[1][0] ^= 1
	m.branches[2].parent.Memory()[2][0] ^= 4

	requireKeys(t, m, want)
	require.Equal(t, uint64(6), policy.Stats.Snapshot().SilentFixes)
	require.NoError(t, m.Validate())
	require.Equal(t, uint64(6), policy.Stats.Snapshot().SilentFixes, "validation is idempotent")
}

func TestMultisetUnusedChildSlotRepair(t *testing.T) {
	// unusedSlot returns the first child slot past the count of a live branch.
	unusedSlot := func(m *Multiset[int32]) *tmr.Value[handle] {
		for _, branch := range m.branches {
			if branch == nil {
				continue
			}
			if count, err := branch.count.Get(); err == nil && count < len(branch.children) {
				return &branch.children[count]
			}
		}
		t.Fatal("no branch with an unused child slot")
		return nil
	}

	policy := testPolicy()
	m := build(t, 40, policy)
	slot := unusedSlot(m)

	slot.Memory()[0][0] ^= 1
	_, vote, _ := slot.Check()
	require.Equal(t, tmr.Dissent, vote)
	require.NoError(t, m.Validate())
	_, vote, _ = slot.Check()
	require.Equal(t, tmr.Unanimous, vote)
	require.Equal(t, uint64(1), policy.Stats.Snapshot().SilentFixes)

	strict := &selfheal.Policy{Stats: new(selfheal.Stats)}
	m = build(t, 40, strict)
	unusedSlot(m).Memory()[2][0] ^= 1
	require.ErrorIs(t, m.Validate(), selfheal.ErrInvariantViolation)
	require.Equal(t, uint64(1), strict.Stats.Snapshot().Detected)
}

func TestMultisetParentMismatchWithoutFixing(t *testing.T) {
	policy := &selfheal.Policy{Stats: new(selfheal.Stats)}
	m := build(t, 20, policy)
	m.leaves[2].parent.Memory()[0][0] ^= 1

	require.ErrorIs(t, m.Validate(), ErrParentMismatch)
	require.False(t, m.Valid())
}

func TestMultisetPayloadCorruptDetected(t *testing.T) {
	m := build(t, 20, testPolicy())
	h, err := m.descend(10, false)
	require.NoError(t, err)
	m.leaves[h].keys.Memory()[1][0] ^= 1

	require.ErrorIs(t, m.Validate(), selfheal.ErrDataCorrupt)
	it := m.Find(10)
	require.False(t, it.Valid())
	require.ErrorIs(t, it.Error(), selfheal.ErrDataCorrupt)
	_, err = m.Insert(10)
	require.ErrorIs(t, err, selfheal.ErrDataCorrupt)
}

func TestMultisetSingleBitDetection(t *testing.T) {
	want := []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	builder := func() *Multiset[int32] { return build(t, len(want), testPolicy()) }
	intact := func(m *Multiset[int32]) bool {
		return slices.Equal(slices.Collect(m.Items), want)
	}
	var leaves, branches int
	proto := builder()
	for _, leaf := range proto.leaves {
		if leaf != nil {
			leaves++
		}
	}
	for _, branch := range proto.branches {
		if branch != nil {
			branches++
		}
	}
	require.Positive(t, branches)

	report := faultinject.Exhaustive(builder, intact)
	require.Zero(t, report.Missed, report.String())
	payload := leaves*MinFanout + branches*(MinFanout-1)
	require.Equal(t, payload*32, report.Detected, "payload bits of every node")
	require.Equal(t, report.Trials-report.Detected, report.Repaired)
}
