package tmr

import (
	"context"
	"testing"

	selfheal "github.com/saschpe/self-healing-sub000"
	"github.com/saschpe/self-healing-sub000/faultinject"
	"github.com/stretchr/testify/require"
)

func testPolicy() *selfheal.Policy {
	return &selfheal.Policy{FixingChecks: true, Stats: new(selfheal.Stats)}
}

func TestValueUnanimous(t *testing.T) {
	v := New(42)
	got, err := v.Read(testPolicy())
	require.NoError(t, err)
	require.Equal(t, 42, got)

	_, vote, dissenter := v.Check()
	require.Equal(t, Unanimous, vote)
	require.Equal(t, -1, dissenter)
}

func TestValueDissentRepairs(t *testing.T) {
	for idx := range 3 {
		policy := testPolicy()
		v := New(uint32(0x0badf00d))
		faultinject.Flip(v.Memory()[idx:idx+1], 7)

		_, vote, dissenter := v.Check()
		require.Equal(t, Dissent, vote)
		require.Equal(t, idx, dissenter)

		got, err := v.Read(policy)
		require.NoError(t, err)
		require.Equal(t, uint32(0x0badf00d), got)
		require.Equal(t, [3]uint32{0x0badf00d, 0x0badf00d, 0x0badf00d}, v.v)
		require.EqualValues(t, 1, policy.Stats.Snapshot().SilentFixes)
	}
}

func TestValueSplitFails(t *testing.T) {
	v := New(uint8(0))
	regions := v.Memory()
	faultinject.Flip(regions[0:1], 0)
	faultinject.Flip(regions[1:2], 1)

	_, err := v.Read(testPolicy())
	require.ErrorIs(t, err, ErrTriplicateMismatch)
	require.False(t, v.Valid(testPolicy()))
}

func TestValueWithoutFixingChecks(t *testing.T) {
	policy := testPolicy()
	policy.FixingChecks = false
	v := New(int16(5))
	faultinject.Flip(v.Memory()[1:2], 3)

	_, err := v.Read(policy)
	require.ErrorIs(t, err, ErrTriplicateMismatch)
	_, vote, _ := v.Check()
	require.Equal(t, Dissent, vote, "left untouched")
}

func TestValueExpect(t *testing.T) {
	policy := testPolicy()
	v := New(uint64(1))
	regions := v.Memory()
	faultinject.Flip(regions[0:1], 1)
	faultinject.Flip(regions[1:2], 2)

	require.NoError(t, v.Expect(1, policy))
	got, err := v.Read(policy)
	require.NoError(t, err)
	require.Equal(t, uint64(1), got)

	require.NoError(t, v.Expect(9, policy))
	got, err = v.Get()
	require.NoError(t, err)
	require.Equal(t, uint64(9), got)

	strict := testPolicy()
	strict.FixingChecks = false
	require.ErrorIs(t, v.Expect(3, strict), ErrInvariantViolation)
}

func TestParentLink(t *testing.T) {
	policy := testPolicy()
	var link Parent[uint32]
	link.Set(7)

	got, err := link.Get(policy)
	require.NoError(t, err)
	require.Equal(t, uint32(7), got)

	faultinject.Flip(link.Memory()[2:], 30)
	require.NoError(t, link.Verify(policy))
	require.NoError(t, link.Expect(8, policy))
	got, err = link.Get(policy)
	require.NoError(t, err)
	require.Equal(t, uint32(8), got)

	strict := testPolicy()
	strict.FixingChecks = false
	err = link.Expect(9, strict)
	require.ErrorIs(t, err, ErrParentMismatch)
	require.Equal(t, "ParentMismatch", selfheal.Kind(err))
}

func TestSiblingLink(t *testing.T) {
	policy := testPolicy()
	var link Sibling[uint16]
	link.Set(3, 1)

	next, err := link.Next(policy)
	require.NoError(t, err)
	prev, err := link.Prev(policy)
	require.NoError(t, err)
	require.Equal(t, uint16(3), next)
	require.Equal(t, uint16(1), prev)

	link.SetNext(4)
	link.SetPrev(2)
	regions := link.Memory()
	require.Len(t, regions, 6)
	faultinject.Flip(regions[3:4], 0)
	faultinject.Flip(regions[4:5], 1)
	require.ErrorIs(t, link.Verify(policy), ErrTriplicateMismatch)

	require.NoError(t, link.Expect(4, 2, policy))
	require.NoError(t, link.Verify(policy))

	strict := testPolicy()
	strict.FixingChecks = false
	err = link.Expect(5, 2, strict)
	require.ErrorIs(t, err, ErrInvariantViolation)
	require.Equal(t, "InvariantViolation", selfheal.Kind(err))
	require.NoError(t, link.Expect(4, 2, strict))
}

type tmrArray []Value[int32]

func (a tmrArray) Memory() (regions [][]byte) {
	for i := range a {
		regions = append(regions, a[i].Memory()...)
	}
	return
}

func (a tmrArray) Validate() error {
	for i := range a {
		if _, err := a[i].Read(nil); err != nil {
			return err
		}
	}
	return nil
}

// TestArraySingleFlipCampaign flips one random bit per trial in an array of
// 1000 triple-redundant ints. A single flip only ever hits one copy.
func TestArraySingleFlipCampaign(t *testing.T) {
	build := func() tmrArray {
		a := make(tmrArray, 1000)
		for i := range a {
			a[i].Set(int32(i))
		}
		return a
	}
	intact := func(a tmrArray) bool {
		for i := range a {
			if v, _, _ := a[i].Check(); v != int32(i) {
				return false
			}
		}
		return true
	}

	report, err := faultinject.Run(context.Background(), faultinject.Campaign{Trials: 10000, Workers: 4, Seed: 1}, build, intact)
	require.NoError(t, err)
	require.Equal(t, 10000, report.Trials)
	require.GreaterOrEqual(t, report.RepairRate(), 0.99)
	t.Logf("tmr array: %s", report)
}

func TestVoteString(t *testing.T) {
	require.Equal(t, "dissent", Dissent.String())
	require.Equal(t, "Vote(7)", Vote(7).String())
}
