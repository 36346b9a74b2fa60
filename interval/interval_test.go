package interval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/statcache/fragment"
)

func TestInsertKeepsAscendingOrder(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert(fragment.NewPlaceholder(100, 199, 0)))
	require.NoError(t, idx.Insert(fragment.NewPlaceholder(0, 99, 0)))
	require.NoError(t, idx.Insert(fragment.NewPlaceholder(300, 399, 0)))

	require.Equal(t, 3, idx.Len())
	assert.Equal(t, int64(99), idx.At(0).End)
	assert.Equal(t, int64(199), idx.At(1).End)
	assert.Equal(t, int64(399), idx.At(2).End)
}

func TestInsertRejectsOverlap(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert(fragment.NewPlaceholder(0, 99, 0)))

	assert.Error(t, idx.Insert(fragment.NewPlaceholder(50, 150, 0)), "overlaps on the right")
	assert.Error(t, idx.Insert(fragment.NewPlaceholder(-50, 10, 0)), "overlaps on the left")
	assert.Error(t, idx.Insert(fragment.NewPlaceholder(0, 99, 0)), "exact duplicate")

	require.NoError(t, idx.Insert(fragment.NewPlaceholder(100, 199, 0)), "adjacent, non-overlapping")
	assert.Equal(t, 2, idx.Len())
}

func TestLowerBoundFindsFirstCoveringOrFollowingEntry(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert(fragment.NewPlaceholder(0, 99, 0)))
	require.NoError(t, idx.Insert(fragment.NewPlaceholder(200, 299, 0)))

	assert.Equal(t, int64(99), idx.LowerBound(0).End)
	assert.Equal(t, int64(99), idx.LowerBound(99).End, "exact end boundary")
	assert.Equal(t, int64(299), idx.LowerBound(100).End, "inside the gap, returns the next fragment")
	assert.Nil(t, idx.LowerBound(300), "past every fragment")
}

func TestLowerBoundPosAndAt(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert(fragment.NewPlaceholder(0, 99, 0)))
	require.NoError(t, idx.Insert(fragment.NewPlaceholder(200, 299, 0)))

	pos := idx.LowerBoundPos(150)
	assert.Equal(t, 1, pos)
	assert.Equal(t, int64(299), idx.At(pos).End)

	assert.Nil(t, idx.At(-1))
	assert.Nil(t, idx.At(idx.Len()))
}

func TestIterateForwardFromStopsWhenVisitReturnsFalse(t *testing.T) {
	idx := New()
	for _, r := range [][2]int64{{0, 9}, {10, 19}, {20, 29}} {
		require.NoError(t, idx.Insert(fragment.NewPlaceholder(r[0], r[1], 0)))
	}

	var seen []int64
	idx.IterateForwardFrom(5, func(f *fragment.Fragment) bool {
		seen = append(seen, f.End)
		return f.End < 19
	})

	assert.Equal(t, []int64{9, 19}, seen)
}

func TestIterateForwardFromEmptyIndex(t *testing.T) {
	idx := New()
	calls := 0
	idx.IterateForwardFrom(0, func(f *fragment.Fragment) bool {
		calls++
		return true
	})
	assert.Equal(t, 0, calls)
}
