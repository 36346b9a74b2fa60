package statpoint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	cases := []PackedPoint{
		{RelTime: 1, Min: -2.5, PrevCount: 3, Mean: 0, RelTime2: 1, Max: 4.25, Count: 7},
		{RelTime: 0, Min: 0, PrevCount: 0, Mean: 0, RelTime2: 0, Max: 0, Count: 0},
		{RelTime: -100, Min: float32(math.NaN()), PrevCount: 5, Mean: float32(math.NaN()), RelTime2: -100, Max: float32(math.NaN()), Count: 0},
		{RelTime: 1, Min: 1, PrevCount: -5, Mean: 1, RelTime2: 1, Max: 1, Count: -5},
	}

	for _, want := range cases {
		buf := want.MarshalBinary()
		require.Len(t, buf, Stride)

		got := UnmarshalPackedPoint(buf)

		if math.IsNaN(float64(want.Mean)) {
			assert.True(t, math.IsNaN(float64(got.Mean)))
		} else {
			assert.Equal(t, want.Mean, got.Mean)
		}
		assert.Equal(t, want.RelTime, got.RelTime)
		assert.Equal(t, want.PrevCount, got.PrevCount)
		assert.Equal(t, want.RelTime2, got.RelTime2)
		assert.Equal(t, want.Count, got.Count)
	}
}

func TestPutBinaryPadByteIsZero(t *testing.T) {
	p := PackedPoint{RelTime: 1, Min: 2, PrevCount: 3, Mean: 4, RelTime2: 1, Max: 5, Count: 6}
	buf := p.MarshalBinary()
	assert.Equal(t, uint32(0), uint32(buf[OffsetPad])|uint32(buf[OffsetPad+1])<<8|uint32(buf[OffsetPad+2])<<16|uint32(buf[OffsetPad+3])<<24)
}

func TestIsGap(t *testing.T) {
	gap := PackedPoint{Mean: float32(math.NaN()), Count: 0}
	assert.True(t, gap.IsGap())

	real := PackedPoint{Mean: 1.5, Count: 3}
	assert.False(t, real.IsGap())
}

func TestIsIsolated(t *testing.T) {
	assert.True(t, PackedPoint{Count: -3}.IsIsolated())
	assert.False(t, PackedPoint{Count: 3}.IsIsolated())
	assert.False(t, PackedPoint{Count: 0}.IsIsolated(), "negative zero should not occur and plain zero is never isolated")
}
