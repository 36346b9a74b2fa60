// Package fragment builds and holds contiguous runs of packed stat
// points — the unit the interval index caches and the unit a single
// query callback collects. The build algorithm is a direct port of the
// CacheEntry::cacheData transform from the original mr-plotter cache,
// generalized to operate over slices instead of raw pointers.
package fragment

import (
	"fmt"
	"math"

	"go.uber.org/atomic"

	"github.com/grafana/statcache/statpoint"
)

// PWEMax is one more than the maximum pointwidth exponent.
const PWEMax = 63

// Fragment is a contiguous, cacheable run of stat points at one
// resolution for one series. It starts life as a placeholder (Points
// nil) reserving [Start, End] in the interval index, and is populated
// exactly once via Populate.
type Fragment struct {
	Start, End int64
	Pwe        uint8

	// Epoch is a time value near the fragment's span, used so that
	// RelTime fits a float32 without precision loss. Set by Populate.
	Epoch int64

	// JoinsPrev/JoinsNext record which side of each inter-fragment gap
	// this fragment took responsibility for bridging.
	JoinsPrev bool
	JoinsNext bool

	// Generation is the backend version the data was read at. Valid
	// only once populated.
	Generation uint64

	populated atomic.Bool
	points    []statpoint.PackedPoint
}

// NewPlaceholder constructs an unfilled Fragment reserving [start, end]
// at the given resolution.
func NewPlaceholder(start, end int64, pwe uint8) *Fragment {
	if pwe >= PWEMax {
		panic(fmt.Sprintf("statcache: pwe %d out of range", pwe))
	}
	if end < start {
		panic("statcache: fragment end before start")
	}
	return &Fragment{Start: start, End: end, Pwe: pwe}
}

// IsPlaceholder reports whether Populate has not yet been called.
func (f *Fragment) IsPlaceholder() bool {
	return !f.populated.Load()
}

// Points returns the packed points of a populated fragment. Calling it
// on a placeholder returns nil.
func (f *Fragment) Points() []statpoint.PackedPoint {
	if f.IsPlaceholder() {
		return nil
	}
	return f.points
}

// Len returns the number of packed points this fragment has, gap markers
// included, or 0 for a placeholder.
func (f *Fragment) Len() int {
	return len(f.Points())
}

// Populate transitions f from placeholder to populated, storing the
// fragment's bridging decisions, epoch and packed points. It is a
// programming error to call it twice; doing so panics, matching the
// spec's "invariant violations are fatal assertions" policy.
func (f *Fragment) Populate(epoch int64, joinsPrev, joinsNext bool, generation uint64, points []statpoint.PackedPoint) {
	if f.populated.Swap(true) {
		panic("statcache: fragment populated twice")
	}
	f.Epoch = epoch
	f.JoinsPrev = joinsPrev
	f.JoinsNext = joinsNext
	f.Generation = generation
	f.points = points
}

// pw returns the pointwidth, in nanoseconds, for pwe.
func pw(pwe uint8) int64 {
	return int64(1) << pwe
}

// Build fills a placeholder fragment g in place, converting an ascending
// run of raw stat points into g's packed record form. It inserts
// synthetic NaN gap markers wherever the source data is non-contiguous,
// and marks points adjacent to a gap on both sides as "isolated" via the
// sign-bit convention described in statpoint. g's identity (its slot in
// any interval index) is unchanged; only its contents transition from
// placeholder to populated.
//
// points must contain every point whose midpoint lies in [g.Start,
// g.End], and may contain one extra point immediately to the left
// and/or right of that range (aligned to the left/right pointwidth
// boundary just outside the range); prev and next are the (possibly
// nil) neighboring fragments, used only to decide gap-bridging
// responsibility.
func Build(g *Fragment, points []statpoint.StatPoint, prev, next *Fragment, generation uint64) {
	start, end, pwe := g.Start, g.End, g.Pwe

	width := pw(pwe)
	halfwidth := width >> 1
	mask := ^(width - 1)

	joinsPrev := prev != nil && !prev.JoinsNext && !prev.IsPlaceholder() && prev.Len() != 0
	joinsNext := next != nil && !next.JoinsPrev && !next.IsPlaceholder() && next.Len() != 0

	leftEdge := (start - halfwidth - 1) & mask
	rightEdge := ((end - halfwidth) & mask) + width

	hasLeftExtra := len(points) > 0 && points[0].Time == leftEdge
	hasRightExtra := len(points) > 0 && points[len(points)-1].Time == rightEdge

	trimmed := points
	if hasLeftExtra && !joinsPrev {
		trimmed = trimmed[1:]
	}
	if hasRightExtra && !joinsNext && len(trimmed) > 0 {
		trimmed = trimmed[:len(trimmed)-1]
	}

	var epoch int64
	if len(points) > 0 {
		epoch = (points[len(points)-1].Time >> 1) + (points[0].Time >> 1)
	}

	if len(trimmed) == 0 {
		g.Populate(epoch, joinsPrev, joinsNext, generation, nil)
		return
	}

	upper := int64(len(trimmed)) << 1
	if span := ((end - start) >> pwe) + 3; span < upper {
		upper = span
	}
	out := make([]statpoint.PackedPoint, upper)

	prevCount := float32(0)
	if hasLeftExtra && joinsPrev {
		prevCount = float32(trimmed[0].Count)
	}

	j := 0
	for i, in := range trimmed {
		o := &out[j]
		o.RelTime = float32(in.Time - epoch)
		o.Min = float32(in.Min)
		o.PrevCount = prevCount
		o.Mean = float32(in.Mean)
		o.RelTime2 = o.RelTime
		o.Max = float32(in.Max)
		o.Count = float32(in.Count)

		prevTime := in.Time
		prevCount = o.Count
		j++

		isLast := i == len(trimmed)-1
		needsGap := (isLast && !hasRightExtra) || (!isLast && trimmed[i+1].Time > prevTime+width)
		if needsGap {
			expTime := prevTime + width
			gm := &out[j]
			gm.RelTime = float32(expTime - epoch)
			gm.Min = float32(math.NaN())
			gm.PrevCount = prevCount
			gm.Mean = float32(math.NaN())
			gm.RelTime2 = gm.RelTime
			gm.Max = float32(math.NaN())
			gm.Count = 0

			// The point just emitted (index j-1) is isolated if it also
			// had a gap (or nothing) immediately preceding it.
			precededByGap := (j > 1 && out[j-2].Count == 0) || (j == 1 && !hasLeftExtra)
			if precededByGap {
				out[j-1].PrevCount *= -1
				out[j-1].Count *= -1
			}

			j++
			prevCount = 0
		}
	}

	out = out[:j]
	g.Populate(epoch, joinsPrev, joinsNext, generation, out)
}
