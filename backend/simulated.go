package backend

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/grafana/statcache/statpoint"
)

// Simulated is a deterministic synthetic stat-point generator used by
// tests and the demo CLI in place of a real time-series backend. It
// reproduces the synthetic waveform (a sum of three cosines) and the
// "only every so many raw samples actually exist" sparsity pattern of
// the reference simulator this project is modeled on, including its
// asynchronous-completion behavior: every callback fires on a timer,
// never synchronously.
type Simulated struct {
	// Delay is how long AlignedWindows/Brackets/ChangedRanges wait
	// before invoking their callback. Defaults to 0 (fire on the next
	// event-loop turn via time.AfterFunc(0, ...)) when unset.
	Delay time.Duration

	// Generation is returned for every non-empty AlignedWindows
	// response. Defaults to 1 when zero.
	Generation uint64
}

const simPeriod = 128 // raw-sample period, in nanoseconds, before resolution aggregation

// sampleExists reproduces the reference simulator's sparsity rule:
// only samples whose position within a 128ns period falls in [7,11]
// actually exist.
func sampleExists(t int64) bool {
	rem := t & 0x7F
	return rem >= 7 && rem <= 11
}

func sampleValue(t int64) float64 {
	const pi = math.Pi
	tf := float64(t)
	return math.Cos(tf*pi/100) + 0.5*math.Cos(tf*pi/63) + 0.3*math.Cos(tf*pi/7)
}

// AlignedWindows implements DataSource. It requests every bucket whose
// midpoint lies in [start, end], plus one extra bucket on each side —
// the widening BTrDB-style backends perform so that a fragment can draw
// a visual connector into its neighbors. start/end are the fragment's
// own (unwidened) inclusive bounds.
func (s *Simulated) AlignedWindows(ctx context.Context, id uuid.UUID, start, end int64, pwe uint8, cb func([]statpoint.StatPoint, uint64)) {
	s.schedule(func() {
		start, end, ok := ClampWindow(start, end)
		if !ok {
			cb(nil, GenerationMax)
			return
		}

		width := int64(1) << pwe
		halfwidth := width >> 1
		mask := ^(width - 1)

		qstart := (start - halfwidth - 1) & mask
		qend := ((end - halfwidth) & mask) + width
		if qend < qstart {
			cb(nil, GenerationMax)
			return
		}

		numBuckets := int((qend-qstart)>>pwe) + 1
		start, end = qstart, qend
		points := make([]statpoint.StatPoint, 0, numBuckets)

		for i := 0; i < numBuckets; i++ {
			bucketStart := start + int64(i)*width
			min, max := math.Inf(1), math.Inf(-1)
			var mean float64
			var count uint64

			for j := int64(0); j < width; j++ {
				t := bucketStart + j
				if !sampleExists(t) {
					continue
				}
				v := sampleValue(t)
				if v < min {
					min = v
				}
				if v > max {
					max = v
				}
				mean += v
				count++
			}
			if count == 0 {
				continue
			}
			mean /= float64(count)
			points = append(points, statpoint.StatPoint{
				Time: bucketStart, Min: min, Mean: mean, Max: max, Count: count,
			})
		}

		if len(points) == 0 {
			cb(nil, GenerationMax)
			return
		}

		generation := s.Generation
		if generation == 0 {
			generation = 1
		}
		cb(points, generation)
	})
}

// Brackets implements DataSource. The simulated series has data
// throughout the accepted time range, so every uuid is reported with the
// full bounds [BTrDBMin, BTrDBMax]; no window is scanned.
func (s *Simulated) Brackets(ctx context.Context, ids []uuid.UUID, cb func(map[uuid.UUID]Bracket)) {
	s.schedule(func() {
		out := make(map[uuid.UUID]Bracket, len(ids))
		for _, id := range ids {
			out[id] = Bracket{Lo: BTrDBMin, Hi: BTrDBMax}
		}
		cb(out)
	})
}

// ChangedRanges implements DataSource. The simulated backend never
// changes, so it always reports no changed ranges.
func (s *Simulated) ChangedRanges(ctx context.Context, id uuid.UUID, fromGen, toGen uint64, pwe uint8, cb func([]ChangedRange, uint64)) {
	s.schedule(func() {
		cb(nil, GenerationMax)
	})
}

func (s *Simulated) schedule(fn func()) {
	time.AfterFunc(s.Delay, fn)
}
