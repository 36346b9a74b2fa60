// Package backend defines the uniform asynchronous interface the cache
// uses to fetch stat points from a time-series store, the wire shapes a
// concrete transport exchanges, and a deterministic simulated backend
// used by tests and the demo CLI. The concrete message-broker transport
// itself is out of scope; this package specifies only the request/
// response contract.
package backend

import (
	"context"

	"github.com/google/uuid"

	"github.com/grafana/statcache/statpoint"
)

// GenerationMax is the sentinel generation meaning "no valid data /
// empty response".
const GenerationMax = ^uint64(0)

// BTrDBMin and BTrDBMax bound the times the backend accepts. Requests
// outside this range must be clamped; fully-outside requests must
// short-circuit to an empty callback.
const (
	BTrDBMin = int64(1)
	BTrDBMax = int64((48 << 56) - 1)
)

// Bracket is the earliest/latest stored time for a series, used for
// autoscaling.
type Bracket struct {
	Lo, Hi int64
}

// ChangedRange is a time interval where a series changed between two
// generations.
type ChangedRange struct {
	Generation uint64
	Start, End int64
}

// DataSource is the uniform async interface the cache coordinator uses
// to fetch data. Every operation must invoke its callback exactly once,
// from any goroutine; the cache coordinator does its own locking around
// each callback, so implementations need not marshal completions back to
// a particular goroutine themselves.
type DataSource interface {
	// AlignedWindows returns stat points at resolution pwe in
	// [start, end], plus up to one extra point on each side (see
	// fragment.Build for how those edge points are consumed).
	// generation == GenerationMax means "no data".
	AlignedWindows(ctx context.Context, id uuid.UUID, start, end int64, pwe uint8, cb func(points []statpoint.StatPoint, generation uint64))

	// Brackets returns, per uuid, the earliest and latest stored point
	// time.
	Brackets(ctx context.Context, ids []uuid.UUID, cb func(map[uuid.UUID]Bracket))

	// ChangedRanges returns intervals where the series changed between
	// two generations.
	ChangedRanges(ctx context.Context, id uuid.UUID, fromGen, toGen uint64, pwe uint8, cb func(ranges []ChangedRange, generation uint64))
}

// ClampWindow implements the backend's time-bounds policy: a window
// entirely outside [BTrDBMin, BTrDBMax] is reported via ok == false (the
// caller must short-circuit to an empty result without contacting the
// backend); otherwise the window is clamped to the accepted bounds.
func ClampWindow(start, end int64) (clampedStart, clampedEnd int64, ok bool) {
	if end < BTrDBMin || start > BTrDBMax {
		return 0, 0, false
	}
	if start < BTrDBMin {
		start = BTrDBMin
	}
	if end > BTrDBMax {
		end = BTrDBMax
	}
	return start, end, true
}
