// Package series holds the small glue types surrounding the cache: a
// series descriptor with its render color and axis binding, and a
// scrollable/zoomable time domain.
package series

import (
	"github.com/google/uuid"
)

// Color is a render color in [0, 1] per channel.
type Color struct {
	R, G, B float32
}

// Series describes one plotted time series: its identity, render
// color, and which value axis it is bound to.
type Series struct {
	UUID     uuid.UUID
	Color    Color
	AxisID   uint64
	Selected bool
}

// NewSeries returns a Series with a default color and no axis
// assigned.
func NewSeries(id uuid.UUID) *Series {
	return &Series{UUID: id, Color: Color{R: 0, G: 0, B: 1}}
}

// Domain is a scrollable, zoomable time range, in nanoseconds.
type Domain struct {
	Lo, Hi int64
}

// Scroll shifts the domain by delta nanoseconds.
func (d Domain) Scroll(delta int64) Domain {
	return Domain{Lo: d.Lo + delta, Hi: d.Hi + delta}
}

// Zoom scales the domain around pivot by factor (factor < 1 zooms in,
// factor > 1 zooms out).
func (d Domain) Zoom(factor float64, pivot int64) Domain {
	lo := pivot + int64(float64(d.Lo-pivot)*factor)
	hi := pivot + int64(float64(d.Hi-pivot)*factor)
	return Domain{Lo: lo, Hi: hi}
}

// Width returns Hi - Lo.
func (d Domain) Width() int64 {
	return d.Hi - d.Lo
}
