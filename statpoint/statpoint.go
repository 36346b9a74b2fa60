// Package statpoint defines the raw and GPU-packed record shapes that
// flow through the fragment cache: StatPoint is what the backend emits,
// PackedPoint is what a fragment stores and what a vertex buffer expects.
package statpoint

import (
	"encoding/binary"
	"math"
)

// StatPoint is one aggregation bucket emitted by the time-series backend.
// The backend guarantees points arrive in strictly ascending Time, aligned
// to the resolution's pointwidth.
type StatPoint struct {
	Time  int64 // nanoseconds, start of bucket
	Min   float64
	Mean  float64
	Max   float64
	Count uint64
}

// Stride is the fixed byte size of a packed point. Field order matters:
// it is bound directly to GPU vertex attribute offsets.
const Stride = 32

// Byte offsets of each PackedPoint field within its encoded form. These
// are the offsets a renderer's vertex attribute pointers bind to.
const (
	OffsetRelTime   = 0
	OffsetMin       = 4
	OffsetPrevCount = 8
	OffsetMean      = 12
	OffsetRelTime2  = 16
	OffsetMax       = 20
	OffsetCount     = 24
	OffsetPad       = 28
)

// PackedPoint is a fixed-stride, GPU-bound record. PrevCount and Count are
// sign-flipped together to mark an isolated point (drawn as a vertical
// line rather than as part of the triangle strip) — a deliberate
// memory-layout trick tied to the 32-byte stride, preserved for shader
// compatibility.
type PackedPoint struct {
	RelTime   float32 // time - fragment epoch
	Min       float32
	PrevCount float32 // count of the previous point; sign carries the isolated-point flag
	Mean      float32
	RelTime2  float32 // == RelTime; consumed by triangle-strip expansion
	Max       float32
	Count     float32 // sign carries the isolated-point flag, paired with PrevCount
	_         int32   // padding to a 32-byte stride
}

// MarshalBinary encodes p into its exact 32-byte little-endian wire/GPU
// layout.
func (p PackedPoint) MarshalBinary() []byte {
	buf := make([]byte, Stride)
	p.PutBinary(buf)
	return buf
}

// PutBinary writes p's 32-byte encoding into buf, which must have at
// least Stride bytes.
func (p PackedPoint) PutBinary(buf []byte) {
	binary.LittleEndian.PutUint32(buf[OffsetRelTime:], math.Float32bits(p.RelTime))
	binary.LittleEndian.PutUint32(buf[OffsetMin:], math.Float32bits(p.Min))
	binary.LittleEndian.PutUint32(buf[OffsetPrevCount:], math.Float32bits(p.PrevCount))
	binary.LittleEndian.PutUint32(buf[OffsetMean:], math.Float32bits(p.Mean))
	binary.LittleEndian.PutUint32(buf[OffsetRelTime2:], math.Float32bits(p.RelTime2))
	binary.LittleEndian.PutUint32(buf[OffsetMax:], math.Float32bits(p.Max))
	binary.LittleEndian.PutUint32(buf[OffsetCount:], math.Float32bits(p.Count))
	binary.LittleEndian.PutUint32(buf[OffsetPad:], 0)
}

// UnmarshalPackedPoint decodes a 32-byte buffer produced by MarshalBinary.
func UnmarshalPackedPoint(buf []byte) PackedPoint {
	return PackedPoint{
		RelTime:   math.Float32frombits(binary.LittleEndian.Uint32(buf[OffsetRelTime:])),
		Min:       math.Float32frombits(binary.LittleEndian.Uint32(buf[OffsetMin:])),
		PrevCount: math.Float32frombits(binary.LittleEndian.Uint32(buf[OffsetPrevCount:])),
		Mean:      math.Float32frombits(binary.LittleEndian.Uint32(buf[OffsetMean:])),
		RelTime2:  math.Float32frombits(binary.LittleEndian.Uint32(buf[OffsetRelTime2:])),
		Max:       math.Float32frombits(binary.LittleEndian.Uint32(buf[OffsetMax:])),
		Count:     math.Float32frombits(binary.LittleEndian.Uint32(buf[OffsetCount:])),
	}
}

// IsGap reports whether p is a synthetic gap marker (NaN value fields,
// zero count).
func (p PackedPoint) IsGap() bool {
	return math.IsNaN(float64(p.Mean))
}

// IsIsolated reports whether p was marked as an isolated point (sign
// bit smuggled into PrevCount/Count).
func (p PackedPoint) IsIsolated() bool {
	return math.Signbit(float64(p.Count)) && p.Count != 0
}
