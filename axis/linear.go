// Package axis implements the tick-spacing selectors shared by the
// linear value axis and the multi-scale time axis, plus the linear
// domain map/unmap used to place values on screen.
package axis

import (
	"fmt"
	"math"
)

// MinTicks and MaxTicks bound the number of tick intervals Linear.Ticks
// divides the span into; it emits between MinTicks and MaxTicks+1 ticks.
const (
	MinTicks = 4
	MaxTicks = 2 * MinTicks
)

// Tick is one labeled position on a linear axis.
type Tick struct {
	Value float64
	Label string
}

// Linear is a linear numeric axis over [Lo, Hi].
type Linear struct {
	Lo, Hi float64
}

// Map projects x in [Lo, Hi] to [0, 1].
func (a Linear) Map(x float64) float64 {
	return (x - a.Lo) / (a.Hi - a.Lo)
}

// Unmap is the inverse of Map.
func (a Linear) Unmap(y float64) float64 {
	return a.Lo + y*(a.Hi-a.Lo)
}

// Ticks chooses "nice" tick positions across [Lo, Hi], returning between
// MinTicks and 2*MinTicks+1 ticks (inclusive) for any finite Lo < Hi.
func (a Linear) Ticks() []Tick {
	if !(a.Lo < a.Hi) || math.IsInf(a.Lo, 0) || math.IsInf(a.Hi, 0) {
		return nil
	}

	precision := round(math.Log10(a.Hi-a.Lo) - 1)
	delta := math.Pow(10, float64(precision))

	numTicks := (a.Hi - a.Lo) / delta
	for numTicks > MaxTicks {
		delta *= 2
		numTicks /= 2
	}
	for numTicks < MinTicks {
		delta /= 2
		numTicks *= 2
		precision++
	}

	low := math.Ceil(a.Lo/delta) * delta

	var ticks []Tick
	labelPrecision := -precision
	if labelPrecision >= 0 {
		for low < a.Hi+delta/10 {
			ticks = append(ticks, Tick{Value: low, Label: formatSci(low, labelPrecision)})
			low += delta
		}
	} else {
		power := math.Pow(10, float64(labelPrecision))
		for low < a.Hi+delta/10 {
			rounded := math.Round(low/power) * power
			ticks = append(ticks, Tick{Value: low, Label: formatSci(rounded, 0)})
			low += delta
		}
	}

	return ticks
}

func round(x float64) int {
	return int(math.Floor(x + 0.5))
}

func formatSci(v float64, precision int) string {
	return fmt.Sprintf("%.*e", precision, v)
}
