package axis

import (
	"fmt"
	"time"

	"github.com/jinzhu/now"
)

// TimeMaxTicks bounds the candidate search in Time.Ticks: the smallest
// candidate interval is chosen such that span/interval, in integer
// nanosecond division, does not exceed this, so the exact ratio stays
// below TimeMaxTicks+1.
const TimeMaxTicks = 7

// Nanosecond-denominated duration constants, matching the convention
// that pointwidths and timestamps are expressed in nanoseconds
// throughout this project. Month and year are calendar-approximate —
// used only to pick which *scale* of interval applies; the actual tick
// placement for month/year scales uses calendar arithmetic, not
// fixed-width multiplication.
const (
	Nanosecond = int64(1)
	Millisecond = 1_000_000 * Nanosecond
	Second      = 1000 * Millisecond
	Minute      = 60 * Second
	Hour        = 60 * Minute
	Day         = 24 * Hour
	Year        = int64(365.24*24*3600*1e9 + 0.5)
	Month       = Year / 12
)

type timescale int

const (
	scaleNanosecond timescale = iota
	scaleMillisecond
	scaleSecond
	scaleMinute
	scaleHour
	scaleDay
	scaleMonth
	scaleYear
)

type candidate struct {
	scale    timescale
	n        int64 // interval in units of `scale`
	approxNs int64 // approximate width in nanoseconds, for candidate selection only
}

// candidates enumerates, in ascending width order, every tick spacing
// this project recognizes, table-driven per scale.
var candidates = buildCandidates()

func buildCandidates() []candidate {
	var out []candidate
	add := func(scale timescale, unit int64, ns []int64) {
		for _, n := range ns {
			out = append(out, candidate{scale: scale, n: n, approxNs: n * unit})
		}
	}
	add(scaleNanosecond, 1, []int64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 20000, 50000, 100000, 200000, 500000})
	add(scaleMillisecond, Millisecond, []int64{1, 2, 5, 10, 20, 50, 100, 200, 500})
	add(scaleSecond, Second, []int64{1, 2, 5, 10, 20, 30})
	add(scaleMinute, Minute, []int64{1, 2, 5, 10, 20, 30})
	add(scaleHour, Hour, []int64{1, 2, 3, 4, 6, 12})
	add(scaleDay, Day, []int64{1, 2, 4, 7, 14})
	add(scaleMonth, Month, []int64{1, 2, 3, 6})
	add(scaleYear, Year, []int64{1, 2, 5, 10, 20, 50, 100, 200})
	return out
}

// TimeTick is one labeled position on a time axis.
type TimeTick struct {
	Value int64 // nanoseconds
	Label string
}

// Time is a multi-scale time axis over [Lo, Hi] nanoseconds, labeled in
// Location.
type Time struct {
	Lo, Hi   int64
	Location *time.Location
}

func (a Time) loc() *time.Location {
	if a.Location == nil {
		return time.UTC
	}
	return a.Location
}

// Map projects a time onto [0, 1] of the axis domain.
func (a Time) Map(t int64) float64 {
	return float64(t-a.Lo) / float64(a.Hi-a.Lo)
}

// Ticks selects the smallest candidate interval such that span/interval
// <= TimeMaxTicks, then places ticks at boundaries aligned in the axis's
// Location: calendar arithmetic for month and year spacings, fixed-width
// steps aligned to the Location's UTC offset at Lo for shorter spacings.
func (a Time) Ticks() []TimeTick {
	if a.Hi <= a.Lo {
		return nil
	}
	span := a.Hi - a.Lo

	chosen := candidates[len(candidates)-1]
	for _, c := range candidates {
		if span/c.approxNs <= TimeMaxTicks {
			chosen = c
			break
		}
	}

	switch chosen.scale {
	case scaleMonth:
		return a.calendarTicks(chosen.n, 0, monthLabel)
	case scaleYear:
		return a.calendarTicks(0, chosen.n, yearLabel)
	default:
		return a.fixedWidthTicks(chosen.approxNs)
	}
}

func (a Time) fixedWidthTicks(interval int64) []TimeTick {
	// Shift into local time so that, e.g., day ticks land on local
	// midnight; the offset in effect at Lo is used for the whole span.
	_, offsetSec := time.Unix(0, a.Lo).In(a.loc()).Zone()
	offset := int64(offsetSec) * Second

	var ticks []TimeTick
	t0 := ceilDiv(a.Lo+offset, interval)*interval - offset
	for t := t0; t < a.Hi; t += interval {
		ticks = append(ticks, TimeTick{Value: t, Label: fixedWidthLabel(t, interval, a.loc())})
	}
	return ticks
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && a > 0 {
		q++
	}
	return q
}

// calendarTicks walks month- or year-aligned boundaries (whichever of
// months/years is nonzero) using calendar arithmetic rather than
// fixed-width nanosecond steps, so months of different lengths and leap
// years are handled correctly.
func (a Time) calendarTicks(months, years int64, label func(time.Time) string) []TimeTick {
	loc := a.loc()
	cfg := &now.Config{TimeLocation: loc, WeekStartDay: time.Sunday}

	start := time.Unix(0, a.Lo).In(loc)
	var cur time.Time
	if months != 0 {
		cur = cfg.With(start).BeginningOfMonth()
	} else {
		cur = cfg.With(start).BeginningOfYear()
	}

	var ticks []TimeTick
	end := time.Unix(0, a.Hi).In(loc)
	for !cur.After(end) && cur.UnixNano() < a.Hi {
		if cur.UnixNano() >= a.Lo {
			ticks = append(ticks, TimeTick{Value: cur.UnixNano(), Label: label(cur)})
		}
		if months != 0 {
			cur = cur.AddDate(0, int(months), 0)
		} else {
			cur = cur.AddDate(int(years), 0, 0)
		}
	}
	return ticks
}

func monthLabel(t time.Time) string {
	return t.Format("2006-01")
}

func yearLabel(t time.Time) string {
	return t.Format("2006")
}

// fixedWidthLabel picks the label format by the largest unit that
// changes across a tick spacing of the given interval.
func fixedWidthLabel(t int64, interval int64, loc *time.Location) string {
	tm := time.Unix(0, t).In(loc)
	switch {
	case interval < Second:
		return fmt.Sprintf("%s.%09d", tm.Format("15:04:05"), t%Second)
	case interval < Day:
		return tm.Format("15:04:05")
	default:
		return tm.Format("2006-01-02")
	}
}
