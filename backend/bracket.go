package backend

import "sync"

// BracketWaiter coordinates two independent asynchronous point queries —
// conceptually "earliest stored point" and "latest stored point" — into
// a single Bracket callback that fires exactly once, after both sides
// have reported. A concrete DataSource backed by a real store issues two
// underlying requests to compute a Bracket (there is no single "give me
// the extrema" primitive); BracketWaiter is the awaiting-both ->
// awaiting-one -> complete state machine that collates them.
//
// Left and Right must each be called exactly once.
type BracketWaiter struct {
	mu   sync.Mutex
	b    Bracket
	got  [2]bool
	cb   func(Bracket)
	done bool
}

const (
	sideLeft  = 0
	sideRight = 1
)

// NewBracketWaiter returns a waiter that invokes cb once both Left and
// Right have been reported.
func NewBracketWaiter(cb func(Bracket)) *BracketWaiter {
	return &BracketWaiter{cb: cb}
}

// Left reports the earliest stored point time.
func (w *BracketWaiter) Left(t int64) {
	w.report(sideLeft, t, &w.b.Lo)
}

// Right reports the latest stored point time.
func (w *BracketWaiter) Right(t int64) {
	w.report(sideRight, t, &w.b.Hi)
}

func (w *BracketWaiter) report(side int, t int64, field *int64) {
	w.mu.Lock()
	*field = t
	w.got[side] = true
	fire := w.got[sideLeft] && w.got[sideRight] && !w.done
	if fire {
		w.done = true
	}
	b := w.b
	w.mu.Unlock()

	if fire {
		w.cb(b)
	}
}
