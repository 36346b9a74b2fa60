// Package statcache implements a per-series, per-resolution cache of
// plotted statistical points with coalesced asynchronous backend fills.
// A single Cache serves any number of concurrent RequestData callers;
// overlapping queries against a missing range share one backend fill
// rather than each issuing their own.
package statcache

import (
	"context"
	"encoding/binary"
	"strconv"
	"sync"
	"time"

	farm "github.com/dgryski/go-farm"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/grafana/statcache/backend"
	"github.com/grafana/statcache/fragment"
	"github.com/grafana/statcache/interval"
	"github.com/grafana/statcache/statpoint"
)

const metricShards = 16

// seriesKey identifies one (series, resolution) interval index.
type seriesKey struct {
	uuid uuid.UUID
	pwe  uint8
}

// fragKey is a weak, value-typed identity for a fragment in the loading
// table: series, resolution and end-time together are unique among
// disjoint fragments of one index, so this avoids keying a map off a
// *fragment.Fragment pointer that could otherwise dangle.
type fragKey struct {
	UUID uuid.UUID
	Pwe  uint8
	End  int64
}

func fragKeyOf(id uuid.UUID, g *fragment.Fragment) fragKey {
	return fragKey{UUID: id, Pwe: g.Pwe, End: g.End}
}

func shardLabel(k fragKey) string {
	buf := make([]byte, 0, 24)
	buf = append(buf, k.UUID[:]...)
	buf = append(buf, byte(k.Pwe))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(k.End))
	h := farm.Fingerprint64(buf)
	return strconv.Itoa(int(h % metricShards))
}

// outstandingQuery tracks one in-flight RequestData call: the fragments
// it has collected so far (in index order) and how many of those are
// still placeholders it is waiting on.
type outstandingQuery struct {
	pending   int
	collected []*fragment.Fragment
	callback  func([]*fragment.Fragment)
}

// Cache is the query coordinator: a per-(uuid, pwe) interval index of
// fragments, a table of outstanding queries, and a loading multimap
// recording which queries are awaiting which in-flight placeholder.
//
// A Cache is safe for concurrent use. Internal bookkeeping — gap
// detection, placeholder insertion, completion dispatch — is always
// performed under a single mutex, so from the cache's own point of view
// it behaves like a single-threaded event loop: no goroutine ever
// observes an index or outstanding-query table mid-mutation. DataSource
// calls and user callbacks are made without that mutex held.
type Cache struct {
	cfg    Config
	ds     backend.DataSource
	logger log.Logger

	mu      sync.Mutex
	indices map[seriesKey]*interval.Index
	queries map[uint64]*outstandingQuery
	loading map[fragKey]map[uint64]struct{}
	nextQID uint64
}

// New constructs a Cache backed by ds. A nil logger is replaced with a
// no-op logger.
func New(cfg Config, ds backend.DataSource, logger log.Logger) *Cache {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Cache{
		cfg:     cfg,
		ds:      ds,
		logger:  logger,
		indices: make(map[seriesKey]*interval.Index),
		queries: make(map[uint64]*outstandingQuery),
		loading: make(map[fragKey]map[uint64]struct{}),
	}
}

// pendingFill is a gap the locked walk in RequestData decided to fill;
// the actual DataSource call happens after the lock is released.
type pendingFill struct {
	g, prev, next *fragment.Fragment
}

// RequestData resolves [start, end] at resolution pwe for series uuid
// into the ordered, gapless, non-overlapping list of fragments that
// cover it, invoking callback exactly once with that list. callback is
// always invoked asynchronously, even when every byte of the range is
// already cached, so callers never need to special-case a synchronous
// return.
//
// hint is a minimum backend-request width: when a gap narrower than
// hint touches either end of [start, end], the backend request is
// widened toward that end (but never past an already-indexed
// neighbor). Pass 0 to disable widening.
//
// ctx is threaded through to the DataSource calls this request issues,
// so cancelling it can stop *those* calls from updating a fragment
// sooner, but it never frees a placeholder still awaited by another
// query — other awaiters are still serviced by whichever DataSource
// call (if any) eventually completes, or by Config.FillTimeout.
func (c *Cache) RequestData(ctx context.Context, id uuid.UUID, start, end int64, pwe uint8, hint int64, callback func([]*fragment.Fragment)) {
	if callback == nil {
		panic("statcache: RequestData called with a nil callback")
	}
	metricRequestsTotal.Inc()

	if end < start || pwe >= fragment.PWEMax {
		go callback(nil)
		return
	}
	clampedStart, clampedEnd, ok := backend.ClampWindow(start, end)
	if !ok {
		go callback(nil)
		return
	}
	start, end = clampedStart, clampedEnd

	sk := seriesKey{uuid: id, pwe: pwe}

	c.mu.Lock()

	idx := c.indices[sk]
	if idx == nil {
		idx = interval.New()
		c.indices[sk] = idx
	}

	qid := c.nextQID
	c.nextQID++
	q := &outstandingQuery{callback: callback}
	c.queries[qid] = q
	metricPendingQueries.Inc()

	var prevFrag *fragment.Fragment
	if pos0 := idx.LowerBoundPos(start); pos0 > 0 {
		prevFrag = idx.At(pos0 - 1)
	}

	var fills []pendingFill
	nextExp := start
	for nextExp <= end {
		e := idx.At(idx.LowerBoundPos(nextExp))

		if e != nil && e.Start <= nextExp {
			if e.IsPlaceholder() {
				q.pending++
				c.addLoading(id, e, qid)
			} else {
				metricCacheHitsTotal.Inc()
			}
			q.collected = append(q.collected, e)
			nextExp = e.End + 1
			prevFrag = e
			continue
		}

		fillUntil := end
		if e != nil && e.Start-1 < fillUntil {
			fillUntil = e.Start - 1
		}
		gapStart, gapEnd := nextExp, fillUntil

		if hint > 0 && gapEnd-gapStart+1 < hint {
			if fillUntil == end {
				widened := gapStart + hint
				if e != nil && widened >= e.Start {
					widened = e.Start - 1
				}
				gapEnd = widened
			} else if gapStart == start {
				widened := gapEnd - hint
				if prevFrag != nil && widened < prevFrag.End+1 {
					widened = prevFrag.End + 1
				}
				gapStart = widened
			}
		}

		g := fragment.NewPlaceholder(gapStart, gapEnd, pwe)
		if err := idx.Insert(g); err != nil {
			panic(errors.Wrap(err, "statcache: fragment index corrupted").Error())
		}

		q.collected = append(q.collected, g)
		q.pending++
		c.addLoading(id, g, qid)
		fills = append(fills, pendingFill{g: g, prev: prevFrag, next: e})

		nextExp = gapEnd + 1
		prevFrag = g
	}

	cb, collected, fire := c.settleLocked(qid)
	c.mu.Unlock()

	for _, f := range fills {
		c.dispatchFill(ctx, id, pwe, f.g, f.prev, f.next)
	}
	if fire {
		go cb(collected)
	}
}

// addLoading records that qid awaits g's fill. c.mu must be held.
func (c *Cache) addLoading(id uuid.UUID, g *fragment.Fragment, qid uint64) {
	key := fragKeyOf(id, g)
	set := c.loading[key]
	if set == nil {
		set = make(map[uint64]struct{})
		c.loading[key] = set
	}
	set[qid] = struct{}{}
}

// settleLocked removes qid from the outstanding table and returns its
// callback/collected fragments if it has no pending fills left. c.mu
// must be held; the caller must invoke the returned callback (if fire
// is true) only after releasing the lock.
func (c *Cache) settleLocked(qid uint64) (cb func([]*fragment.Fragment), collected []*fragment.Fragment, fire bool) {
	q, ok := c.queries[qid]
	if !ok || q.pending > 0 {
		return nil, nil, false
	}
	delete(c.queries, qid)
	metricPendingQueries.Dec()
	return q.callback, q.collected, true
}

// dispatchFill issues the backend request that will populate placeholder
// g, plus an optional fill-timeout timer per Config.FillTimeout. Exactly
// one of {timeout, backend response} is allowed to actually populate g:
// settled guards that race, since a bare timer.Stop() only reports
// whether the timer function was cancelled in time, not whether it had
// already started running concurrently with a near-simultaneous real
// response.
func (c *Cache) dispatchFill(ctx context.Context, id uuid.UUID, pwe uint8, g, prev, next *fragment.Fragment) {
	started := time.Now()
	var settled atomic.Bool

	var timer *time.Timer
	if c.cfg.FillTimeout > 0 {
		timer = time.AfterFunc(c.cfg.FillTimeout, func() {
			if !settled.CAS(false, true) {
				return
			}
			level.Warn(c.logger).Log("msg", "fragment fill timed out", "uuid", id, "pwe", pwe, "start", g.Start, "end", g.End)
			c.completeFill(id, g, prev, next, nil, backend.GenerationMax, started, "timeout")
		})
	}

	c.ds.AlignedWindows(ctx, id, g.Start, g.End, pwe, func(points []statpoint.StatPoint, generation uint64) {
		if timer != nil {
			timer.Stop()
		}
		if !settled.CAS(false, true) {
			// The timeout already claimed this fill.
			return
		}
		outcome := "ok"
		if generation == backend.GenerationMax {
			outcome = "empty"
		}
		c.completeFill(id, g, prev, next, points, generation, started, outcome)
	})
}

// completeFill runs the Fragment Builder against a backend response (or
// timeout) for placeholder g, mutating it in place, then wakes every
// query awaiting it whose last pending fill was g.
func (c *Cache) completeFill(id uuid.UUID, g, prev, next *fragment.Fragment, points []statpoint.StatPoint, generation uint64, started time.Time, outcome string) {
	key := fragKeyOf(id, g)
	metricFillsTotal.WithLabelValues(outcome, shardLabel(key)).Inc()
	metricFillDuration.Observe(time.Since(started).Seconds())

	c.mu.Lock()
	fragment.Build(g, points, prev, next, generation)

	qids := c.loading[key]
	delete(c.loading, key)

	type completion struct {
		cb        func([]*fragment.Fragment)
		collected []*fragment.Fragment
	}
	var toFire []completion
	for qid := range qids {
		q, ok := c.queries[qid]
		if !ok {
			continue
		}
		q.pending--
		if q.pending == 0 {
			delete(c.queries, qid)
			metricPendingQueries.Dec()
			toFire = append(toFire, completion{cb: q.callback, collected: q.collected})
		}
	}
	c.mu.Unlock()

	for _, f := range toFire {
		go f.cb(f.collected)
	}
}

// Brackets forwards to the underlying DataSource, returning each uuid's
// earliest/latest stored point time. Used by callers implementing
// autoscaling over a series.Domain.
func (c *Cache) Brackets(ctx context.Context, ids []uuid.UUID, cb func(map[uuid.UUID]backend.Bracket)) {
	c.ds.Brackets(ctx, ids, cb)
}

// ChangedRanges forwards to the underlying DataSource.
func (c *Cache) ChangedRanges(ctx context.Context, id uuid.UUID, fromGen, toGen uint64, pwe uint8, cb func([]backend.ChangedRange, uint64)) {
	c.ds.ChangedRanges(ctx, id, fromGen, toGen, pwe, cb)
}
