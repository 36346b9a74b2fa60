package statcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/statcache/backend"
	"github.com/grafana/statcache/fragment"
	"github.com/grafana/statcache/statpoint"
)

type mockDS struct {
	mu     sync.Mutex
	calls  int
	starts []int64
	ends   []int64
	onCall func(start, end int64, pwe uint8, cb func([]statpoint.StatPoint, uint64))
}

func (m *mockDS) AlignedWindows(ctx context.Context, id uuid.UUID, start, end int64, pwe uint8, cb func([]statpoint.StatPoint, uint64)) {
	m.mu.Lock()
	m.calls++
	m.starts = append(m.starts, start)
	m.ends = append(m.ends, end)
	onCall := m.onCall
	m.mu.Unlock()
	onCall(start, end, pwe, cb)
}

func (m *mockDS) Brackets(ctx context.Context, ids []uuid.UUID, cb func(map[uuid.UUID]backend.Bracket)) {
	cb(nil)
}

func (m *mockDS) ChangedRanges(ctx context.Context, id uuid.UUID, fromGen, toGen uint64, pwe uint8, cb func([]backend.ChangedRange, uint64)) {
	cb(nil, backend.GenerationMax)
}

func (m *mockDS) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func requestSync(t *testing.T, c *Cache, id uuid.UUID, start, end int64, pwe uint8, hint int64) []*fragment.Fragment {
	t.Helper()
	done := make(chan []*fragment.Fragment, 1)
	c.RequestData(context.Background(), id, start, end, pwe, hint, func(frags []*fragment.Fragment) {
		done <- frags
	})
	select {
	case frags := <-done:
		return frags
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for RequestData callback")
		return nil
	}
}

func TestRequestDataRejectsInvertedRange(t *testing.T) {
	ds := &mockDS{onCall: func(start, end int64, pwe uint8, cb func([]statpoint.StatPoint, uint64)) { cb(nil, backend.GenerationMax) }}
	c := New(Config{}, ds, nil)

	frags := requestSync(t, c, uuid.New(), 100, 0, 3, 0)
	assert.Nil(t, frags)
	assert.Equal(t, 0, ds.callCount())
}

func TestRequestDataRejectsRangeEntirelyOutsideBackendBounds(t *testing.T) {
	ds := &mockDS{onCall: func(start, end int64, pwe uint8, cb func([]statpoint.StatPoint, uint64)) { cb(nil, backend.GenerationMax) }}
	c := New(Config{}, ds, nil)

	frags := requestSync(t, c, uuid.New(), backend.BTrDBMax+1, backend.BTrDBMax+100, 3, 0)
	assert.Nil(t, frags)
	assert.Equal(t, 0, ds.callCount())
}

func TestRequestDataClampsAPartiallyOutOfBoundsWindow(t *testing.T) {
	ds := &mockDS{onCall: func(start, end int64, pwe uint8, cb func([]statpoint.StatPoint, uint64)) {
		cb(nil, backend.GenerationMax)
	}}
	c := New(Config{}, ds, nil)

	frags := requestSync(t, c, uuid.New(), -5, 1000, 3, 0)
	require.Len(t, frags, 1)
	assert.Equal(t, backend.BTrDBMin, frags[0].Start, "the walk must use the clamped start, not the raw -5")
	assert.Equal(t, int64(1000), frags[0].End)

	require.Len(t, ds.starts, 1)
	assert.Equal(t, backend.BTrDBMin, ds.starts[0], "the backend must never see a time before BTrDBMin")
}

func TestRequestDataFillsGapAndReturnsPopulatedFragment(t *testing.T) {
	ds := &mockDS{onCall: func(start, end int64, pwe uint8, cb func([]statpoint.StatPoint, uint64)) {
		cb([]statpoint.StatPoint{
			{Time: 0, Min: 1, Mean: 2, Max: 3, Count: 5},
			{Time: 8, Min: 1, Mean: 2, Max: 3, Count: 6},
			{Time: 16, Min: 1, Mean: 2, Max: 3, Count: 7},
		}, 7)
	}}
	c := New(Config{}, ds, nil)

	frags := requestSync(t, c, uuid.New(), 0, 23, 3, 0)
	require.Len(t, frags, 1)
	assert.False(t, frags[0].IsPlaceholder())
	assert.Equal(t, uint64(7), frags[0].Generation)
	assert.Equal(t, backend.BTrDBMin, frags[0].Start, "the requested start 0 is clamped to BTrDBMin")
	assert.Equal(t, int64(23), frags[0].End)
	assert.Equal(t, 1, ds.callCount())
}

func TestRequestDataCoalescesOverlappingQueriesIntoOneFill(t *testing.T) {
	release := make(chan struct{})
	var storedCB func([]statpoint.StatPoint, uint64)
	ds := &mockDS{onCall: func(start, end int64, pwe uint8, cb func([]statpoint.StatPoint, uint64)) {
		storedCB = cb
		close(release)
	}}
	c := New(Config{}, ds, nil)
	id := uuid.New()

	doneA := make(chan []*fragment.Fragment, 1)
	c.RequestData(context.Background(), id, 0, 23, 3, 0, func(f []*fragment.Fragment) { doneA <- f })

	select {
	case <-release:
	case <-time.After(time.Second):
		t.Fatal("first request never reached the backend")
	}

	doneB := make(chan []*fragment.Fragment, 1)
	c.RequestData(context.Background(), id, 4, 20, 3, 0, func(f []*fragment.Fragment) { doneB <- f })

	assert.Equal(t, 1, ds.callCount(), "overlapping query must join the existing placeholder rather than issue its own fill")

	storedCB([]statpoint.StatPoint{{Time: 0, Min: 1, Mean: 1, Max: 1, Count: 1}, {Time: 8, Min: 1, Mean: 1, Max: 1, Count: 1}, {Time: 16, Min: 1, Mean: 1, Max: 1, Count: 1}}, 1)

	for _, ch := range []chan []*fragment.Fragment{doneA, doneB} {
		select {
		case frags := <-ch:
			require.Len(t, frags, 1)
			assert.False(t, frags[0].IsPlaceholder())
		case <-time.After(time.Second):
			t.Fatal("coalesced query callback never fired")
		}
	}
}

func TestRequestDataWidensGapTowardTheQueryEnd(t *testing.T) {
	ds := &mockDS{onCall: func(start, end int64, pwe uint8, cb func([]statpoint.StatPoint, uint64)) {
		cb(nil, backend.GenerationMax)
	}}
	c := New(Config{}, ds, nil)

	frags := requestSync(t, c, uuid.New(), 1000, 1010, 0, 100000)
	require.Len(t, frags, 1)
	assert.Equal(t, int64(1000), frags[0].Start)
	assert.Equal(t, int64(101000), frags[0].End, "widens toward the query end when the gap spans the whole request")
}

func TestRequestDataWidensGapTowardTheQueryStartWhenItDoesNotTouchTheEnd(t *testing.T) {
	ds := &mockDS{onCall: func(start, end int64, pwe uint8, cb func([]statpoint.StatPoint, uint64)) {
		cb(nil, backend.GenerationMax)
	}}
	c := New(Config{}, ds, nil)
	id := uuid.New()

	// Seed two populated neighbors at [1,100] (the request for [0,100] is
	// clamped to BTrDBMin) and [600,700]. A request for
	// [550,650] bumps into the [600,700] neighbor, so the gap actually
	// filled is [550,599]; widening pushes its left edge back to
	// 599 - hint = 399, which is still clear of the left neighbor's
	// end+1 = 101, so no clamp applies.
	requestSync(t, c, id, 0, 100, 0, 0)
	requestSync(t, c, id, 600, 700, 0, 0)

	frags := requestSync(t, c, id, 550, 650, 0, 200)
	require.Len(t, frags, 2, "the fill plus the pre-existing [600,700] neighbor it bumped into")
	assert.Equal(t, int64(399), frags[0].Start)
	assert.Equal(t, int64(599), frags[0].End)
	assert.Equal(t, int64(600), frags[1].Start)
	assert.Equal(t, int64(700), frags[1].End)
}

func TestRequestDataFillTimeoutSynthesizesEmptyCompletion(t *testing.T) {
	ds := &mockDS{onCall: func(start, end int64, pwe uint8, cb func([]statpoint.StatPoint, uint64)) {
		// Never calls back: simulates a backend that drops the request.
	}}
	c := New(Config{FillTimeout: 10 * time.Millisecond}, ds, nil)

	frags := requestSync(t, c, uuid.New(), 0, 100, 3, 0)
	require.Len(t, frags, 1)
	assert.False(t, frags[0].IsPlaceholder())
	assert.Equal(t, backend.GenerationMax, frags[0].Generation)
}

func TestBracketsAndChangedRangesDelegateToTheDataSource(t *testing.T) {
	ds := &mockDS{}
	c := New(Config{}, ds, nil)

	var gotBrackets map[uuid.UUID]backend.Bracket
	c.Brackets(context.Background(), []uuid.UUID{uuid.New()}, func(m map[uuid.UUID]backend.Bracket) { gotBrackets = m })
	assert.Nil(t, gotBrackets)

	var gotRanges []backend.ChangedRange
	var gotGen uint64
	c.ChangedRanges(context.Background(), uuid.New(), 0, 1, 3, func(r []backend.ChangedRange, g uint64) {
		gotRanges, gotGen = r, g
	})
	assert.Nil(t, gotRanges)
	assert.Equal(t, backend.GenerationMax, gotGen)
}
