// Package interval implements the per-(series, resolution) fragment
// index: an ordered collection of disjoint, time-sorted fragments with
// lookup-by-range. Go has no ordered-map type in its standard library or
// anywhere in this project's dependency tree, so the index is a sorted
// slice searched with sort.Search — the same technique the storage
// engine this project is modeled on uses for its own sorted record
// lookups.
package interval

import (
	"fmt"
	"sort"

	"github.com/grafana/statcache/fragment"
)

// Index is an ordered map from fragment end-time to fragment, for a
// single (series, resolution) pair. It is not safe for concurrent use;
// callers serialize access (the cache coordinator does this with its
// own mutex).
type Index struct {
	// entries is sorted ascending by Fragment.End. Fragments are
	// pairwise disjoint in their [Start, End] intervals.
	entries []*fragment.Fragment
}

// New returns an empty Index.
func New() *Index {
	return &Index{}
}

// Len returns the number of fragments currently indexed.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// lowerBoundPos returns the position of the first entry whose End is
// >= t, or len(entries) if none qualifies.
func (idx *Index) lowerBoundPos(t int64) int {
	return sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].End >= t
	})
}

// LowerBound returns the fragment with the smallest End >= t, or nil if
// every fragment ends before t.
func (idx *Index) LowerBound(t int64) *fragment.Fragment {
	i := idx.lowerBoundPos(t)
	if i == len(idx.entries) {
		return nil
	}
	return idx.entries[i]
}

// LowerBoundPos returns the slice position of the first entry whose End
// is >= t (possibly Len()). Exposed alongside At so the
// coordinator can walk the index manually, inserting gap-filling
// placeholders between visited positions.
func (idx *Index) LowerBoundPos(t int64) int {
	return idx.lowerBoundPos(t)
}

// At returns the fragment at slice position i, or nil if i is out of
// range.
func (idx *Index) At(i int) *fragment.Fragment {
	if i < 0 || i >= len(idx.entries) {
		return nil
	}
	return idx.entries[i]
}

// Insert adds f to the index. f must not overlap any existing fragment;
// violating this is a programming error in the caller (the coordinator
// only inserts for ranges it has already proven empty), so Insert
// returns an error rather than silently corrupting the index, and the
// caller is expected to treat that error as fatal.
func (idx *Index) Insert(f *fragment.Fragment) error {
	i := idx.lowerBoundPos(f.Start)
	if i < len(idx.entries) && idx.entries[i].Start <= f.End {
		return fmt.Errorf("interval: insert [%d,%d] overlaps existing fragment [%d,%d]",
			f.Start, f.End, idx.entries[i].Start, idx.entries[i].End)
	}
	if i > 0 && idx.entries[i-1].End >= f.Start {
		return fmt.Errorf("interval: insert [%d,%d] overlaps existing fragment [%d,%d]",
			f.Start, f.End, idx.entries[i-1].Start, idx.entries[i-1].End)
	}

	idx.entries = append(idx.entries, nil)
	copy(idx.entries[i+1:], idx.entries[i:])
	idx.entries[i] = f
	return nil
}

// IterateForwardFrom calls visit for every fragment starting from the
// first whose End is >= t, in ascending order, until visit returns
// false or the index is exhausted.
func (idx *Index) IterateForwardFrom(t int64, visit func(f *fragment.Fragment) bool) {
	for i := idx.lowerBoundPos(t); i < len(idx.entries); i++ {
		if !visit(idx.entries[i]) {
			return
		}
	}
}
