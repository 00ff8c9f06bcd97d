// Package ds provides the generic containers backing the timeline engine:
// a sparse point-in-time log, an observable insertion-ordered collection and
// an ordered set.
package ds

import (
	"sort"
	"time"
)

// PointInTime is a sparse, time-keyed log of a single running value.
// Keys must be inserted in strictly increasing order; insertion order defines
// the log's sort order. It answers "latest value" in O(1) and "value at t"
// in O(log n).
//
// Violating key monotonicity is a programming error, not a runtime
// condition; Insert reports it so the caller can route it through its
// invariant handling.
type PointInTime[T any] struct {
	keys []time.Time
	vals []T
}

// Entry is one (key, value) sample of a PointInTime log.
type Entry[T any] struct {
	Key   time.Time
	Value T
}

// Insert appends value at key t. It reports false (and records nothing)
// when t is not strictly later than the latest existing key.
func (l *PointInTime[T]) Insert(t time.Time, value T) bool {
	if n := len(l.keys); n > 0 && !l.keys[n-1].Before(t) {
		return false
	}
	l.keys = append(l.keys, t)
	l.vals = append(l.vals, value)
	return true
}

// Latest returns the value at the greatest key.
func (l *PointInTime[T]) Latest() (v T, ok bool) {
	if len(l.vals) == 0 {
		return v, false
	}
	return l.vals[len(l.vals)-1], true
}

// LatestKey returns the greatest key.
func (l *PointInTime[T]) LatestKey() (time.Time, bool) {
	if len(l.keys) == 0 {
		return time.Time{}, false
	}
	return l.keys[len(l.keys)-1], true
}

// At returns the value at the greatest key ≤ t, or ok=false when the log is
// empty or t precedes all keys.
func (l *PointInTime[T]) At(t time.Time) (v T, ok bool) {
	// first index with key > t
	i := sort.Search(len(l.keys), func(i int) bool { return l.keys[i].After(t) })
	if i == 0 {
		return v, false
	}
	return l.vals[i-1], true
}

// Between returns all entries with from ≤ key ≤ to, in key order.
func (l *PointInTime[T]) Between(from, to time.Time) []Entry[T] {
	lo := sort.Search(len(l.keys), func(i int) bool { return !l.keys[i].Before(from) })
	hi := sort.Search(len(l.keys), func(i int) bool { return l.keys[i].After(to) })
	if lo >= hi {
		return nil
	}
	out := make([]Entry[T], 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, Entry[T]{Key: l.keys[i], Value: l.vals[i]})
	}
	return out
}

// Len returns the number of samples.
func (l *PointInTime[T]) Len() int { return len(l.keys) }

// Clear removes all samples.
func (l *PointInTime[T]) Clear() {
	l.keys = nil
	l.vals = nil
}
