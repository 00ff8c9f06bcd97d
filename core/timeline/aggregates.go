package timeline

import (
	"log/slog"
	"time"

	"github.com/codewandler/passage-go/core/ds"
)

// Aggregates is one scope of derived running statistics: sparse
// point-in-time logs of count-inside, max-count-inside and cumulative
// entries/exits, plus the latest entry/exit timestamps. The global timeline
// scope and every stock carry their own instance. Aggregates are never
// persisted; they are maintained incrementally on ingest and rebuilt from
// scratch by replay.
type Aggregates struct {
	countInside ds.PointInTime[int]
	maxInside   ds.PointInTime[int]
	entries     ds.PointInTime[int]
	exits       ds.PointInTime[int]
	lastEntry   time.Time
	lastExit    time.Time
}

// apply folds one event into the aggregates.
func (a *Aggregates) apply(now time.Time, kind EventKind, log *slog.Logger) {
	count := a.CountInside()
	switch kind {
	case EventEntry:
		count++
		a.countInside.Insert(now, count)
		// max log only grows when a new maximum is reached
		if count > a.MaxCountInside() {
			a.maxInside.Insert(now, count)
		}
		a.entries.Insert(now, a.CumulativeEntries()+1)
		a.lastEntry = now
	case EventExit:
		count--
		if count < 0 {
			violated(log, "count-inside underflow", slog.Time("at", now))
			count = 0
		}
		a.countInside.Insert(now, count)
		a.exits.Insert(now, a.CumulativeExits()+1)
		a.lastExit = now
	}
}

func (a *Aggregates) clear() {
	a.countInside.Clear()
	a.maxInside.Clear()
	a.entries.Clear()
	a.exits.Clear()
	a.lastEntry = time.Time{}
	a.lastExit = time.Time{}
}

func latestOrZero(l *ds.PointInTime[int]) int {
	v, ok := l.Latest()
	if !ok {
		return 0
	}
	return v
}

func atOrZero(l *ds.PointInTime[int], t time.Time) int {
	v, ok := l.At(t)
	if !ok {
		return 0
	}
	return v
}

// CountInside returns the current number of entities inside.
func (a *Aggregates) CountInside() int { return latestOrZero(&a.countInside) }

// CountInsideAt returns the number of entities inside at time t.
func (a *Aggregates) CountInsideAt(t time.Time) int { return atOrZero(&a.countInside, t) }

// CountInsideBetween returns the count-inside samples within [from, to].
func (a *Aggregates) CountInsideBetween(from, to time.Time) []ds.Entry[int] {
	return a.countInside.Between(from, to)
}

// MaxCountInside returns the historical maximum count inside.
func (a *Aggregates) MaxCountInside() int { return latestOrZero(&a.maxInside) }

// MaxCountInsideAt returns the maximum reached at or before time t.
func (a *Aggregates) MaxCountInsideAt(t time.Time) int { return atOrZero(&a.maxInside, t) }

// MaxCountInsideBetween returns the maxima recorded within [from, to].
func (a *Aggregates) MaxCountInsideBetween(from, to time.Time) []ds.Entry[int] {
	return a.maxInside.Between(from, to)
}

// CumulativeEntries returns the total number of entry events.
func (a *Aggregates) CumulativeEntries() int { return latestOrZero(&a.entries) }

// CumulativeEntriesAt returns the total number of entries at time t.
func (a *Aggregates) CumulativeEntriesAt(t time.Time) int { return atOrZero(&a.entries, t) }

// CumulativeEntriesBetween returns the entry-count samples within [from, to].
func (a *Aggregates) CumulativeEntriesBetween(from, to time.Time) []ds.Entry[int] {
	return a.entries.Between(from, to)
}

// CumulativeExits returns the total number of exit events.
func (a *Aggregates) CumulativeExits() int { return latestOrZero(&a.exits) }

// CumulativeExitsAt returns the total number of exits at time t.
func (a *Aggregates) CumulativeExitsAt(t time.Time) int { return atOrZero(&a.exits, t) }

// CumulativeExitsBetween returns the exit-count samples within [from, to].
func (a *Aggregates) CumulativeExitsBetween(from, to time.Time) []ds.Entry[int] {
	return a.exits.Between(from, to)
}

// LastEntryTime returns the timestamp of the most recent entry.
func (a *Aggregates) LastEntryTime() (time.Time, bool) { return a.lastEntry, !a.lastEntry.IsZero() }

// LastExitTime returns the timestamp of the most recent exit.
func (a *Aggregates) LastExitTime() (time.Time, bool) { return a.lastExit, !a.lastExit.IsZero() }
