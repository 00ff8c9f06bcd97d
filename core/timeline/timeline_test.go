package timeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/passage-go/core/ds"
	"github.com/codewandler/passage-go/ports/store"
)

func TestMain(m *testing.M) {
	Strict = true
	m.Run()
}

// fakeClock advances one second per call so event timestamps are strictly
// increasing and predictable.
type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_000_000, 0).UTC()} }

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestTimeline(t *testing.T, opts ...Option) (*Timeline, *store.MemStore, *fakeClock) {
	t.Helper()
	s := store.NewMemStore(Tables()...)
	clock := newFakeClock()
	tl := New(s, append([]Option{WithClock(clock.Now)}, opts...)...)
	return tl, s, clock
}

func TestHandleDetected_Scenario(t *testing.T) {
	tl, _, _ := newTestTimeline(t)
	ctx := context.Background()

	// A1 enters carrying stock S1
	require.NoError(t, tl.HandleDetected(ctx, "A1", &Detection{StockID: "S1"}))
	require.Equal(t, 1, tl.CountInside())
	require.Equal(t, 1, tl.MaxCountInside())
	require.Equal(t, 1, tl.CumulativeEntries())
	require.Equal(t, 0, tl.CumulativeExits())

	s1, ok := tl.StockAggregates("S1")
	require.True(t, ok)
	require.Equal(t, 1, s1.CountInside())
	require.Equal(t, 1, s1.CumulativeEntries())

	a1, ok := tl.Entities().Get("A1")
	require.True(t, ok)
	require.True(t, a1.Inside())
	require.Equal(t, "S1", a1.StockID)

	t1 := tl.Events().At(0).Time

	// A1 detected again: exit, paired with the opening entry
	require.NoError(t, tl.HandleDetected(ctx, "A1", nil))
	require.Equal(t, 0, tl.CountInside())
	require.Equal(t, 1, tl.MaxCountInside())
	require.Equal(t, 1, tl.CumulativeExits())
	require.Equal(t, 0, s1.CountInside())
	require.False(t, a1.Inside())

	exit := tl.Events().At(1)
	require.Equal(t, EventExit, exit.Kind)
	require.NotNil(t, exit.Pair())
	require.Equal(t, t1, exit.Pair().Time)
	d, ok := exit.Duration()
	require.True(t, ok)
	require.Equal(t, exit.Time.Sub(t1), d)
	// pairing is bidirectional
	require.Same(t, exit, tl.Events().At(0).Pair())

	// B2 (no stock) enters: count back to 1, max stays 1
	require.NoError(t, tl.HandleDetected(ctx, "B2", nil))
	require.Equal(t, 1, tl.CountInside())
	require.Equal(t, 1, tl.MaxCountInside())
	require.Equal(t, 2, tl.CumulativeEntries())
	require.Equal(t, 1, tl.CumulativeExits())
	require.Equal(t, 1, tl.Stocks().Len())

	// last entry/exit timestamps
	lastEntry, ok := tl.LastEntryTime()
	require.True(t, ok)
	require.Equal(t, tl.Events().At(2).Time, lastEntry)
	lastExit, ok := tl.LastExitTime()
	require.True(t, ok)
	require.Equal(t, exit.Time, lastExit)
}

func TestHandleDetected_MaxCountGrowsOnlyOnNewMax(t *testing.T) {
	tl, _, _ := newTestTimeline(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, tl.HandleDetected(ctx, id, nil))
	}
	require.Equal(t, 3, tl.MaxCountInside())

	require.NoError(t, tl.HandleDetected(ctx, "a", nil)) // exit
	require.NoError(t, tl.HandleDetected(ctx, "a", nil)) // entry, count 3 again
	require.Equal(t, 3, tl.MaxCountInside())
	// the max log recorded only the actual maxima
	require.Equal(t, 3, tl.Aggregates().maxInside.Len())
}

func TestHandleDetected_ConflictingAssociation(t *testing.T) {
	tl, s, _ := newTestTimeline(t)
	ctx := context.Background()

	require.NoError(t, tl.HandleDetected(ctx, "A1", &Detection{StockID: "S1"}))
	eventsBefore, err := s.Count(ctx, TableEvents)
	require.NoError(t, err)

	err = tl.HandleDetected(ctx, "A1", &Detection{StockID: "S2"})
	require.ErrorIs(t, err, ErrConflictingAssociation)

	// rejected before any mutation, in memory and on disk
	require.Equal(t, 1, tl.CumulativeEntries())
	require.Equal(t, 1, tl.Events().Len())
	a1, _ := tl.Entities().Get("A1")
	require.Equal(t, "S1", a1.StockID)
	require.True(t, a1.Inside())
	eventsAfter, err := s.Count(ctx, TableEvents)
	require.NoError(t, err)
	require.Equal(t, eventsBefore, eventsAfter)

	// re-announcing the recorded stock id is fine
	require.NoError(t, tl.HandleDetected(ctx, "A1", &Detection{StockID: "S1"}))
	require.False(t, a1.Inside())
}

func TestHandleDetected_AssociationOnExitRejected(t *testing.T) {
	tl, s, _ := newTestTimeline(t)
	ctx := context.Background()

	// entered with no stock; a first-time stock id on the exit is refused
	require.NoError(t, tl.HandleDetected(ctx, "A1", nil))
	err := tl.HandleDetected(ctx, "A1", &Detection{StockID: "S1"})
	require.ErrorIs(t, err, ErrAssociationOnExit)

	// rejected before any mutation, in memory and on disk
	require.Equal(t, 1, tl.Events().Len())
	a1, _ := tl.Entities().Get("A1")
	require.True(t, a1.Inside())
	require.Empty(t, a1.StockID)
	_, ok := tl.StockAggregates("S1")
	require.False(t, ok)
	n, err := s.Count(ctx, TableStocks)
	require.NoError(t, err)
	require.Zero(t, n)

	// a plain exit still works, and the next visit may associate
	require.NoError(t, tl.HandleDetected(ctx, "A1", nil))
	require.False(t, a1.Inside())
	require.NoError(t, tl.HandleDetected(ctx, "A1", &Detection{StockID: "S1"}))
	require.Equal(t, "S1", a1.StockID)
	s1, ok := tl.StockAggregates("S1")
	require.True(t, ok)
	require.Equal(t, 1, s1.CountInside())
}

// failingStore fails every Update once armed.
type failingStore struct {
	*store.MemStore
	fail bool
}

var errDiskFull = errors.New("disk full")

func (f *failingStore) Update(ctx context.Context, fn func(store.Txn) error) error {
	if f.fail {
		return errDiskFull
	}
	return f.MemStore.Update(ctx, fn)
}

func TestHandleDetected_PersistenceError(t *testing.T) {
	fs := &failingStore{MemStore: store.NewMemStore(Tables()...)}
	clock := newFakeClock()
	tl := New(fs, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, tl.HandleDetected(ctx, "A1", nil))

	fs.fail = true
	err := tl.HandleDetected(ctx, "A1", nil)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	require.ErrorIs(t, err, errDiskFull)

	// no in-memory state was mutated
	require.Equal(t, 1, tl.CountInside())
	require.Equal(t, 1, tl.Events().Len())
	a1, _ := tl.Entities().Get("A1")
	require.True(t, a1.Inside())
	require.Len(t, a1.Exits, 0)

	// the failed detection did not burn the toggle
	fs.fail = false
	require.NoError(t, tl.HandleDetected(ctx, "A1", nil))
	require.Equal(t, 0, tl.CountInside())
}

func TestHandleDetected_ToggleInvariant(t *testing.T) {
	tl, _, _ := newTestTimeline(t)
	ctx := context.Background()

	ids := []string{"a", "b", "c", "d"}
	for i := 0; i < 41; i++ {
		require.NoError(t, tl.HandleDetected(ctx, ids[i%len(ids)], nil))
	}

	for _, e := range tl.Entities().Items() {
		require.Equal(t, len(e.Entries) > len(e.Exits), e.Inside())
		require.LessOrEqual(t, len(e.Entries)-len(e.Exits), 1)
		require.GreaterOrEqual(t, len(e.Entries)-len(e.Exits), 0)
	}

	// adjacent event timestamps strictly increase
	events := tl.Events().Items()
	for i := 1; i < len(events); i++ {
		require.True(t, events[i].Time.After(events[i-1].Time))
	}
}

func TestHandleDetected_NonMonotonicClockClamped(t *testing.T) {
	Strict = false
	defer func() { Strict = true }()

	fixed := time.Unix(1_000_000, 0).UTC()
	s := store.NewMemStore(Tables()...)
	tl := New(s, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	require.NoError(t, tl.HandleDetected(ctx, "a", nil))
	require.NoError(t, tl.HandleDetected(ctx, "b", nil))

	// the stalled clock is clamped forward, order preserved
	require.True(t, tl.Events().At(1).Time.After(tl.Events().At(0).Time))
}

func TestHandleDetected_FieldsFilteredByMode(t *testing.T) {
	tl, _, _ := newTestTimeline(t, WithMode(ModeAttendance))
	ctx := context.Background()

	require.NoError(t, tl.HandleDetected(ctx, "p1", &Detection{Fields: Fields{
		FieldName:       "Ada",
		FieldEmail:      "ada@example.com",
		FieldExpiration: "2026-01-01", // not an attendance field
	}}))

	p1, _ := tl.Entities().Get("p1")
	require.Equal(t, "Ada", p1.Fields[FieldName])
	require.Equal(t, "ada@example.com", p1.Fields[FieldEmail])
	require.NotContains(t, p1.Fields, FieldExpiration)

	// later detections merge new fields over old ones
	require.NoError(t, tl.HandleDetected(ctx, "p1", &Detection{Fields: Fields{
		FieldName: "Ada L.",
	}}))
	require.Equal(t, "Ada L.", p1.Fields[FieldName])
	require.Equal(t, "ada@example.com", p1.Fields[FieldEmail])
}

func TestTimeline_HistoricalQueries(t *testing.T) {
	tl, _, _ := newTestTimeline(t)
	ctx := context.Background()

	require.NoError(t, tl.HandleDetected(ctx, "a", nil))
	t1 := tl.Events().At(0).Time
	require.NoError(t, tl.HandleDetected(ctx, "b", nil))
	t2 := tl.Events().At(1).Time
	require.NoError(t, tl.HandleDetected(ctx, "a", nil))
	t3 := tl.Events().At(2).Time

	agg := tl.Aggregates()
	require.Equal(t, 0, agg.CountInsideAt(t1.Add(-time.Second)))
	require.Equal(t, 1, agg.CountInsideAt(t1))
	require.Equal(t, 1, agg.CountInsideAt(t2.Add(-time.Millisecond)))
	require.Equal(t, 2, agg.CountInsideAt(t2))
	require.Equal(t, 1, agg.CountInsideAt(t3))
	require.Equal(t, 2, agg.MaxCountInsideAt(t3))
	require.Equal(t, 2, agg.CumulativeEntriesAt(t3))
	require.Equal(t, 1, agg.CumulativeExitsAt(t3))

	samples := agg.CountInsideBetween(t1, t3)
	require.Len(t, samples, 3)
	require.Equal(t, []int{1, 2, 1}, []int{samples[0].Value, samples[1].Value, samples[2].Value})

	// entity inside history
	a, _ := tl.Entities().Get("a")
	require.True(t, a.InsideAt(t2))
	require.False(t, a.InsideAt(t3))
	hist := a.InsideHistory(t1, t3)
	require.Len(t, hist, 2)
	require.True(t, hist[0].Value)
	require.False(t, hist[1].Value)
}

func TestTimeline_Notifications(t *testing.T) {
	tl, _, _ := newTestTimeline(t)
	ctx := context.Background()

	var (
		aggChanges   int
		eventKinds   []EventKind
		entityChange []ds.Change
	)
	tl.OnAggregatesChanged(func() { aggChanges++ })
	tl.OnEvent(func(ev *Event) { eventKinds = append(eventKinds, ev.Kind) })
	tl.Entities().OnChanged(func(ch ds.Change) { entityChange = append(entityChange, ch) })

	require.NoError(t, tl.HandleDetected(ctx, "a", nil))
	require.NoError(t, tl.HandleDetected(ctx, "a", nil))

	require.Equal(t, 2, aggChanges)
	require.Equal(t, []EventKind{EventEntry, EventExit}, eventKinds)
	// one batched notification per detection: append, then in-place update
	require.Equal(t, []ds.Change{
		{Start: 0, Removed: 0, Added: 1},
		{Start: 0, Removed: 1, Added: 1},
	}, entityChange)

	// a rejected detection emits nothing
	require.NoError(t, tl.HandleDetected(ctx, "a", &Detection{StockID: "S1"}))
	aggBefore := aggChanges
	require.Error(t, tl.HandleDetected(ctx, "a", &Detection{StockID: "S2"}))
	require.Equal(t, aggBefore, aggChanges)
}

func TestTimeline_Reset(t *testing.T) {
	tl, s, _ := newTestTimeline(t)
	ctx := context.Background()

	require.NoError(t, tl.HandleDetected(ctx, "a", &Detection{StockID: "S1"}))
	require.NoError(t, tl.HandleDetected(ctx, "b", nil))

	require.NoError(t, tl.Reset(ctx))
	require.NoError(t, tl.Reset(ctx)) // idempotent

	require.Equal(t, 0, tl.Events().Len())
	require.Equal(t, 0, tl.Entities().Len())
	require.Equal(t, 0, tl.Stocks().Len())
	require.Equal(t, 0, tl.CountInside())
	require.Equal(t, 0, tl.MaxCountInside())
	require.Equal(t, 0, tl.CumulativeEntries())
	require.Equal(t, 0, tl.CumulativeExits())
	_, ok := tl.LastEntryTime()
	require.False(t, ok)
	_, ok = tl.LastExitTime()
	require.False(t, ok)

	for _, tbl := range []store.Table{TableEvents, TableEntities, TableStocks} {
		n, err := s.Count(ctx, tbl)
		require.NoError(t, err)
		require.Equal(t, 0, n)
	}

	// the engine is usable after a reset
	require.NoError(t, tl.HandleDetected(ctx, "a", nil))
	require.Equal(t, 1, tl.CountInside())
}

func TestTimeline_ResetFailureLeavesState(t *testing.T) {
	fs := &failingStore{MemStore: store.NewMemStore(Tables()...)}
	clock := newFakeClock()
	tl := New(fs, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, tl.HandleDetected(ctx, "a", nil))

	fs.fail = true
	var pe *PersistenceError
	require.ErrorAs(t, tl.Reset(ctx), &pe)
	require.Equal(t, 1, tl.CountInside())
	require.Equal(t, 1, tl.Events().Len())
}
