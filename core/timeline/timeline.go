package timeline

import (
	"context"
	"log/slog"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/passage-go/core/ds"
	"github.com/codewandler/passage-go/ports/store"
)

// Detection is the optional structured data a detector supplies alongside an
// entity id.
type Detection struct {
	StockID string
	Fields  Fields
}

// Timeline owns the ordered event log, the global aggregate logs and the
// entity/stock collections. All mutating methods must be called from a
// single control flow.
type Timeline struct {
	log          *slog.Logger
	store        store.Store
	mode         OperationMode
	metrics      Metrics
	commitBudget time.Duration
	now          func() time.Time

	events   *ds.Collection[*Event]
	entities *ds.Collection[*Entity]
	stocks   *ds.Collection[*Stock]
	agg      Aggregates

	aggSubs   []func()
	eventSubs []func(*Event)
}

type Option func(*Timeline)

func WithLogger(log *slog.Logger) Option { return func(t *Timeline) { t.log = log } }

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option { return func(t *Timeline) { t.now = now } }

func WithMetrics(m Metrics) Option { return func(t *Timeline) { t.metrics = m } }

func WithMode(m OperationMode) Option { return func(t *Timeline) { t.mode = m } }

// WithCommitBudget sets the duration beyond which a persistence commit is
// flagged as slow.
func WithCommitBudget(d time.Duration) Option { return func(t *Timeline) { t.commitBudget = d } }

func New(s store.Store, opts ...Option) *Timeline {
	t := &Timeline{
		log:          slog.Default(),
		store:        s,
		mode:         ModeCounter,
		metrics:      NopMetrics(),
		commitBudget: 17 * time.Millisecond,
		now:          time.Now,
		events:       ds.NewCollection[*Event](),
		entities:     ds.NewCollection[*Entity](),
		stocks:       ds.NewCollection[*Stock](),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With(slog.String("timeline", gonanoid.Must(6)))
	return t
}

// Events returns the timestamp-ordered event collection.
func (t *Timeline) Events() *ds.Collection[*Event] { return t.events }

// Entities returns the entity collection, ordered by first detection.
func (t *Timeline) Entities() *ds.Collection[*Entity] { return t.entities }

// Stocks returns the stock collection, ordered by first association.
func (t *Timeline) Stocks() *ds.Collection[*Stock] { return t.stocks }

// Aggregates returns the global aggregate logs, including the At/Between
// historical query variants.
func (t *Timeline) Aggregates() *Aggregates { return &t.agg }

// StockAggregates returns the aggregate logs scoped to stock id.
func (t *Timeline) StockAggregates(id string) (*Aggregates, bool) {
	s, ok := t.stocks.Get(id)
	if !ok {
		return nil, false
	}
	return s.Aggregates(), true
}

func (t *Timeline) CountInside() int       { return t.agg.CountInside() }
func (t *Timeline) MaxCountInside() int    { return t.agg.MaxCountInside() }
func (t *Timeline) CumulativeEntries() int { return t.agg.CumulativeEntries() }
func (t *Timeline) CumulativeExits() int   { return t.agg.CumulativeExits() }

func (t *Timeline) LastEntryTime() (time.Time, bool) { return t.agg.LastEntryTime() }
func (t *Timeline) LastExitTime() (time.Time, bool)  { return t.agg.LastExitTime() }

// OnAggregatesChanged registers fn to run after every committed change to
// the aggregate logs (one call per detection, not per counter).
func (t *Timeline) OnAggregatesChanged(fn func()) { t.aggSubs = append(t.aggSubs, fn) }

// OnEvent registers fn to run after every appended event.
func (t *Timeline) OnEvent(fn func(*Event)) { t.eventSubs = append(t.eventSubs, fn) }

func (t *Timeline) notifyAggregates() {
	for _, fn := range t.aggSubs {
		fn()
	}
}

// HandleDetected records one detection of entityID. Direction toggles with
// the entity's current status: inside exits, outside enters. The event, the
// updated entity and the touched stock are committed atomically before any
// in-memory state changes; on failure nothing is mutated and the detection
// is dropped.
func (t *Timeline) HandleDetected(ctx context.Context, entityID string, det *Detection) error {
	entity, exists := t.entities.Get(entityID)

	kind := EventEntry
	if exists && entity.Inside() {
		kind = EventExit
	}

	// resolve the stock association up front; a detection that disagrees
	// with the recorded association is rejected outright, and a fresh
	// association is only accepted on an entry
	var provided string
	if det != nil {
		provided = det.StockID
	}
	stockID := provided
	if exists && entity.StockID != "" {
		if provided != "" && provided != entity.StockID {
			t.log.Warn(
				"detection rejected: conflicting stock association",
				slog.String("entity", entityID),
				slog.String("recorded", entity.StockID),
				slog.String("provided", provided),
			)
			return ErrConflictingAssociation
		}
		stockID = entity.StockID
	} else if provided != "" && kind == EventExit {
		t.log.Warn(
			"detection rejected: stock association on an exit",
			slog.String("entity", entityID),
			slog.String("provided", provided),
		)
		return ErrAssociationOnExit
	}

	now := t.resolveNow()

	fields := t.acceptedFields(det)

	// build the prospective records without touching live state
	var base entityRecord
	if exists {
		base = entity.record()
	}
	base.StockID = stockID
	base.Fields = base.Fields.merge(fields)
	switch kind {
	case EventEntry:
		base.Entries = appendCopy(base.Entries, now)
	case EventExit:
		base.Exits = appendCopy(base.Exits, now)
	}

	// write-ahead: commit first, mutate memory only on success
	if err := t.commit(ctx, now, kind, entityID, stockID, base); err != nil {
		t.metrics.DetectionProcessed(kind, false)
		return err
	}

	if !exists {
		entity = NewEntity(entityID)
	}
	entity.StockID = stockID
	entity.Fields = entity.Fields.merge(fields)
	switch kind {
	case EventEntry:
		entity.Entries = append(entity.Entries, now)
	case EventExit:
		entity.Exits = append(entity.Exits, now)
	}

	var stock *Stock
	if stockID != "" {
		var ok bool
		stock, ok = t.stocks.Get(stockID)
		if !ok {
			stock = NewStock(stockID)
		}
	}

	ev := &Event{Time: now, Kind: kind, EntityID: entityID, StockID: stockID}
	t.applyEvent(ev, entity, stock)
	t.metrics.CountInside(t.agg.CountInside())

	// one notification per collection, then the event append
	t.entities.Insert(entity)
	if stock != nil {
		t.stocks.Insert(stock)
	}
	t.events.Insert(ev)

	for _, fn := range t.eventSubs {
		fn(ev)
	}
	t.notifyAggregates()
	t.metrics.DetectionProcessed(kind, true)

	t.log.Debug(
		"detection recorded",
		slog.String("entity", entityID),
		slog.String("kind", string(kind)),
		slog.Time("at", now),
		slog.Int("count_inside", t.agg.CountInside()),
	)
	return nil
}

// resolveNow returns the current wall clock, enforcing strictly increasing
// event timestamps.
func (t *Timeline) resolveNow() time.Time {
	now := t.now().UTC()
	if n := t.events.Len(); n > 0 {
		if last := t.events.At(n - 1).Time; !now.After(last) {
			violated(t.log, "non-monotonic event timestamp",
				slog.Time("now", now), slog.Time("last", last))
			now = last.Add(time.Nanosecond)
		}
	}
	return now
}

// acceptedFields filters detection fields through the operation-mode
// registry.
func (t *Timeline) acceptedFields(det *Detection) Fields {
	if det == nil || len(det.Fields) == 0 {
		return nil
	}
	out := make(Fields, len(det.Fields))
	for k, v := range det.Fields {
		if !k.ValidFor(t.mode) {
			t.log.Warn("dropping field invalid for mode",
				slog.String("field", string(k)), slog.String("mode", string(t.mode)))
			continue
		}
		out[k] = v
	}
	return out
}

func (t *Timeline) commit(
	ctx context.Context,
	now time.Time,
	kind EventKind,
	entityID, stockID string,
	rec entityRecord,
) error {
	timer := t.metrics.CommitDuration()
	start := time.Now()
	err := t.store.Update(ctx, func(txn store.Txn) error {
		if err := store.Put(txn, TableEvents, eventKey(now), eventRecord{Kind: kind, EntityID: entityID, StockID: stockID}); err != nil {
			return err
		}
		if err := store.Put(txn, TableEntities, []byte(entityID), rec); err != nil {
			return err
		}
		if stockID != "" {
			return store.Put(txn, TableStocks, []byte(stockID), stockRecord{})
		}
		return nil
	})
	timer.ObserveDuration()

	if elapsed := time.Since(start); elapsed > t.commitBudget {
		t.metrics.SlowCommit()
		t.log.Warn("commit exceeded budget",
			slog.Duration("elapsed", elapsed), slog.Duration("budget", t.commitBudget))
	}
	if err != nil {
		return &PersistenceError{Op: "detection", Err: err}
	}
	return nil
}

// applyEvent folds one event into the in-memory state: global aggregates,
// entry/exit pairing, the entity's inside history and the stock-scoped
// aggregates. Shared between live ingest and replay; it does not touch the
// entity's raw entries/exits lists.
func (t *Timeline) applyEvent(ev *Event, entity *Entity, stock *Stock) {
	t.agg.apply(ev.Time, ev.Kind, t.log)

	switch ev.Kind {
	case EventEntry:
		entity.openEntry = ev
	case EventExit:
		if open := entity.openEntry; open != nil {
			ev.pair = open
			open.pair = ev
			entity.openEntry = nil
		} else {
			violated(t.log, "exit without open entry", slog.String("entity", entity.ID))
		}
	}

	entity.insideLog.Insert(ev.Time, ev.Kind == EventEntry)

	if stock != nil {
		stock.agg.apply(ev.Time, ev.Kind, t.log)
	}
}

// Reset clears all persisted tables transactionally, then all in-memory
// collections and aggregate logs. All-or-nothing: a failed transactional
// clear leaves the engine untouched.
func (t *Timeline) Reset(ctx context.Context) error {
	err := t.store.Update(ctx, func(txn store.Txn) error {
		for _, tbl := range []store.Table{TableEvents, TableEntities, TableStocks} {
			if err := txn.Clear(tbl); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &PersistenceError{Op: "reset", Err: err}
	}

	t.events.Clear()
	t.entities.Clear()
	t.stocks.Clear()
	t.agg.clear()
	t.metrics.CountInside(0)
	t.notifyAggregates()

	if Strict {
		for _, tbl := range []store.Table{TableEvents, TableEntities, TableStocks} {
			n, err := t.store.Count(ctx, tbl)
			if err == nil && n != 0 {
				violated(t.log, "table not empty after reset", slog.String("table", string(tbl)))
			}
		}
	}

	t.log.Info("timeline reset")
	return nil
}

func appendCopy(ts []time.Time, t time.Time) []time.Time {
	out := make([]time.Time, 0, len(ts)+1)
	out = append(out, ts...)
	return append(out, t)
}
