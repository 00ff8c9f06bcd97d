package timeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/codewandler/passage-go/ports/store"
)

// Load reads all persisted events, entities and stocks, then replays the
// event sequence in timestamp order to rebuild every aggregate log,
// per-entity history and entry/exit pairing from scratch. The replayed
// state must agree with what incremental maintenance produced before the
// restart; mismatches are invariant violations.
func (t *Timeline) Load(ctx context.Context) error {
	defer t.metrics.ReplayDuration().ObserveDuration()

	// entities
	entities := make([]*Entity, 0)
	err := store.ForEach(ctx, t.store, TableEntities, func(key []byte, rec entityRecord) error {
		entities = append(entities, entityFromRecord(string(key), rec))
		return nil
	})
	if err != nil {
		return &PersistenceError{Op: "load entities", Err: err}
	}

	// stocks
	stocks := make([]*Stock, 0)
	err = store.ForEach(ctx, t.store, TableStocks, func(key []byte, _ stockRecord) error {
		stocks = append(stocks, NewStock(string(key)))
		return nil
	})
	if err != nil {
		return &PersistenceError{Op: "load stocks", Err: err}
	}

	// events, validating that persisted iteration order is timestamp order
	events := make([]*Event, 0)
	var prev time.Time
	err = store.ForEach(ctx, t.store, TableEvents, func(key []byte, rec eventRecord) error {
		ts := eventKeyTime(key)
		if len(events) > 0 && !ts.After(prev) {
			violated(t.log, "persisted events out of order",
				slog.Time("at", ts), slog.Time("prev", prev))
		}
		prev = ts
		events = append(events, &Event{Time: ts, Kind: rec.Kind, EntityID: rec.EntityID, StockID: rec.StockID})
		return nil
	})
	if err != nil {
		return &PersistenceError{Op: "load events", Err: err}
	}

	t.entities.InsertMany(entities)
	t.stocks.InsertMany(stocks)
	t.replay(events)
	t.events.InsertMany(events)

	t.metrics.CountInside(t.agg.CountInside())
	t.notifyAggregates()

	t.log.Info("timeline loaded",
		slog.Int("events", len(events)),
		slog.Int("entities", len(entities)),
		slog.Int("stocks", len(stocks)),
	)
	return nil
}

// replay folds the persisted event sequence into fresh aggregate state.
// The raw per-entity entries/exits lists come from the entity rows; replay
// re-derives everything else and cross-checks the two.
func (t *Timeline) replay(events []*Event) {
	var (
		entryCounts = map[string]int{}
		exitCounts  = map[string]int{}
	)

	for _, ev := range events {
		entity, ok := t.entities.Get(ev.EntityID)
		if !ok {
			// persisted event references an entity row that is missing;
			// reconstruct a bare entity from the event stream
			violated(t.log, "event references unknown entity", slog.String("entity", ev.EntityID))
			entity = NewEntity(ev.EntityID)
			t.entities.Insert(entity)
		}
		if reconstructed := entryCounts[ev.EntityID]+exitCounts[ev.EntityID] >= len(entity.Entries)+len(entity.Exits); reconstructed {
			switch ev.Kind {
			case EventEntry:
				entity.Entries = append(entity.Entries, ev.Time)
			case EventExit:
				entity.Exits = append(entity.Exits, ev.Time)
			}
		}

		// stock attribution follows the association recorded on the event
		// itself, so events that predate a mid-history association are not
		// retroactively counted into the stock
		var stock *Stock
		if ev.StockID != "" {
			stock, ok = t.stocks.Get(ev.StockID)
			if !ok {
				violated(t.log, "event references unknown stock",
					slog.String("entity", ev.EntityID), slog.String("stock", ev.StockID))
				stock = NewStock(ev.StockID)
				t.stocks.Insert(stock)
			}
		}

		t.applyEvent(ev, entity, stock)

		switch ev.Kind {
		case EventEntry:
			entryCounts[ev.EntityID]++
		case EventExit:
			exitCounts[ev.EntityID]++
		}
	}

	// replayed counters must agree with the persisted entity rows
	for _, entity := range t.entities.Items() {
		if entryCounts[entity.ID] != len(entity.Entries) || exitCounts[entity.ID] != len(entity.Exits) {
			violated(t.log, "replay disagrees with persisted entity counts",
				slog.String("entity", entity.ID),
				slog.Int("replayed_entries", entryCounts[entity.ID]),
				slog.Int("persisted_entries", len(entity.Entries)),
				slog.Int("replayed_exits", exitCounts[entity.ID]),
				slog.Int("persisted_exits", len(entity.Exits)),
			)
		}
	}

	t.metrics.EventsReplayed(len(events))
}
