// Package timeline implements the boundary-crossing event engine.
//
// # Overview
//
// The engine keeps an append-only, strictly time-ordered log of entry/exit
// events for tracked entities, maintains derived aggregates (count inside,
// historical maximum, cumulative entries/exits) as sparse point-in-time logs
// that answer historical queries, and persists raw events, entities and
// stocks through the transactional storage port.
//
// # Ingest
//
// Detectors call [Timeline.HandleDetected]. Direction toggles per entity:
// an entity currently inside exits, otherwise it enters. The new event, the
// updated entity and the touched stock are committed in one transaction
// before any in-memory state changes; a failed commit leaves the engine
// untouched.
//
//	tl := timeline.New(store)
//	if err := tl.Load(ctx); err != nil { ... }
//	err := tl.HandleDetected(ctx, "A1", &timeline.Detection{StockID: "S1"})
//
// # Replay
//
// Aggregate logs are not persisted. [Timeline.Load] reads the raw tables and
// replays the event sequence from scratch, rebuilding every aggregate,
// per-entity history and entry/exit pairing. Replay doubles as a self-check
// against persistence bugs: the reconstructed state must agree with what
// incremental maintenance produced.
//
// # Concurrency
//
// A Timeline is single-writer: all mutations must happen on one control
// flow, typically a runloop.Loop shared with the overstay tracker. It does
// no internal locking.
package timeline
