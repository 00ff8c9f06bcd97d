package timeline

import (
	"time"

	"github.com/codewandler/passage-go/core/ds"
)

// Entity is a tracked individual/item identified by a stable external id.
// It is created on first detection of an unknown id and mutated on every
// subsequent detection; entities are never deleted individually, only by
// Reset.
type Entity struct {
	ID      string
	StockID string
	Fields  Fields

	// Entries and Exits hold the raw detection timestamps in event order.
	Entries []time.Time
	Exits   []time.Time

	insideLog ds.PointInTime[bool]

	// openEntry is the entry event of the current visit, consumed when the
	// matching exit arrives.
	openEntry *Event
}

func NewEntity(id string) *Entity { return &Entity{ID: id} }

func (e *Entity) Key() string { return e.ID }

// Inside reports whether the entity is currently inside the boundary.
func (e *Entity) Inside() bool { return len(e.Entries) > len(e.Exits) }

// InsideAt reports the inside status at time t.
func (e *Entity) InsideAt(t time.Time) bool {
	v, ok := e.insideLog.At(t)
	return ok && v
}

// InsideHistory returns the inside/outside transitions within [from, to].
func (e *Entity) InsideHistory(from, to time.Time) []ds.Entry[bool] {
	return e.insideLog.Between(from, to)
}

// LastEntry returns the most recent entry timestamp.
func (e *Entity) LastEntry() (time.Time, bool) {
	if len(e.Entries) == 0 {
		return time.Time{}, false
	}
	return e.Entries[len(e.Entries)-1], true
}

// LastExit returns the most recent exit timestamp.
func (e *Entity) LastExit() (time.Time, bool) {
	if len(e.Exits) == 0 {
		return time.Time{}, false
	}
	return e.Exits[len(e.Exits)-1], true
}

// LastAction returns the most recent entry or exit timestamp.
func (e *Entity) LastAction() (time.Time, bool) {
	en, okEn := e.LastEntry()
	ex, okEx := e.LastExit()
	switch {
	case okEn && okEx:
		if ex.After(en) {
			return ex, true
		}
		return en, true
	case okEn:
		return en, true
	case okEx:
		return ex, true
	default:
		return time.Time{}, false
	}
}

// entityRecord is the persisted form, keyed by entity id.
type entityRecord struct {
	Entries []time.Time `json:"entries"`
	Exits   []time.Time `json:"exits"`
	StockID string      `json:"stock_id,omitempty"`
	Fields  Fields      `json:"fields,omitempty"`
}

func (e *Entity) record() entityRecord {
	return entityRecord{
		Entries: e.Entries,
		Exits:   e.Exits,
		StockID: e.StockID,
		Fields:  e.Fields,
	}
}

func entityFromRecord(id string, rec entityRecord) *Entity {
	return &Entity{
		ID:      id,
		StockID: rec.StockID,
		Fields:  rec.Fields,
		Entries: rec.Entries,
		Exits:   rec.Exits,
	}
}
