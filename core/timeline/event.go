package timeline

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/codewandler/passage-go/ports/store"
)

// Persisted tables. Aggregates are deliberately absent: only raw events,
// entities and stocks are stored, everything else is rebuilt by replay.
const (
	TableEvents   = store.Table("events")
	TableEntities = store.Table("entities")
	TableStocks   = store.Table("stocks")
	TableCaptures = store.Table("captures")
)

// Tables returns every table the engine persists to, in the order they
// should be created.
func Tables() []store.Table {
	return []store.Table{TableEvents, TableEntities, TableStocks, TableCaptures}
}

type EventKind string

const (
	EventEntry EventKind = "entry"
	EventExit  EventKind = "exit"
)

// Event is an immutable, timestamped entry or exit record for one entity.
// StockID is the entity's stock association at the time of the event; it
// may differ from the entity's final association when the association was
// established mid-history. An exit event is paired with the entry event
// that opened the visit.
type Event struct {
	Time     time.Time
	Kind     EventKind
	EntityID string
	StockID  string

	pair *Event
}

func (e *Event) Key() string { return strconv.FormatInt(e.Time.UnixNano(), 10) }

// Pair returns the matching event of the visit: for an exit, the entry that
// opened it; for an entry, the exit that closed it (nil while the visit is
// open).
func (e *Event) Pair() *Event { return e.pair }

// Duration returns the visit duration of a paired exit event.
func (e *Event) Duration() (time.Duration, bool) {
	if e.Kind != EventExit || e.pair == nil {
		return 0, false
	}
	return e.Time.Sub(e.pair.Time), true
}

// eventRecord is the self-describing persisted form; the timestamp is the
// row key.
type eventRecord struct {
	Kind     EventKind `json:"kind"`
	EntityID string    `json:"entity_id"`
	StockID  string    `json:"stock_id,omitempty"`
}

// eventKey encodes t as a big-endian unix-nano key so the store iterates
// events in timestamp order.
func eventKey(t time.Time) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(t.UnixNano()))
	return k
}

func eventKeyTime(key []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(key))).UTC()
}
