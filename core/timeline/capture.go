package timeline

import (
	"context"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/passage-go/ports/store"
)

// Capture is a "detected without an id" record kept for the review queue:
// the raw frame and metadata of a detection the detector could not resolve
// to an entity id. Captures live in their own table, keyed by timestamp,
// outside the aggregate engine.
type Capture struct {
	ID    string            `json:"id"`
	Time  time.Time         `json:"time"`
	Image []byte            `json:"image,omitempty"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// AddCapture persists c. A missing id is assigned; a missing time is set to
// the current clock.
func (t *Timeline) AddCapture(ctx context.Context, c Capture) (Capture, error) {
	if c.ID == "" {
		c.ID = gonanoid.Must()
	}
	if c.Time.IsZero() {
		c.Time = t.now().UTC()
	}
	err := t.store.Update(ctx, func(txn store.Txn) error {
		return store.Put(txn, TableCaptures, eventKey(c.Time), c)
	})
	if err != nil {
		return Capture{}, &PersistenceError{Op: "capture", Err: err}
	}
	return c, nil
}

// Captures returns all persisted captures in timestamp order.
func (t *Timeline) Captures(ctx context.Context) ([]Capture, error) {
	out := make([]Capture, 0)
	err := store.ForEach(ctx, t.store, TableCaptures, func(_ []byte, c Capture) error {
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, &PersistenceError{Op: "load captures", Err: err}
	}
	return out, nil
}

// DeleteCapture removes the capture recorded at ts.
func (t *Timeline) DeleteCapture(ctx context.Context, ts time.Time) error {
	err := t.store.Update(ctx, func(txn store.Txn) error {
		return txn.Delete(TableCaptures, eventKey(ts))
	})
	if err != nil {
		return &PersistenceError{Op: "delete capture", Err: err}
	}
	return nil
}
