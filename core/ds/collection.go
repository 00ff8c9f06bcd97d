package ds

// Change describes a contiguous range mutation of a Collection, in list-view
// terms: Removed items were replaced by Added items starting at Start.
// After every notification, observers can derive the new size as
// oldSize - Removed + Added without re-reading the collection.
type Change struct {
	Start   int
	Removed int
	Added   int
}

// Keyed is implemented by records stored in a Collection.
type Keyed interface{ Key() string }

// Collection is an insertion-ordered, keyed collection with range-change
// notifications. Unseen keys append; updates to existing keys stay in place.
// It is not safe for concurrent use; the engine mutates it from a single
// writer.
type Collection[T Keyed] struct {
	idx   map[string]int
	items []T
	subs  []func(Change)
}

func NewCollection[T Keyed]() *Collection[T] {
	return &Collection[T]{idx: map[string]int{}}
}

// OnChanged registers fn to be called synchronously on every change.
func (c *Collection[T]) OnChanged(fn func(Change)) { c.subs = append(c.subs, fn) }

func (c *Collection[T]) notify(ch Change) {
	for _, fn := range c.subs {
		fn(ch)
	}
}

func (c *Collection[T]) Len() int { return len(c.items) }

func (c *Collection[T]) Get(id string) (v T, ok bool) {
	i, ok := c.idx[id]
	if !ok {
		return v, false
	}
	return c.items[i], true
}

// At returns the item at position i.
func (c *Collection[T]) At(i int) T { return c.items[i] }

// Index returns the position of id.
func (c *Collection[T]) Index(id string) (int, bool) {
	i, ok := c.idx[id]
	return i, ok
}

// Items returns the underlying slice in insertion order. Callers must not
// mutate it.
func (c *Collection[T]) Items() []T { return c.items }

// Insert adds or replaces item and reports whether its key was new.
// One notification is emitted per call.
func (c *Collection[T]) Insert(item T) bool {
	key := item.Key()
	if i, ok := c.idx[key]; ok {
		c.items[i] = item
		c.notify(Change{Start: i, Removed: 1, Added: 1})
		return false
	}
	c.idx[key] = len(c.items)
	c.items = append(c.items, item)
	c.notify(Change{Start: len(c.items) - 1, Removed: 0, Added: 1})
	return true
}

// InsertMany adds or replaces items as one batch. All newly-appended items
// are announced by a single notification covering the appended range, which
// is emitted before the individual update notifications; updates always sit
// before the append point, so observers that track size against
// notifications never see a transient mismatch.
func (c *Collection[T]) InsertMany(items []T) {
	if len(items) == 0 {
		return
	}

	appendStart := len(c.items)
	updated := make([]int, 0)
	for _, item := range items {
		key := item.Key()
		if i, ok := c.idx[key]; ok {
			c.items[i] = item
			if i < appendStart {
				updated = append(updated, i)
			}
			continue
		}
		c.idx[key] = len(c.items)
		c.items = append(c.items, item)
	}

	if added := len(c.items) - appendStart; added > 0 {
		c.notify(Change{Start: appendStart, Removed: 0, Added: added})
	}
	for _, i := range updated {
		c.notify(Change{Start: i, Removed: 1, Added: 1})
	}
}

// Clear removes all items, emitting one bulk removal notification.
func (c *Collection[T]) Clear() {
	n := len(c.items)
	c.idx = map[string]int{}
	c.items = nil
	if n > 0 {
		c.notify(Change{Start: 0, Removed: n, Added: 0})
	}
}
