package timeline

// Stock is a named grouping of entities (an item type, SKU, ...) carrying
// its own aggregate history scoped to the entities associated with it.
// Multiple entities may share one stock id; entities reference stocks by id
// only. A stock is created lazily the first time an entity carrying its id
// is detected.
type Stock struct {
	ID  string
	agg Aggregates
}

func NewStock(id string) *Stock { return &Stock{ID: id} }

func (s *Stock) Key() string { return s.ID }

// Aggregates returns the stock-scoped aggregate logs.
func (s *Stock) Aggregates() *Aggregates { return &s.agg }

// stockRecord is the persisted form. Aggregates are not persisted; replay
// rebuilds them.
type stockRecord struct{}
