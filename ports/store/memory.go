package store

import (
	"context"
	"sort"
	"sync"
)

// MemStore is a simple, correct in-memory Store for tests/dev. Writes are
// staged per transaction and applied on commit, mirroring the atomicity of
// the real backends.
type MemStore struct {
	mu     sync.RWMutex
	tables map[Table]map[string][]byte
}

func NewMemStore(tables ...Table) *MemStore {
	m := &MemStore{tables: map[Table]map[string][]byte{}}
	for _, t := range tables {
		m.tables[t] = map[string][]byte{}
	}
	return m
}

type memOp struct {
	table  Table
	key    string
	value  []byte
	del    bool
	clear  bool
}

type memTxn struct {
	s   *MemStore
	ops []memOp
}

func (t *memTxn) check(table Table) error {
	if _, ok := t.s.tables[table]; !ok {
		return ErrTableMissing
	}
	return nil
}

func (t *memTxn) Put(table Table, key, value []byte) error {
	if err := t.check(table); err != nil {
		return err
	}
	v := make([]byte, len(value))
	copy(v, value)
	t.ops = append(t.ops, memOp{table: table, key: string(key), value: v})
	return nil
}

func (t *memTxn) Delete(table Table, key []byte) error {
	if err := t.check(table); err != nil {
		return err
	}
	t.ops = append(t.ops, memOp{table: table, key: string(key), del: true})
	return nil
}

func (t *memTxn) Clear(table Table) error {
	if err := t.check(table); err != nil {
		return err
	}
	t.ops = append(t.ops, memOp{table: table, clear: true})
	return nil
}

func (m *MemStore) Update(_ context.Context, fn func(Txn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txn := &memTxn{s: m}
	if err := fn(txn); err != nil {
		return err
	}

	// commit staged ops
	for _, op := range txn.ops {
		switch {
		case op.clear:
			m.tables[op.table] = map[string][]byte{}
		case op.del:
			delete(m.tables[op.table], op.key)
		default:
			m.tables[op.table][op.key] = op.value
		}
	}
	return nil
}

func (m *MemStore) Get(_ context.Context, table Table, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, ok := m.tables[table]
	if !ok {
		return nil, ErrTableMissing
	}
	v, ok := rows[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *MemStore) Iterate(_ context.Context, table Table, fn func(key, value []byte) error) error {
	m.mu.RLock()
	rows, ok := m.tables[table]
	if !ok {
		m.mu.RUnlock()
		return ErrTableMissing
	}
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	snapshot := make([][2][]byte, 0, len(keys))
	for _, k := range keys {
		snapshot = append(snapshot, [2][]byte{[]byte(k), rows[k]})
	}
	m.mu.RUnlock()

	for _, kv := range snapshot {
		if err := fn(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemStore) Count(_ context.Context, table Table) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, ok := m.tables[table]
	if !ok {
		return 0, ErrTableMissing
	}
	return len(rows), nil
}

func (m *MemStore) Close() error { return nil }

var _ Store = (*MemStore)(nil)
