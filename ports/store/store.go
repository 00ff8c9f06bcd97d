// Package store defines the transactional storage port of the engine.
//
// A Store holds named tables of key/value rows and guarantees that all
// writes issued inside one Update call commit atomically, across tables.
// Iteration visits rows in byte order of their keys, which the engine relies
// on for timestamp-ordered replay.
package store

import (
	"context"
	"errors"

	"github.com/codewandler/passage-go/internal/codec"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrTableMissing = errors.New("table missing")
)

// Table names a keyspace within a Store.
type Table string

type (
	// Txn is a write transaction. All mutations made through it become
	// visible only when the enclosing Update commits.
	Txn interface {
		Put(table Table, key, value []byte) error
		Delete(table Table, key []byte) error
		// Clear removes every row of table.
		Clear(table Table) error
	}

	Store interface {
		// Update runs fn inside a single write transaction. If fn returns an
		// error, nothing is persisted and that error is returned.
		Update(ctx context.Context, fn func(Txn) error) error
		// Get returns the value stored under key, or ErrNotFound.
		Get(ctx context.Context, table Table, key []byte) ([]byte, error)
		// Iterate visits all rows of table in byte order of keys.
		Iterate(ctx context.Context, table Table, fn func(key, value []byte) error) error
		// Count returns the number of rows in table.
		Count(ctx context.Context, table Table) (int, error)
		Close() error
	}
)

// Put marshals v through the default codec and stages it in the transaction.
func Put[T any](txn Txn, table Table, key []byte, v T) error {
	data, err := codec.Default.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Put(table, key, data)
}

// Get loads and unmarshals the value stored under key.
func Get[T any](ctx context.Context, s Store, table Table, key []byte) (out T, err error) {
	data, err := s.Get(ctx, table, key)
	if err != nil {
		return out, err
	}
	err = codec.Default.Unmarshal(data, &out)
	return out, err
}

// ForEach iterates table in key order, unmarshalling each value.
func ForEach[T any](ctx context.Context, s Store, table Table, fn func(key []byte, v T) error) error {
	return s.Iterate(ctx, table, func(key, value []byte) error {
		var v T
		if err := codec.Default.Unmarshal(value, &v); err != nil {
			return err
		}
		return fn(key, v)
	})
}
