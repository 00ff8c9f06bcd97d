// Package bolt provides a BoltDB-backed implementation of the storage port.
//
// Each port table maps to one bucket. BoltDB's single write transaction
// gives the atomic multi-table commit the engine requires, and its
// byte-ordered buckets give timestamp-ordered iteration for keys encoded
// big-endian.
package bolt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/codewandler/passage-go/ports/store"
)

type Store struct {
	db     *bbolt.DB
	tables []store.Table
}

// Open opens (or creates) a BoltDB file at path and ensures a bucket per
// table.
func Open(path string, tables ...store.Table) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	s := &Store{db: db, tables: tables}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, t := range s.tables {
			if _, err := tx.CreateBucketIfNotExists([]byte(t)); err != nil {
				return fmt.Errorf("create bucket %s: %w", t, err)
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type boltTxn struct{ tx *bbolt.Tx }

func (t boltTxn) bucket(table store.Table) (*bbolt.Bucket, error) {
	b := t.tx.Bucket([]byte(table))
	if b == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrTableMissing, table)
	}
	return b, nil
}

func (t boltTxn) Put(table store.Table, key, value []byte) error {
	b, err := t.bucket(table)
	if err != nil {
		return err
	}
	return b.Put(key, value)
}

func (t boltTxn) Delete(table store.Table, key []byte) error {
	b, err := t.bucket(table)
	if err != nil {
		return err
	}
	return b.Delete(key)
}

func (t boltTxn) Clear(table store.Table) error {
	if _, err := t.bucket(table); err != nil {
		return err
	}
	if err := t.tx.DeleteBucket([]byte(table)); err != nil {
		return err
	}
	_, err := t.tx.CreateBucket([]byte(table))
	return err
}

func (s *Store) Update(ctx context.Context, fn func(store.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(boltTxn{tx: tx})
	})
}

func (s *Store) Get(ctx context.Context, table store.Table, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("%w: %s", store.ErrTableMissing, table)
		}
		v := b.Get(key)
		if v == nil {
			return store.ErrNotFound
		}
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	return out, err
}

func (s *Store) Iterate(ctx context.Context, table store.Table, fn func(key, value []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("%w: %s", store.ErrTableMissing, table)
		}
		return b.ForEach(fn)
	})
}

func (s *Store) Count(ctx context.Context, table store.Table) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("%w: %s", store.ErrTableMissing, table)
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

var _ store.Store = (*Store)(nil)
