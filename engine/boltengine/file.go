package boltengine

import (
	"fmt"

	"github.com/quanghuy1258/wallet/engine"
	"go.etcd.io/bbolt"
)

// file is an open bbolt file.
type file struct {
	env  *env
	name string
	db   *bbolt.DB
}

// Compile-time check that file implements engine.File.
var _ engine.File = (*file)(nil)

func cloneBytes(b []byte) []byte {
	return append(make([]byte, 0, len(b)), b...)
}

// Name returns the file name.
func (f *file) Name() string {
	return f.name
}

// Close closes the bbolt file.
func (f *file) Close() error {
	f.env.removeFile(f)

	log.Debugf("Closing file %v", f.name)

	return f.db.Close()
}

// boundTx returns the bbolt transaction t holds on this file.
func (f *file) boundTx(t engine.Txn) (*bbolt.Tx, error) {
	tx, ok := t.(*txn)
	if !ok || tx.env != f.env {
		return nil, engine.ErrTxnForeign
	}

	return tx.bind(f)
}

// view runs fn on the root bucket, inside t if given.
func (f *file) view(t engine.Txn, fn func(b *bbolt.Bucket) error) error {
	if err := f.env.checkOpen(); err != nil {
		return err
	}

	if t != nil {
		tx, err := f.boundTx(t)
		if err != nil {
			return err
		}

		return fn(tx.Bucket(rootBucket))
	}

	return f.db.View(func(tx *bbolt.Tx) error {
		return fn(tx.Bucket(rootBucket))
	})
}

// update runs fn on the root bucket. Inside t the journal record is queued
// until commit, otherwise the write commits and is journaled on its own.
func (f *file) update(t engine.Txn, rec *record,
	fn func(b *bbolt.Bucket) error) error {

	if err := f.env.checkOpen(); err != nil {
		return err
	}

	if t != nil {
		tx, err := f.boundTx(t)
		if err != nil {
			return err
		}
		if !tx.Writable() {
			return engine.ErrTxnReadOnly
		}
		if err := fn(tx.Bucket(rootBucket)); err != nil {
			return err
		}
		t.(*txn).queue(rec)

		return nil
	}

	if !f.env.cfg.AutoCommit {
		return engine.ErrTxnRequired
	}

	err := f.db.Update(func(tx *bbolt.Tx) error {
		return fn(tx.Bucket(rootBucket))
	})
	if err != nil {
		return err
	}

	return f.env.journal.append(rec)
}

// Get returns a copy of the value stored under key. bbolt hands out memory
// of its mmap which is only valid inside the transaction.
func (f *file) Get(t engine.Txn, key []byte) ([]byte, error) {
	var value []byte
	err := f.view(t, func(b *bbolt.Bucket) error {
		v := b.Get(key)
		if v == nil {
			return engine.ErrNotFound
		}
		value = cloneBytes(v)

		return nil
	})

	return value, err
}

// Put stores value under key.
func (f *file) Put(t engine.Txn, key, value []byte, overwrite bool) error {
	rec := &record{
		kind:     kindPut,
		file:     []byte(f.name),
		keyLen:   uint32(len(key)),
		valueLen: uint32(len(value)),
	}

	return f.update(t, rec, func(b *bbolt.Bucket) error {
		if !overwrite && b.Get(key) != nil {
			return engine.ErrKeyExists
		}

		if err := b.Put(key, value); err != nil {
			return fmt.Errorf("put in %v: %w", f.name, err)
		}

		return nil
	})
}

// Delete removes key. bbolt treats a missing key as success, the boundary
// reports it.
func (f *file) Delete(t engine.Txn, key []byte) error {
	rec := &record{
		kind:   kindDelete,
		file:   []byte(f.name),
		keyLen: uint32(len(key)),
	}

	return f.update(t, rec, func(b *bbolt.Bucket) error {
		if b.Get(key) == nil {
			return engine.ErrNotFound
		}

		return b.Delete(key)
	})
}

// Exists reports whether key is present.
func (f *file) Exists(t engine.Txn, key []byte) (bool, error) {
	var found bool
	err := f.view(t, func(b *bbolt.Bucket) error {
		found = b.Get(key) != nil
		return nil
	})

	return found, err
}

// Cursor opens a cursor. Inside a transaction the cursor reads through it,
// otherwise every step runs in a short read transaction of its own so that
// no bbolt transaction is held between steps.
func (f *file) Cursor(t engine.Txn) (engine.Cursor, error) {
	if err := f.env.checkOpen(); err != nil {
		return nil, err
	}

	if t != nil {
		tx, err := f.boundTx(t)
		if err != nil {
			return nil, err
		}

		return &cursor{tx: tx}, nil
	}

	return &cursor{db: f.db}, nil
}
