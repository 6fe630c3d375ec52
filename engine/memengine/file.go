package memengine

import (
	"bytes"
	"fmt"

	"github.com/google/btree"
	"github.com/quanghuy1258/wallet/engine"
)

// item is a key/value pair stored in a file tree.
type item struct {
	key   []byte
	value []byte
}

// Less orders items by key.
func (i *item) Less(than btree.Item) bool {
	return bytes.Compare(i.key, than.(*item).key) < 0
}

func cloneBytes(b []byte) []byte {
	return append(make([]byte, 0, len(b)), b...)
}

// file is an open in-memory file.
type file struct {
	env  *env
	name string
	data *fileData
}

// Compile-time check that file implements engine.File.
var _ engine.File = (*file)(nil)

// Name returns the file name.
func (f *file) Name() string {
	return f.name
}

// Close marks the file closed.
func (f *file) Close() error {
	f.data.mu.Lock()
	defer f.data.mu.Unlock()

	if !f.data.open {
		return fmt.Errorf("%w: %v", engine.ErrFileNotFound, f.name)
	}
	f.data.open = false

	return nil
}

// view runs fn against the tree visible to t, or the committed tree if t is
// nil.
func (f *file) view(t engine.Txn, fn func(tree *btree.BTree) error) error {
	if err := f.env.checkOpen(); err != nil {
		return err
	}

	if t != nil {
		tree, err := f.bindTxn(t)
		if err != nil {
			return err
		}

		return fn(tree)
	}

	f.data.mu.RLock()
	defer f.data.mu.RUnlock()

	return fn(f.data.tree)
}

// update runs fn against the tree of t, or directly against the committed
// tree while holding the writer lock if t is nil.
func (f *file) update(t engine.Txn, fn func(tree *btree.BTree) error) error {
	if err := f.env.checkOpen(); err != nil {
		return err
	}

	if t != nil {
		if tx, ok := t.(*txn); ok && tx.readOnly {
			return engine.ErrTxnReadOnly
		}

		tree, err := f.bindTxn(t)
		if err != nil {
			return err
		}

		return fn(tree)
	}

	if f.env.cfg != nil && !f.env.cfg.AutoCommit {
		return engine.ErrTxnRequired
	}

	f.data.writeMu.Lock()
	defer f.data.writeMu.Unlock()

	f.data.mu.Lock()
	defer f.data.mu.Unlock()

	return fn(f.data.tree)
}

func (f *file) bindTxn(t engine.Txn) (*btree.BTree, error) {
	tx, ok := t.(*txn)
	if !ok || tx.env != f.env {
		return nil, engine.ErrTxnForeign
	}

	return tx.bind(f.data)
}

// Get returns a copy of the value stored under key.
func (f *file) Get(t engine.Txn, key []byte) ([]byte, error) {
	var value []byte
	err := f.view(t, func(tree *btree.BTree) error {
		found := tree.Get(&item{key: key})
		if found == nil {
			return engine.ErrNotFound
		}
		value = cloneBytes(found.(*item).value)

		return nil
	})

	return value, err
}

// Put stores value under key.
func (f *file) Put(t engine.Txn, key, value []byte, overwrite bool) error {
	return f.update(t, func(tree *btree.BTree) error {
		if !overwrite && tree.Has(&item{key: key}) {
			return engine.ErrKeyExists
		}
		tree.ReplaceOrInsert(&item{
			key:   cloneBytes(key),
			value: cloneBytes(value),
		})

		return nil
	})
}

// Delete removes key.
func (f *file) Delete(t engine.Txn, key []byte) error {
	return f.update(t, func(tree *btree.BTree) error {
		if tree.Delete(&item{key: key}) == nil {
			return engine.ErrNotFound
		}

		return nil
	})
}

// Exists reports whether key is present.
func (f *file) Exists(t engine.Txn, key []byte) (bool, error) {
	var found bool
	err := f.view(t, func(tree *btree.BTree) error {
		found = tree.Has(&item{key: key})
		return nil
	})

	return found, err
}

// Cursor opens a cursor over a snapshot of the file.
func (f *file) Cursor(t engine.Txn) (engine.Cursor, error) {
	var snapshot *btree.BTree
	err := f.view(t, func(tree *btree.BTree) error {
		snapshot = tree.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	c := &cursor{tree: snapshot}
	if t != nil {
		c.txn = t.(*txn)
	}

	return c, nil
}
