package memengine

import (
	"sync"

	"github.com/google/btree"
	"github.com/quanghuy1258/wallet/engine"
)

// txn is an in-memory transaction. Each file it touches is cloned on first
// use and the clone replaces the committed tree on commit. A read-only txn
// only keeps its clones as a stable view and never takes the writer lock.
type txn struct {
	env      *env
	readOnly bool

	mu    sync.Mutex
	done  bool
	trees map[*fileData]*btree.BTree
}

// Compile-time check that txn implements engine.Txn.
var _ engine.Txn = (*txn)(nil)

// bind returns the transaction's private tree for data, taking the file's
// writer lock the first time unless the txn is read-only.
func (t *txn) bind(data *fileData) (*btree.BTree, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return nil, engine.ErrTxnDone
	}
	if tree, ok := t.trees[data]; ok {
		return tree, nil
	}

	if !t.readOnly {
		data.writeMu.Lock()
	}

	data.mu.RLock()
	tree := data.tree.Clone()
	data.mu.RUnlock()

	t.trees[data] = tree

	return tree, nil
}

// finished reports whether the transaction was committed or aborted.
func (t *txn) finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.done
}

// Commit publishes every private tree.
func (t *txn) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return engine.ErrTxnDone
	}
	t.done = true

	if t.readOnly {
		t.trees = nil
		return nil
	}

	for data, tree := range t.trees {
		data.mu.Lock()
		data.tree = tree
		data.mu.Unlock()

		data.writeMu.Unlock()
	}
	t.trees = nil

	return nil
}

// Abort drops every private tree.
func (t *txn) Abort() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return engine.ErrTxnDone
	}
	t.done = true

	if !t.readOnly {
		for data := range t.trees {
			data.writeMu.Unlock()
		}
	}
	t.trees = nil

	return nil
}
