package memengine

import (
	"io"

	"github.com/google/btree"
	"github.com/quanghuy1258/wallet/engine"
)

// cursor walks a tree snapshot in key order. A cursor opened inside a
// transaction stops working once the transaction ends.
type cursor struct {
	tree    *btree.BTree
	txn     *txn
	last    []byte
	started bool
}

// Next returns the entry after the previous one.
func (c *cursor) Next() ([]byte, []byte, error) {
	if c.tree == nil {
		return nil, nil, io.EOF
	}
	if c.txn != nil && c.txn.finished() {
		c.tree = nil
		return nil, nil, engine.ErrTxnDone
	}

	var next *item
	visit := func(i btree.Item) bool {
		candidate := i.(*item)
		if c.started && string(candidate.key) == string(c.last) {
			return true
		}
		next = candidate

		return false
	}

	if c.started {
		c.tree.AscendGreaterOrEqual(&item{key: c.last}, visit)
	} else {
		c.tree.Ascend(visit)
	}

	if next == nil {
		c.tree = nil
		return nil, nil, io.EOF
	}

	c.started = true
	c.last = next.key

	return cloneBytes(next.key), cloneBytes(next.value), nil
}

// Close drops the snapshot.
func (c *cursor) Close() error {
	c.tree = nil
	return nil
}
