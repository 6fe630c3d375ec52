package boltengine

import (
	"bytes"
	"io"

	"github.com/quanghuy1258/wallet/engine"
	"go.etcd.io/bbolt"
)

// cursor walks a file in key order. It remembers the last key it returned
// and seeks past it on every step, so the position survives writes to the
// file in between.
type cursor struct {
	// Exactly one of tx and db is set. tx is the transaction the cursor
	// was opened in, db is used for a short read transaction per step.
	tx *bbolt.Tx
	db *bbolt.DB

	last    []byte
	started bool
	done    bool
}

// step positions a fresh bbolt cursor after the last returned key.
func (c *cursor) step(b *bbolt.Bucket) ([]byte, []byte) {
	bc := b.Cursor()
	if !c.started {
		return bc.First()
	}

	k, v := bc.Seek(c.last)
	if k != nil && bytes.Equal(k, c.last) {
		k, v = bc.Next()
	}

	return k, v
}

// Next returns the next pair or io.EOF.
func (c *cursor) Next() ([]byte, []byte, error) {
	if c.done {
		return nil, nil, io.EOF
	}

	var key, value []byte
	visit := func(tx *bbolt.Tx) error {
		k, v := c.step(tx.Bucket(rootBucket))
		if k != nil {
			key, value = cloneBytes(k), cloneBytes(v)
		}

		return nil
	}

	switch {
	case c.tx != nil:
		// A finished bbolt transaction drops its database reference.
		if c.tx.DB() == nil {
			c.done = true
			return nil, nil, engine.ErrTxnDone
		}
		_ = visit(c.tx)

	default:
		if err := c.db.View(visit); err != nil {
			c.done = true
			return nil, nil, err
		}
	}

	if key == nil {
		c.done = true
		return nil, nil, io.EOF
	}

	c.started = true
	c.last = key

	return cloneBytes(key), value, nil
}

// Close stops the cursor. It holds no bbolt resources between steps.
func (c *cursor) Close() error {
	c.done = true
	c.tx = nil
	c.db = nil

	return nil
}
