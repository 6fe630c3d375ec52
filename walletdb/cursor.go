package walletdb

import (
	"errors"
	"io"

	"github.com/quanghuy1258/wallet/engine"
)

// Cursor iterates over the entries of a database file in key order. A
// cursor opened inside a transaction is closed when the transaction ends.
type Cursor struct {
	batch  *Batch
	c      engine.Cursor
	txn    engine.Txn
	err    error
	closed bool
}

// Next returns the next entry. It returns false once the cursor is
// exhausted or on failure, Err tells the two apart.
func (c *Cursor) Next() (*SecureBuffer, *SecureBuffer, bool) {
	if c.closed || c.err != nil {
		return nil, nil, false
	}

	key, value, err := c.c.Next()
	switch {
	case errors.Is(err, io.EOF):
		return nil, nil, false

	case err != nil:
		c.err = translateErr(err)
		log.Errorf("Cursor on %v failed: %v", c.batch.filename, err)

		return nil, nil, false
	}

	return NewSecureBuffer(key), NewSecureBuffer(value), true
}

// Err returns the error that stopped the cursor, if any.
func (c *Cursor) Err() error {
	return c.err
}

// Close releases the cursor.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.batch.forgetCursor(c)

	return translateErr(c.c.Close())
}
