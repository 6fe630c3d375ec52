package walletdb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/quanghuy1258/wallet/engine"
)

// readOnlyCheckpointMinutes is the age after which a read-only batch writes
// a checkpoint on close.
const readOnlyCheckpointMinutes = 1

// Batch is a session of reads and writes against one Database, optionally
// inside an explicit transaction. A Batch keeps the file open and counted as
// in use until Close. A Batch is not safe for concurrent use.
type Batch struct {
	env      *Environment
	db       *Database
	filename string
	readOnly bool

	engineEnv engine.Env
	file      engine.File

	mu      sync.Mutex
	txn     fn.Option[engine.Txn]
	cursors map[*Cursor]struct{}
	closed  bool
}

// NewBatch opens the environment if needed, opens the database file if it is
// not open yet and counts the batch as a user of the file. With create set a
// missing file is created.
func (db *Database) NewBatch(readOnly, create bool) (*Batch, error) {
	env := db.env

	env.coord.mu.Lock()
	defer env.coord.mu.Unlock()

	if db.released {
		return nil, fmt.Errorf("%w: %v was released",
			ErrDatabaseNotOpen, db.filename)
	}

	if err := env.openLocked(); err != nil {
		return nil, err
	}

	if db.file == nil {
		f, err := env.env.OpenFile(db.filename, create)
		if err != nil {
			return nil, fmt.Errorf("%w: unable to open %v: %w",
				ErrIOFailure, db.filename, err)
		}
		db.file = f

		log.Debugf("Opened database file %v", db.filename)
	}

	env.useCounts[db.filename]++

	return &Batch{
		env:       env,
		db:        db,
		filename:  db.filename,
		readOnly:  readOnly,
		engineEnv: env.env,
		file:      db.file,
		cursors:   make(map[*Cursor]struct{}),
	}, nil
}

// ReadOnly reports whether the batch refuses writes.
func (b *Batch) ReadOnly() bool {
	return b.readOnly
}

// activeTxn returns the engine transaction operations run in, nil if none.
func (b *Batch) activeTxn() engine.Txn {
	return b.txn.UnwrapOr(nil)
}

// check returns the error every operation fails with in the current state.
func (b *Batch) check() error {
	switch {
	case b.closed:
		return ErrBatchClosed

	case b.file == nil:
		return ErrDatabaseNotOpen
	}

	return nil
}

// checkWrite is check for operations that modify the file.
func (b *Batch) checkWrite() error {
	if err := b.check(); err != nil {
		return err
	}
	if b.readOnly {
		return fmt.Errorf("%w: %v", ErrReadOnly, b.filename)
	}

	return nil
}

// TxnBegin starts a transaction. Operations run inside it until TxnCommit or
// TxnAbort.
func (b *Batch) TxnBegin() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(); err != nil {
		return err
	}
	if b.txn.IsSome() {
		return fmt.Errorf("%w: transaction already active",
			ErrTxnState)
	}

	txn, err := b.engineEnv.BeginTxn(b.readOnly)
	if err != nil {
		return translateErr(err)
	}
	b.txn = fn.Some(txn)

	return nil
}

// TxnCommit commits the active transaction.
func (b *Batch) TxnCommit() error {
	return b.endTxn(engine.Txn.Commit)
}

// TxnAbort discards the active transaction.
func (b *Batch) TxnAbort() error {
	return b.endTxn(engine.Txn.Abort)
}

func (b *Batch) endTxn(end func(engine.Txn) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBatchClosed
	}

	txn := b.activeTxn()
	if txn == nil {
		return fmt.Errorf("%w: no active transaction", ErrTxnState)
	}
	b.txn = fn.None[engine.Txn]()

	// Cursors opened inside the transaction cannot outlive it.
	var errs []error
	for c := range b.cursors {
		if c.txn != txn {
			continue
		}
		if err := c.c.Close(); err != nil {
			errs = append(errs, translateErr(err))
		}
		c.closed = true
		delete(b.cursors, c)
	}

	endErr := translateErr(end(txn))

	return errors.Join(append([]error{endErr}, errs...)...)
}

// Get returns the value stored under key. ErrNotFound is returned if the key
// is not present.
func (b *Batch) Get(key []byte) (*SecureBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(); err != nil {
		return nil, err
	}

	value, err := b.file.Get(b.activeTxn(), key)
	if err != nil {
		return nil, translateErr(err)
	}

	return NewSecureBuffer(value), nil
}

// Put stores value under key. Without overwrite an existing key is left
// alone and ErrAlreadyExists is returned.
func (b *Batch) Put(key, value []byte, overwrite bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkWrite(); err != nil {
		return err
	}

	return translateErr(b.file.Put(b.activeTxn(), key, value, overwrite))
}

// Erase removes key. Erasing a missing key succeeds.
func (b *Batch) Erase(key []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkWrite(); err != nil {
		return err
	}

	err := b.file.Delete(b.activeTxn(), key)
	if errors.Is(err, engine.ErrNotFound) {
		return nil
	}

	return translateErr(err)
}

// Exists reports whether key is present.
func (b *Batch) Exists(key []byte) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(); err != nil {
		return false, err
	}

	ok, err := b.file.Exists(b.activeTxn(), key)
	if err != nil {
		return false, translateErr(err)
	}

	return ok, nil
}

// OpenCursor opens a cursor over every entry of the file in key order.
func (b *Batch) OpenCursor() (*Cursor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(); err != nil {
		return nil, err
	}

	txn := b.activeTxn()
	c, err := b.file.Cursor(txn)
	if err != nil {
		return nil, translateErr(err)
	}

	cursor := &Cursor{batch: b, c: c, txn: txn}
	b.cursors[cursor] = struct{}{}

	return cursor, nil
}

// forgetCursor drops a closed cursor.
func (b *Batch) forgetCursor(c *Cursor) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.cursors, c)
}

// Flush writes a checkpoint unless a transaction is active. Read-only
// batches only checkpoint once enough log or time has accumulated.
func (b *Batch) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBatchClosed
	}
	if b.txn.IsSome() {
		return nil
	}

	b.env.coord.mu.Lock()
	defer b.env.coord.mu.Unlock()

	return b.flushLocked()
}

func (b *Batch) flushLocked() error {
	if b.readOnly {
		return b.env.checkpointLocked(
			b.env.cfg.CheckpointKB, readOnlyCheckpointMinutes,
		)
	}

	return b.env.checkpointLocked(0, 0)
}

// Close aborts an active transaction, closes open cursors, stops counting
// the batch as a user of the file and writes a checkpoint. Closing twice is
// a no-op.
func (b *Batch) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	b.txn.WhenSome(func(txn engine.Txn) {
		log.Debugf("Aborting transaction left open on %v", b.filename)

		if err := txn.Abort(); err != nil {
			errs = append(errs, translateErr(err))
		}
	})
	b.txn = fn.None[engine.Txn]()

	for c := range b.cursors {
		if err := c.c.Close(); err != nil {
			errs = append(errs, translateErr(err))
		}
		c.closed = true
	}
	b.cursors = nil

	env := b.env
	env.coord.mu.Lock()
	defer env.coord.mu.Unlock()

	if env.useCounts[b.filename] > 0 {
		env.useCounts[b.filename]--
	}

	if err := b.flushLocked(); err != nil {
		errs = append(errs, err)
	}

	env.notifyLocked()

	return errors.Join(errs...)
}
